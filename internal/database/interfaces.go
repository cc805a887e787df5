package database

//go:generate mockgen -destination=mocks/mock_database.go -package=mocks github.com/neo4j/testinstance/internal/database Service

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
)

// QueryExecutor defines the interface for executing Neo4j queries
type QueryExecutor interface {
	// ExecuteReadQuery executes a read-only Cypher query and returns raw records
	ExecuteReadQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)

	// ExecuteWriteQuery executes a write Cypher query and returns raw records
	ExecuteWriteQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
}

// Service is the database handle shared by the tests of one process.
type Service interface {
	QueryExecutor

	// VerifyConnectivity checks a connection can be established with the configured credential
	VerifyConnectivity(ctx context.Context) error

	// Purge deletes every node and every relationship
	Purge(ctx context.Context) (PurgeResult, error)

	// CountNodes returns the number of nodes in the database
	CountNodes(ctx context.Context) (int64, error)

	// Close releases the underlying driver
	Close(ctx context.Context) error
}
