package database

import (
	"context"
	"fmt"
	"log"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
)

const (
	purgeQuery      = "MATCH (n) DETACH DELETE n"
	countNodesQuery = "MATCH (n) RETURN count(n) AS count"
)

// PurgeResult reports what a purge removed.
type PurgeResult struct {
	NodesDeleted         int
	RelationshipsDeleted int
}

// Credentials identify the instance and account a Service connects with.
type Credentials struct {
	URI      string
	Username string
	Password string
	Database string // Empty means the server default database
}

// Neo4jService is the concrete implementation of Service
type Neo4jService struct {
	driver   neo4j.Driver
	database string
}

// NewNeo4jService creates a new Neo4jService instance
func NewNeo4jService(driver neo4j.Driver, database string) (*Neo4jService, error) {
	if driver == nil {
		return nil, fmt.Errorf("driver cannot be nil")
	}

	return &Neo4jService{
		driver:   driver,
		database: database,
	}, nil
}

// Connect creates a driver for creds and verifies it can reach the server.
// The driver is closed again when verification fails.
func Connect(ctx context.Context, creds Credentials) (*Neo4jService, error) {
	driver, err := neo4j.NewDriver(creds.URI, neo4j.BasicAuth(creds.Username, creds.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create driver for %s: %w", creds.URI, err)
	}

	svc, err := NewNeo4jService(driver, creds.Database)
	if err != nil {
		return nil, err
	}

	if err := svc.VerifyConnectivity(ctx); err != nil {
		if cerr := driver.Close(ctx); cerr != nil {
			log.Printf("Warning: failed to close driver: %v", cerr)
		}
		return nil, err
	}

	return svc, nil
}

// VerifyConnectivity checks the driver can establish a valid connection with a Neo4j instance
func (s *Neo4jService) VerifyConnectivity(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to verify database connectivity: %w", err)
	}
	return nil
}

// ExecuteReadQuery executes a read-only Cypher query and returns raw records
func (s *Neo4jService) ExecuteReadQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer, s.queryOptions(neo4j.ExecuteQueryWithReadersRouting())...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute read query: %w", err)
	}

	return res.Records, nil
}

// ExecuteWriteQuery executes a write Cypher query and returns raw records
func (s *Neo4jService) ExecuteWriteQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer, s.queryOptions(neo4j.ExecuteQueryWithWritersRouting())...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute write query: %w", err)
	}

	return res.Records, nil
}

// Purge deletes every node together with its relationships.
func (s *Neo4jService) Purge(ctx context.Context) (PurgeResult, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, purgeQuery, nil, neo4j.EagerResultTransformer, s.queryOptions(neo4j.ExecuteQueryWithWritersRouting())...)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("failed to purge database: %w", err)
	}

	var result PurgeResult
	if res.Summary != nil {
		counters := res.Summary.Counters()
		result.NodesDeleted = counters.NodesDeleted()
		result.RelationshipsDeleted = counters.RelationshipsDeleted()
	}
	return result, nil
}

// CountNodes returns the number of nodes currently stored.
func (s *Neo4jService) CountNodes(ctx context.Context) (int64, error) {
	records, err := s.ExecuteReadQuery(ctx, countNodesQuery, nil)
	if err != nil {
		return 0, err
	}
	if len(records) != 1 {
		return 0, fmt.Errorf("count query returned %d records, expected 1", len(records))
	}

	value, ok := records[0].Get("count")
	if !ok {
		return 0, fmt.Errorf("count query returned no count column")
	}
	count, ok := value.(int64)
	if !ok {
		return 0, fmt.Errorf("count query returned %T, expected int64", value)
	}
	return count, nil
}

// Close closes the underlying driver
func (s *Neo4jService) Close(ctx context.Context) error {
	if err := s.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close driver: %w", err)
	}
	return nil
}

func (s *Neo4jService) queryOptions(routing neo4j.ExecuteQueryConfigurationOption) []neo4j.ExecuteQueryConfigurationOption {
	opts := []neo4j.ExecuteQueryConfigurationOption{routing}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	return opts
}
