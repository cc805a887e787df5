package database

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
)

// applyOptions is a test helper that applies query options to a configuration
// and returns the resulting configuration for inspection.
func applyOptions(options []neo4j.ExecuteQueryConfigurationOption) *neo4j.ExecuteQueryConfiguration {
	config := &neo4j.ExecuteQueryConfiguration{}
	for _, opt := range options {
		opt(config)
	}
	return config
}

func TestNewNeo4jService_NilDriver(t *testing.T) {
	if _, err := NewNeo4jService(nil, "neo4j"); err == nil {
		t.Fatal("expected error when driver is nil")
	}
}

func TestQueryOptions_WithDatabase(t *testing.T) {
	service := &Neo4jService{database: "testdb"}

	config := applyOptions(service.queryOptions(neo4j.ExecuteQueryWithWritersRouting()))

	if config.Database != "testdb" {
		t.Errorf("Expected database 'testdb', got %q", config.Database)
	}
	if config.Routing != neo4j.Write {
		t.Errorf("Expected writers routing, got %v", config.Routing)
	}
}

func TestQueryOptions_DefaultDatabase(t *testing.T) {
	service := &Neo4jService{}

	config := applyOptions(service.queryOptions(neo4j.ExecuteQueryWithReadersRouting()))

	if config.Database != "" {
		t.Errorf("Expected no database option, got %q", config.Database)
	}
	if config.Routing != neo4j.Read {
		t.Errorf("Expected readers routing, got %v", config.Routing)
	}
}

func TestConnect_InvalidURI(t *testing.T) {
	_, err := Connect(context.Background(), Credentials{
		URI:      "http://localhost:7474",
		Username: "neo4j",
		Password: "testing",
	})
	if err == nil {
		t.Fatal("expected error for a non-bolt URI scheme")
	}
}
