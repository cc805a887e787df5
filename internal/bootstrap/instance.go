package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neo4j/testinstance/internal/config"
	"github.com/neo4j/testinstance/internal/database"
)

// Instance is a bootstrapped test instance and its open database handle.
// Tests only read from it; Close is the release hook run once the tests are done.
type Instance struct {
	host     string
	httpPort int
	boltPort int
	boltURI  string
	db       database.Service
	log      *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func newInstance(cfg *config.Config, db database.Service, log *slog.Logger) *Instance {
	return &Instance{
		host:     cfg.Host,
		httpPort: cfg.HTTPPort,
		boltPort: cfg.BoltPort,
		boltURI:  cfg.BoltURI(),
		db:       db,
		log:      log,
	}
}

// Host returns the host name the instance was reached on.
func (i *Instance) Host() string {
	return i.host
}

// HTTPPort returns the port of the HTTP admin endpoint.
func (i *Instance) HTTPPort() int {
	return i.httpPort
}

// BoltPort returns the port of the bolt endpoint.
func (i *Instance) BoltPort() int {
	return i.boltPort
}

// BoltURI returns the URI the database handle is connected to.
func (i *Instance) BoltURI() string {
	return i.boltURI
}

// DB returns the shared database handle.
func (i *Instance) DB() database.Service {
	return i.db
}

// Purge deletes every node and relationship so the next test starts from an empty database.
func (i *Instance) Purge(ctx context.Context) error {
	result, err := i.db.Purge(ctx)
	if err != nil {
		return fmt.Errorf("purge %s: %w", i.boltURI, err)
	}
	i.log.Debug("Purged test database", "nodes_deleted", result.NodesDeleted, "relationships_deleted", result.RelationshipsDeleted)
	return nil
}

// Close releases the database handle. Calling it again returns the first result.
func (i *Instance) Close(ctx context.Context) error {
	i.closeOnce.Do(func() {
		i.closeErr = i.db.Close(ctx)
	})
	return i.closeErr
}
