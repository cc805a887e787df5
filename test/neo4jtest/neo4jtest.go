// Package neo4jtest gives test packages a shared, bootstrapped Neo4j instance and
// empties its database after every test.
//
// A package opts in from its TestMain:
//
//	func TestMain(m *testing.M) {
//		os.Exit(neo4jtest.Run(m))
//	}
//
// and each test asks for a fixture:
//
//	func TestSomething(t *testing.T) {
//		fx := neo4jtest.Setup(t)
//		_, err := fx.DB().ExecuteWriteQuery(ctx, "CREATE (:Node)", nil)
//		...
//	}
//
// The instance is configured through the NEO4J_TEST_* environment variables; with
// NEO4J_TEST_USE_CONTAINER=true a throwaway container is started for the run.
package neo4jtest

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/testinstance/internal/bootstrap"
	"github.com/neo4j/testinstance/internal/config"
	"github.com/neo4j/testinstance/internal/database"
	"github.com/neo4j/testinstance/internal/logger"
	"github.com/neo4j/testinstance/test/containerrunner"
)

const purgeTimeout = 30 * time.Second

var (
	defaultOnce  sync.Once
	defaultSuite *Suite
	defaultErr   error
)

// Suite owns the shared instance of one test process and whatever was started for it.
type Suite struct {
	shared    *bootstrap.Shared
	onRelease []func(ctx context.Context) error
}

// NewSuite creates a suite around shared.
func NewSuite(shared *bootstrap.Shared) *Suite {
	return &Suite{shared: shared}
}

// FromEnvironment builds a suite from the NEO4J_TEST_* variables, starting a
// container first when NEO4J_TEST_USE_CONTAINER is set. The instance itself is
// bootstrapped on first use.
func FromEnvironment(ctx context.Context) (*Suite, error) {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load test instance configuration: %w", err)
	}
	logSvc := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	var ctr *containerrunner.Container
	if cfg.UseContainer {
		ctr, err = containerrunner.Start(ctx, cfg.Image)
		if err != nil {
			return nil, err
		}
		cfg.Host, cfg.HTTPPort, cfg.BoltPort = ctr.Host, ctr.HTTPPort, ctr.BoltPort
		logSvc.Info("Started neo4j test container", "image", cfg.Image, "host", ctr.Host, "http_port", ctr.HTTPPort, "bolt_port", ctr.BoltPort)
	}

	b := bootstrap.New(cfg, bootstrap.WithLogger(logSvc.Component("bootstrap")))
	s := NewSuite(bootstrap.NewShared(b))
	if ctr != nil {
		s.onRelease = append(s.onRelease, ctr.Terminate)
	}
	return s, nil
}

// Instance returns the shared instance, bootstrapping it on the first call.
func (s *Suite) Instance(ctx context.Context) (*bootstrap.Instance, error) {
	return s.shared.Get(ctx)
}

// Setup returns a fixture on the shared instance and purges the database when t finishes.
// A failed bootstrap fails t immediately.
func (s *Suite) Setup(t testing.TB) *Fixture {
	t.Helper()

	inst, err := s.shared.Get(context.Background())
	if err != nil {
		t.Fatalf("neo4j test instance unavailable: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()
		if err := inst.Purge(ctx); err != nil {
			t.Errorf("failed to purge neo4j test database: %v", err)
		}
	})

	return &Fixture{
		Instance: inst,
		TestID:   makeTestID(),
	}
}

// Release closes the shared instance and stops anything started for it.
func (s *Suite) Release(ctx context.Context) error {
	var errs []string
	if err := s.shared.Release(ctx); err != nil {
		errs = append(errs, err.Error())
	}
	for _, release := range s.onRelease {
		if err := release(ctx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to release neo4j test instance: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RunSuite bootstraps s, runs the tests and releases s. It returns the exit code
// for os.Exit; a failed bootstrap aborts the run with code 1 before any test runs.
func RunSuite(m *testing.M, s *Suite) int {
	ctx := context.Background()

	if _, err := s.Instance(ctx); err != nil {
		log.Printf("Error: %v", err)
		if rerr := s.Release(ctx); rerr != nil {
			log.Printf("Warning: %v", rerr)
		}
		return 1
	}

	code := m.Run()

	if err := s.Release(ctx); err != nil {
		log.Printf("Warning: %v", err)
	}
	return code
}

// Run is RunSuite on the suite described by the environment.
func Run(m *testing.M) int {
	s, err := suiteFromEnvironment()
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	return RunSuite(m, s)
}

// Setup is Suite.Setup on the suite described by the environment.
func Setup(t testing.TB) *Fixture {
	t.Helper()

	s, err := suiteFromEnvironment()
	if err != nil {
		t.Fatalf("neo4j test instance unavailable: %v", err)
	}
	return s.Setup(t)
}

func suiteFromEnvironment() (*Suite, error) {
	defaultOnce.Do(func() {
		defaultSuite, defaultErr = FromEnvironment(context.Background())
	})
	return defaultSuite, defaultErr
}

// Fixture is what a single test sees of the shared instance.
type Fixture struct {
	Instance *bootstrap.Instance
	TestID   string
}

// DB returns the shared database handle.
func (f *Fixture) DB() database.Service {
	return f.Instance.DB()
}

// UniqueLabel returns label suffixed with the test ID, so concurrent runs against
// the same server do not see each other's nodes.
func (f *Fixture) UniqueLabel(label string) string {
	return fmt.Sprintf("%s_%s", label, f.TestID)
}

// SeedNode creates a node with the unique variant of label and returns that label.
func (f *Fixture) SeedNode(ctx context.Context, label string, props map[string]any) (string, error) {
	uniqueLabel := f.UniqueLabel(label)
	query := fmt.Sprintf("CREATE (n:`%s` $props) RETURN n", uniqueLabel)
	if _, err := f.DB().ExecuteWriteQuery(ctx, query, map[string]any{"props": props}); err != nil {
		return "", fmt.Errorf("failed to seed %s node: %w", uniqueLabel, err)
	}
	return uniqueLabel, nil
}

func makeTestID() string {
	id := fmt.Sprintf("test-%s", uuid.NewString())
	return strings.ReplaceAll(id, "-", "_")
}
