package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/testinstance/internal/bootstrap"
	"github.com/neo4j/testinstance/internal/cli"
	"github.com/neo4j/testinstance/internal/config"
	"github.com/neo4j/testinstance/internal/logger"
)

// go build -ldflags "-X 'main.Version=1.0.0'"
var Version = "development"

const closeTimeout = 10 * time.Second

func main() {
	// Handle help and version before the flag package sees the arguments
	cli.HandleArgs(Version)

	host := flag.String("host", "", "Instance host (overrides NEO4J_TEST_HOST)")
	httpPort := flag.String("http-port", "", "HTTP admin port (overrides NEO4J_TEST_HTTP_PORT)")
	boltPort := flag.String("bolt-port", "", "Bolt port (overrides NEO4J_TEST_BOLT_PORT)")
	password := flag.String("password", "", "Password to rotate to (overrides NEO4J_TEST_PASSWORD)")
	logLevel := flag.String("log-level", "", "Log level (overrides NEO4J_LOG_LEVEL)")
	purge := flag.Bool("purge", false, "Delete every node and relationship once connected")
	flag.Parse()

	cfg, err := config.LoadConfig(&config.CLIOverrides{
		Host:     *host,
		HTTPPort: *httpPort,
		BoltPort: *boltPort,
		Password: *password,
		LogLevel: *logLevel,
	})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logSvc := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inst, err := bootstrap.New(cfg, bootstrap.WithLogger(logSvc.Component("bootstrap"))).Bootstrap(ctx)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if *purge {
		if err := inst.Purge(ctx); err != nil {
			closeInstance(inst)
			log.Fatalf("Error: %v", err)
		}
	}

	// NOTE: the URI goes to STDOUT so scripts can capture it, logs stay on STDERR
	fmt.Println(inst.BoltURI())
	closeInstance(inst)
}

func closeInstance(inst *bootstrap.Instance) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := inst.Close(ctx); err != nil {
		log.Printf("Warning: failed to close neo4j driver: %v", err)
	}
}
