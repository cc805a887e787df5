// Package containerrunner starts a throwaway Neo4j server for the test suites.
package containerrunner

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	httpPort = "7474/tcp"
	boltPort = "7687/tcp"
)

// Container is a running Neo4j container and the address it is reachable on.
type Container struct {
	container testcontainers.Container
	Host      string
	HTTPPort  int
	BoltPort  int
}

// Start runs image with the credential it ships with, so the first login
// still has to change the password. It returns once the HTTP port listens;
// the server itself may need longer before it answers.
func Start(ctx context.Context, image string) (*Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{httpPort, boltPort},
		WaitingFor:   wait.ForListeningPort(httpPort).WithStartupTimeout(119 * time.Second),
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start neo4j container from %s: %w", image, err)
	}

	c := &Container{container: ctr}
	if err := c.resolveEndpoint(ctx); err != nil {
		_ = ctr.Terminate(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Container) resolveEndpoint(ctx context.Context) error {
	host, err := c.container.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve container host: %w", err)
	}

	mappedHTTP, err := c.container.MappedPort(ctx, httpPort)
	if err != nil {
		return fmt.Errorf("failed to resolve mapped HTTP port: %w", err)
	}
	mappedBolt, err := c.container.MappedPort(ctx, boltPort)
	if err != nil {
		return fmt.Errorf("failed to resolve mapped bolt port: %w", err)
	}

	c.Host = host
	if c.HTTPPort, err = strconv.Atoi(mappedHTTP.Port()); err != nil {
		return fmt.Errorf("invalid mapped HTTP port %q: %w", mappedHTTP.Port(), err)
	}
	if c.BoltPort, err = strconv.Atoi(mappedBolt.Port()); err != nil {
		return fmt.Errorf("invalid mapped bolt port %q: %w", mappedBolt.Port(), err)
	}
	return nil
}

// Logs returns the container output, or an empty string when it cannot be read.
func (c *Container) Logs(ctx context.Context) string {
	rc, err := c.container.Logs(ctx)
	if err != nil || rc == nil {
		return ""
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return ""
	}
	return string(b)
}

// Terminate stops and removes the container.
func (c *Container) Terminate(ctx context.Context) error {
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate container: %w", err)
	}
	return nil
}
