// Package bootstrap brings a freshly started Neo4j instance into a state the tests
// can use: it waits for the server, rotates the shipped default password over the
// HTTP admin API and opens the database handle with the rotated credential.
//
// Two bounded retry loops are nested. The outer loop (Config.Connect, coarse and
// long) waits for the server process to listen; the inner loop (Config.Rotate,
// finer and shorter) waits for a listening server's admin API to answer.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/testinstance/internal/adminapi"
	"github.com/neo4j/testinstance/internal/config"
	"github.com/neo4j/testinstance/internal/database"
	"github.com/neo4j/testinstance/internal/logger"
)

// ErrCannotConnect is returned when the instance did not become usable within the connect bound.
var ErrCannotConnect = errors.New("cannot connect to the neo4j test instance")

var errRotationUnconfirmed = errors.New("password rotation not confirmed")

// AdminClient is the part of the HTTP admin API the rotation needs.
type AdminClient interface {
	UserStatus(ctx context.Context, username string) (*adminapi.UserStatus, error)
	ChangePassword(ctx context.Context, username, newPassword string) (int, error)
}

// ConnectFunc opens a database handle and verifies it can reach the server.
type ConnectFunc func(ctx context.Context, creds database.Credentials) (database.Service, error)

// Option configures a Bootstrapper.
type Option func(*Bootstrapper)

// WithAdminClient replaces the HTTP admin client.
func WithAdminClient(client AdminClient) Option {
	return func(b *Bootstrapper) {
		b.admin = client
	}
}

// WithConnectFunc replaces the function opening the database handle.
func WithConnectFunc(connect ConnectFunc) Option {
	return func(b *Bootstrapper) {
		b.connect = connect
	}
}

// WithTimerFactory replaces the timers the retry loops wait on.
func WithTimerFactory(newTimer TimerFactory) Option {
	return func(b *Bootstrapper) {
		b.newTimer = newTimer
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bootstrapper) {
		b.log = log
	}
}

// Bootstrapper runs the bootstrap sequence against one instance.
type Bootstrapper struct {
	cfg      *config.Config
	admin    AdminClient
	connect  ConnectFunc
	newTimer TimerFactory
	log      *slog.Logger
}

// New creates a Bootstrapper for the instance described by cfg.
func New(cfg *config.Config, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		cfg:      cfg,
		connect:  connectNeo4j,
		newTimer: newRealTimer,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.admin == nil {
		b.admin = adminapi.NewClient(cfg.HTTPAddress(), cfg.DefaultUsername, cfg.DefaultPassword, cfg.HTTPTimeout)
	}
	return b
}

func connectNeo4j(ctx context.Context, creds database.Credentials) (database.Service, error) {
	svc, err := database.Connect(ctx, creds)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// Bootstrap waits for the instance, rotates its default password when required
// and returns the instance with an open database handle. The returned error
// wraps ErrCannotConnect when the connect bound is exhausted.
func (b *Bootstrapper) Bootstrap(ctx context.Context) (*Instance, error) {
	creds := database.Credentials{
		URI:      b.cfg.BoltURI(),
		Username: b.cfg.DefaultUsername,
		Password: b.cfg.Password,
		Database: b.cfg.Database,
	}

	b.log.Info("Bootstrapping neo4j test instance", "uri", creds.URI, "max_attempts", b.cfg.Connect.MaxAttempts)

	var db database.Service
	attempt := 0
	err := retry(ctx, b.cfg.Connect, b.newTimer, func() error {
		attempt++

		rotated, err := b.RotatePassword(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			b.log.Debug("Test instance not ready", "attempt", attempt, "error", err)
			return err
		}
		if !rotated {
			return errRotationUnconfirmed
		}

		svc, err := b.connect(ctx, creds)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			b.log.Debug("Database connection not ready", "attempt", attempt, "error", err)
			return err
		}
		db = svc
		return nil
	})
	if err != nil {
		b.log.Error("Giving up on neo4j test instance", "uri", creds.URI, "attempts", attempt, "error", err)
		return nil, fmt.Errorf("%w at %s after %d attempts: %w", ErrCannotConnect, creds.URI, attempt, err)
	}

	b.log.Info("Neo4j test instance ready", "uri", creds.URI, "attempts", attempt)
	return newInstance(b.cfg, db, b.log), nil
}

// RotatePassword makes sure the default account uses the test password.
//
// It polls the user resource until it parses, at most Config.Rotate.MaxAttempts
// times. If the server asks for a password change it posts the test password
// without checking the answer. It reports true once the check (and the change,
// if any) went through, and false with a nil error when the admin API never gave
// a usable answer. A connection failure aborts the polling and is returned.
func (b *Bootstrapper) RotatePassword(ctx context.Context) (bool, error) {
	username := b.cfg.DefaultUsername

	var (
		status         *adminapi.UserStatus
		alreadyRotated bool
		abort          error
		attempt        int
	)
	err := retry(ctx, b.cfg.Rotate, b.newTimer, func() error {
		attempt++

		s, err := b.admin.UserStatus(ctx, username)
		switch {
		case err == nil:
			status = s
			return nil
		case ctx.Err() != nil:
			abort = ctx.Err()
			return backoff.Permanent(abort)
		case errors.Is(err, adminapi.ErrUnauthorized):
			// The shipped password no longer works: an earlier pass changed it.
			alreadyRotated = true
			return nil
		case adminapi.IsConnectionError(err):
			abort = err
			return backoff.Permanent(err)
		default:
			b.log.Debug("Admin API not ready", "attempt", attempt, "error", err)
			return err
		}
	})
	if abort != nil {
		return false, abort
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		b.log.Warn("Could not change password", "user", username, "attempts", attempt, "error", err)
		return false, nil
	}

	if alreadyRotated {
		b.log.Debug("Default password already rotated", "user", username)
		return true, nil
	}
	if !status.ChangeRequired() {
		return true, nil
	}

	code, err := b.admin.ChangePassword(ctx, username, b.cfg.Password)
	if err != nil {
		return false, fmt.Errorf("failed to change password for user %s: %w", username, err)
	}
	if code < 200 || code > 299 {
		b.log.Warn("Password change answered with unexpected status", "user", username, "status", code)
	} else {
		b.log.Info("Rotated default password", "user", username)
	}
	return true, nil
}
