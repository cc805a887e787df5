package bootstrap

import (
	"context"
	"errors"
	"sync"
)

// ErrReleased is returned by Shared.Get after Release.
var ErrReleased = errors.New("shared test instance already released")

// Shared bootstraps an instance on first use and hands the same result, instance
// or error, to every later caller.
type Shared struct {
	bootstrap func(ctx context.Context) (*Instance, error)

	once     sync.Once
	instance *Instance
	err      error

	releaseOnce sync.Once
	releaseErr  error
}

// NewShared returns a Shared that bootstraps with b.
func NewShared(b *Bootstrapper) *Shared {
	return &Shared{bootstrap: b.Bootstrap}
}

// Get returns the shared instance, running the bootstrap sequence on the first call only.
func (s *Shared) Get(ctx context.Context) (*Instance, error) {
	s.once.Do(func() {
		s.instance, s.err = s.bootstrap(ctx)
	})
	return s.instance, s.err
}

// Release closes the shared instance if one was created. Later calls to Get fail with ErrReleased.
func (s *Shared) Release(ctx context.Context) error {
	s.releaseOnce.Do(func() {
		s.once.Do(func() {
			s.err = ErrReleased
		})
		if s.instance != nil {
			s.releaseErr = s.instance.Close(ctx)
			s.instance, s.err = nil, ErrReleased
		}
	})
	return s.releaseErr
}
