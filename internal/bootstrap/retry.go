package bootstrap

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/testinstance/internal/config"
)

// TimerFactory creates the timer a retry loop waits on. Tests replace it to skip real sleeps.
type TimerFactory func() backoff.Timer

type realTimer struct {
	timer *time.Timer
}

func newRealTimer() backoff.Timer {
	return &realTimer{}
}

func (t *realTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *realTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *realTimer) C() <-chan time.Time {
	return t.timer.C
}

// retry runs op at most p.MaxAttempts times and waits p.Interval before every
// attempt, the first one included. It returns nil on the first success, the
// unwrapped error of a backoff.Permanent, ctx.Err() on cancellation or the last
// error once the attempts are used up.
func retry(ctx context.Context, p config.RetryPolicy, newTimer TimerFactory, op backoff.Operation) error {
	if err := sleep(ctx, newTimer(), p.Interval); err != nil {
		return err
	}

	attempts := max(p.MaxAttempts, 1)
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(attempts-1)), ctx)
	return backoff.RetryNotifyWithTimer(op, b, nil, newTimer())
}

func sleep(ctx context.Context, t backoff.Timer, d time.Duration) error {
	t.Start(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
