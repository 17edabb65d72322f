// Package poll is the single bounded-retry primitive shared by frame resolution,
// locator resolution, actionability checks and assertions.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimeout is returned when the deadline passes before the condition holds.
var ErrTimeout = errors.New("poll: timed out")

type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

type Outcome struct {
	Attempts int
	Elapsed  time.Duration
}

// Func is one attempt. done=true stops polling successfully; a non-nil error stops
// polling and is returned as is.
type Func func(ctx context.Context) (done bool, err error)

var errNotYet = errors.New("poll: condition not met")

// Until runs fn immediately and then every Interval until it reports done, returns an
// error, the Timeout elapses or ctx is cancelled. It never waits after a success.
func Until(ctx context.Context, opts Options, fn Func) (Outcome, error) {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = opts.Interval
	}

	start := time.Now()
	pctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var out Outcome
	op := func() error {
		out.Attempts++
		done, err := fn(pctx)
		if err != nil {
			if pctx.Err() != nil && errors.Is(err, pctx.Err()) {
				return backoff.Permanent(pctx.Err())
			}
			return backoff.Permanent(err)
		}
		if done {
			return nil
		}
		return errNotYet
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(opts.Interval), pctx)
	err := backoff.Retry(op, b)
	out.Elapsed = time.Since(start)

	switch {
	case err == nil:
		return out, nil
	case ctx.Err() != nil:
		return out, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errNotYet):
		return out, ErrTimeout
	default:
		return out, err
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
