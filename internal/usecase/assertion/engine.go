// Package assertion evaluates conditions by polling. A timeout is a neutral result;
// callers decide whether it fails the step.
package assertion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
	"browser-harness/internal/usecase/poll"
)

// Condition observes a value. Errors are recorded and polling continues.
type Condition func(ctx context.Context) (any, error)

type Predicate func(observed any) bool

type Engine struct {
	timeouts *entity.Timeouts
	logger   output.LoggerPort
	metrics  output.MetricsPort
}

func NewEngine(timeouts *entity.Timeouts, logger output.LoggerPort, metrics output.MetricsPort) *Engine {
	return &Engine{
		timeouts: timeouts,
		logger:   logger.Named("assertion"),
		metrics:  metrics,
	}
}

// WaitFor polls cond until pred holds or timeout elapses. Zero timeout uses the
// configured assertion timeout. It returns on the first satisfied poll.
func (e *Engine) WaitFor(ctx context.Context, cond Condition, pred Predicate, timeout time.Duration) entity.AssertionResult {
	var res entity.AssertionResult
	opts := poll.Options{
		Timeout:  entity.Or(timeout, e.timeouts.AssertionTimeout()),
		Interval: e.timeouts.Poll(),
	}
	out, err := poll.Until(ctx, opts, func(ctx context.Context) (bool, error) {
		v, err := cond(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			res.LastErr = err
			return false, nil
		}
		res.LastObserved, res.LastErr = v, nil
		return pred(v), nil
	})
	res.Attempts, res.Elapsed = out.Attempts, out.Elapsed
	res.Satisfied = err == nil
	if err != nil && !errors.Is(err, poll.ErrTimeout) && res.LastErr == nil {
		res.LastErr = err
	}
	e.metrics.ObserveAssertion(res.Satisfied, res.Attempts, res.Elapsed)
	return res
}

// Check evaluates x and attaches a diagnostic snapshot when it is not met.
func (e *Engine) Check(ctx context.Context, x Expectation, timeout time.Duration) entity.AssertionResult {
	res := e.WaitFor(ctx, x.Condition(), x.Predicate(), timeout)
	res.Description = x.String()
	if res.Satisfied {
		e.logger.Debug("Expectation met", "expectation", res.Description, "attempts", res.Attempts)
		return res
	}
	e.logger.Info("Expectation not met", "expectation", res.Description, "observed", res.LastObserved, "error", res.LastErr)
	if x.diagnose != nil && ctx.Err() == nil {
		dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		res.Diagnostic = x.diagnose(dctx)
		cancel()
	}
	return res
}

// Must is Check that turns an unmet expectation into an AssertionTimeout error.
func (e *Engine) Must(ctx context.Context, x Expectation, timeout time.Duration) (entity.AssertionResult, error) {
	res := e.Check(ctx, x, timeout)
	if res.Satisfied {
		return res, nil
	}
	return res, Failure(res)
}

// Failure describes an unsatisfied result as an AssertionTimeout error.
func Failure(res entity.AssertionResult) error {
	ee := entity.NewError(entity.ErrAssertionTimeout, "expect")
	ee.Selector = res.Description
	ee.Detail = fmt.Sprintf("last observed %v after %d attempts in %s",
		describe(res.LastObserved), res.Attempts, res.Elapsed.Round(time.Millisecond))
	ee.Err = res.LastErr
	if res.Diagnostic != nil {
		ee.FramePath = res.Diagnostic.FramePath
	}
	return ee
}

func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "nothing"
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
