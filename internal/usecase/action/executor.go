// Package action performs user actions on resolved elements once they are actionable.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
	"browser-harness/internal/usecase/dialog"
	"browser-harness/internal/usecase/locator"
	"browser-harness/internal/usecase/poll"
)

// Dialogs looks up the dialog interceptor of a page.
type Dialogs interface {
	Interceptor(page entity.PageID) (*dialog.Interceptor, bool)
}

type Executor struct {
	ch       output.ControlChannel
	registry output.ActionRegistry
	dialogs  Dialogs
	timeouts *entity.Timeouts
	logger   output.LoggerPort
	metrics  output.MetricsPort
}

func NewExecutor(
	ch output.ControlChannel,
	registry output.ActionRegistry,
	dialogs Dialogs,
	timeouts *entity.Timeouts,
	logger output.LoggerPort,
	metrics output.MetricsPort,
) *Executor {
	return &Executor{
		ch:       ch,
		registry: registry,
		dialogs:  dialogs,
		timeouts: timeouts,
		logger:   logger.Named("action"),
		metrics:  metrics,
	}
}

// errDetached marks a handle found detached while waiting for actionability.
var errDetached = errors.New("element detached")

// Perform waits until h is actionable for kind, then dispatches it. A handle that goes
// stale is re-resolved once; a second staleness fails with StaleElement. The result is
// returned on failure too, carrying the last observed state.
func (e *Executor) Perform(ctx context.Context, h *locator.Handle, kind entity.ActionKind, params entity.ActionParams) (*entity.ActionResult, error) {
	start := time.Now()
	res := &entity.ActionResult{Action: kind, Node: h.Ref()}
	err := e.perform(ctx, h, kind, params, res)
	res.Elapsed = time.Since(start)
	e.metrics.ObserveAction(kind, res.Attempts, res.Restarts, res.Elapsed, err)
	if err != nil {
		e.logger.Debug("Action failed", "action", kind, "locator", h.String(), "error", err)
		return res, err
	}
	e.logger.Debug("Action performed", "action", kind, "locator", h.String(), "attempts", res.Attempts, "elapsed", res.Elapsed)
	return res, nil
}

func (e *Executor) perform(ctx context.Context, h *locator.Handle, kind entity.ActionKind, params entity.ActionParams, res *entity.ActionResult) error {
	act, ok := e.registry.Get(kind)
	if !ok {
		return e.fail(entity.ErrInvalidParams, h, kind, fmt.Errorf("unsupported action %q", kind))
	}
	if err := act.Validate(params); err != nil {
		return e.fail(entity.ErrInvalidParams, h, kind, err)
	}

	if params.Target != nil {
		st, err := e.ch.NodeState(ctx, *params.Target)
		if err != nil {
			return err
		}
		if !st.Attached {
			return e.fail(entity.ErrInvalidParams, h, kind, errors.New("drop target is detached"))
		}
	}

	timeout := entity.Or(params.Timeout, e.timeouts.ActionTimeout())
	deadline := time.Now().Add(timeout)

	for {
		err := e.waitActionable(ctx, h, act.Required(), time.Until(deadline), params.Force, res)
		if err == nil && !params.Trial {
			err = e.dispatch(ctx, h, act, params, res)
			if err != nil && !errors.Is(err, entity.ErrStaleElement) {
				return fmt.Errorf("dispatch %s to %s: %w", kind, h, err)
			}
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, errDetached) && !errors.Is(err, entity.ErrStaleElement) {
			return err
		}
		if res.Restarts > 0 {
			return e.fail(entity.ErrStaleElement, h, kind, err)
		}
		res.Restarts++
		e.logger.Warn("Element went stale, resolving again", "action", kind, "locator", h.String())
		fresh, rerr := h.Reresolve(ctx, time.Until(deadline))
		if rerr != nil {
			return e.fail(entity.ErrStaleElement, h, kind, rerr)
		}
		h = fresh
		res.Node = h.Ref()
	}
}

// waitActionable polls the element state until every required property holds.
func (e *Executor) waitActionable(
	ctx context.Context,
	h *locator.Handle,
	required []entity.ActionabilityProperty,
	timeout time.Duration,
	force bool,
	res *entity.ActionResult,
) error {
	var (
		prev    *entity.Rect
		missing entity.ActionabilityProperty
	)
	out, err := poll.Until(ctx, poll.Options{Timeout: timeout, Interval: e.timeouts.ActionPoll()}, func(ctx context.Context) (bool, error) {
		st, err := h.State(ctx)
		if err != nil {
			return false, err
		}
		if !st.Attached {
			res.State = entity.ActionabilityState{}
			return false, errDetached
		}
		if prev == nil {
			// Stability needs two samples at least one interval apart.
			box := st.Box
			prev = &box
			if err := poll.Sleep(ctx, e.timeouts.ActionPoll()); err != nil {
				return false, err
			}
			if st, err = h.State(ctx); err != nil {
				return false, err
			}
			if !st.Attached {
				return false, errDetached
			}
		}
		state := actionability(st, *prev)
		box := st.Box
		prev = &box
		res.State = state

		if force {
			return true, nil
		}
		p, unsatisfied := state.FirstUnsatisfied(required)
		missing = p
		return !unsatisfied, nil
	})
	res.Attempts += out.Attempts

	switch {
	case err == nil:
		return nil
	case errors.Is(err, poll.ErrTimeout):
		ae := entity.NewError(entity.ErrActionabilityTimeout, string(res.Action))
		ae.Selector, ae.FramePath = h.Locator().String(), h.Frame().PathString()
		ae.Property = missing
		st := res.State
		ae.State = &st
		ae.Detail = "waited " + out.Elapsed.Round(time.Millisecond).String()
		return ae
	default:
		return err
	}
}

func actionability(st entity.NodeState, prev entity.Rect) entity.ActionabilityState {
	return entity.ActionabilityState{
		Attached:       st.Attached,
		Visible:        st.Visible && !st.Box.Empty(),
		Stable:         st.Visible && !st.Box.Empty() && st.Box == prev && !st.Moving,
		ReceivesEvents: st.ReceivesEvents,
		Enabled:        st.Enabled,
		Editable:       st.Editable,
	}
}

func (e *Executor) dispatch(ctx context.Context, h *locator.Handle, act output.ActionPort, params entity.ActionParams, res *entity.ActionResult) error {
	send := func(ctx context.Context) error {
		return e.ch.Dispatch(ctx, h.Ref(), act.Input(params))
	}
	ic, ok := e.dialogs.Interceptor(h.Ref().Scope.Page)
	if !ok {
		return send(ctx)
	}
	outcomes, err := ic.Scoped(ctx, params.OnDialog, send)
	res.Dialogs = append(res.Dialogs, outcomes...)
	res.Warnings = append(res.Warnings, dialog.Warnings(outcomes)...)
	return err
}

func (e *Executor) fail(kind error, h *locator.Handle, action entity.ActionKind, cause error) error {
	ee := entity.NewError(kind, string(action))
	ee.Selector, ee.FramePath, ee.Err = h.Locator().String(), h.Frame().PathString(), cause
	var inner *entity.EngineError
	if errors.As(cause, &inner) && inner.State != nil {
		ee.State = inner.State
	}
	return ee
}
