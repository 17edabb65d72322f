// Package dialog routes native dialogs (alert, confirm, prompt, beforeunload) to the
// innermost registered handler. Dialogs nobody handles are dismissed and recorded as
// UnhandledDialog warnings.
package dialog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
)

const journalLimit = 256

type registration struct {
	id int
	h  entity.DialogHandler
}

type Interceptor struct {
	ch      output.ControlChannel
	page    entity.PageID
	logger  output.LoggerPort
	metrics output.MetricsPort

	mu      sync.Mutex
	stack   []registration
	nextID  int
	journal []entity.DialogOutcome
	base    int
}

func New(
	ch output.ControlChannel,
	page entity.PageID,
	logger output.LoggerPort,
	metrics output.MetricsPort,
) *Interceptor {
	return &Interceptor{
		ch:      ch,
		page:    page,
		logger:  logger.Named("dialog").WithField("page", string(page)),
		metrics: metrics,
	}
}

// WithHandler pushes h on the handler stack. The returned release is idempotent and
// removes exactly this registration even if others were pushed after it.
func (i *Interceptor) WithHandler(h entity.DialogHandler) (release func()) {
	i.mu.Lock()
	i.nextID++
	id := i.nextID
	i.stack = append(i.stack, registration{id: id, h: h})
	i.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			defer i.mu.Unlock()
			for k := len(i.stack) - 1; k >= 0; k-- {
				if i.stack[k].id == id {
					i.stack = append(i.stack[:k], i.stack[k+1:]...)
					return
				}
			}
		})
	}
}

// Scoped runs fn with h registered and returns the dialogs handled meanwhile. A nil h
// registers nothing, so dialogs fall through to outer handlers.
func (i *Interceptor) Scoped(ctx context.Context, h entity.DialogHandler, fn func(ctx context.Context) error) ([]entity.DialogOutcome, error) {
	mark := i.Mark()
	if h != nil {
		release := i.WithHandler(h)
		defer release()
	}
	err := fn(ctx)
	return i.Since(mark), err
}

// Registered reports how many handlers are on the stack.
func (i *Interceptor) Registered() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.stack)
}

// Handle answers ev with the innermost handler, or dismisses it. It is called from the
// page's event pump while the action that raised the dialog is blocked.
func (i *Interceptor) Handle(ctx context.Context, ev entity.DialogEvent) entity.DialogOutcome {
	i.mu.Lock()
	var h entity.DialogHandler
	if n := len(i.stack); n > 0 {
		h = i.stack[n-1].h
	}
	i.mu.Unlock()

	out := entity.DialogOutcome{Event: ev, At: time.Now()}
	if h != nil {
		resp, err := call(h, ev)
		if err != nil {
			i.logger.Error("Dialog handler panicked, dismissing", "kind", ev.Kind, "error", err)
		} else {
			out.Response, out.Handled = resp, true
		}
	}
	if !out.Handled {
		i.logger.Warn("Dismissing unhandled dialog", "kind", ev.Kind, "message", ev.Message)
	}

	i.metrics.ObserveDialog(ev.Kind, out.Handled)

	i.mu.Lock()
	i.journal = append(i.journal, out)
	if len(i.journal) > journalLimit {
		drop := len(i.journal) - journalLimit
		i.journal = append([]entity.DialogOutcome(nil), i.journal[drop:]...)
		i.base += drop
	}
	i.mu.Unlock()

	// Recorded before answering: the blocked action resumes as soon as the page
	// receives the response.
	if err := i.ch.RespondDialog(ctx, i.page, out.Response); err != nil {
		i.logger.Error("Failed to answer dialog", "kind", ev.Kind, "error", err)
	}
	return out
}

func call(h entity.DialogHandler, ev entity.DialogEvent) (resp entity.DialogResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dialog handler: %v", r)
		}
	}()
	return h(ev), nil
}

// Mark returns a position in the outcome journal for use with Since.
func (i *Interceptor) Mark() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.base + len(i.journal)
}

func (i *Interceptor) Since(mark int) []entity.DialogOutcome {
	i.mu.Lock()
	defer i.mu.Unlock()
	start := mark - i.base
	if start < 0 {
		start = 0
	}
	if start >= len(i.journal) {
		return nil
	}
	return append([]entity.DialogOutcome(nil), i.journal[start:]...)
}

// Outcomes returns every retained outcome, oldest first.
func (i *Interceptor) Outcomes() []entity.DialogOutcome {
	return i.Since(0)
}

// Warnings converts unhandled outcomes to UnhandledDialog errors.
func Warnings(outcomes []entity.DialogOutcome) []error {
	var out []error
	for _, o := range outcomes {
		if o.Handled {
			continue
		}
		e := entity.NewError(entity.ErrUnhandledDialog, "dialog")
		e.Detail = fmt.Sprintf("%s %q dismissed", o.Event.Kind, o.Event.Message)
		out = append(out, e)
	}
	return out
}
