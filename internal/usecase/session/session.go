// Package session is the surface test steps drive. It routes every call to the active
// page and composes locator resolution, actions and assertions.
package session

import (
	"context"
	"time"

	"browser-harness/internal/application/port/input"
	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
	"browser-harness/internal/usecase/action"
	"browser-harness/internal/usecase/assertion"
	"browser-harness/internal/usecase/contexts"
	"browser-harness/internal/usecase/locator"
)

type Session struct {
	manager  *contexts.Manager
	resolver *locator.Resolver
	executor *action.Executor
	asserts  *assertion.Engine
	diag     output.DiagnosticsPort
	timeouts *entity.Timeouts
	logger   output.LoggerPort
}

var _ input.Engine = (*Session)(nil)

// New wires a session. diag may be nil, in which case failed expectations carry no
// diagnostic snapshot.
func New(
	manager *contexts.Manager,
	resolver *locator.Resolver,
	executor *action.Executor,
	asserts *assertion.Engine,
	diag output.DiagnosticsPort,
	timeouts *entity.Timeouts,
	logger output.LoggerPort,
) *Session {
	return &Session{
		manager:  manager,
		resolver: resolver,
		executor: executor,
		asserts:  asserts,
		diag:     diag,
		timeouts: timeouts,
		logger:   logger.Named("session"),
	}
}

// Start opens the first context and page unless a page is already active.
func (s *Session) Start(ctx context.Context) error {
	if _, err := s.manager.ActivePage(); err == nil {
		return nil
	}
	_, err := s.manager.NewPage(ctx, nil)
	return err
}

func (s *Session) Manager() *contexts.Manager {
	return s.manager
}

func (s *Session) active() (*contexts.Page, error) {
	return s.manager.ActivePage()
}

func (s *Session) Goto(ctx context.Context, url string) error {
	p, err := s.active()
	if err != nil {
		return err
	}
	s.logger.Info("Goto", "page", string(p.ID()), "url", url)
	return p.Goto(ctx, url, 0)
}

func (s *Session) Reload(ctx context.Context) error {
	p, err := s.active()
	if err != nil {
		return err
	}
	return p.Reload(ctx, 0)
}

func (s *Session) Title(ctx context.Context) (string, error) {
	p, err := s.active()
	if err != nil {
		return "", err
	}
	return p.Title(ctx)
}

func (s *Session) URL(ctx context.Context) (string, error) {
	p, err := s.active()
	if err != nil {
		return "", err
	}
	return p.URL(ctx)
}

func (s *Session) WaitForLoadState(ctx context.Context, state entity.LoadState) error {
	p, err := s.active()
	if err != nil {
		return err
	}
	return p.WaitForLoadState(ctx, state, 0)
}

// Locator binds loc to the page active now. frames scope it into iframes and shadow
// roots, outermost first.
func (s *Session) Locator(loc entity.Locator, frames ...entity.FrameSelector) input.Locator {
	return s.locator(loc, frames...)
}

func (s *Session) locator(loc entity.Locator, frames ...entity.FrameSelector) *Locator {
	p, _ := s.active()
	return &Locator{s: s, page: p, loc: loc, frames: append([]entity.FrameSelector(nil), frames...)}
}

// CSS, GetByText and friends are shorthands for Locator.
func (s *Session) CSS(selector string, frames ...entity.FrameSelector) *Locator {
	return s.locator(entity.CSS(selector), frames...)
}

func (s *Session) GetByText(text string, frames ...entity.FrameSelector) *Locator {
	return s.locator(entity.Text(text), frames...)
}

func (s *Session) GetByRole(role, name string, frames ...entity.FrameSelector) *Locator {
	return s.locator(entity.Role(role, name), frames...)
}

func (s *Session) GetByLabel(text string, frames ...entity.FrameSelector) *Locator {
	return s.locator(entity.Label(text), frames...)
}

func (s *Session) GetByTestID(id string, frames ...entity.FrameSelector) *Locator {
	return s.locator(entity.TestID(id), frames...)
}

func (s *Session) WaitFor(ctx context.Context, cond func(ctx context.Context) (any, error), pred func(any) bool, timeout time.Duration) entity.AssertionResult {
	return s.asserts.WaitFor(ctx, cond, pred, timeout)
}

// Page is the active page as an expectation subject. It follows SwitchTo.
func (s *Session) Page() assertion.PageSubject {
	return activePage{s}
}

// Expect evaluates x with the default assertion timeout. An unmet expectation is a
// result, not an error.
func (s *Session) Expect(ctx context.Context, x assertion.Expectation) entity.AssertionResult {
	return s.asserts.Check(ctx, x, 0)
}

// Must is Expect that returns an AssertionTimeout error when x is not met.
func (s *Session) Must(ctx context.Context, x assertion.Expectation) error {
	_, err := s.asserts.Must(ctx, x, 0)
	return err
}

func (s *Session) NewContext(ctx context.Context) (entity.ContextID, error) {
	bc, err := s.manager.NewContext(ctx)
	if err != nil {
		return "", err
	}
	return bc.ID(), nil
}

// NewPage opens a page in the active context.
func (s *Session) NewPage(ctx context.Context) (entity.PageID, error) {
	p, err := s.manager.NewPage(ctx, s.manager.Active())
	if err != nil {
		return "", err
	}
	return p.ID(), nil
}

func (s *Session) SwitchToPage(id entity.PageID) error {
	p, ok := s.manager.Page(id)
	if !ok {
		return closed("switch to", string(id))
	}
	return s.manager.SwitchTo(p)
}

func (s *Session) SwitchToContext(id entity.ContextID) error {
	bc, ok := s.context(id)
	if !ok {
		return closed("switch to", string(id))
	}
	return s.manager.SwitchTo(bc)
}

func (s *Session) ClosePage(ctx context.Context, id entity.PageID) error {
	p, ok := s.manager.Page(id)
	if !ok {
		return closed("close", string(id))
	}
	return s.manager.Close(ctx, p)
}

func (s *Session) CloseContext(ctx context.Context, id entity.ContextID) error {
	bc, ok := s.context(id)
	if !ok {
		return closed("close", string(id))
	}
	return s.manager.Close(ctx, bc)
}

func (s *Session) context(id entity.ContextID) (*contexts.BrowsingContext, bool) {
	for _, bc := range s.manager.Contexts() {
		if bc.ID() == id {
			return bc, true
		}
	}
	return nil, false
}

func (s *Session) WaitForPopup(ctx context.Context, trigger func(ctx context.Context) error) (entity.PageID, error) {
	p, err := s.active()
	if err != nil {
		return "", err
	}
	popup, err := s.manager.WaitForPopup(ctx, p, trigger, 0)
	if err != nil {
		return "", err
	}
	return popup.ID(), nil
}

// WithDialogHandler registers h on the active page until release is called.
func (s *Session) WithDialogHandler(h entity.DialogHandler) (func(), error) {
	p, err := s.active()
	if err != nil {
		return nil, err
	}
	return p.Dialogs().WithHandler(h), nil
}

func (s *Session) Close(ctx context.Context) error {
	return s.manager.Shutdown(ctx)
}

func closed(op, id string) error {
	e := entity.NewError(entity.ErrContextClosed, op)
	e.Detail = id
	return e
}

type activePage struct {
	s *Session
}

func (a activePage) Title(ctx context.Context) (string, error) {
	return a.s.Title(ctx)
}

func (a activePage) URL(ctx context.Context) (string, error) {
	return a.s.URL(ctx)
}

func (a activePage) Diagnose(ctx context.Context) *entity.Diagnostic {
	p, err := a.s.active()
	if err != nil || a.s.diag == nil {
		return nil
	}
	d := a.s.diag.Capture(ctx, p.ID(), nil)
	d.FramePath = entity.FramePathString(nil)
	return d
}
