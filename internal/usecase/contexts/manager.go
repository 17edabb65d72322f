// Package contexts owns browsing contexts and their pages. It keeps the active pointer
// that decides which page later steps act on, and runs one event pump per page.
package contexts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
	"browser-harness/internal/usecase/dialog"
)

// Target is a page or a browsing context.
type Target interface {
	target()
}

type Manager struct {
	ch       output.ControlChannel
	timeouts *entity.Timeouts
	logger   output.LoggerPort
	metrics  output.MetricsPort

	mu         sync.Mutex
	contexts   []*BrowsingContext
	pages      map[entity.PageID]*Page
	activeCtx  *BrowsingContext
	activePage *Page
}

func NewManager(
	ch output.ControlChannel,
	timeouts *entity.Timeouts,
	logger output.LoggerPort,
	metrics output.MetricsPort,
) *Manager {
	return &Manager{
		ch:       ch,
		timeouts: timeouts,
		logger:   logger.Named("contexts"),
		metrics:  metrics,
		pages:    make(map[entity.PageID]*Page),
	}
}

// NewContext creates an isolated browsing context. The first context created becomes
// active; later ones only after SwitchTo.
func (m *Manager) NewContext(ctx context.Context) (*BrowsingContext, error) {
	id, err := m.ch.NewContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	bc := &BrowsingContext{m: m, id: id}

	m.mu.Lock()
	m.contexts = append(m.contexts, bc)
	if m.activeCtx == nil {
		m.activeCtx = bc
	}
	m.mu.Unlock()

	m.logger.Info("Context created", "context", string(id))
	return bc, nil
}

// NewPage opens a blank page in bc, or in the active context when bc is nil. A page
// opened while no page is active becomes active.
func (m *Manager) NewPage(ctx context.Context, bc *BrowsingContext) (*Page, error) {
	if bc == nil {
		m.mu.Lock()
		bc = m.activeCtx
		m.mu.Unlock()
		if bc == nil {
			var err error
			if bc, err = m.NewContext(ctx); err != nil {
				return nil, err
			}
		}
	}
	if bc.Closed() {
		return nil, closedError("new page", string(bc.id))
	}
	id, err := m.ch.NewPage(ctx, bc.id)
	if err != nil {
		if errors.Is(err, entity.ErrContextClosed) {
			return nil, closedError("new page", string(bc.id))
		}
		return nil, fmt.Errorf("new page in %s: %w", bc.id, err)
	}
	return m.attach(ctx, bc, id, "")
}

// attach subscribes to a page the channel already opened and starts its pump.
func (m *Manager) attach(ctx context.Context, bc *BrowsingContext, id, opener entity.PageID) (*Page, error) {
	pctx, cancel := context.WithCancel(context.Background())
	events, err := m.ch.Subscribe(pctx, id)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", id, err)
	}
	p := newPage(m, bc, id, opener, cancel)
	if info, err := m.ch.PageInfo(ctx, id); err == nil {
		p.setLoad(info.LoadState, info.URL)
	}

	m.mu.Lock()
	m.pages[id] = p
	bc.pages = append(bc.pages, p)
	if m.activePage == nil && (m.activeCtx == nil || m.activeCtx == bc) {
		m.activeCtx, m.activePage = bc, p
	}
	open := len(m.pages)
	m.mu.Unlock()

	m.metrics.ObservePages(open)
	m.logger.Info("Page opened", "page", string(id), "context", string(bc.id), "opener", string(opener))
	go p.pump(pctx, events)
	return p, nil
}

// adopt registers a page opened by the browser on behalf of opener.
func (m *Manager) adopt(opener *Page, ev entity.BrowserEvent) *Page {
	m.mu.Lock()
	existing, ok := m.pages[ev.Page]
	m.mu.Unlock()
	if ok {
		return existing
	}
	p, err := m.attach(context.Background(), opener.bc, ev.Page, opener.id)
	if err != nil {
		m.logger.Warn("Failed to attach popup", "page", string(ev.Page), "opener", string(opener.id), "error", err)
		return nil
	}
	return p
}

// SwitchTo makes t the target of subsequent steps. Switching to a context selects its
// most recently opened page.
func (m *Manager) SwitchTo(t Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch x := t.(type) {
	case *Page:
		if _, ok := m.pages[x.id]; !ok {
			return closedError("switch to", string(x.id))
		}
		m.activeCtx, m.activePage = x.bc, x
	case *BrowsingContext:
		if x.closed {
			return closedError("switch to", string(x.id))
		}
		m.activeCtx, m.activePage = x, nil
		if n := len(x.pages); n > 0 {
			m.activePage = x.pages[n-1]
		}
	default:
		return entity.NewError(entity.ErrInvalidParams, "switch to")
	}
	m.logger.Debug("Switched active target", "context", string(m.activeCtx.id), "page", pageID(m.activePage))
	return nil
}

// Close closes a page or a whole context. Closing the last page of a context destroys
// the context.
func (m *Manager) Close(ctx context.Context, t Target) error {
	switch x := t.(type) {
	case *Page:
		return x.Close(ctx)
	case *BrowsingContext:
		return x.Close(ctx)
	default:
		return entity.NewError(entity.ErrInvalidParams, "close")
	}
}

func (m *Manager) Active() *BrowsingContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCtx
}

// ActivePage returns the page steps act on, or a ContextClosed error when none is open.
func (m *Manager) ActivePage() (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activePage == nil {
		return nil, closedError("active page", "none")
	}
	return m.activePage, nil
}

func (m *Manager) Contexts() []*BrowsingContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*BrowsingContext(nil), m.contexts...)
}

func (m *Manager) Page(id entity.PageID) (*Page, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[id]
	return p, ok
}

// Interceptor returns the dialog interceptor of an open page.
func (m *Manager) Interceptor(id entity.PageID) (*dialog.Interceptor, bool) {
	p, ok := m.Page(id)
	if !ok {
		return nil, false
	}
	return p.dialogs, true
}

// WaitForPopup runs trigger and waits for the first page opened by opener afterwards.
// The popup is returned without becoming active.
func (m *Manager) WaitForPopup(ctx context.Context, opener *Page, trigger func(ctx context.Context) error, timeout time.Duration) (*Page, error) {
	if err := opener.check("wait for popup"); err != nil {
		return nil, err
	}
	timeout = entity.Or(timeout, m.timeouts.ActionTimeout())
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	popups, release := opener.expectPopup()
	defer release()

	if trigger != nil {
		if err := trigger(wctx); err != nil {
			return nil, err
		}
	}
	select {
	case p := <-popups:
		m.logger.Debug("Popup correlated", "opener", string(opener.id), "page", string(p.id))
		return p, nil
	case <-opener.done:
		return nil, closedError("wait for popup", string(opener.id))
	case <-wctx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e := entity.NewError(entity.ErrNavigation, "wait for popup")
		e.Detail = fmt.Sprintf("no page opened by %s within %s", opener.id, timeout)
		return nil, e
	}
}

// Shutdown closes every context.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, bc := range m.Contexts() {
		if err := bc.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// forget drops a closed page and, when it was the last of its context, the context.
func (m *Manager) forget(ctx context.Context, p *Page) {
	m.mu.Lock()
	if _, ok := m.pages[p.id]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.pages, p.id)
	bc := p.bc
	bc.pages = removePage(bc.pages, p)
	emptied := len(bc.pages) == 0 && !bc.closed
	if emptied {
		bc.closed = true
		m.contexts = removeContext(m.contexts, bc)
	}
	if m.activePage == p {
		m.activePage = nil
		if n := len(bc.pages); n > 0 {
			m.activePage = bc.pages[n-1]
		}
	}
	if m.activeCtx == bc && emptied {
		m.activeCtx, m.activePage = nil, nil
		if n := len(m.contexts); n > 0 {
			m.activeCtx = m.contexts[n-1]
			if k := len(m.activeCtx.pages); k > 0 {
				m.activePage = m.activeCtx.pages[k-1]
			}
		}
	}
	open := len(m.pages)
	m.mu.Unlock()

	m.metrics.ObservePages(open)
	m.logger.Info("Page closed", "page", string(p.id), "context", string(bc.id))
	if emptied {
		if err := m.ch.CloseContext(ctx, bc.id); err != nil && !errors.Is(err, entity.ErrContextClosed) {
			m.logger.Warn("Failed to close context", "context", string(bc.id), "error", err)
		}
		m.logger.Info("Context closed", "context", string(bc.id), "reason", "last page closed")
	}
}

func removePage(pages []*Page, p *Page) []*Page {
	out := pages[:0]
	for _, x := range pages {
		if x != p {
			out = append(out, x)
		}
	}
	return out
}

func removeContext(list []*BrowsingContext, bc *BrowsingContext) []*BrowsingContext {
	out := list[:0]
	for _, x := range list {
		if x != bc {
			out = append(out, x)
		}
	}
	return out
}

func pageID(p *Page) string {
	if p == nil {
		return ""
	}
	return string(p.id)
}

func closedError(op, id string) *entity.EngineError {
	e := entity.NewError(entity.ErrContextClosed, op)
	e.Detail = id
	return e
}
