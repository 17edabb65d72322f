package contexts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/usecase/dialog"
	"browser-harness/internal/usecase/frametree"
	"browser-harness/internal/usecase/poll"
)

// Page is one tab. Its event pump delivers dialogs to the page interceptor, invalidates
// the frame tree on navigation, adopts popups and notices external closes.
type Page struct {
	m       *Manager
	id      entity.PageID
	bc      *BrowsingContext
	opener  entity.PageID
	tree    *frametree.Tree
	dialogs *dialog.Interceptor
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	load    entity.LoadState
	url     string
	closed  bool
	waiters map[int]chan *Page
	nextW   int
}

func newPage(m *Manager, bc *BrowsingContext, id, opener entity.PageID, cancel context.CancelFunc) *Page {
	return &Page{
		m:       m,
		id:      id,
		bc:      bc,
		opener:  opener,
		tree:    frametree.New(m.ch, id),
		dialogs: dialog.New(m.ch, id, m.logger, m.metrics),
		cancel:  cancel,
		done:    make(chan struct{}),
		load:    entity.LoadStateLoading,
		waiters: make(map[int]chan *Page),
	}
}

func (*Page) target() {}

func (p *Page) ID() entity.PageID {
	return p.id
}

func (p *Page) Context() *BrowsingContext {
	return p.bc
}

// Opener is the page that opened this one, empty for pages created with NewPage.
func (p *Page) Opener() entity.PageID {
	return p.opener
}

func (p *Page) Tree() *frametree.Tree {
	return p.tree
}

func (p *Page) Dialogs() *dialog.Interceptor {
	return p.dialogs
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// LoadState is the last state reported by the page's events.
func (p *Page) LoadState() entity.LoadState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load
}

func (p *Page) check(op string) error {
	if p.Closed() || p.bc.Closed() {
		return closedError(op, string(p.id))
	}
	return nil
}

// Goto navigates and waits for the load event.
func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	return p.navigate(ctx, "goto", url, timeout, func(ctx context.Context) error {
		return p.m.ch.Navigate(ctx, p.id, url)
	})
}

func (p *Page) Reload(ctx context.Context, timeout time.Duration) error {
	return p.navigate(ctx, "reload", "", timeout, func(ctx context.Context) error {
		return p.m.ch.Reload(ctx, p.id)
	})
}

func (p *Page) navigate(ctx context.Context, op, url string, timeout time.Duration, nav func(context.Context) error) error {
	if err := p.check(op); err != nil {
		return err
	}
	timeout = entity.Or(timeout, p.m.timeouts.NavigationTimeout())
	nctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := nav(nctx)
	p.tree.Invalidate()
	if err != nil {
		return p.navError(op, url, err)
	}
	remaining := timeout - time.Since(start)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	if err := p.WaitForLoadState(ctx, entity.LoadStateLoad, remaining); err != nil {
		return p.navError(op, url, err)
	}
	p.m.logger.Debug("Navigated", "page", string(p.id), "url", url, "elapsed", time.Since(start))
	return nil
}

func (p *Page) navError(op, url string, err error) error {
	if errors.Is(err, entity.ErrContextClosed) || p.Closed() {
		return closedError(op, string(p.id))
	}
	if errors.Is(err, entity.ErrNavigation) {
		return err
	}
	e := entity.NewError(entity.ErrNavigation, op)
	e.Detail = url
	e.Err = err
	return e
}

// WaitForLoadState waits until the page reached state. It returns a Navigation error
// on timeout.
func (p *Page) WaitForLoadState(ctx context.Context, state entity.LoadState, timeout time.Duration) error {
	if err := p.check("wait for load state"); err != nil {
		return err
	}
	if state == "" {
		state = entity.LoadStateLoad
	}
	var last entity.LoadState
	opts := poll.Options{Timeout: entity.Or(timeout, p.m.timeouts.NavigationTimeout()), Interval: p.m.timeouts.Poll()}
	_, err := poll.Until(ctx, opts, func(ctx context.Context) (bool, error) {
		info, err := p.m.ch.PageInfo(ctx, p.id)
		if err != nil {
			return false, err
		}
		last = info.LoadState
		p.setLoad(info.LoadState, info.URL)
		return info.LoadState.Reached(state), nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, poll.ErrTimeout):
		e := entity.NewError(entity.ErrNavigation, "wait for load state")
		e.Detail = fmt.Sprintf("still %s, want %s", last, state)
		return e
	case errors.Is(err, entity.ErrContextClosed):
		return closedError("wait for load state", string(p.id))
	default:
		return err
	}
}

func (p *Page) Title(ctx context.Context) (string, error) {
	info, err := p.info(ctx, "title")
	return info.Title, err
}

func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.info(ctx, "url")
	return info.URL, err
}

func (p *Page) info(ctx context.Context, op string) (entity.PageInfo, error) {
	if err := p.check(op); err != nil {
		return entity.PageInfo{}, err
	}
	info, err := p.m.ch.PageInfo(ctx, p.id)
	if err != nil {
		if errors.Is(err, entity.ErrContextClosed) {
			return entity.PageInfo{}, closedError(op, string(p.id))
		}
		return entity.PageInfo{}, fmt.Errorf("%s of %s: %w", op, p.id, err)
	}
	return info, nil
}

// Frames lists documents and shadow roots of the current snapshot.
func (p *Page) Frames(ctx context.Context) ([]entity.FrameInfo, error) {
	if err := p.check("frames"); err != nil {
		return nil, err
	}
	return p.tree.Frames(ctx)
}

func (p *Page) Root(ctx context.Context) (*frametree.Node, error) {
	if err := p.check("root"); err != nil {
		return nil, err
	}
	return p.tree.Root(ctx)
}

func (p *Page) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	if err := p.check("screenshot"); err != nil {
		return nil, err
	}
	return p.m.ch.Screenshot(ctx, p.id)
}

// Close closes the page and waits for its pump to stop.
func (p *Page) Close(ctx context.Context) error {
	if p.Closed() {
		return nil
	}
	err := p.m.ch.ClosePage(ctx, p.id)
	p.markClosed()
	p.cancel()
	<-p.done
	p.m.forget(ctx, p)
	if err != nil && !errors.Is(err, entity.ErrContextClosed) {
		return fmt.Errorf("close %s: %w", p.id, err)
	}
	return nil
}

func (p *Page) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.load = entity.LoadStateClosed
	p.mu.Unlock()
}

func (p *Page) setLoad(state entity.LoadState, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.load = state
	if url != "" {
		p.url = url
	}
}

// expectPopup registers a one-shot receiver for the next page this page opens.
func (p *Page) expectPopup() (<-chan *Page, func()) {
	ch := make(chan *Page, 1)
	p.mu.Lock()
	p.nextW++
	id := p.nextW
	p.waiters[id] = ch
	p.mu.Unlock()
	return ch, func() {
		p.mu.Lock()
		delete(p.waiters, id)
		p.mu.Unlock()
	}
}

func (p *Page) deliverPopup(popup *Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.waiters {
		ch <- popup
		delete(p.waiters, id)
	}
}

func (p *Page) pump(ctx context.Context, events <-chan entity.BrowserEvent) {
	defer close(p.done)
	for ev := range events {
		switch ev.Kind {
		case entity.EventDialog:
			if ev.Dialog != nil {
				p.dialogs.Handle(ctx, *ev.Dialog)
			}
		case entity.EventNavigation:
			if ev.Page == p.id {
				p.tree.Observe(ev)
				p.setLoad(entity.LoadStateLoading, ev.URL)
			}
		case entity.EventLoad:
			if ev.Page == p.id {
				p.setLoad(ev.Load, ev.URL)
			}
		case entity.EventNewPage:
			if ev.Opener == p.id {
				if popup := p.m.adopt(p, ev); popup != nil {
					p.deliverPopup(popup)
				}
			}
		case entity.EventPageClosed:
			if ev.Page == p.id {
				p.markClosed()
				p.cancel()
				p.m.forget(context.Background(), p)
			}
		}
	}
}
