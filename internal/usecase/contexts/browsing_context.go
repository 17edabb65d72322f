package contexts

import (
	"context"
	"errors"

	"browser-harness/internal/domain/entity"
)

// BrowsingContext is an isolated window with its own pages. Its fields are guarded by
// the manager lock.
type BrowsingContext struct {
	m      *Manager
	id     entity.ContextID
	pages  []*Page
	closed bool
}

func (*BrowsingContext) target() {}

func (bc *BrowsingContext) ID() entity.ContextID {
	return bc.id
}

func (bc *BrowsingContext) Pages() []*Page {
	bc.m.mu.Lock()
	defer bc.m.mu.Unlock()
	return append([]*Page(nil), bc.pages...)
}

func (bc *BrowsingContext) Closed() bool {
	bc.m.mu.Lock()
	defer bc.m.mu.Unlock()
	return bc.closed
}

func (bc *BrowsingContext) NewPage(ctx context.Context) (*Page, error) {
	return bc.m.NewPage(ctx, bc)
}

// Close closes every page of the context and then the context itself. Handles taken
// from its pages report ContextClosed afterwards.
func (bc *BrowsingContext) Close(ctx context.Context) error {
	var errs []error
	for _, p := range bc.Pages() {
		if err := p.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	m := bc.m
	m.mu.Lock()
	already := bc.closed
	bc.closed = true
	m.contexts = removeContext(m.contexts, bc)
	if m.activeCtx == bc {
		m.activeCtx, m.activePage = nil, nil
		if n := len(m.contexts); n > 0 {
			m.activeCtx = m.contexts[n-1]
			if k := len(m.activeCtx.pages); k > 0 {
				m.activePage = m.activeCtx.pages[k-1]
			}
		}
	}
	m.mu.Unlock()

	if !already {
		if err := m.ch.CloseContext(ctx, bc.id); err != nil && !errors.Is(err, entity.ErrContextClosed) {
			errs = append(errs, err)
		}
		m.logger.Info("Context closed", "context", string(bc.id), "reason", "explicit")
	}
	return errors.Join(errs...)
}
