package memory

import (
	"context"
	"sync"

	"browser-harness/internal/domain/entity"
)

type subscriber struct {
	ctx    context.Context
	mu     sync.Mutex
	ch     chan entity.BrowserEvent
	closed bool
}

func newSubscriber(ctx context.Context) *subscriber {
	return &subscriber{ctx: ctx, ch: make(chan entity.BrowserEvent, 16)}
}

func (s *subscriber) send(ev entity.BrowserEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	case <-s.ctx.Done():
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func emit(subs []*subscriber, ev entity.BrowserEvent) {
	for _, s := range subs {
		s.send(ev)
	}
}

type pendingDialog struct {
	event entity.DialogEvent
	resp  chan entity.DialogResponse
}
