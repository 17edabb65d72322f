package rod

import (
	"context"
	"sync"

	"github.com/go-rod/rod/lib/proto"

	"browser-harness/internal/domain/entity"
)

var dialogKinds = map[proto.PageDialogType]entity.DialogKind{
	proto.PageDialogTypeAlert:        entity.DialogAlert,
	proto.PageDialogTypeConfirm:      entity.DialogConfirm,
	proto.PageDialogTypePrompt:       entity.DialogPrompt,
	proto.PageDialogTypeBeforeunload: entity.DialogBeforeUnload,
}

// Subscribe streams dialog, navigation and load events of the page, pages it opens,
// and its own destruction. The channel is closed once ctx is done.
func (c *Channel) Subscribe(ctx context.Context, id entity.PageID) (<-chan entity.BrowserEvent, error) {
	p, err := c.page(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	bc := c.tabs[id].bc
	inc := c.contexts[bc]
	c.mu.Unlock()
	if inc == nil {
		return nil, entity.NewError(entity.ErrContextClosed, "subscribe")
	}

	ch := make(chan entity.BrowserEvent, 16)
	send := func(ev entity.BrowserEvent) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}

	pageEvents := p.EachEvent(
		func(e *proto.PageJavascriptDialogOpening) {
			send(entity.BrowserEvent{
				Kind: entity.EventDialog,
				Page: id,
				Dialog: &entity.DialogEvent{
					Kind:         dialogKinds[e.Type],
					Message:      e.Message,
					DefaultValue: e.DefaultPrompt,
					Page:         id,
				},
			})
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame.ParentID != "" {
				return
			}
			send(entity.BrowserEvent{Kind: entity.EventNavigation, Page: id, Frame: entity.FrameID(e.Frame.ID), URL: e.Frame.URL, Load: entity.LoadStateLoading})
		},
		func(*proto.PageLoadEventFired) {
			send(entity.BrowserEvent{Kind: entity.EventLoad, Page: id, Load: entity.LoadStateLoad})
		},
	)

	targetEvents := inc.Context(ctx).EachEvent(
		func(e *proto.TargetTargetCreated) {
			info := e.TargetInfo
			if info.Type != proto.TargetTargetInfoTypePage || entity.PageID(info.OpenerID) != id {
				return
			}
			popup, err := inc.PageFromTarget(info.TargetID)
			if err != nil {
				c.logger.Warn("Failed to attach popup", "target", info.TargetID, "error", err)
				return
			}
			pid := entity.PageID(info.TargetID)
			c.track(pid, popup, bc)
			send(entity.BrowserEvent{Kind: entity.EventNewPage, Page: pid, Opener: id, Context: bc, URL: info.URL})
		},
		func(e *proto.TargetTargetDestroyed) bool {
			if entity.PageID(e.TargetID) != id {
				return false
			}
			c.mu.Lock()
			delete(c.tabs, id)
			c.mu.Unlock()
			send(entity.BrowserEvent{Kind: entity.EventPageClosed, Page: id, Context: bc})
			return true
		},
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pageEvents()
	}()
	go func() {
		defer wg.Done()
		targetEvents()
	}()
	go func() {
		wg.Wait()
		close(ch)
	}()
	return ch, nil
}

func (c *Channel) RespondDialog(ctx context.Context, id entity.PageID, resp entity.DialogResponse) error {
	p, err := c.page(ctx, id)
	if err != nil {
		return err
	}
	return proto.PageHandleJavaScriptDialog{Accept: resp.Accept, PromptText: resp.Text}.Call(p)
}
