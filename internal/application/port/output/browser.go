package output

import (
	"context"

	"browser-harness/internal/domain/entity"
)

// ControlChannel is the lower-level browser capability set the engine consumes.
// Implementations must be safe for concurrent use: the engine calls Dispatch on the
// test goroutine while RespondDialog arrives from a page's event pump.
type ControlChannel interface {
	NewContext(ctx context.Context) (entity.ContextID, error)
	CloseContext(ctx context.Context, id entity.ContextID) error
	NewPage(ctx context.Context, bc entity.ContextID) (entity.PageID, error)
	ClosePage(ctx context.Context, page entity.PageID) error

	Navigate(ctx context.Context, page entity.PageID, url string) error
	Reload(ctx context.Context, page entity.PageID) error
	PageInfo(ctx context.Context, page entity.PageID) (entity.PageInfo, error)

	// Frames lists the documents and shadow roots of a page, parents before children.
	Frames(ctx context.Context, page entity.PageID) ([]entity.FrameInfo, error)
	QueryNodes(ctx context.Context, scope entity.ScopeRef, q entity.Query) ([]entity.NodeRef, error)
	// NodeState reports Attached=false with a nil error for detached nodes.
	NodeState(ctx context.Context, node entity.NodeRef) (entity.NodeState, error)
	Dispatch(ctx context.Context, node entity.NodeRef, ev entity.InputEvent) error

	RespondDialog(ctx context.Context, page entity.PageID, resp entity.DialogResponse) error
	// Subscribe streams events of a page and of pages it opens. The channel is closed
	// when ctx is done.
	Subscribe(ctx context.Context, page entity.PageID) (<-chan entity.BrowserEvent, error)

	Screenshot(ctx context.Context, page entity.PageID) (*entity.Screenshot, error)
	Close() error
}

// HTMLSource is implemented by channels that can serialize markup for diagnostics.
type HTMLSource interface {
	OuterHTML(ctx context.Context, node entity.NodeRef) (string, error)
	Content(ctx context.Context, page entity.PageID) (string, error)
}

// DiagnosticsPort captures what a failed expectation looked at.
type DiagnosticsPort interface {
	Capture(ctx context.Context, page entity.PageID, node *entity.NodeRef) *entity.Diagnostic
}
