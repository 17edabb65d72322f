package input

import (
	"context"
	"fmt"
	"time"

	"browser-harness/internal/domain/entity"
)

// ActionOption adjusts the parameters of one action.
type ActionOption func(*entity.ActionParams)

// Engine is the surface test steps drive. Every call acts on the active page.
type Engine interface {
	Goto(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	WaitForLoadState(ctx context.Context, state entity.LoadState) error

	Locator(loc entity.Locator, frames ...entity.FrameSelector) Locator
	WaitFor(ctx context.Context, cond func(ctx context.Context) (any, error), pred func(any) bool, timeout time.Duration) entity.AssertionResult

	NewContext(ctx context.Context) (entity.ContextID, error)
	NewPage(ctx context.Context) (entity.PageID, error)
	SwitchToPage(id entity.PageID) error
	SwitchToContext(id entity.ContextID) error
	ClosePage(ctx context.Context, id entity.PageID) error
	CloseContext(ctx context.Context, id entity.ContextID) error
	// WaitForPopup runs trigger on the active page and returns the page it opened.
	WaitForPopup(ctx context.Context, trigger func(ctx context.Context) error) (entity.PageID, error)
	WithDialogHandler(h entity.DialogHandler) (release func(), err error)

	Close(ctx context.Context) error
}

// Locator is a lazily resolved element description bound to one page.
type Locator interface {
	fmt.Stringer

	Nth(i int) Locator
	First() Locator
	Last() Locator
	WithText(text string) Locator

	Click(ctx context.Context, opts ...ActionOption) (*entity.ActionResult, error)
	DblClick(ctx context.Context, opts ...ActionOption) (*entity.ActionResult, error)
	Hover(ctx context.Context, opts ...ActionOption) (*entity.ActionResult, error)
	Focus(ctx context.Context, opts ...ActionOption) (*entity.ActionResult, error)
	ScrollIntoView(ctx context.Context, opts ...ActionOption) (*entity.ActionResult, error)
	Fill(ctx context.Context, text string, opts ...ActionOption) (*entity.ActionResult, error)
	Type(ctx context.Context, text string, opts ...ActionOption) (*entity.ActionResult, error)
	Press(ctx context.Context, key string, opts ...ActionOption) (*entity.ActionResult, error)
	Check(ctx context.Context, opts ...ActionOption) (*entity.ActionResult, error)
	Uncheck(ctx context.Context, opts ...ActionOption) (*entity.ActionResult, error)
	SelectOption(ctx context.Context, values []string, opts ...ActionOption) (*entity.ActionResult, error)
	SetInputFiles(ctx context.Context, files []string, opts ...ActionOption) (*entity.ActionResult, error)
	DragTo(ctx context.Context, target Locator, opts ...ActionOption) (*entity.ActionResult, error)

	Resolve(ctx context.Context) (entity.NodeRef, error)
	All(ctx context.Context) ([]entity.NodeRef, error)
	Count(ctx context.Context) (int, error)
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Value(ctx context.Context) (string, error)
	IsVisible(ctx context.Context) (bool, error)
	IsChecked(ctx context.Context) (bool, error)
	// Snapshot reports the state of every current match without waiting.
	Snapshot(ctx context.Context) ([]entity.NodeState, error)
}
