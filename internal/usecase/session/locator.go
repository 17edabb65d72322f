package session

import (
	"context"
	"time"

	"browser-harness/internal/application/port/input"
	"browser-harness/internal/domain/entity"
	"browser-harness/internal/usecase/contexts"
	"browser-harness/internal/usecase/frametree"
	"browser-harness/internal/usecase/locator"
)

// Locator is resolved afresh on every call. It never caches elements between calls.
type Locator struct {
	s      *Session
	page   *contexts.Page
	loc    entity.Locator
	frames []entity.FrameSelector
}

var _ input.Locator = (*Locator)(nil)

func WithForce() input.ActionOption {
	return func(p *entity.ActionParams) { p.Force = true }
}

func WithTrial() input.ActionOption {
	return func(p *entity.ActionParams) { p.Trial = true }
}

func WithTimeout(d time.Duration) input.ActionOption {
	return func(p *entity.ActionParams) { p.Timeout = d }
}

// OnDialog answers dialogs raised while this action is dispatched.
func OnDialog(h entity.DialogHandler) input.ActionOption {
	return func(p *entity.ActionParams) { p.OnDialog = h }
}

func (l *Locator) with(loc entity.Locator) *Locator {
	return &Locator{s: l.s, page: l.page, loc: loc, frames: l.frames}
}

func (l *Locator) Nth(i int) input.Locator {
	return l.with(l.loc.WithNth(i))
}

func (l *Locator) First() input.Locator {
	return l.with(l.loc.First())
}

func (l *Locator) Last() input.Locator {
	return l.with(l.loc.Last())
}

func (l *Locator) WithText(text string) input.Locator {
	return l.with(l.loc.WithText(text))
}

func (l *Locator) String() string {
	if l.page == nil {
		return l.loc.String()
	}
	return locator.Describe(l.scope(), l.loc)
}

func (l *Locator) scope() *frametree.Node {
	return l.page.Tree().At(l.frames)
}

func (l *Locator) check(op string) error {
	if l.page == nil {
		return closed(op, "no active page")
	}
	if l.page.Closed() {
		return closed(op, string(l.page.ID()))
	}
	return nil
}

func (l *Locator) resolve(ctx context.Context, card locator.Cardinality, timeout time.Duration) ([]*locator.Handle, error) {
	if err := l.check("resolve"); err != nil {
		return nil, err
	}
	return l.s.resolver.Resolve(ctx, l.scope(), l.loc, card, entity.Or(timeout, l.s.timeouts.ActionTimeout()))
}

// act resolves the locator and performs kind within one action timeout.
func (l *Locator) act(ctx context.Context, kind entity.ActionKind, params entity.ActionParams, opts []input.ActionOption) (*entity.ActionResult, error) {
	for _, o := range opts {
		o(&params)
	}
	timeout := entity.Or(params.Timeout, l.s.timeouts.ActionTimeout())
	deadline := time.Now().Add(timeout)

	hs, err := l.resolve(ctx, locator.Single, timeout)
	if err != nil {
		return nil, err
	}
	params.Timeout = time.Until(deadline)
	if params.Timeout <= 0 {
		params.Timeout = time.Millisecond
	}
	return l.s.executor.Perform(ctx, hs[0], kind, params)
}

func (l *Locator) Click(ctx context.Context, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionClick, entity.ActionParams{}, opts)
}

func (l *Locator) DblClick(ctx context.Context, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionDblClick, entity.ActionParams{}, opts)
}

func (l *Locator) Hover(ctx context.Context, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionHover, entity.ActionParams{}, opts)
}

func (l *Locator) Focus(ctx context.Context, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionFocus, entity.ActionParams{}, opts)
}

func (l *Locator) ScrollIntoView(ctx context.Context, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionScrollIntoView, entity.ActionParams{}, opts)
}

func (l *Locator) Fill(ctx context.Context, text string, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionFill, entity.ActionParams{Text: text}, opts)
}

func (l *Locator) Type(ctx context.Context, text string, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionType, entity.ActionParams{Text: text}, opts)
}

func (l *Locator) Press(ctx context.Context, key string, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionPress, entity.ActionParams{Key: key}, opts)
}

func (l *Locator) Check(ctx context.Context, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionCheck, entity.ActionParams{}, opts)
}

func (l *Locator) Uncheck(ctx context.Context, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionUncheck, entity.ActionParams{}, opts)
}

func (l *Locator) SelectOption(ctx context.Context, values []string, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionSelectOption, entity.ActionParams{Values: values}, opts)
}

func (l *Locator) SetInputFiles(ctx context.Context, files []string, opts ...input.ActionOption) (*entity.ActionResult, error) {
	return l.act(ctx, entity.ActionSetFiles, entity.ActionParams{Files: files}, opts)
}

// DragTo drags this element onto target. target must come from the same session.
func (l *Locator) DragTo(ctx context.Context, target input.Locator, opts ...input.ActionOption) (*entity.ActionResult, error) {
	t, ok := target.(*Locator)
	if !ok {
		e := entity.NewError(entity.ErrInvalidParams, "drag-to")
		e.Detail = "target is not a session locator"
		return nil, e
	}
	var params entity.ActionParams
	for _, o := range opts {
		o(&params)
	}
	hs, err := t.resolve(ctx, locator.Single, params.Timeout)
	if err != nil {
		return nil, err
	}
	ref := hs[0].Ref()
	params.Target = &ref
	return l.act(ctx, entity.ActionDragTo, params, nil)
}

func (l *Locator) Resolve(ctx context.Context) (entity.NodeRef, error) {
	hs, err := l.resolve(ctx, locator.Single, 0)
	if err != nil {
		return entity.NodeRef{}, err
	}
	return hs[0].Ref(), nil
}

// Handle resolves to a live element handle.
func (l *Locator) Handle(ctx context.Context) (*locator.Handle, error) {
	hs, err := l.resolve(ctx, locator.Single, 0)
	if err != nil {
		return nil, err
	}
	return hs[0], nil
}

// All waits for at least one match and returns every match in document order. It
// returns an empty set when nothing matched within the timeout.
func (l *Locator) All(ctx context.Context) ([]entity.NodeRef, error) {
	hs, err := l.resolve(ctx, locator.All, 0)
	if err != nil {
		return nil, err
	}
	refs := make([]entity.NodeRef, 0, len(hs))
	for _, h := range hs {
		refs = append(refs, h.Ref())
	}
	return refs, nil
}

// Count reports the current number of matches without waiting.
func (l *Locator) Count(ctx context.Context) (int, error) {
	if err := l.check("count"); err != nil {
		return 0, err
	}
	return l.s.resolver.Count(ctx, l.scope(), l.loc)
}

func (l *Locator) Text(ctx context.Context) (string, error) {
	h, err := l.Handle(ctx)
	if err != nil {
		return "", err
	}
	return h.Text(ctx)
}

func (l *Locator) Attribute(ctx context.Context, name string) (string, bool, error) {
	h, err := l.Handle(ctx)
	if err != nil {
		return "", false, err
	}
	return h.Attribute(ctx, name)
}

func (l *Locator) Value(ctx context.Context) (string, error) {
	h, err := l.Handle(ctx)
	if err != nil {
		return "", err
	}
	return h.Value(ctx)
}

// IsVisible does not wait: no match is reported as not visible.
func (l *Locator) IsVisible(ctx context.Context) (bool, error) {
	states, err := l.Snapshot(ctx)
	if err != nil || len(states) == 0 {
		return false, err
	}
	if len(states) > 1 {
		e := entity.NewError(entity.ErrAmbiguousLocator, "is visible")
		e.Selector, e.Count = l.String(), len(states)
		return false, e
	}
	return states[0].Visible && !states[0].Box.Empty(), nil
}

func (l *Locator) IsChecked(ctx context.Context) (bool, error) {
	h, err := l.Handle(ctx)
	if err != nil {
		return false, err
	}
	return h.Checked(ctx)
}

// Snapshot reports the state of every current match without waiting. Matches that
// detach while being read are skipped.
func (l *Locator) Snapshot(ctx context.Context) ([]entity.NodeState, error) {
	if err := l.check("snapshot"); err != nil {
		return nil, err
	}
	hs, err := l.s.resolver.Peek(ctx, l.scope(), l.loc)
	if err != nil {
		return nil, err
	}
	states := make([]entity.NodeState, 0, len(hs))
	for _, h := range hs {
		st, err := h.State(ctx)
		if err != nil {
			return nil, err
		}
		if st.Attached {
			states = append(states, st)
		}
	}
	return states, nil
}

// Diagnose captures the first current match, or the whole page when nothing matches.
func (l *Locator) Diagnose(ctx context.Context) *entity.Diagnostic {
	if l.s.diag == nil || l.check("diagnose") != nil {
		return nil
	}
	var node *entity.NodeRef
	if hs, err := l.s.resolver.Peek(ctx, l.scope(), l.loc); err == nil && len(hs) > 0 {
		ref := hs[0].Ref()
		node = &ref
	}
	d := l.s.diag.Capture(ctx, l.page.ID(), node)
	d.Locator = l.loc.String()
	d.FramePath = entity.FramePathString(l.frames)
	return d
}
