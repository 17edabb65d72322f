package locator

import (
	"context"
	"time"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/usecase/frametree"
)

// Handle is a live reference to one resolved element. It can go stale at any time;
// use Stale or Reresolve before relying on it after the page changed.
type Handle struct {
	r          *Resolver
	ref        entity.NodeRef
	frame      *frametree.Node
	loc        entity.Locator
	resolvedAt time.Time
}

func (h *Handle) Ref() entity.NodeRef {
	return h.ref
}

func (h *Handle) Locator() entity.Locator {
	return h.loc
}

func (h *Handle) Frame() *frametree.Node {
	return h.frame
}

func (h *Handle) ResolvedAt() time.Time {
	return h.resolvedAt
}

func (h *Handle) String() string {
	return Describe(h.frame, h.loc)
}

func (h *Handle) State(ctx context.Context) (entity.NodeState, error) {
	return h.r.ch.NodeState(ctx, h.ref)
}

func (h *Handle) Stale(ctx context.Context) (bool, error) {
	st, err := h.State(ctx)
	if err != nil {
		return false, err
	}
	return !st.Attached, nil
}

func (h *Handle) Text(ctx context.Context) (string, error) {
	st, err := h.attached(ctx)
	return st.Text, err
}

func (h *Handle) Attribute(ctx context.Context, name string) (string, bool, error) {
	st, err := h.attached(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := st.Attr(name)
	return v, ok, nil
}

func (h *Handle) Value(ctx context.Context) (string, error) {
	st, err := h.attached(ctx)
	return st.Value, err
}

func (h *Handle) Checked(ctx context.Context) (bool, error) {
	st, err := h.attached(ctx)
	return st.Checked, err
}

func (h *Handle) attached(ctx context.Context) (entity.NodeState, error) {
	st, err := h.State(ctx)
	if err != nil {
		return st, err
	}
	if !st.Attached {
		e := entity.NewError(entity.ErrStaleElement, "read")
		e.Selector, e.FramePath = h.loc.String(), h.frame.PathString()
		return st, e
	}
	return st, nil
}

// Reresolve resolves the handle's locator again within its frame path.
func (h *Handle) Reresolve(ctx context.Context, timeout time.Duration) (*Handle, error) {
	hs, err := h.r.Resolve(ctx, h.frame, h.loc, Single, timeout)
	if err != nil {
		return nil, err
	}
	return hs[0], nil
}
