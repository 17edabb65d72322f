package rod

import (
	"context"
	"fmt"

	"browser-harness/internal/domain/entity"
)

type frameJSON struct {
	ID     string `json:"id"`
	Parent string `json:"parent"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Host   int64  `json:"host"`
}

func (c *Channel) Frames(ctx context.Context, id entity.PageID) ([]entity.FrameInfo, error) {
	p, err := c.page(ctx, id)
	if err != nil {
		return nil, err
	}
	var raw []frameJSON
	if err := c.eval(p, jsFrames, &raw); err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	out := make([]entity.FrameInfo, 0, len(raw))
	for _, f := range raw {
		out = append(out, entity.FrameInfo{
			ID:     entity.FrameID(f.ID),
			Parent: entity.FrameID(f.Parent),
			Kind:   entity.FrameKind(f.Kind),
			Name:   f.Name,
			URL:    f.URL,
			Host:   entity.NodeID(f.Host),
		})
	}
	return out, nil
}

func (c *Channel) QueryNodes(ctx context.Context, scope entity.ScopeRef, q entity.Query) ([]entity.NodeRef, error) {
	p, err := c.page(ctx, scope.Page)
	if err != nil {
		return nil, err
	}
	var host int64
	if scope.Host != nil {
		host = int64(scope.Host.ID)
	}
	engine := q.Engine
	if engine == "" {
		engine = entity.QueryCSS
	}

	var res struct {
		Stale bool    `json:"stale"`
		Error string  `json:"error"`
		IDs   []int64 `json:"ids"`
	}
	if err := c.eval(p, jsQuery, &res, string(scope.Kind), host, int64(q.Root), string(engine), q.Body, q.Pierce); err != nil {
		return nil, err
	}
	switch {
	case res.Stale:
		return nil, fmt.Errorf("%w: scope %s", entity.ErrStaleElement, scope.Key())
	case res.Error != "":
		return nil, fmt.Errorf("invalid %s query %q: %s", engine, q.Body, res.Error)
	}
	out := make([]entity.NodeRef, 0, len(res.IDs))
	for _, n := range res.IDs {
		out = append(out, entity.NodeRef{Scope: scope, ID: entity.NodeID(n)})
	}
	return out, nil
}

type stateJSON struct {
	Attached bool `json:"attached"`
	Visible  bool `json:"visible"`
	Enabled  bool `json:"enabled"`
	Editable bool `json:"editable"`
	Checked  bool `json:"checked"`
	Receives bool `json:"receives"`
	Moving   bool `json:"moving"`
	Box      *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		W float64 `json:"w"`
		H float64 `json:"h"`
	} `json:"box"`
	Tag   string            `json:"tag"`
	Text  string            `json:"text"`
	Value string            `json:"value"`
	Attrs map[string]string `json:"attrs"`
}

func (c *Channel) NodeState(ctx context.Context, node entity.NodeRef) (entity.NodeState, error) {
	p, err := c.page(ctx, node.Scope.Page)
	if err != nil {
		return entity.NodeState{}, err
	}
	var s stateJSON
	if err := c.eval(p, jsState, &s, int64(node.ID)); err != nil {
		return entity.NodeState{}, err
	}
	if !s.Attached {
		return entity.NodeState{}, nil
	}
	st := entity.NodeState{
		Attached:       true,
		Visible:        s.Visible,
		Enabled:        s.Enabled,
		Editable:       s.Editable,
		Checked:        s.Checked,
		ReceivesEvents: s.Receives,
		Moving:         s.Moving,
		Tag:            s.Tag,
		Text:           s.Text,
		Value:          s.Value,
		Attributes:     s.Attrs,
	}
	if s.Box != nil {
		st.Box = entity.Rect{X: s.Box.X, Y: s.Box.Y, Width: s.Box.W, Height: s.Box.H}
	}
	return st, nil
}

// OuterHTML serializes a node. Detached nodes report ErrStaleElement.
func (c *Channel) OuterHTML(ctx context.Context, node entity.NodeRef) (string, error) {
	p, err := c.page(ctx, node.Scope.Page)
	if err != nil {
		return "", err
	}
	res, err := p.Evaluate(evalJS(jsOuterHTML, int64(node.ID)))
	if err != nil {
		return "", err
	}
	if res.Value.Nil() {
		return "", fmt.Errorf("%w: node %d", entity.ErrStaleElement, node.ID)
	}
	return res.Value.Str(), nil
}
