// Package frametree tracks the frame and shadow-root hierarchy of a page and resolves
// frame paths to query scopes.
package frametree

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
	"browser-harness/internal/usecase/poll"
)

type snapshot struct {
	gen    uint64
	frames []entity.FrameInfo
	byHost map[entity.NodeID][]entity.FrameInfo
}

type cachedScope struct {
	gen  uint64
	node *Node
}

// Tree is safe for concurrent use. Snapshots are rebuilt lazily after Invalidate.
type Tree struct {
	ch   output.ControlChannel
	page entity.PageID

	gen  atomic.Uint64
	snap atomic.Pointer[snapshot]

	mu     sync.Mutex
	scopes map[string]cachedScope
}

func New(ch output.ControlChannel, page entity.PageID) *Tree {
	return &Tree{ch: ch, page: page, scopes: make(map[string]cachedScope)}
}

func (t *Tree) Page() entity.PageID {
	return t.page
}

// Invalidate drops the snapshot and every cached scope. Called on navigation.
func (t *Tree) Invalidate() {
	t.gen.Add(1)
	t.snap.Store(nil)
}

func (t *Tree) Generation() uint64 {
	return t.gen.Load()
}

// Observe invalidates the tree for events that replace documents.
func (t *Tree) Observe(ev entity.BrowserEvent) {
	if ev.Page != t.page {
		return
	}
	if ev.Kind == entity.EventNavigation {
		t.Invalidate()
	}
}

func (t *Tree) snapshot(ctx context.Context, force bool) (*snapshot, error) {
	gen := t.gen.Load()
	if s := t.snap.Load(); s != nil && !force && s.gen == gen {
		return s, nil
	}
	frames, err := t.ch.Frames(ctx, t.page)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("page %s reported no frames", t.page)
	}
	s := &snapshot{gen: gen, frames: frames, byHost: make(map[entity.NodeID][]entity.FrameInfo)}
	for _, f := range frames {
		if f.Host != 0 {
			s.byHost[f.Host] = append(s.byHost[f.Host], f)
		}
	}
	t.snap.Store(s)
	return s, nil
}

// Frames returns the current frame listing, parents first.
func (t *Tree) Frames(ctx context.Context) ([]entity.FrameInfo, error) {
	s, err := t.snapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	return append([]entity.FrameInfo(nil), s.frames...), nil
}

// Node is a resolved frame: the main document, an iframe document or a shadow root.
// It is a value captured at one tree generation; use Tree.Lookup to re-resolve it.
type Node struct {
	tree  *Tree
	info  entity.FrameInfo
	scope entity.ScopeRef
	path  []entity.FrameSelector
	gen   uint64
}

func (n *Node) Scope() entity.ScopeRef {
	return n.scope
}

func (n *Node) Info() entity.FrameInfo {
	return n.info
}

func (n *Node) Path() []entity.FrameSelector {
	return append([]entity.FrameSelector(nil), n.path...)
}

func (n *Node) PathString() string {
	return entity.FramePathString(n.path)
}

func (n *Node) Tree() *Tree {
	return n.tree
}

// Current reports whether no navigation happened since n was resolved.
func (n *Node) Current() bool {
	return n.gen == n.tree.Generation()
}

// Children lists the frames and shadow roots directly below n.
func (n *Node) Children(ctx context.Context) ([]entity.FrameInfo, error) {
	frames, err := n.tree.Frames(ctx)
	if err != nil {
		return nil, err
	}
	var out []entity.FrameInfo
	for _, f := range frames {
		if f.Parent == n.info.ID && f.ID != n.info.ID {
			out = append(out, f)
		}
	}
	return out, nil
}

// Root returns the node of the main document.
func (t *Tree) Root(ctx context.Context) (*Node, error) {
	s, err := t.snapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	main := s.frames[0]
	return &Node{
		tree:  t,
		info:  main,
		scope: entity.ScopeRef{Page: t.page, Frame: main.ID, Kind: entity.FrameKindDocument},
		gen:   s.gen,
	}, nil
}

// ResolveScope walks path from the main document, polling until every segment
// resolves or opts.Timeout elapses.
func (t *Tree) ResolveScope(ctx context.Context, path []entity.FrameSelector, opts poll.Options) (*Node, error) {
	var (
		node    *Node
		failing string
	)
	_, err := poll.Until(ctx, opts, func(ctx context.Context) (bool, error) {
		n, seg, err := t.lookup(ctx, path)
		if err != nil {
			return false, err
		}
		if n == nil {
			failing = path[seg].String()
			return false, nil
		}
		node = n
		return true, nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			e := entity.NewError(entity.ErrFrameNotFound, "resolve frame")
			e.FramePath = entity.FramePathString(path)
			if failing != "" {
				e.Detail = "no match for " + failing
			}
			return nil, e
		}
		return nil, err
	}
	return node, nil
}

// At returns an unresolved node carrying path. Resolution against the live tree
// happens when the node is used as a locator scope.
func (t *Tree) At(path []entity.FrameSelector) *Node {
	return &Node{
		tree:  t,
		scope: entity.ScopeRef{Page: t.page},
		path:  append([]entity.FrameSelector(nil), path...),
	}
}

// Lookup resolves path once without waiting. It returns nil when a segment does not
// resolve yet.
func (t *Tree) Lookup(ctx context.Context, path []entity.FrameSelector) (*Node, error) {
	n, _, err := t.lookup(ctx, path)
	return n, err
}

func (t *Tree) lookup(ctx context.Context, path []entity.FrameSelector) (*Node, int, error) {
	if len(path) == 0 {
		n, err := t.Root(ctx)
		return n, 0, err
	}
	key := entity.FramePathString(path)
	gen := t.gen.Load()
	t.mu.Lock()
	c, ok := t.scopes[key]
	t.mu.Unlock()
	if ok && c.gen == gen {
		return c.node, -1, nil
	}

	n, seg, err := t.walk(ctx, path)
	if err != nil || n == nil {
		return nil, seg, err
	}
	t.mu.Lock()
	t.scopes[key] = cachedScope{gen: gen, node: n}
	t.mu.Unlock()
	return n, -1, nil
}

// walk resolves path once. On a miss it returns the index of the failing segment.
func (t *Tree) walk(ctx context.Context, path []entity.FrameSelector) (*Node, int, error) {
	node, err := t.Root(ctx)
	if err != nil {
		return nil, 0, err
	}
	for i, seg := range path {
		hosts, err := t.ch.QueryNodes(ctx, node.scope, hostQuery(seg.Selector))
		if err != nil {
			if errors.Is(err, entity.ErrStaleElement) {
				t.Invalidate()
				return nil, i, nil
			}
			return nil, i, err
		}
		if len(hosts) == 0 {
			return nil, i, nil
		}
		host := hosts[0]
		want := entity.FrameKindIFrame
		if seg.Shadow {
			want = entity.FrameKindShadow
		}
		child, ok, err := t.childOf(ctx, host.ID, want)
		if err != nil {
			return nil, i, err
		}
		if !ok {
			return nil, i, nil
		}
		node = &Node{
			tree:  t,
			info:  child,
			scope: entity.ScopeRef{Page: t.page, Frame: child.ID, Kind: child.Kind, Host: &host},
			path:  append(node.Path(), seg),
			gen:   node.gen,
		}
	}
	return node, -1, nil
}

// childOf finds the frame hosted by node. A miss forces one snapshot rebuild since
// the frame may have attached after the snapshot was taken.
func (t *Tree) childOf(ctx context.Context, host entity.NodeID, kind entity.FrameKind) (entity.FrameInfo, bool, error) {
	for _, force := range []bool{false, true} {
		s, err := t.snapshot(ctx, force)
		if err != nil {
			return entity.FrameInfo{}, false, err
		}
		for _, f := range s.byHost[host] {
			if f.Kind == kind {
				return f, true, nil
			}
		}
	}
	return entity.FrameInfo{}, false, nil
}

func hostQuery(selector string) entity.Query {
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		return entity.Query{Engine: entity.QueryXPath, Body: selector}
	}
	return entity.Query{Engine: entity.QueryCSS, Body: selector}
}
