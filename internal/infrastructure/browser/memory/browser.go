// Package memory implements output.ControlChannel over HTML documents parsed and held
// in process. Pages are served from registered routes, iframes load from srcdoc or
// routes, and declarative shadow roots (<template shadowrootmode>) are exposed as
// shadow scopes. Page behaviour is scripted with On handlers.
//
// A few data attributes drive the simulated layout:
//
//	data-animating="N"  the box moves on each of the first N state samples
//	data-moving         the box reads the same on every sample but the node reports Moving
//	data-obscured       another element covers the node, so it does not receive events
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
)

var (
	ErrClosed   = errors.New("memory: browser closed")
	ErrNoRoute  = errors.New("memory: no route")
	ErrNoDialog = errors.New("memory: no dialog open")
)

var (
	_ output.ControlChannel = (*Browser)(nil)
	_ output.HTMLSource     = (*Browser)(nil)
)

const (
	blankURL      = "about:blank"
	blankMarkup   = "<html><head></head><body></body></html>"
	maxFrameDepth = 8
)

type behavior struct {
	kind entity.ActionKind
	sel  cascadia.Matcher
	fn   func(*Event) error
}

type browsingContext struct {
	id    entity.ContextID
	pages []entity.PageID
}

type page struct {
	id      entity.PageID
	bc      entity.ContextID
	opener  entity.PageID
	url     string
	title   string
	doc     *html.Node
	main    entity.FrameID
	frames  map[*html.Node]*html.Node
	frameID map[*html.Node]entity.FrameID
	hosts   map[*html.Node]*html.Node
	loaded  time.Time
	subs    []*subscriber
	dialog  *pendingDialog
	files   map[*html.Node][]string
	samples map[*html.Node]int
	closed  bool
}

type Browser struct {
	mu        sync.Mutex
	routes    map[string]func() string
	behaviors []behavior
	contexts  map[entity.ContextID]*browsingContext
	pages     map[entity.PageID]*page
	nodes     map[entity.NodeID]*html.Node
	ids       map[*html.Node]entity.NodeID
	nextID    entity.NodeID
	nextFrame int
	loadDelay time.Duration
	closed    bool
}

func New() *Browser {
	return &Browser{
		routes:   make(map[string]func() string),
		contexts: make(map[entity.ContextID]*browsingContext),
		pages:    make(map[entity.PageID]*page),
		nodes:    make(map[entity.NodeID]*html.Node),
		ids:      make(map[*html.Node]entity.NodeID),
	}
}

// Route serves markup at url.
func (b *Browser) Route(url, markup string) {
	b.RouteFunc(url, func() string { return markup })
}

// RouteFunc serves the result of fn at url, evaluated on every load.
func (b *Browser) RouteFunc(url string, fn func() string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[url] = fn
}

// On registers fn to run when an action of kind is dispatched to a node matching
// selector. It panics if selector does not compile.
func (b *Browser) On(kind entity.ActionKind, selector string, fn func(*Event) error) {
	sel := cascadia.MustCompile(selector)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.behaviors = append(b.behaviors, behavior{kind: kind, sel: sel, fn: fn})
}

// SetLoadDelay keeps freshly navigated pages in the loading state for d.
func (b *Browser) SetLoadDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadDelay = d
}

// Page returns a scripting handle for id.
func (b *Browser) Page(id entity.PageID) *Page {
	return &Page{b: b, id: id}
}

// Pages lists the open pages of a context in creation order.
func (b *Browser) Pages(id entity.ContextID) []entity.PageID {
	b.mu.Lock()
	defer b.mu.Unlock()
	bc, ok := b.contexts[id]
	if !ok {
		return nil
	}
	return append([]entity.PageID(nil), bc.pages...)
}

func (b *Browser) NewContext(_ context.Context) (entity.ContextID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrClosed
	}
	id := entity.ContextID("ctx-" + uuid.NewString()[:8])
	b.contexts[id] = &browsingContext{id: id}
	return id, nil
}

func (b *Browser) CloseContext(_ context.Context, id entity.ContextID) error {
	b.mu.Lock()
	bc, ok := b.contexts[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: context %s", entity.ErrContextClosed, id)
	}
	delete(b.contexts, id)
	pages := append([]entity.PageID(nil), bc.pages...)
	b.mu.Unlock()

	for _, pid := range pages {
		_ = b.ClosePage(context.Background(), pid)
	}
	return nil
}

func (b *Browser) NewPage(_ context.Context, id entity.ContextID) (entity.PageID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bc, ok := b.contexts[id]
	if !ok || b.closed {
		return "", fmt.Errorf("%w: context %s", entity.ErrContextClosed, id)
	}
	p := b.newPageLocked(bc, "")
	return p.id, nil
}

func (b *Browser) newPageLocked(bc *browsingContext, opener entity.PageID) *page {
	id := entity.PageID("page-" + uuid.NewString()[:8])
	p := &page{
		id:     id,
		bc:     bc.id,
		opener: opener,
		main:   entity.FrameID(string(id) + ":main"),
	}
	b.loadLocked(p, blankURL, blankMarkup)
	b.pages[id] = p
	bc.pages = append(bc.pages, id)
	return p
}

func (b *Browser) ClosePage(_ context.Context, id entity.PageID) error {
	b.mu.Lock()
	p, ok := b.pages[id]
	if !ok || p.closed {
		b.mu.Unlock()
		return nil
	}
	p.closed = true
	if bc, ok := b.contexts[p.bc]; ok {
		bc.pages = removePage(bc.pages, id)
	}
	if p.dialog != nil {
		p.dialog.resp <- entity.DialogResponse{}
		p.dialog = nil
	}
	subs := append([]*subscriber(nil), p.subs...)
	b.mu.Unlock()

	emit(subs, entity.BrowserEvent{Kind: entity.EventPageClosed, Page: id, Context: p.bc, Load: entity.LoadStateClosed})
	return nil
}

func removePage(pages []entity.PageID, id entity.PageID) []entity.PageID {
	out := pages[:0]
	for _, p := range pages {
		if p != id {
			out = append(out, p)
		}
	}
	return out
}

func (b *Browser) livePage(id entity.PageID) (*page, error) {
	if b.closed {
		return nil, ErrClosed
	}
	p, ok := b.pages[id]
	if !ok || p.closed {
		return nil, fmt.Errorf("%w: page %s", entity.ErrContextClosed, id)
	}
	return p, nil
}

func (b *Browser) Navigate(_ context.Context, id entity.PageID, target string) error {
	b.mu.Lock()
	p, err := b.livePage(id)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	target = resolveURL(p.url, target)
	markup, ok := b.lookupLocked(target)
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoRoute, target)
	}
	b.loadLocked(p, target, markup)
	subs := append([]*subscriber(nil), p.subs...)
	delay := b.loadDelay
	b.mu.Unlock()

	emit(subs, entity.BrowserEvent{Kind: entity.EventNavigation, Page: id, Context: p.bc, Frame: p.main, URL: target})
	if delay <= 0 {
		emit(subs, entity.BrowserEvent{Kind: entity.EventLoad, Page: id, Context: p.bc, URL: target, Load: entity.LoadStateNetworkIdle})
		return nil
	}
	time.AfterFunc(delay, func() {
		emit(subs, entity.BrowserEvent{Kind: entity.EventLoad, Page: id, Context: p.bc, URL: target, Load: entity.LoadStateNetworkIdle})
	})
	return nil
}

func (b *Browser) Reload(ctx context.Context, id entity.PageID) error {
	b.mu.Lock()
	p, err := b.livePage(id)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	current := p.url
	b.mu.Unlock()
	return b.Navigate(ctx, id, current)
}

func (b *Browser) lookupLocked(target string) (string, bool) {
	if target == blankURL {
		return blankMarkup, true
	}
	if fn, ok := b.routes[target]; ok {
		return fn(), true
	}
	if u, err := url.Parse(target); err == nil {
		u.RawQuery, u.Fragment = "", ""
		if fn, ok := b.routes[u.String()]; ok {
			return fn(), true
		}
	}
	return "", false
}

func resolveURL(base, ref string) string {
	bu, err := url.Parse(base)
	if err != nil || bu.Scheme == "about" {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return bu.ResolveReference(ru).String()
}

func (b *Browser) loadLocked(p *page, target, markup string) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		doc, _ = html.Parse(strings.NewReader(blankMarkup))
	}
	p.url = target
	p.title = ""
	p.doc = doc
	p.frames = make(map[*html.Node]*html.Node)
	p.frameID = make(map[*html.Node]entity.FrameID)
	p.hosts = make(map[*html.Node]*html.Node)
	p.files = make(map[*html.Node][]string)
	p.samples = make(map[*html.Node]int)
	p.loaded = time.Now()
	b.loadFramesLocked(p, doc, target, 0)
}

func (b *Browser) loadFramesLocked(p *page, doc *html.Node, base string, depth int) {
	if depth >= maxFrameDepth {
		return
	}
	for _, el := range findAll(doc, func(n *html.Node) bool { return isElement(n, "iframe") }) {
		var markup string
		src := base
		if srcdoc, ok := attr(el, "srcdoc"); ok {
			markup = srcdoc
		} else if ref, ok := attr(el, "src"); ok {
			src = resolveURL(base, ref)
			m, found := b.lookupLocked(src)
			if !found {
				continue
			}
			markup = m
		} else {
			continue
		}
		child, err := html.Parse(strings.NewReader(markup))
		if err != nil {
			continue
		}
		b.nextFrame++
		p.frames[el] = child
		p.frameID[el] = entity.FrameID(fmt.Sprintf("%s:frame-%d", p.id, b.nextFrame))
		p.hosts[child] = el
		b.loadFramesLocked(p, child, src, depth+1)
	}
}

func (b *Browser) PageInfo(_ context.Context, id entity.PageID) (entity.PageInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.livePage(id)
	if err != nil {
		return entity.PageInfo{URL: "", LoadState: entity.LoadStateClosed}, err
	}
	state := entity.LoadStateNetworkIdle
	if b.loadDelay > 0 && time.Since(p.loaded) < b.loadDelay {
		state = entity.LoadStateLoading
	}
	title := p.title
	if title == "" {
		title = findTitle(p.doc)
	}
	return entity.PageInfo{URL: p.url, Title: title, LoadState: state}, nil
}

func (b *Browser) Frames(_ context.Context, id entity.PageID) ([]entity.FrameInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.livePage(id)
	if err != nil {
		return nil, err
	}

	out := []entity.FrameInfo{{ID: p.main, Kind: entity.FrameKindDocument, URL: p.url}}
	var walk func(root *html.Node, parent entity.FrameID)
	walk = func(root *html.Node, parent entity.FrameID) {
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if child, ok := p.frames[c]; ok {
				fid := p.frameID[c]
				name, _ := attr(c, "name")
				src, ok := attr(c, "src")
				if !ok {
					src = "about:srcdoc"
				}
				out = append(out, entity.FrameInfo{
					ID: fid, Parent: parent, Kind: entity.FrameKindIFrame,
					Name: name, URL: src, Host: b.idOfLocked(c),
				})
				walk(child, fid)
				continue
			}
			if isShadowTemplate(c) {
				host := b.idOfLocked(c.Parent)
				fid := entity.FrameID(fmt.Sprintf("%s:shadow-%d", p.id, host))
				out = append(out, entity.FrameInfo{ID: fid, Parent: parent, Kind: entity.FrameKindShadow, Host: host})
				walk(c, fid)
				continue
			}
			walk(c, parent)
		}
	}
	walk(p.doc, p.main)
	return out, nil
}

func (b *Browser) idOfLocked(n *html.Node) entity.NodeID {
	if id, ok := b.ids[n]; ok {
		return id
	}
	b.nextID++
	b.ids[n] = b.nextID
	b.nodes[b.nextID] = n
	return b.nextID
}

// attachedLocked reports whether n is in the live document tree of p, including
// documents of attached iframes.
func (b *Browser) attachedLocked(p *page, n *html.Node) bool {
	for depth := 0; depth <= maxFrameDepth; depth++ {
		doc := documentOf(n)
		if doc == nil {
			return false
		}
		if doc == p.doc {
			return true
		}
		host, ok := p.hosts[doc]
		if !ok || p.frames[host] != doc {
			return false
		}
		n = host
	}
	return false
}

// scopeRootLocked returns the node queries of scope run under.
func (b *Browser) scopeRootLocked(p *page, scope entity.ScopeRef) (*html.Node, error) {
	if scope.Host == nil {
		return p.doc, nil
	}
	host, ok := b.nodes[scope.Host.ID]
	if !ok || !b.attachedLocked(p, host) {
		return nil, fmt.Errorf("%w: scope host %d detached", entity.ErrStaleElement, scope.Host.ID)
	}
	switch scope.Kind {
	case entity.FrameKindIFrame:
		if doc, ok := p.frames[host]; ok {
			return doc, nil
		}
		return nil, fmt.Errorf("%w: iframe %d has no document", entity.ErrStaleElement, scope.Host.ID)
	case entity.FrameKindShadow:
		if t := shadowTemplateOf(host); t != nil {
			return t, nil
		}
		return nil, fmt.Errorf("%w: node %d has no shadow root", entity.ErrStaleElement, scope.Host.ID)
	}
	return nil, fmt.Errorf("unsupported scope kind %q", scope.Kind)
}

func (b *Browser) QueryNodes(_ context.Context, scope entity.ScopeRef, q entity.Query) ([]entity.NodeRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.livePage(scope.Page)
	if err != nil {
		return nil, err
	}
	scopeRoot, err := b.scopeRootLocked(p, scope)
	if err != nil {
		return nil, err
	}
	root := scopeRoot
	if q.Root != 0 {
		n, ok := b.nodes[q.Root]
		if !ok || !b.attachedLocked(p, n) || !isDescendant(n, scopeRoot) {
			return nil, nil
		}
		root = n
	}
	nodes, err := queryAll(root, scopeRoot, q)
	if err != nil {
		return nil, err
	}
	out := make([]entity.NodeRef, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, entity.NodeRef{Scope: scope, ID: b.idOfLocked(n)})
	}
	return out, nil
}

func (b *Browser) NodeState(_ context.Context, ref entity.NodeRef) (entity.NodeState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.livePage(ref.Scope.Page)
	if err != nil {
		return entity.NodeState{}, err
	}
	n, ok := b.nodes[ref.ID]
	if !ok || !b.attachedLocked(p, n) {
		return entity.NodeState{}, nil
	}

	visible := isVisible(n)
	for doc := documentOf(n); visible && doc != p.doc; doc = documentOf(p.hosts[doc]) {
		visible = isVisible(p.hosts[doc])
	}
	_, checked := attr(n, "checked")
	st := entity.NodeState{
		Attached:       true,
		Visible:        visible,
		Enabled:        isEnabled(n),
		Editable:       isEditable(n),
		Checked:        checked,
		ReceivesEvents: receivesEvents(n),
		Tag:            n.Data,
		Text:           textContent(n),
		Value:          valueOf(n),
		Attributes:     attributes(n),
	}
	if visible {
		st.Box = b.boxLocked(p, n, ref.ID)
		_, st.Moving = attr(n, "data-moving")
	}
	return st, nil
}

func (b *Browser) boxLocked(p *page, n *html.Node, id entity.NodeID) entity.Rect {
	box := entity.Rect{X: float64(id%40) * 12, Y: float64(id/40) * 28, Width: 120, Height: 24}
	if v, ok := attr(n, "data-animating"); ok {
		var frames int
		if _, err := fmt.Sscanf(v, "%d", &frames); err != nil {
			frames = 1
		}
		sample := p.samples[n]
		p.samples[n] = sample + 1
		if sample < frames {
			box.X += float64(sample+1) * 7
		}
	}
	return box
}

func (b *Browser) RespondDialog(_ context.Context, id entity.PageID, resp entity.DialogResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.livePage(id)
	if err != nil {
		return err
	}
	if p.dialog == nil {
		return ErrNoDialog
	}
	p.dialog.resp <- resp
	p.dialog = nil
	return nil
}

// raiseDialog blocks until the dialog is answered. With no subscriber the dialog is
// dismissed immediately.
func (b *Browser) raiseDialog(ctx context.Context, id entity.PageID, ev entity.DialogEvent) (entity.DialogResponse, error) {
	b.mu.Lock()
	p, err := b.livePage(id)
	if err != nil {
		b.mu.Unlock()
		return entity.DialogResponse{}, err
	}
	if p.dialog != nil {
		b.mu.Unlock()
		return entity.DialogResponse{}, fmt.Errorf("memory: dialog already open on %s", id)
	}
	ev.Page = id
	if len(p.subs) == 0 {
		b.mu.Unlock()
		return entity.DialogResponse{}, nil
	}
	pd := &pendingDialog{event: ev, resp: make(chan entity.DialogResponse, 1)}
	p.dialog = pd
	subs := append([]*subscriber(nil), p.subs...)
	b.mu.Unlock()

	emit(subs, entity.BrowserEvent{Kind: entity.EventDialog, Page: id, Context: p.bc, Dialog: &ev})
	select {
	case r := <-pd.resp:
		return r, nil
	case <-ctx.Done():
		b.mu.Lock()
		if p.dialog == pd {
			p.dialog = nil
		}
		b.mu.Unlock()
		return entity.DialogResponse{}, ctx.Err()
	}
}

func (b *Browser) Subscribe(ctx context.Context, id entity.PageID) (<-chan entity.BrowserEvent, error) {
	b.mu.Lock()
	p, err := b.livePage(id)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	s := newSubscriber(ctx)
	p.subs = append(p.subs, s)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		out := p.subs[:0]
		for _, x := range p.subs {
			if x != s {
				out = append(out, x)
			}
		}
		p.subs = out
		b.mu.Unlock()
		s.close()
	}()
	return s.ch, nil
}

func (b *Browser) openPopup(opener entity.PageID, target string) (entity.PageID, error) {
	b.mu.Lock()
	op, err := b.livePage(opener)
	if err != nil {
		b.mu.Unlock()
		return "", err
	}
	bc, ok := b.contexts[op.bc]
	if !ok {
		b.mu.Unlock()
		return "", fmt.Errorf("%w: context %s", entity.ErrContextClosed, op.bc)
	}
	target = resolveURL(op.url, target)
	markup, ok := b.lookupLocked(target)
	if !ok {
		b.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNoRoute, target)
	}
	p := b.newPageLocked(bc, opener)
	b.loadLocked(p, target, markup)
	subs := append([]*subscriber(nil), op.subs...)
	b.mu.Unlock()

	emit(subs, entity.BrowserEvent{Kind: entity.EventNewPage, Page: p.id, Opener: opener, Context: p.bc, URL: target})
	return p.id, nil
}

func (b *Browser) Screenshot(_ context.Context, id entity.PageID) (*entity.Screenshot, error) {
	b.mu.Lock()
	_, err := b.livePage(id)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	img := imaging.New(320, 200, color.White)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return &entity.Screenshot{Data: buf.Bytes(), Format: "png", Width: 320, Height: 200}, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	ids := make([]entity.PageID, 0, len(b.pages))
	for id, p := range b.pages {
		if !p.closed {
			ids = append(ids, id)
		}
	}
	b.mu.Unlock()

	for _, id := range ids {
		_ = b.ClosePage(context.Background(), id)
	}
	b.mu.Lock()
	b.closed = true
	b.contexts = make(map[entity.ContextID]*browsingContext)
	b.mu.Unlock()
	return nil
}

// OuterHTML renders a node. Detached nodes report ErrStaleElement.
func (b *Browser) OuterHTML(_ context.Context, ref entity.NodeRef) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.livePage(ref.Scope.Page)
	if err != nil {
		return "", err
	}
	n, ok := b.nodes[ref.ID]
	if !ok || !b.attachedLocked(p, n) {
		return "", fmt.Errorf("%w: node %d", entity.ErrStaleElement, ref.ID)
	}
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Content renders the main document of a page.
func (b *Browser) Content(_ context.Context, id entity.PageID) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, err := b.livePage(id)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := html.Render(&sb, p.doc); err != nil {
		return "", err
	}
	return sb.String(), nil
}
