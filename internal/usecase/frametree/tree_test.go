package frametree_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/browser/memory"
	"browser-harness/internal/usecase/frametree"
	"browser-harness/internal/usecase/poll"
)

const nested = `<html><body>
<iframe id="outer" srcdoc="<iframe id='inner' srcdoc='<p id=leaf>leaf</p>'></iframe>"></iframe>
<my-card id="card"><template shadowrootmode="open"><span class="label">Card</span></template></my-card>
</body></html>`

var quick = poll.Options{Timeout: 200 * time.Millisecond, Interval: 10 * time.Millisecond}

func setup(t *testing.T, markup string) (*memory.Browser, entity.PageID) {
	t.Helper()
	b := memory.New()
	t.Cleanup(func() { _ = b.Close() })
	b.Route("http://site.test/", markup)
	ctx := context.Background()
	bc, err := b.NewContext(ctx)
	require.NoError(t, err)
	pid, err := b.NewPage(ctx, bc)
	require.NoError(t, err)
	require.NoError(t, b.Navigate(ctx, pid, "http://site.test/"))
	return b, pid
}

func TestTree_ResolveNestedIFrames(t *testing.T) {
	b, pid := setup(t, nested)
	tree := frametree.New(b, pid)
	ctx := context.Background()

	node, err := tree.ResolveScope(ctx, []entity.FrameSelector{{Selector: "#outer"}, {Selector: "#inner"}}, quick)
	require.NoError(t, err)
	assert.Equal(t, entity.FrameKindIFrame, node.Scope().Kind)
	require.NotNil(t, node.Scope().Host)
	assert.Equal(t, "frame(#outer) > frame(#inner)", node.PathString())

	nodes, err := b.QueryNodes(ctx, node.Scope(), entity.Query{Engine: entity.QueryCSS, Body: "#leaf"})
	require.NoError(t, err)
	assert.Len(t, nodes, 1)

	root, err := tree.Root(ctx)
	require.NoError(t, err)
	children, err := root.Children(ctx)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, entity.FrameKindIFrame, children[0].Kind)
	assert.Equal(t, entity.FrameKindShadow, children[1].Kind)
}

func TestTree_ResolveShadowRoot(t *testing.T) {
	b, pid := setup(t, nested)
	tree := frametree.New(b, pid)
	ctx := context.Background()

	node, err := tree.ResolveScope(ctx, []entity.FrameSelector{{Selector: "#card", Shadow: true}}, quick)
	require.NoError(t, err)
	assert.Equal(t, entity.FrameKindShadow, node.Scope().Kind)

	nodes, err := b.QueryNodes(ctx, node.Scope(), entity.Query{Engine: entity.QueryCSS, Body: ".label"})
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestTree_MissingFrameReportsPath(t *testing.T) {
	b, pid := setup(t, nested)
	tree := frametree.New(b, pid)

	start := time.Now()
	_, err := tree.ResolveScope(context.Background(), []entity.FrameSelector{{Selector: "#outer"}, {Selector: "#nope"}}, quick)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrFrameNotFound)
	assert.Contains(t, err.Error(), "frame(#outer) > frame(#nope)")
	assert.GreaterOrEqual(t, time.Since(start), quick.Timeout)
}

func TestTree_NonFrameHostIsNotAFrame(t *testing.T) {
	b, pid := setup(t, nested)
	tree := frametree.New(b, pid)

	_, err := tree.ResolveScope(context.Background(), []entity.FrameSelector{{Selector: "#card"}}, quick)
	assert.ErrorIs(t, err, entity.ErrFrameNotFound)
}

func TestTree_InvalidateAfterNavigation(t *testing.T) {
	b, pid := setup(t, nested)
	b.Route("http://site.test/other", `<iframe id="outer" srcdoc="<p>other</p>"></iframe>`)
	tree := frametree.New(b, pid)
	ctx := context.Background()

	first, err := tree.ResolveScope(ctx, []entity.FrameSelector{{Selector: "#outer"}}, quick)
	require.NoError(t, err)
	gen := tree.Generation()

	require.NoError(t, b.Navigate(ctx, pid, "http://site.test/other"))
	tree.Observe(entity.BrowserEvent{Kind: entity.EventNavigation, Page: pid})
	assert.Greater(t, tree.Generation(), gen)
	assert.False(t, first.Current())

	second, err := tree.ResolveScope(ctx, []entity.FrameSelector{{Selector: "#outer"}}, quick)
	require.NoError(t, err)
	assert.NotEqual(t, first.Scope().Host.ID, second.Scope().Host.ID)

	nodes, err := b.QueryNodes(ctx, second.Scope(), entity.Query{Engine: entity.QueryCSS, Body: "p"})
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestTree_FrameAttachedLater(t *testing.T) {
	b, pid := setup(t, `<div id="slot"></div>`)
	b.Route("http://site.test/late", `<p id="late">late</p>`)
	tree := frametree.New(b, pid)
	ctx := context.Background()
	_, err := tree.Frames(ctx)
	require.NoError(t, err)

	time.AfterFunc(30*time.Millisecond, func() {
		_ = b.Navigate(ctx, pid, "http://site.test/")
	})
	b.Route("http://site.test/", `<iframe id="late-frame" src="/late"></iframe>`)

	node, err := tree.ResolveScope(ctx, []entity.FrameSelector{{Selector: "#late-frame"}},
		poll.Options{Timeout: time.Second, Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	nodes, err := b.QueryNodes(ctx, node.Scope(), entity.Query{Engine: entity.QueryCSS, Body: "#late"})
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestTree_AtDefersResolution(t *testing.T) {
	b, pid := setup(t, nested)
	tree := frametree.New(b, pid)
	path := []entity.FrameSelector{{Selector: "#outer"}, {Selector: "#inner"}}

	node := tree.At(path)
	assert.Equal(t, "frame(#outer) > frame(#inner)", node.PathString())
	assert.Same(t, tree, node.Tree())

	resolved, err := tree.Lookup(context.Background(), node.Path())
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, entity.FrameKindIFrame, resolved.Scope().Kind)
}
