package diagnostics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/browser/memory"
	"browser-harness/internal/infrastructure/diagnostics"
	"browser-harness/internal/infrastructure/logger"
)

func open(t *testing.T) (*memory.Browser, entity.PageID) {
	t.Helper()
	b := memory.New()
	t.Cleanup(func() { _ = b.Close() })
	b.Route("http://site.test/login", `<html><head><title>Login</title><script>var x</script></head>
<body><form id="login"><input id="username" onfocus="x()"><button type="submit">Login</button></form></body></html>`)
	ctx := context.Background()
	bc, err := b.NewContext(ctx)
	require.NoError(t, err)
	pid, err := b.NewPage(ctx, bc)
	require.NoError(t, err)
	require.NoError(t, b.Navigate(ctx, pid, "http://site.test/login"))
	return b, pid
}

func TestCapture_Node(t *testing.T) {
	b, pid := open(t)
	ctx := context.Background()
	scope := entity.ScopeRef{Page: pid, Frame: entity.FrameID(string(pid) + ":main"), Kind: entity.FrameKindDocument}
	refs, err := b.QueryNodes(ctx, scope, entity.Query{Engine: entity.QueryCSS, Body: "#username"})
	require.NoError(t, err)
	require.Len(t, refs, 1)

	d := diagnostics.New(b, logger.NewNop(), 160).Capture(ctx, pid, &refs[0])

	assert.Equal(t, "http://site.test/login", d.PageURL)
	assert.Equal(t, `<input id="username"/>`, d.HTML)
	require.NotNil(t, d.Image)
	assert.Equal(t, 160, d.Image.Width)
	assert.Equal(t, 100, d.Image.Height)
	assert.False(t, d.Captured.IsZero())
}

func TestCapture_PageWithoutScreenshot(t *testing.T) {
	b, pid := open(t)

	d := diagnostics.New(b, logger.NewNop(), 0).Capture(context.Background(), pid, nil)

	assert.Contains(t, d.HTML, `<form id="login">`)
	assert.NotContains(t, d.HTML, "<script")
	assert.NotContains(t, d.HTML, "onfocus")
	assert.Nil(t, d.Image)
}

func TestCapture_ClosedPageIsEmpty(t *testing.T) {
	b, pid := open(t)
	require.NoError(t, b.ClosePage(context.Background(), pid))

	d := diagnostics.New(b, logger.NewNop(), 160).Capture(context.Background(), pid, nil)

	require.NotNil(t, d)
	assert.Empty(t, d.PageURL)
	assert.Empty(t, d.HTML)
	assert.Nil(t, d.Image)
}

func TestThumbnail_SmallImageUnchanged(t *testing.T) {
	b, pid := open(t)
	shot, err := b.Screenshot(context.Background(), pid)
	require.NoError(t, err)

	out, err := diagnostics.Thumbnail(shot, 1024)
	require.NoError(t, err)
	assert.Same(t, shot, out)

	_, err = diagnostics.Thumbnail(&entity.Screenshot{Data: []byte("nope")}, 10)
	assert.Error(t, err)
}
