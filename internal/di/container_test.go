package di

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/browser/memory"
	"browser-harness/internal/infrastructure/logger"
	"browser-harness/internal/usecase/assertion"
)

func TestNewContainer_WithChannel(t *testing.T) {
	b := memory.New()
	defer b.Close()
	b.Route("http://site.test/", `<html><head><title>Home</title></head><body><p id="greeting">hi</p></body></html>`)

	cfg := entity.Config{Timeouts: entity.Timeouts{
		Navigation:   time.Second,
		Assertion:    200 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}}
	c, err := NewContainer(context.Background(), cfg, Options{Channel: b, Logger: logger.NewNop()})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Session.Goto(ctx, "http://site.test/"))
	require.NoError(t, c.Session.Must(ctx, assertion.TitleEquals(c.Session.Page(), "Home")))
	require.NoError(t, c.Session.Must(ctx, assertion.TextEquals(c.Session.CSS("#greeting"), "hi")))

	n, err := testutil.GatherAndCount(c.Metrics.Registry(), "harness_assertion_evaluated_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
