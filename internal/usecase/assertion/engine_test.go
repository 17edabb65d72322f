package assertion_test

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/logger"
	"browser-harness/internal/infrastructure/metrics"
	"browser-harness/internal/usecase/assertion"
)

var timeouts = &entity.Timeouts{Assertion: 300 * time.Millisecond, PollInterval: 20 * time.Millisecond}

func newEngine() (*assertion.Engine, *metrics.Collector) {
	m := metrics.New()
	return assertion.NewEngine(timeouts, logger.NewNop(), m), m
}

func always(v any) assertion.Condition {
	return func(context.Context) (any, error) { return v, nil }
}

func TestWaitFor_SatisfiedOnFirstPoll(t *testing.T) {
	e, m := newEngine()

	res := e.WaitFor(context.Background(), always("Secure Area"), func(v any) bool { return v == "Secure Area" }, time.Second)

	assert.True(t, res.Satisfied)
	assert.Equal(t, 1, res.Attempts)
	assert.Less(t, res.Elapsed, timeouts.Poll())
	assert.Equal(t, "Secure Area", res.LastObserved)
	n, err := testutil.GatherAndCount(m.Registry(), "harness_assertion_evaluated_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWaitFor_SatisfiedLater(t *testing.T) {
	e, _ := newEngine()
	var n atomic.Int32
	cond := func(context.Context) (any, error) { return int(n.Add(1)), nil }

	res := e.WaitFor(context.Background(), cond, func(v any) bool { return v.(int) >= 3 }, time.Second)

	assert.True(t, res.Satisfied)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, res.LastObserved)
}

func TestWaitFor_TimeoutIsNeutral(t *testing.T) {
	e, _ := newEngine()

	res := e.WaitFor(context.Background(), always("The Internet"), func(v any) bool { return v == "Secure Area" }, 100*time.Millisecond)

	assert.False(t, res.Satisfied)
	assert.Equal(t, "The Internet", res.LastObserved)
	assert.NoError(t, res.LastErr)
	assert.Greater(t, res.Attempts, 1)
	assert.GreaterOrEqual(t, res.Elapsed, 100*time.Millisecond)
}

func TestWaitFor_ConditionErrorsKeepPolling(t *testing.T) {
	e, _ := newEngine()
	boom := errors.New("boom")
	var n atomic.Int32
	cond := func(context.Context) (any, error) {
		if n.Add(1) < 3 {
			return nil, boom
		}
		return "ready", nil
	}

	res := e.WaitFor(context.Background(), cond, func(v any) bool { return v == "ready" }, time.Second)
	assert.True(t, res.Satisfied)
	assert.NoError(t, res.LastErr)

	res = e.WaitFor(context.Background(), func(context.Context) (any, error) { return nil, boom },
		func(any) bool { return true }, 60*time.Millisecond)
	assert.False(t, res.Satisfied)
	assert.ErrorIs(t, res.LastErr, boom)
}

func TestWaitFor_DefaultTimeout(t *testing.T) {
	e, _ := newEngine()

	res := e.WaitFor(context.Background(), always(false), func(v any) bool { return v.(bool) }, 0)

	assert.False(t, res.Satisfied)
	assert.GreaterOrEqual(t, res.Elapsed, timeouts.AssertionTimeout())
}

func TestWaitFor_Cancelled(t *testing.T) {
	e, _ := newEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.WaitFor(ctx, always(false), func(v any) bool { return v.(bool) }, time.Second)

	assert.False(t, res.Satisfied)
	assert.ErrorIs(t, res.LastErr, context.Canceled)
}

type page struct {
	title string
	url   string
	err   error
}

func (p *page) Title(context.Context) (string, error) { return p.title, p.err }
func (p *page) URL(context.Context) (string, error)   { return p.url, p.err }

type diagnosablePage struct {
	page
	calls int
}

func (p *diagnosablePage) Diagnose(context.Context) *entity.Diagnostic {
	p.calls++
	return &entity.Diagnostic{PageURL: p.url, FramePath: "main"}
}

func TestCheck_PageExpectations(t *testing.T) {
	e, _ := newEngine()
	p := &page{title: "Secure Area", url: "http://the-internet.test/secure"}
	ctx := context.Background()

	tests := []struct {
		name string
		x    assertion.Expectation
		want bool
		desc string
	}{
		{"title equals", assertion.TitleEquals(p, "Secure Area"), true, `expect(page).toHaveTitle("Secure Area")`},
		{"title differs", assertion.TitleEquals(p, "Login"), false, `expect(page).toHaveTitle("Login")`},
		{"title matches", assertion.TitleMatches(p, regexp.MustCompile(`^Secure`)), true, `expect(page).toHaveTitle(/^Secure/)`},
		{"url matches", assertion.URLMatches(p, regexp.MustCompile(`/secure$`)), true, `expect(page).toHaveURL(/\/secure$/)`},
		{"title pattern with slash", assertion.TitleMatches(p, regexp.MustCompile(`Secure|a/b`)), true, `expect(page).toHaveTitle(/Secure|a\/b/)`},
		{"negated", assertion.TitleEquals(p, "Login").Not(), true, `expect(page).not.toHaveTitle("Login")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Check(ctx, tt.x, 60*time.Millisecond)
			assert.Equal(t, tt.want, res.Satisfied)
			assert.Equal(t, tt.desc, res.Description)
		})
	}
}

func TestCheck_DiagnosticOnlyWhenUnmet(t *testing.T) {
	e, _ := newEngine()
	p := &diagnosablePage{page: page{title: "The Internet", url: "http://the-internet.test/login"}}

	res := e.Check(context.Background(), assertion.TitleEquals(p, "The Internet"), time.Second)
	assert.True(t, res.Satisfied)
	assert.Nil(t, res.Diagnostic)
	assert.Zero(t, p.calls)

	res = e.Check(context.Background(), assertion.TitleEquals(p, "Secure Area"), 60*time.Millisecond)
	assert.False(t, res.Satisfied)
	require.NotNil(t, res.Diagnostic)
	assert.Equal(t, "http://the-internet.test/login", res.Diagnostic.PageURL)
	assert.Equal(t, 1, p.calls)
}

func TestMust(t *testing.T) {
	e, _ := newEngine()
	p := &page{title: "The Internet"}

	_, err := e.Must(context.Background(), assertion.TitleEquals(p, "The Internet"), time.Second)
	require.NoError(t, err)

	res, err := e.Must(context.Background(), assertion.TitleEquals(p, "Secure Area"), 60*time.Millisecond)
	require.Error(t, err)
	assert.False(t, res.Satisfied)
	assert.ErrorIs(t, err, entity.ErrAssertionTimeout)
	assert.True(t, entity.IsWarning(err))
	assert.Contains(t, err.Error(), `toHaveTitle("Secure Area")`)
	assert.Contains(t, err.Error(), `last observed "The Internet"`)
}

func TestMust_WrapsLastConditionError(t *testing.T) {
	e, _ := newEngine()
	p := &page{err: entity.ErrContextClosed}

	_, err := e.Must(context.Background(), assertion.TitleEquals(p, "x"), 60*time.Millisecond)

	assert.ErrorIs(t, err, entity.ErrAssertionTimeout)
	assert.ErrorIs(t, err, entity.ErrContextClosed)
}
