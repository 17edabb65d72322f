package console

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"browser-harness/internal/domain/entity"
)

func TestReporter_Output(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	r := NewReporter(&buf)
	ctx := context.Background()

	r.ShowScenario(ctx, "login", 1, 2)
	r.ShowStepStart(ctx, "fill username")
	r.ShowStepResult(ctx, "fill username", "", nil)
	r.ShowStepResult(ctx, "check title", "Secure Area", nil)

	e := entity.NewError(entity.ErrActionabilityTimeout, "click")
	e.Property = entity.PropVisible
	r.ShowStepResult(ctx, "click hidden", "", e)
	r.ShowSummary(ctx, 1, 1, 1500*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "━━━ login (1/2) ━━━")
	assert.Contains(t, out, "▶ fill username\n")
	assert.Contains(t, out, "✓ fill username\n")
	assert.Contains(t, out, "✓ check title: Secure Area\n")
	assert.Contains(t, out, "✗ click hidden [actionability timeout]: actionability timeout: click: visible=false\n")
	assert.Contains(t, out, "1 passed, 1 failed in 1.5s")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
