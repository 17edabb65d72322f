// Package console prints scenario progress in color.
package console

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/fatih/color"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
)

var _ output.ReporterPort = (*Reporter)(nil)

const maxDetailLen = 300

type Reporter struct {
	out io.Writer
}

// NewReporter writes to out, or to color.Output when out is nil.
func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = color.Output
	}
	return &Reporter{out: out}
}

func (r *Reporter) ShowScenario(_ context.Context, name string, index, total int) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(r.out, "\n━━━ %s (%d/%d) ━━━\n", name, index, total)
}

func (r *Reporter) ShowStepStart(_ context.Context, step string) {
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(r.out, "▶ %s\n", step)
}

func (r *Reporter) ShowStepResult(_ context.Context, step, detail string, err error) {
	if err != nil {
		red := color.New(color.FgRed)
		red.Fprintf(r.out, "✗ %s [%s]: ", step, kindLabel(err))

		dim := color.New(color.Faint)
		dim.Fprintln(r.out, truncate(err.Error(), maxDetailLen))
		return
	}

	green := color.New(color.FgGreen)
	if detail == "" {
		green.Fprintf(r.out, "✓ %s\n", step)
		return
	}
	green.Fprintf(r.out, "✓ %s: %s\n", step, truncate(detail, maxDetailLen))
}

func (r *Reporter) ShowSummary(_ context.Context, passed, failed int, elapsed time.Duration) {
	c := color.New(color.FgGreen, color.Bold)
	if failed > 0 {
		c = color.New(color.FgRed, color.Bold)
	}
	c.Fprintf(r.out, "\n%d passed, %d failed in %s\n", passed, failed, elapsed.Round(time.Millisecond))
}

func kindLabel(err error) string {
	var ee *entity.EngineError
	if errors.As(err, &ee) {
		return ee.Kind.Error()
	}
	if k := entity.KindOf(err); k != nil {
		return k.Error()
	}
	return "error"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

