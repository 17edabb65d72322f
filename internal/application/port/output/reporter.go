package output

import (
	"context"
	"time"
)

// ReporterPort renders scenario progress for a human watching a run.
type ReporterPort interface {
	ShowScenario(ctx context.Context, name string, index, total int)
	ShowStepStart(ctx context.Context, step string)
	ShowStepResult(ctx context.Context, step, detail string, err error)
	ShowSummary(ctx context.Context, passed, failed int, elapsed time.Duration)
}
