package usecase

import (
	"context"
	"fmt"
	"time"

	"browser-harness/internal/application/port/input"
	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
)

// Step is one unit of a scenario. The returned detail is shown next to the step.
type Step struct {
	Name string
	Run  func(ctx context.Context, e input.Engine) (detail string, err error)
}

type Scenario struct {
	Name  string
	Steps []Step
}

type SmokeResult struct {
	Passed   int
	Failed   int
	Elapsed  time.Duration
	Failures map[string]error
}

type RunSmokeUseCase struct {
	engine   input.Engine
	reporter output.ReporterPort
	logger   output.LoggerPort
}

func NewRunSmokeUseCase(engine input.Engine, reporter output.ReporterPort, logger output.LoggerPort) *RunSmokeUseCase {
	return &RunSmokeUseCase{
		engine:   engine,
		reporter: reporter,
		logger:   logger.Named("smoke"),
	}
}

// Execute runs every scenario in a fresh browsing context. A failed step ends its
// scenario; the remaining scenarios still run.
func (uc *RunSmokeUseCase) Execute(ctx context.Context, scenarios []Scenario) (*SmokeResult, error) {
	start := time.Now()
	res := &SmokeResult{Failures: make(map[string]error)}

	for i, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		uc.reporter.ShowScenario(ctx, sc.Name, i+1, len(scenarios))
		if err := uc.runScenario(ctx, sc); err != nil {
			res.Failed++
			res.Failures[sc.Name] = err
			uc.logger.Warn("Scenario failed", "scenario", sc.Name, "error", err)
			continue
		}
		res.Passed++
		uc.logger.Info("Scenario passed", "scenario", sc.Name)
	}

	res.Elapsed = time.Since(start)
	uc.reporter.ShowSummary(ctx, res.Passed, res.Failed, res.Elapsed)
	return res, nil
}

func (uc *RunSmokeUseCase) runScenario(ctx context.Context, sc Scenario) (err error) {
	bc, err := uc.engine.NewContext(ctx)
	if err != nil {
		return fmt.Errorf("open context: %w", err)
	}
	defer func() {
		if cerr := uc.engine.CloseContext(ctx, bc); cerr != nil {
			uc.logger.Warn("Failed to close scenario context", "context", bc, "error", cerr)
		}
	}()
	if err := uc.engine.SwitchToContext(bc); err != nil {
		return err
	}
	if _, err := uc.engine.NewPage(ctx); err != nil {
		return fmt.Errorf("open page: %w", err)
	}

	for _, step := range sc.Steps {
		uc.reporter.ShowStepStart(ctx, step.Name)
		detail, err := step.Run(ctx, uc.engine)
		uc.reporter.ShowStepResult(ctx, step.Name, detail, err)
		if err != nil {
			return fmt.Errorf("%s: %w", step.Name, err)
		}
	}
	return nil
}

// WaitText polls the text of loc until it equals want.
func WaitText(ctx context.Context, e input.Engine, loc input.Locator, want string) (string, error) {
	r := e.WaitFor(ctx,
		func(ctx context.Context) (any, error) { return loc.Text(ctx) },
		func(v any) bool { return v == want },
		0)
	return settle(r, "text of "+loc.String(), want)
}

// WaitTitle polls the active page title until it equals want.
func WaitTitle(ctx context.Context, e input.Engine, want string) (string, error) {
	r := e.WaitFor(ctx,
		func(ctx context.Context) (any, error) { return e.Title(ctx) },
		func(v any) bool { return v == want },
		0)
	return settle(r, "title", want)
}

func settle(r entity.AssertionResult, what, want string) (string, error) {
	if r.Satisfied {
		return fmt.Sprintf("%s = %q after %d attempt(s)", what, want, r.Attempts), nil
	}
	e := entity.NewError(entity.ErrAssertionTimeout, "expect "+what)
	e.Detail = fmt.Sprintf("want %q, last %v", want, r.LastObserved)
	e.Err = r.LastErr
	return "", e
}
