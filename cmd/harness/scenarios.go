package main

import (
	"context"
	"fmt"

	"browser-harness/internal/application/port/input"
	"browser-harness/internal/application/usecase"
	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/fixtures"
)

func step(name string, run func(ctx context.Context, e input.Engine) (string, error)) usecase.Step {
	return usecase.Step{Name: name, Run: run}
}

func visit(url string) usecase.Step {
	return step("open "+url, func(ctx context.Context, e input.Engine) (string, error) {
		return "", e.Goto(ctx, url)
	})
}

func act(name string, f func(ctx context.Context, e input.Engine) (*entity.ActionResult, error)) usecase.Step {
	return step(name, func(ctx context.Context, e input.Engine) (string, error) {
		res, err := f(ctx, e)
		if err != nil {
			return "", err
		}
		if len(res.Warnings) > 0 {
			return fmt.Sprintf("%d warning(s): %v", len(res.Warnings), res.Warnings[0]), nil
		}
		return "", nil
	})
}

func expectText(loc entity.Locator, want string, frames ...entity.FrameSelector) usecase.Step {
	return step(fmt.Sprintf("expect %s to read %q", loc, want), func(ctx context.Context, e input.Engine) (string, error) {
		return usecase.WaitText(ctx, e, e.Locator(loc, frames...), want)
	})
}

func expectTitle(want string) usecase.Step {
	return step(fmt.Sprintf("expect title %q", want), func(ctx context.Context, e input.Engine) (string, error) {
		return usecase.WaitTitle(ctx, e, want)
	})
}

func fixtureScenarios(base string) []usecase.Scenario {
	editor := entity.FrameSelector{Selector: "#mce"}
	card := entity.FrameSelector{Selector: "#card", Shadow: true}

	return []usecase.Scenario{
		{
			Name: "login",
			Steps: []usecase.Step{
				visit(base + "/login"),
				act("fill username", func(ctx context.Context, e input.Engine) (*entity.ActionResult, error) {
					return e.Locator(entity.CSS("#username")).Fill(ctx, fixtures.Username)
				}),
				act("fill password", func(ctx context.Context, e input.Engine) (*entity.ActionResult, error) {
					return e.Locator(entity.Label("Password")).Fill(ctx, fixtures.Password)
				}),
				act("submit", func(ctx context.Context, e input.Engine) (*entity.ActionResult, error) {
					return e.Locator(entity.Role("button", "Login")).Click(ctx)
				}),
				expectTitle("Secure Area"),
			},
		},
		{
			Name: "popup",
			Steps: []usecase.Step{
				visit(base + "/windows"),
				step("open new window", func(ctx context.Context, e input.Engine) (string, error) {
					id, err := e.WaitForPopup(ctx, func(ctx context.Context) error {
						_, err := e.Locator(entity.Text("Click Here")).Click(ctx)
						return err
					})
					if err != nil {
						return "", err
					}
					return string(id), e.SwitchToPage(id)
				}),
				expectTitle("New Window"),
			},
		},
		{
			Name: "dialogs",
			Steps: []usecase.Step{
				visit(base + "/javascript_alerts"),
				step("accept confirm", func(ctx context.Context, e input.Engine) (string, error) {
					release, err := e.WithDialogHandler(func(entity.DialogEvent) entity.DialogResponse {
						return entity.DialogResponse{Accept: true}
					})
					if err != nil {
						return "", err
					}
					defer release()
					res, err := e.Locator(entity.CSS("#confirm")).Click(ctx)
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%d dialog(s) handled", len(res.Dialogs)), nil
				}),
				expectText(entity.CSS("#result"), "You clicked: Ok"),
			},
		},
		{
			Name: "frames",
			Steps: []usecase.Step{
				visit(base + "/iframe"),
				act("focus editor", func(ctx context.Context, e input.Engine) (*entity.ActionResult, error) {
					return e.Locator(entity.CSS("#tinymce"), editor).Click(ctx)
				}),
				expectText(entity.CSS("#tinymce"), "Your content goes here.", editor),
			},
		},
		{
			Name: "shadow",
			Steps: []usecase.Step{
				visit(base + "/iframe"),
				act("press shadow button", func(ctx context.Context, e input.Engine) (*entity.ActionResult, error) {
					return e.Locator(entity.CSS("button.inner"), card).Click(ctx)
				}),
				expectText(entity.CSS("button.inner"), "Pressed", card),
			},
		},
		{
			Name: "forms",
			Steps: []usecase.Step{
				visit(base + "/forms"),
				act("check first box", func(ctx context.Context, e input.Engine) (*entity.ActionResult, error) {
					return e.Locator(entity.CSS("#cb1")).Check(ctx)
				}),
				act("uncheck second box", func(ctx context.Context, e input.Engine) (*entity.ActionResult, error) {
					return e.Locator(entity.CSS("#cb2")).Uncheck(ctx)
				}),
				act("choose option 2", func(ctx context.Context, e input.Engine) (*entity.ActionResult, error) {
					return e.Locator(entity.CSS("#dropdown")).SelectOption(ctx, []string{"Option 2"})
				}),
				expectText(entity.TestID("status"), "ready"),
			},
		},
	}
}
