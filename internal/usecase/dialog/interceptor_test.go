package dialog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/browser/memory"
	"browser-harness/internal/infrastructure/logger"
	"browser-harness/internal/infrastructure/metrics"
	"browser-harness/internal/usecase/dialog"
)

const alertsHTML = `<button id="confirm">Confirm</button><button id="prompt">Prompt</button><p id="result"></p>`

type fixture struct {
	b    *memory.Browser
	page entity.PageID
	ic   *dialog.Interceptor
	btn  map[string]entity.NodeRef
}

// pump forwards dialog events to the interceptor until the returned stop is called.
func setup(t *testing.T) (*fixture, func()) {
	t.Helper()
	b := memory.New()
	b.Route("http://site.test/alerts", alertsHTML)
	b.On(entity.ActionClick, "#confirm", func(ev *memory.Event) error {
		ok, err := ev.Confirm("I am a JS Confirm")
		if err != nil {
			return err
		}
		if ok {
			return ev.Page.SetText("#result", "You clicked: Ok")
		}
		return ev.Page.SetText("#result", "You clicked: Cancel")
	})
	b.On(entity.ActionClick, "#prompt", func(ev *memory.Event) error {
		text, ok, err := ev.Prompt("I am a JS prompt", "")
		if err != nil {
			return err
		}
		if !ok {
			return ev.Page.SetText("#result", "You entered: null")
		}
		return ev.Page.SetText("#result", "You entered: "+text)
	})

	ctx, cancel := context.WithCancel(context.Background())
	bc, err := b.NewContext(ctx)
	require.NoError(t, err)
	pid, err := b.NewPage(ctx, bc)
	require.NoError(t, err)
	require.NoError(t, b.Navigate(ctx, pid, "http://site.test/alerts"))

	ic := dialog.New(b, pid, logger.NewNop(), metrics.Nop{})
	events, err := b.Subscribe(ctx, pid)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if ev.Kind == entity.EventDialog {
				ic.Handle(ctx, *ev.Dialog)
			}
		}
	}()

	f := &fixture{b: b, page: pid, ic: ic, btn: make(map[string]entity.NodeRef)}
	scope := entity.ScopeRef{Page: pid, Frame: entity.FrameID(string(pid) + ":main"), Kind: entity.FrameKindDocument}
	for _, id := range []string{"confirm", "prompt"} {
		refs, err := b.QueryNodes(ctx, scope, entity.Query{Engine: entity.QueryCSS, Body: "#" + id})
		require.NoError(t, err)
		f.btn[id] = refs[0]
	}
	return f, func() {
		cancel()
		wg.Wait()
		_ = b.Close()
	}
}

func (f *fixture) click(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.b.Dispatch(context.Background(), f.btn[id], entity.InputEvent{Kind: entity.ActionClick}))
}

func TestInterceptor_AcceptedConfirmIsRecorded(t *testing.T) {
	defer goleak.VerifyNone(t)
	f, stop := setup(t)
	defer stop()

	outcomes, err := f.ic.Scoped(context.Background(), dialog.Accept(""), func(context.Context) error {
		f.click(t, "confirm")
		return nil
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Handled)
	assert.Equal(t, entity.DialogConfirm, outcomes[0].Event.Kind)
	assert.Equal(t, "I am a JS Confirm", outcomes[0].Event.Message)
	assert.Empty(t, dialog.Warnings(outcomes))
	assert.Equal(t, "You clicked: Ok", f.b.Page(f.page).Text("#result"))
	assert.Zero(t, f.ic.Registered())
}

func TestInterceptor_PromptReceivesText(t *testing.T) {
	defer goleak.VerifyNone(t)
	f, stop := setup(t)
	defer stop()

	var seen []entity.DialogEvent
	release := f.ic.WithHandler(dialog.Record(&seen, entity.DialogResponse{Accept: true, Text: "hello"}))
	f.click(t, "prompt")
	release()

	require.Len(t, seen, 1)
	assert.Equal(t, entity.DialogPrompt, seen[0].Kind)
	assert.Equal(t, "You entered: hello", f.b.Page(f.page).Text("#result"))
}

func TestInterceptor_UnhandledDialogIsDismissedWithWarning(t *testing.T) {
	defer goleak.VerifyNone(t)
	f, stop := setup(t)
	defer stop()

	mark := f.ic.Mark()
	f.click(t, "confirm")
	outcomes := f.ic.Since(mark)

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Handled)
	assert.False(t, outcomes[0].Response.Accept)
	assert.Equal(t, "You clicked: Cancel", f.b.Page(f.page).Text("#result"))

	warnings := dialog.Warnings(outcomes)
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], entity.ErrUnhandledDialog)
	assert.True(t, entity.IsWarning(warnings[0]))
}

func TestInterceptor_InnermostHandlerWins(t *testing.T) {
	defer goleak.VerifyNone(t)
	f, stop := setup(t)
	defer stop()

	outer := f.ic.WithHandler(dialog.Accept(""))
	defer outer()

	_, err := f.ic.Scoped(context.Background(), dialog.Dismiss(), func(context.Context) error {
		f.click(t, "confirm")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "You clicked: Cancel", f.b.Page(f.page).Text("#result"))

	f.click(t, "confirm")
	assert.Equal(t, "You clicked: Ok", f.b.Page(f.page).Text("#result"))
}

func TestInterceptor_ReleaseOnFailureAndPanic(t *testing.T) {
	defer goleak.VerifyNone(t)
	f, stop := setup(t)
	defer stop()

	_, err := f.ic.Scoped(context.Background(), dialog.Accept(""), func(context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, f.ic.Registered())

	assert.Panics(t, func() {
		_, _ = f.ic.Scoped(context.Background(), dialog.Accept(""), func(context.Context) error {
			panic("step failed")
		})
	})
	assert.Zero(t, f.ic.Registered())
}

func TestInterceptor_ReleaseIsIdempotentAndOutOfOrder(t *testing.T) {
	ic := dialog.New(memory.New(), "page", logger.NewNop(), metrics.Nop{})
	a := ic.WithHandler(dialog.Accept("a"))
	b := ic.WithHandler(dialog.Accept("b"))
	a()
	a()
	assert.Equal(t, 1, ic.Registered())
	b()
	assert.Zero(t, ic.Registered())
}

func TestInterceptor_PanickingHandlerDismisses(t *testing.T) {
	defer goleak.VerifyNone(t)
	f, stop := setup(t)
	defer stop()

	release := f.ic.WithHandler(func(entity.DialogEvent) entity.DialogResponse { panic("bad handler") })
	defer release()
	mark := f.ic.Mark()
	f.click(t, "confirm")

	outcomes := f.ic.Since(mark)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Handled)
	assert.Equal(t, "You clicked: Cancel", f.b.Page(f.page).Text("#result"))
}
