package action_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/browser/memory"
	"browser-harness/internal/infrastructure/logger"
	"browser-harness/internal/infrastructure/metrics"
	"browser-harness/internal/usecase/action"
	"browser-harness/internal/usecase/dialog"
	"browser-harness/internal/usecase/frametree"
	"browser-harness/internal/usecase/locator"
)

const origin = "http://the-internet.test"

const pageHTML = `<html><head><title>The Internet</title></head><body>
<form id="login" action="/authenticate">
  <input id="username" name="username" type="text">
  <input id="password" name="password" type="password">
  <button type="submit">Login</button>
</form>
<div id="flash"></div>
<button id="hidden" style="display:none">Hidden</button>
<button id="disabled" disabled>Disabled</button>
<button id="covered" data-obscured>Covered</button>
<button id="moving" data-animating="3">Moving</button>
<button id="sliding" data-moving>Sliding</button>
<input id="agree" type="checkbox">
<input id="upload" type="file">
<button id="confirm">Confirm</button>
<p id="result"></p>
<div id="column-a" draggable="true">A</div><div id="column-b" data-drop="b">B</div>
</body></html>`

type dialogs struct {
	ic *dialog.Interceptor
}

func (d dialogs) Interceptor(entity.PageID) (*dialog.Interceptor, bool) {
	return d.ic, true
}

type fixture struct {
	b    *memory.Browser
	page entity.PageID
	tree *frametree.Tree
	res  *locator.Resolver
	exec *action.Executor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	b := memory.New()
	b.Route(origin+"/login", pageHTML)
	b.Route(origin+"/secure", `<html><head><title>Secure Area</title></head><body><h2>Secure Area</h2></body></html>`)
	b.On(entity.ActionClick, "#login button", func(ev *memory.Event) error {
		ev.PreventDefault()
		if ev.Page.Value("#username") == "tomsmith" && ev.Page.Value("#password") == "SuperSecretPassword!" {
			return ev.Page.Navigate("/secure")
		}
		return ev.Page.SetText("#flash", "Your username is invalid!")
	})
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
	b.On(entity.ActionDragTo, "#column-a", func(ev *memory.Event) error {
		return ev.Page.SetText("#result", "dropped on "+ev.TargetAttr("data-drop"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	bc, err := b.NewContext(ctx)
	require.NoError(t, err)
	pid, err := b.NewPage(ctx, bc)
	require.NoError(t, err)
	require.NoError(t, b.Navigate(ctx, pid, origin+"/login"))

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
	t.Cleanup(func() {
		cancel()
		wg.Wait()
		_ = b.Close()
	})

	timeouts := &entity.Timeouts{Action: 300 * time.Millisecond, ActionPollInterval: 10 * time.Millisecond}
	return &fixture{
		b:    b,
		page: pid,
		tree: frametree.New(b, pid),
		res:  locator.NewResolver(b, logger.NewNop(), metrics.Nop{}, 10*time.Millisecond),
		exec: action.NewExecutor(b, action.NewRegistry(), dialogs{ic: ic}, timeouts, logger.NewNop(), metrics.Nop{}),
	}
}

func (f *fixture) handle(t *testing.T, sel string) *locator.Handle {
	t.Helper()
	root, err := f.tree.Root(context.Background())
	require.NoError(t, err)
	hs, err := f.res.Resolve(context.Background(), root, entity.CSS(sel), locator.Single, 200*time.Millisecond)
	require.NoError(t, err)
	return hs[0]
}

func (f *fixture) do(t *testing.T, sel string, kind entity.ActionKind, p entity.ActionParams) (*entity.ActionResult, error) {
	t.Helper()
	return f.exec.Perform(context.Background(), f.handle(t, sel), kind, p)
}

func TestPerform_LoginScenario(t *testing.T) {
	f := setup(t)

	_, err := f.do(t, "#username", entity.ActionFill, entity.ActionParams{Text: "tomsmith"})
	require.NoError(t, err)
	_, err = f.do(t, "#password", entity.ActionFill, entity.ActionParams{Text: "SuperSecretPassword!"})
	require.NoError(t, err)
	res, err := f.do(t, "#login button", entity.ActionClick, entity.ActionParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, "Secure Area", f.b.Page(f.page).Title())
}

func TestPerform_NotActionableReportsFirstMissingProperty(t *testing.T) {
	f := setup(t)
	tests := []struct {
		sel  string
		want entity.ActionabilityProperty
	}{
		{"#hidden", entity.PropVisible},
		{"#covered", entity.PropReceivesEvents},
		{"#disabled", entity.PropEnabled},
		{"#sliding", entity.PropStable},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			start := time.Now()
			res, err := f.do(t, tt.sel, entity.ActionClick, entity.ActionParams{Timeout: 150 * time.Millisecond})
			require.Error(t, err)
			assert.ErrorIs(t, err, entity.ErrActionabilityTimeout)
			assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)

			var ee *entity.EngineError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.want, ee.Property)
			require.NotNil(t, ee.State)
			assert.True(t, ee.State.Attached)
			assert.False(t, ee.State.Has(tt.want))
			assert.Contains(t, err.Error(), string(tt.want)+"=false")
			assert.Greater(t, res.Attempts, 1)
		})
	}
}

func TestPerform_WaitsForAnimationToSettle(t *testing.T) {
	f := setup(t)
	res, err := f.do(t, "#moving", entity.ActionClick, entity.ActionParams{})
	require.NoError(t, err)
	assert.Greater(t, res.Attempts, 1)
	assert.True(t, res.State.Stable)
}

func TestPerform_StabilitySamplesSpanAnInterval(t *testing.T) {
	f := setup(t)
	h := f.handle(t, "#agree")

	start := time.Now()
	res, err := f.exec.Perform(context.Background(), h, entity.ActionCheck, entity.ActionParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestPerform_ForceSkipsChecks(t *testing.T) {
	f := setup(t)
	_, err := f.do(t, "#covered", entity.ActionClick, entity.ActionParams{Force: true})
	assert.NoError(t, err)
}

func TestPerform_TrialDoesNotDispatch(t *testing.T) {
	f := setup(t)
	_, err := f.do(t, "#agree", entity.ActionCheck, entity.ActionParams{Trial: true})
	require.NoError(t, err)

	checked, err := f.handle(t, "#agree").Checked(context.Background())
	require.NoError(t, err)
	assert.False(t, checked)

	_, err = f.do(t, "#agree", entity.ActionCheck, entity.ActionParams{})
	require.NoError(t, err)
	checked, err = f.handle(t, "#agree").Checked(context.Background())
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestPerform_ReresolvesOnceAfterRerender(t *testing.T) {
	f := setup(t)
	h := f.handle(t, "#username")
	require.NoError(t, f.b.Page(f.page).SetHTML("#login", `<input id="username" type="text">`))

	res, err := f.exec.Perform(context.Background(), h, entity.ActionFill, entity.ActionParams{Text: "tomsmith"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Restarts)
	assert.NotEqual(t, h.Ref().ID, res.Node.ID)
	assert.Equal(t, "tomsmith", f.b.Page(f.page).Value("#username"))
}

func TestPerform_StaleElement(t *testing.T) {
	f := setup(t)
	h := f.handle(t, "#agree")
	require.NoError(t, f.b.Page(f.page).Remove("#agree"))

	res, err := f.exec.Perform(context.Background(), h, entity.ActionClick, entity.ActionParams{Timeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrStaleElement)
	assert.Equal(t, 1, res.Restarts)
}

func TestPerform_ValidatesParams(t *testing.T) {
	f := setup(t)
	tests := []struct {
		name string
		sel  string
		kind entity.ActionKind
		p    entity.ActionParams
	}{
		{"press without key", "#username", entity.ActionPress, entity.ActionParams{}},
		{"type without text", "#username", entity.ActionType, entity.ActionParams{}},
		{"select without values", "#username", entity.ActionSelectOption, entity.ActionParams{}},
		{"missing file", "#upload", entity.ActionSetFiles, entity.ActionParams{Files: []string{"/no/such/file.txt"}}},
		{"drag without target", "#column-a", entity.ActionDragTo, entity.ActionParams{}},
		{"unknown kind", "#username", entity.ActionKind("teleport"), entity.ActionParams{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.do(t, tt.sel, tt.kind, tt.p)
			assert.ErrorIs(t, err, entity.ErrInvalidParams)
		})
	}
}

func TestPerform_AcceptedDialogIsNotAWarning(t *testing.T) {
	f := setup(t)
	res, err := f.do(t, "#confirm", entity.ActionClick, entity.ActionParams{OnDialog: dialog.Accept("")})
	require.NoError(t, err)

	assert.Empty(t, res.Warnings)
	require.Len(t, res.Dialogs, 1)
	assert.True(t, res.Dialogs[0].Handled)
	resp, ok := res.DialogValue()
	require.True(t, ok)
	assert.True(t, resp.Accept)
	assert.Equal(t, "You clicked: Ok", f.b.Page(f.page).Text("#result"))
}

func TestPerform_UnhandledDialogWarns(t *testing.T) {
	f := setup(t)
	res, err := f.do(t, "#confirm", entity.ActionClick, entity.ActionParams{})
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], entity.ErrUnhandledDialog)
	assert.Equal(t, "You clicked: Cancel", f.b.Page(f.page).Text("#result"))
}

func TestPerform_SetFilesAndDrag(t *testing.T) {
	f := setup(t)
	file := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(file, []byte("hi"), 0o644))

	_, err := f.do(t, "#upload", entity.ActionSetFiles, entity.ActionParams{Files: []string{file}})
	require.NoError(t, err)
	assert.Equal(t, []string{file}, f.b.Page(f.page).Files("#upload"))

	target := f.handle(t, "#column-b").Ref()
	_, err = f.do(t, "#column-a", entity.ActionDragTo, entity.ActionParams{Target: &target})
	require.NoError(t, err)
	assert.Equal(t, "dropped on b", f.b.Page(f.page).Text("#result"))
}

func TestRegistry_CoversAllKinds(t *testing.T) {
	r := action.NewRegistry()
	assert.Len(t, r.Kinds(), 13)
	click, ok := r.Get(entity.ActionClick)
	require.True(t, ok)
	assert.Equal(t, entity.ActionabilityOrder[:5], click.Required())
}
