package rod_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/browser/rod"
	"browser-harness/internal/infrastructure/fixtures"
	"browser-harness/internal/infrastructure/logger"
	"browser-harness/internal/infrastructure/metrics"
	"browser-harness/internal/usecase/action"
	"browser-harness/internal/usecase/assertion"
	"browser-harness/internal/usecase/contexts"
	"browser-harness/internal/usecase/locator"
	"browser-harness/internal/usecase/session"
)

var timeouts = &entity.Timeouts{
	Navigation: 10 * time.Second,
	Action:     3 * time.Second,
	Assertion:  3 * time.Second,
}

func setup(t *testing.T) (*session.Session, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("real browser tests are skipped in short mode")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no local Chromium found")
	}

	srv := httptest.NewServer(fixtures.Router(false))
	t.Cleanup(srv.Close)

	log := logger.NewNop()
	ch, err := rod.New(context.Background(), entity.BrowserConfig{Headless: true, NoSandbox: true}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	m := metrics.Nop{}
	manager := contexts.NewManager(ch, timeouts, log, m)
	s := session.New(
		manager,
		locator.NewResolver(ch, log, m, timeouts.Poll()),
		action.NewExecutor(ch, action.NewRegistry(), manager, timeouts, log, m),
		assertion.NewEngine(timeouts, log, m),
		nil,
		timeouts,
		log,
	)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, srv.URL
}

func TestChannel_Login(t *testing.T) {
	s, base := setup(t)
	ctx := context.Background()

	require.NoError(t, s.Goto(ctx, base+"/login"))
	_, err := s.CSS("#username").Fill(ctx, fixtures.Username)
	require.NoError(t, err)
	_, err = s.GetByLabel("Password").Fill(ctx, fixtures.Password)
	require.NoError(t, err)
	_, err = s.GetByRole("button", "Login").Click(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Must(ctx, assertion.TitleEquals(s.Page(), "Secure Area")))
	require.NoError(t, s.Must(ctx, assertion.HasClass(s.CSS("#flash"), "success")))
}

func TestChannel_HiddenElementIsNotActionable(t *testing.T) {
	s, base := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Goto(ctx, base+"/login"))

	_, err := s.CSS("#hidden").Click(ctx, session.WithTimeout(300*time.Millisecond))
	require.ErrorIs(t, err, entity.ErrActionabilityTimeout)
	var ee *entity.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, entity.PropVisible, ee.Property)
}

func TestChannel_Popup(t *testing.T) {
	s, base := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Goto(ctx, base+"/windows"))

	id, err := s.WaitForPopup(ctx, func(ctx context.Context) error {
		_, err := s.GetByText("Click Here").Click(ctx)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, s.SwitchToPage(id))
	require.NoError(t, s.Must(ctx, assertion.TitleEquals(s.Page(), "New Window")))
}

func TestChannel_Dialogs(t *testing.T) {
	s, base := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Goto(ctx, base+"/javascript_alerts"))

	res, err := s.CSS("#confirm").Click(ctx, session.OnDialog(func(entity.DialogEvent) entity.DialogResponse {
		return entity.DialogResponse{Accept: true}
	}))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Dialogs, 1)
	assert.Equal(t, entity.DialogConfirm, res.Dialogs[0].Event.Kind)
	require.NoError(t, s.Must(ctx, assertion.TextEquals(s.CSS("#result"), "You clicked: Ok")))
}

func TestChannel_FramesAndShadow(t *testing.T) {
	s, base := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Goto(ctx, base+"/iframe"))

	editor := s.CSS("#tinymce", entity.FrameSelector{Selector: "#mce"})
	require.NoError(t, s.Must(ctx, assertion.TextContains(editor, "Your content goes here.")))

	inner := s.CSS("button.inner", entity.FrameSelector{Selector: "#card", Shadow: true})
	_, err := inner.Click(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Must(ctx, assertion.TextEquals(inner, "Pressed")))
}

func TestChannel_Forms(t *testing.T) {
	s, base := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Goto(ctx, base+"/forms"))

	_, err := s.CSS("#cb1").Check(ctx)
	require.NoError(t, err)
	_, err = s.CSS("#cb2").Uncheck(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Must(ctx, assertion.Checked(s.CSS("#cb1"))))
	require.NoError(t, s.Must(ctx, assertion.Checked(s.CSS("#cb2")).Not()))

	_, err = s.CSS("#dropdown").SelectOption(ctx, []string{"Option 2"})
	require.NoError(t, err)
	require.NoError(t, s.Must(ctx, assertion.ValueEquals(s.CSS("#dropdown"), "2")))

	_, err = s.CSS("#disabled").Click(ctx, session.WithTimeout(300*time.Millisecond))
	require.ErrorIs(t, err, entity.ErrActionabilityTimeout)
	require.NoError(t, s.Must(ctx, assertion.TextEquals(s.GetByTestID("status"), "ready")))
}

func TestChannel_AnimatedElementIsNotStable(t *testing.T) {
	s, base := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Goto(ctx, base+"/forms"))

	_, err := s.CSS("#sliding").Click(ctx, session.WithTimeout(400*time.Millisecond))
	require.ErrorIs(t, err, entity.ErrActionabilityTimeout)
	var ee *entity.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, entity.PropStable, ee.Property)
}
