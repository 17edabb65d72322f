package assertion_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/usecase/assertion"
)

type element struct {
	mu     sync.Mutex
	states []entity.NodeState
}

func (e *element) Snapshot(context.Context) ([]entity.NodeState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]entity.NodeState(nil), e.states...), nil
}

func (e *element) String() string { return "css=#flash" }

func (e *element) set(states ...entity.NodeState) {
	e.mu.Lock()
	e.states = states
	e.mu.Unlock()
}

var box = entity.Rect{Width: 100, Height: 20}

func flash() entity.NodeState {
	return entity.NodeState{
		Attached: true, Visible: true, Box: box, Tag: "div",
		Text:       "  You logged into\n a secure area! ",
		Value:      "",
		Attributes: map[string]string{"id": "flash", "class": "flash success"},
	}
}

func TestElementExpectations(t *testing.T) {
	e, _ := newEngine()
	el := &element{}
	el.set(flash())
	input := &element{}
	input.set(entity.NodeState{Attached: true, Visible: true, Box: box, Tag: "input", Value: "tomsmith", Checked: true,
		Attributes: map[string]string{"type": "checkbox"}})

	tests := []struct {
		name string
		x    assertion.Expectation
		want bool
	}{
		{"visible", assertion.Visible(el), true},
		{"hidden", assertion.Hidden(el), false},
		{"text normalized", assertion.TextEquals(el, "You logged into a secure area!"), true},
		{"text contains", assertion.TextContains(el, "secure  area"), true},
		{"text differs", assertion.TextEquals(el, "Your username is invalid!"), false},
		{"count", assertion.Count(el, 1), true},
		{"attribute", assertion.AttributeEquals(el, "id", "flash"), true},
		{"missing attribute", assertion.AttributeEquals(el, "role", ""), false},
		{"class", assertion.HasClass(el, "success"), true},
		{"class prefix only", assertion.HasClass(el, "succ"), false},
		{"value", assertion.ValueEquals(input, "tomsmith"), true},
		{"checked", assertion.Checked(input), true},
		{"not checked", assertion.Checked(input).Not(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Check(context.Background(), tt.x, 50*time.Millisecond)
			assert.Equal(t, tt.want, res.Satisfied, "%s observed %v err %v", res.Description, res.LastObserved, res.LastErr)
		})
	}
}

func TestHidden_NoMatchCountsAsHidden(t *testing.T) {
	e, _ := newEngine()
	el := &element{}

	res := e.Check(context.Background(), assertion.Hidden(el), time.Second)

	assert.True(t, res.Satisfied)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "expect(css=#flash).toBeHidden()", res.Description)
}

func TestNot_NoMatchSatisfiesValueExpectations(t *testing.T) {
	e, _ := newEngine()
	el := &element{}

	for _, x := range []assertion.Expectation{
		assertion.TextEquals(el, "You logged into a secure area!").Not(),
		assertion.HasClass(el, "hidden").Not(),
		assertion.Checked(el).Not(),
		assertion.Visible(el).Not(),
	} {
		res := e.Check(context.Background(), x, time.Second)
		assert.True(t, res.Satisfied, res.Description)
		assert.Equal(t, 1, res.Attempts, res.Description)
		assert.NoError(t, res.LastErr, res.Description)
	}

	res := e.Check(context.Background(), assertion.HasClass(el, "hidden"), 50*time.Millisecond)
	assert.False(t, res.Satisfied)
	assert.ErrorIs(t, res.LastErr, entity.ErrElementNotFound)
}

func TestNot_AmbiguousMatchStaysUnmet(t *testing.T) {
	e, _ := newEngine()
	el := &element{}
	el.set(flash(), flash())

	res := e.Check(context.Background(), assertion.HasClass(el, "hidden").Not(), 50*time.Millisecond)
	assert.False(t, res.Satisfied)
	assert.ErrorIs(t, res.LastErr, entity.ErrAmbiguousLocator)
}

func TestVisible_WaitsForElement(t *testing.T) {
	e, _ := newEngine()
	el := &element{}
	time.AfterFunc(60*time.Millisecond, func() { el.set(flash()) })

	res := e.Check(context.Background(), assertion.Visible(el), time.Second)

	assert.True(t, res.Satisfied)
	assert.Greater(t, res.Attempts, 1)
}

func TestSingleMatchRequired(t *testing.T) {
	e, _ := newEngine()
	el := &element{}
	el.set(flash(), flash())

	res := e.Check(context.Background(), assertion.TextEquals(el, "x"), 50*time.Millisecond)
	assert.False(t, res.Satisfied)
	assert.ErrorIs(t, res.LastErr, entity.ErrAmbiguousLocator)

	el.set()
	res = e.Check(context.Background(), assertion.TextEquals(el, "x"), 50*time.Millisecond)
	assert.ErrorIs(t, res.LastErr, entity.ErrElementNotFound)

	res = e.Check(context.Background(), assertion.Count(el, 0), 50*time.Millisecond)
	assert.True(t, res.Satisfied)
}
