package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-harness/internal/domain/entity"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		want     []Part
	}{
		{"css default", "#username", []Part{{entity.StrategyCSS, "#username"}}},
		{"explicit engine", "css=button.primary", []Part{{entity.StrategyCSS, "button.primary"}}},
		{"xpath autodetect", "//h2[@id='title']", []Part{{entity.StrategyXPath, "//h2[@id='title']"}}},
		{"xpath in parens", "(//li)[2]", []Part{{entity.StrategyXPath, "(//li)[2]"}}},
		{"parent xpath", "..", []Part{{entity.StrategyXPath, ".."}}},
		{"quoted text", `"Click Here"`, []Part{{entity.StrategyText, `"Click Here"`}}},
		{"testid alias", "data-testid=submit", []Part{{entity.StrategyTestID, "submit"}}},
		{"chain", "form#login >> text=Login", []Part{
			{entity.StrategyCSS, "form#login"},
			{entity.StrategyText, "Login"},
		}},
		{"chevrons inside quotes", `text=">> next"`, []Part{{entity.StrategyText, `">> next"`}}},
		{"attribute with equals stays css", `input[name="q"]`, []Part{{entity.StrategyCSS, `input[name="q"]`}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelector(tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSelector_Errors(t *testing.T) {
	for _, sel := range []string{"", "   ", "css=a >> ", `text="open`, "bogus=x"} {
		t.Run(sel, func(t *testing.T) {
			_, err := ParseSelector(sel)
			assert.ErrorIs(t, err, entity.ErrInvalidParams)
		})
	}
}

func TestMatchText(t *testing.T) {
	assert.True(t, matchText("  Log   in ", "log IN", false))
	assert.False(t, matchText("Log in", "Log", true))
	assert.True(t, matchText("Log\n in", "Log in", true))
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, "'plain'", xpathLiteral("plain"))
	assert.Equal(t, `"it's"`, xpathLiteral("it's"))
	assert.Equal(t, `concat('a"b', "'", 'c')`, xpathLiteral(`a"b'c`))
}

func TestParseRole(t *testing.T) {
	role, name, err := parseRole(`button[name="Log in"]`)
	require.NoError(t, err)
	assert.Equal(t, "button", role)
	assert.Equal(t, "Log in", name)

	_, _, err = parseRole("button[")
	assert.ErrorIs(t, err, entity.ErrInvalidParams)
}
