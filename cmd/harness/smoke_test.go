package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectScenarios(t *testing.T) {
	all := fixtureScenarios("http://127.0.0.1:1")

	got, err := selectScenarios(all, nil)
	require.NoError(t, err)
	assert.Len(t, got, len(all))

	got, err = selectScenarios(all, []string{"popup", "login"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "popup", got[0].Name)
	assert.Equal(t, "login", got[1].Name)

	_, err = selectScenarios(all, []string{"nope"})
	assert.ErrorContains(t, err, `unknown scenario "nope"`)
}

func TestFixtureScenarios_StartWithNavigation(t *testing.T) {
	for _, sc := range fixtureScenarios("http://example.test") {
		require.NotEmpty(t, sc.Steps, sc.Name)
		assert.Contains(t, sc.Steps[0].Name, "open http://example.test/", sc.Name)
	}
}
