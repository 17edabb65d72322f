package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/config"
	"browser-harness/internal/infrastructure/env"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load(env.FromMap(nil))

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, entity.DefaultNavigationTimeout, cfg.Timeouts.NavigationTimeout())
	assert.Equal(t, entity.DefaultAssertionTimeout, cfg.Timeouts.AssertionTimeout())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, "127.0.0.1:8765", cfg.FixtureAddr)
}

func TestLoad_Overrides(t *testing.T) {
	cfg := config.Load(env.FromMap(map[string]string{
		"HARNESS_HEADLESS":       "false",
		"HARNESS_SLOW_MOTION":    "250ms",
		"HARNESS_BROWSER_BIN":    "/usr/bin/chromium",
		"HARNESS_ACTION_TIMEOUT": "1500",
		"HARNESS_LOG_LEVEL":      "debug",
		"HARNESS_FIXTURE_ADDR":   ":0",
	}))

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.Browser.SlowMotion)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.Bin)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeouts.ActionTimeout())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":0", cfg.FixtureAddr)
}
