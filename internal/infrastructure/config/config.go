// Package config maps HARNESS_* settings onto entity.Config.
package config

import (
	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
)

const defaultFixtureAddr = "127.0.0.1:8765"

// Load reads the settings. An empty MetricsAddr leaves the metrics endpoint off.
func Load(env output.ConfigPort) entity.Config {
	return entity.Config{
		Browser: entity.BrowserConfig{
			Headless:   env.GetBool("HARNESS_HEADLESS", true),
			SlowMotion: env.GetDuration("HARNESS_SLOW_MOTION", 0),
			Bin:        env.Get("HARNESS_BROWSER_BIN"),
			NoSandbox:  env.GetBool("HARNESS_NO_SANDBOX", false),
			DevTools:   env.GetBool("HARNESS_DEVTOOLS", false),
			Trace:      env.GetBool("HARNESS_TRACE", false),
		},
		Timeouts: entity.Timeouts{
			Navigation:         env.GetDuration("HARNESS_NAV_TIMEOUT", entity.DefaultNavigationTimeout),
			Action:             env.GetDuration("HARNESS_ACTION_TIMEOUT", entity.DefaultActionTimeout),
			Assertion:          env.GetDuration("HARNESS_ASSERT_TIMEOUT", entity.DefaultAssertionTimeout),
			PollInterval:       env.GetDuration("HARNESS_POLL_INTERVAL", entity.DefaultPollInterval),
			ActionPollInterval: env.GetDuration("HARNESS_ACTION_POLL_INTERVAL", entity.DefaultActionPollInterval),
		},
		LogLevel:    env.GetWithDefault("HARNESS_LOG_LEVEL", "info"),
		LogDir:      env.Get("HARNESS_LOG_DIR"),
		MetricsAddr: env.Get("HARNESS_METRICS_ADDR"),
		FixtureAddr: env.GetWithDefault("HARNESS_FIXTURE_ADDR", defaultFixtureAddr),
	}
}
