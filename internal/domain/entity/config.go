package entity

import "time"

const (
	DefaultNavigationTimeout  = 30 * time.Second
	DefaultActionTimeout      = 30 * time.Second
	DefaultAssertionTimeout   = 5 * time.Second
	DefaultPollInterval       = 100 * time.Millisecond
	DefaultActionPollInterval = 50 * time.Millisecond
)

// Timeouts resolves wait bounds. A zero field falls back to the parent, then to the
// package defaults.
type Timeouts struct {
	Parent             *Timeouts
	Navigation         time.Duration
	Action             time.Duration
	Assertion          time.Duration
	PollInterval       time.Duration
	ActionPollInterval time.Duration
}

func (t *Timeouts) NavigationTimeout() time.Duration {
	return t.pick(func(x *Timeouts) time.Duration { return x.Navigation }, DefaultNavigationTimeout)
}

func (t *Timeouts) ActionTimeout() time.Duration {
	return t.pick(func(x *Timeouts) time.Duration { return x.Action }, DefaultActionTimeout)
}

func (t *Timeouts) AssertionTimeout() time.Duration {
	return t.pick(func(x *Timeouts) time.Duration { return x.Assertion }, DefaultAssertionTimeout)
}

func (t *Timeouts) Poll() time.Duration {
	return t.pick(func(x *Timeouts) time.Duration { return x.PollInterval }, DefaultPollInterval)
}

func (t *Timeouts) ActionPoll() time.Duration {
	return t.pick(func(x *Timeouts) time.Duration { return x.ActionPollInterval }, DefaultActionPollInterval)
}

// Or returns override when positive, otherwise def.
func Or(override, def time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return def
}

func (t *Timeouts) pick(field func(*Timeouts) time.Duration, def time.Duration) time.Duration {
	for cur := t; cur != nil; cur = cur.Parent {
		if v := field(cur); v > 0 {
			return v
		}
	}
	return def
}

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Bin        string
	NoSandbox  bool
	DevTools   bool
	// Trace highlights elements rod acts on.
	Trace bool
}

type Config struct {
	Browser     BrowserConfig
	Timeouts    Timeouts
	LogLevel    string
	LogDir      string
	MetricsAddr string
	FixtureAddr string
}
