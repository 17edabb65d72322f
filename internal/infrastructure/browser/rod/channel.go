// Package rod implements output.ControlChannel over a real Chromium driven through
// the DevTools protocol. Every browsing context is an incognito browser context.
//
// Cross-origin iframes run out of process and are not listed by Frames. Pierce
// applies to CSS queries only.
package rod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
)

var (
	_ output.ControlChannel = (*Channel)(nil)
	_ output.HTMLSource     = (*Channel)(nil)
)

var ErrClosed = errors.New("rod: browser closed")

// networkIdleAfter is how long after the load event a page counts as network idle.
const networkIdleAfter = 500 * time.Millisecond

type tab struct {
	page *rod.Page
	bc   entity.ContextID
}

type Channel struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   output.LoggerPort

	mu       sync.Mutex
	contexts map[entity.ContextID]*rod.Browser
	tabs     map[entity.PageID]*tab
	closed   bool
}

// New launches a local Chromium and connects to it.
func New(ctx context.Context, cfg entity.BrowserConfig, logger output.LoggerPort) (*Channel, error) {
	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		Devtools(cfg.DevTools).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain").
		Set("allow-running-insecure-content")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().
		ControlURL(url).
		Trace(cfg.Trace).
		SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger = logger.Named("rod")
	logger.Info("Browser launched", "control_url", url, "headless", cfg.Headless)

	return &Channel{
		browser:  browser,
		launcher: l,
		logger:   logger,
		contexts: make(map[entity.ContextID]*rod.Browser),
		tabs:     make(map[entity.PageID]*tab),
	}, nil
}

func (c *Channel) NewContext(ctx context.Context) (entity.ContextID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrClosed
	}
	inc, err := c.browser.Context(ctx).Incognito()
	if err != nil {
		return "", fmt.Errorf("create browser context: %w", err)
	}
	id := entity.ContextID(inc.BrowserContextID)
	c.contexts[id] = inc.Context(context.Background())
	c.logger.Debug("Context created", "context", id)
	return id, nil
}

func (c *Channel) CloseContext(ctx context.Context, id entity.ContextID) error {
	c.mu.Lock()
	inc, ok := c.contexts[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: context %s", entity.ErrContextClosed, id)
	}
	delete(c.contexts, id)
	for pid, t := range c.tabs {
		if t.bc == id {
			delete(c.tabs, pid)
		}
	}
	c.mu.Unlock()

	if err := inc.Context(ctx).Close(); err != nil {
		return fmt.Errorf("dispose context %s: %w", id, err)
	}
	c.logger.Debug("Context closed", "context", id)
	return nil
}

func (c *Channel) NewPage(ctx context.Context, bc entity.ContextID) (entity.PageID, error) {
	c.mu.Lock()
	inc, ok := c.contexts[bc]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: context %s", entity.ErrContextClosed, bc)
	}

	p, err := inc.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	id := entity.PageID(p.TargetID)
	c.track(id, p, bc)
	return id, nil
}

func (c *Channel) track(id entity.PageID, p *rod.Page, bc entity.ContextID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabs[id] = &tab{page: p.Context(context.Background()), bc: bc}
}

func (c *Channel) ClosePage(ctx context.Context, id entity.PageID) error {
	c.mu.Lock()
	t, ok := c.tabs[id]
	delete(c.tabs, id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: page %s", entity.ErrContextClosed, id)
	}
	return t.page.Context(ctx).Close()
}

func (c *Channel) page(ctx context.Context, id entity.PageID) (*rod.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	t, ok := c.tabs[id]
	if !ok {
		return nil, fmt.Errorf("%w: page %s", entity.ErrContextClosed, id)
	}
	return t.page.Context(ctx), nil
}

func (c *Channel) Navigate(ctx context.Context, id entity.PageID, url string) error {
	p, err := c.page(ctx, id)
	if err != nil {
		return err
	}
	c.logger.Debug("Navigating", "page", id, "url", url)
	return p.Navigate(url)
}

func (c *Channel) Reload(ctx context.Context, id entity.PageID) error {
	p, err := c.page(ctx, id)
	if err != nil {
		return err
	}
	return p.Reload()
}

func (c *Channel) PageInfo(ctx context.Context, id entity.PageID) (entity.PageInfo, error) {
	p, err := c.page(ctx, id)
	if err != nil {
		return entity.PageInfo{LoadState: entity.LoadStateClosed}, err
	}
	info, err := p.Info()
	if err != nil {
		return entity.PageInfo{}, err
	}

	var ls struct {
		Ready string  `json:"ready"`
		Idle  float64 `json:"idle"`
	}
	if err := c.eval(p, jsLoadState, &ls); err != nil {
		return entity.PageInfo{}, err
	}
	state := entity.LoadStateLoading
	switch {
	case ls.Ready != "complete":
	case time.Duration(ls.Idle*float64(time.Millisecond)) >= networkIdleAfter:
		state = entity.LoadStateNetworkIdle
	default:
		state = entity.LoadStateLoad
	}
	return entity.PageInfo{URL: info.URL, Title: info.Title, LoadState: state}, nil
}

func (c *Channel) Screenshot(ctx context.Context, id entity.PageID) (*entity.Screenshot, error) {
	p, err := c.page(ctx, id)
	if err != nil {
		return nil, err
	}
	return screenshot(p)
}

func (c *Channel) Content(ctx context.Context, id entity.PageID) (string, error) {
	p, err := c.page(ctx, id)
	if err != nil {
		return "", err
	}
	return p.HTML()
}

func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.contexts = make(map[entity.ContextID]*rod.Browser)
	c.tabs = make(map[entity.PageID]*tab)
	c.mu.Unlock()

	err := c.browser.Close()
	if c.launcher != nil {
		c.launcher.Kill()
		c.launcher.Cleanup()
	}
	c.logger.Info("Browser closed")
	return err
}

// eval runs fn, which must return a JSON string, and decodes the result into out.
func (c *Channel) eval(p *rod.Page, fn string, out any, args ...any) error {
	res, err := p.Evaluate(evalJS(fn, args...))
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(res.Value.Str()), out)
}

// evalJS awaits fn when it returns a promise.
func evalJS(fn string, args ...any) *rod.EvalOptions {
	return rod.Eval(wrap(fn), args...).ByPromise()
}
