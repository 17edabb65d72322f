package di

import (
	"context"
	"fmt"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/browser/rod"
	"browser-harness/internal/infrastructure/diagnostics"
	"browser-harness/internal/infrastructure/logger"
	"browser-harness/internal/infrastructure/metrics"
	"browser-harness/internal/usecase/action"
	"browser-harness/internal/usecase/assertion"
	"browser-harness/internal/usecase/contexts"
	"browser-harness/internal/usecase/locator"
	"browser-harness/internal/usecase/session"
)

const thumbnailWidth = 320

type Container struct {
	Config  entity.Config
	Logger  output.LoggerPort
	Metrics *metrics.Collector
	Channel output.ControlChannel
	Session *session.Session

	ownsChannel bool
}

type Options struct {
	RunName string
	// Channel overrides the real browser. The container does not close it.
	Channel output.ControlChannel
	// Logger overrides the zap logger built from the config.
	Logger output.LoggerPort
}

func NewContainer(ctx context.Context, cfg entity.Config, opts Options) (*Container, error) {
	log := opts.Logger
	if log == nil {
		l, err := logger.NewLoggerAdapter(logger.Options{
			Level:   cfg.LogLevel,
			Dir:     cfg.LogDir,
			RunName: opts.RunName,
			Console: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		log = l
	}

	c := &Container{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
		Channel: opts.Channel,
	}
	if c.Channel == nil {
		ch, err := rod.New(ctx, cfg.Browser, log)
		if err != nil {
			_ = log.Close()
			return nil, fmt.Errorf("failed to create browser: %w", err)
		}
		c.Channel = ch
		c.ownsChannel = true
	}

	timeouts := &cfg.Timeouts
	manager := contexts.NewManager(c.Channel, timeouts, log, c.Metrics)
	c.Session = session.New(
		manager,
		locator.NewResolver(c.Channel, log, c.Metrics, timeouts.Poll()),
		action.NewExecutor(c.Channel, action.NewRegistry(), manager, timeouts, log, c.Metrics),
		assertion.NewEngine(timeouts, log, c.Metrics),
		diagnostics.New(c.Channel, log, thumbnailWidth),
		timeouts,
		log,
	)
	if err := c.Session.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open first page: %w", err)
	}
	return c, nil
}

func (c *Container) Close() {
	if c.Session != nil {
		if err := c.Session.Close(context.Background()); err != nil {
			c.Logger.Warn("Session close failed", "error", err)
		}
	}
	if c.ownsChannel && c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Close()
	}
}
