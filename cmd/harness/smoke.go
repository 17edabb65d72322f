package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/application/usecase"
	"browser-harness/internal/di"
	"browser-harness/internal/infrastructure/console"
	"browser-harness/internal/infrastructure/fixtures"
)

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Run the smoke scenarios in a real browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		base, _ := cmd.Flags().GetString("base")
		only, _ := cmd.Flags().GetStringSlice("only")

		if base == "" {
			addr, stop, err := startFixtures(cfg.FixtureAddr)
			if err != nil {
				return err
			}
			defer stop()
			base = "http://" + addr
		}

		scenarios, err := selectScenarios(fixtureScenarios(base), only)
		if err != nil {
			return err
		}

		container, err := di.NewContainer(ctx, cfg, di.Options{RunName: "smoke"})
		if err != nil {
			return err
		}
		defer container.Close()

		if cfg.MetricsAddr != "" {
			stop := serveMetrics(cfg.MetricsAddr, container.Metrics.Handler(), container.Logger)
			defer stop()
		}

		uc := usecase.NewRunSmokeUseCase(container.Session, console.NewReporter(nil), container.Logger)
		res, err := uc.Execute(ctx, scenarios)
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", res.Failed, len(scenarios))
		}
		return nil
	},
}

func init() {
	smokeCmd.Flags().String("base", "", "base URL of a running fixture site; empty serves one in process")
	smokeCmd.Flags().StringSlice("only", nil, "comma separated scenario names to run")
}

func selectScenarios(all []usecase.Scenario, only []string) ([]usecase.Scenario, error) {
	if len(only) == 0 {
		return all, nil
	}
	byName := make(map[string]usecase.Scenario, len(all))
	names := make([]string, 0, len(all))
	for _, sc := range all {
		byName[sc.Name] = sc
		names = append(names, sc.Name)
	}
	out := make([]usecase.Scenario, 0, len(only))
	for _, name := range only {
		sc, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (have %s)", name, strings.Join(names, ", "))
		}
		out = append(out, sc)
	}
	return out, nil
}

func startFixtures(addr string) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listen for fixtures: %w", err)
	}
	srv := &http.Server{Handler: fixtures.Router(false), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	return ln.Addr().String(), func() { _ = srv.Close() }, nil
}

func serveMetrics(addr string, h http.Handler, logger output.LoggerPort) func() {
	r := chi.NewRouter()
	r.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("Metrics endpoint up", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
