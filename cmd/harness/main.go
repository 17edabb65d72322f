package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"browser-harness/internal/domain/entity"
	"browser-harness/internal/infrastructure/config"
	"browser-harness/internal/infrastructure/env"
)

var cfg entity.Config

var rootCmd = &cobra.Command{
	Use:   "harness",
	Short: "Browser test engine: smoke runs against the bundled fixture site",
	Long: `harness drives a local Chromium through the engine's locator, action,
dialog and assertion layers.

Settings come from HARNESS_* variables, .env and .env.$APP_ENV.

Examples:
  harness serve-fixtures                      # Serve the demo site
  harness smoke                               # Serve the site and run every scenario against it
  harness smoke --base http://localhost:8765  # Run against a site that is already up
  harness smoke --only login,popup`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cfg = config.Load(env.NewEnvService())
		if cmd.Flags().Changed("headed") {
			headed, _ := cmd.Flags().GetBool("headed")
			cfg.Browser.Headless = !headed
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("headed", false, "show the browser window")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error")
	rootCmd.AddCommand(smokeCmd, serveFixturesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
