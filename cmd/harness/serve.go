package main

import (
	"github.com/spf13/cobra"

	"browser-harness/internal/infrastructure/fixtures"
	"browser-harness/internal/infrastructure/logger"
)

var serveFixturesCmd = &cobra.Command{
	Use:   "serve-fixtures",
	Short: "Serve the demo site the smoke scenarios run against",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.FixtureAddr
		}
		log, err := logger.NewLoggerAdapter(logger.Options{Level: cfg.LogLevel, Console: true})
		if err != nil {
			return err
		}
		defer log.Close()
		return fixtures.Serve(cmd.Context(), addr, log)
	},
}

func init() {
	serveFixturesCmd.Flags().String("addr", "", "listen address (default HARNESS_FIXTURE_ADDR)")
}
