package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nichescope/nichescope/internal/config"
	"github.com/nichescope/nichescope/internal/gateway"
	"github.com/nichescope/nichescope/internal/health"
)

func healthCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the configured cache backend and resilience components",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, stop, err := gateway.FromConfig(cfg, gateway.WithLogger(logger))
			if err != nil {
				return err
			}
			defer stop()

			registry := health.NewRegistry()
			registry.Register(health.CacheChecker(gw.Cache()))
			registry.Register(health.BreakerChecker(gw.Breaker()))
			registry.Register(health.RouterChecker(gw.Router()))

			overall, statuses := registry.CheckAll(cmd.Context())
			if err := printJSON(cmd, struct {
				Overall health.State    `json:"overall"`
				Checks  []health.Status `json:"checks"`
			}{overall, statuses}); err != nil {
				return err
			}
			if overall == health.StateUnhealthy {
				return errors.New("unhealthy")
			}
			return nil
		},
	}
}
