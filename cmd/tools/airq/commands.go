package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/airqlab/airq/internal/analytics/forecast"
	"github.com/airqlab/airq/internal/analytics/stats"
	"github.com/airqlab/airq/internal/services"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize readings over a period ending at --now",
		Example: `  airq stats -i readings.json --period 7d
  airq stats -i readings.json --now latest --pretty`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.load(cmd.Context(), cmd.InOrStdin())
			if err != nil {
				return err
			}

			engine, err := stats.NewEngineFromConfig(s.cfg.Analytics)
			if err != nil {
				return err
			}

			svc := services.NewStatisticsService(s.logger, s.repo, engine, s.readings+1, s.cfg.Analytics.GetTimezone(), nil).
				WithClock(func() time.Time { return s.now })

			result, err := svc.Execute(cmd.Context(), period)
			if err != nil {
				return describe(err)
			}
			return writeJSON(cmd.OutOrStdout(), result, opts.Pretty)
		},
	}

	cmd.Flags().StringVarP(&period, "period", "p", "24h", "Window length: 24h, 7d or 30d")
	return cmd
}

func newForecastCmd(opts *globalOptions) *cobra.Command {
	var metricNames []string

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast metrics from the readings before --now",
		Example: `  airq forecast -i readings.json --metric co2
  airq forecast -i readings.json --metric co2,temperature --now 2025-01-01T12:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.load(cmd.Context(), cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg := forecast.ConfigFrom(s.cfg.Analytics)
			if err := cfg.Validate(); err != nil {
				return err
			}

			svc := services.NewForecastService(s.logger, s.repo, forecast.NewEngine(cfg), s.cfg.Analytics.GetTimezone(), nil).
				WithClock(func() time.Time { return s.now })

			if len(metricNames) == 1 {
				result, err := svc.Execute(cmd.Context(), metricNames[0])
				if err != nil {
					return describe(err)
				}
				return writeJSON(cmd.OutOrStdout(), result, opts.Pretty)
			}

			results, err := svc.ExecuteMany(cmd.Context(), metricNames)
			if err != nil {
				return describe(err)
			}
			return writeJSON(cmd.OutOrStdout(), results, opts.Pretty)
		},
	}

	cmd.Flags().StringSliceVarP(&metricNames, "metric", "m", []string{"co2"}, "Metrics to forecast (comma separated)")
	return cmd
}

// describe renders a service error as "CODE: message"
func describe(err error) error {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		return fmt.Errorf("%s: %s", svcErr.Code, svcErr.Message)
	}
	return err
}
