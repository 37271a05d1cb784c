package config

import (
	"time"

	domainConfig "github.com/socialpulse-lab/socialpulse/pkg/domain/model/config"
	"github.com/urfave/cli/v3"
)

// Sync holds CLI flags for sync orchestration tuning
type Sync struct {
	concurrency      int
	cooldown         time.Duration
	metricWindowDays int
	postLimit        int
	schedule         string
}

// Flags returns CLI flags for sync configuration
func (s *Sync) Flags() []cli.Flag {
	def := domainConfig.DefaultSyncConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "sync-concurrency",
			Usage:       "Number of accounts synced in parallel per tenant",
			Value:       def.Concurrency,
			Sources:     cli.EnvVars("SOCIALPULSE_SYNC_CONCURRENCY"),
			Destination: &s.concurrency,
		},
		&cli.DurationFlag{
			Name:        "sync-cooldown",
			Usage:       "Minimum interval between two syncs of one account",
			Value:       def.Cooldown,
			Sources:     cli.EnvVars("SOCIALPULSE_SYNC_COOLDOWN"),
			Destination: &s.cooldown,
		},
		&cli.IntFlag{
			Name:        "sync-metric-window-days",
			Usage:       "How many days of daily metrics connectors request",
			Value:       def.MetricWindowDays,
			Sources:     cli.EnvVars("SOCIALPULSE_SYNC_METRIC_WINDOW_DAYS"),
			Destination: &s.metricWindowDays,
		},
		&cli.IntFlag{
			Name:        "sync-post-limit",
			Usage:       "Maximum recent posts fetched per account",
			Value:       def.PostLimit,
			Sources:     cli.EnvVars("SOCIALPULSE_SYNC_POST_LIMIT"),
			Destination: &s.postLimit,
		},
		&cli.StringFlag{
			Name:        "sync-schedule",
			Usage:       "Cron expression for the periodic sync (empty disables it)",
			Value:       "0 * * * *",
			Sources:     cli.EnvVars("SOCIALPULSE_SYNC_SCHEDULE"),
			Destination: &s.schedule,
		},
	}
}

// Schedule returns the cron expression for the periodic sync worker
func (s *Sync) Schedule() string {
	return s.schedule
}

// Configure returns the domain sync configuration
func (s *Sync) Configure() domainConfig.SyncConfig {
	return domainConfig.SyncConfig{
		Concurrency:      s.concurrency,
		Cooldown:         s.cooldown,
		MetricWindowDays: s.metricWindowDays,
		PostLimit:        s.postLimit,
	}.Normalize()
}
