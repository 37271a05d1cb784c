package config

import "time"

// SyncConfig tunes the orchestrator
type SyncConfig struct {
	// Concurrency bounds how many accounts sync in parallel per tenant
	Concurrency int
	// Cooldown is the minimum interval between two syncs of one account
	Cooldown time.Duration
	// MetricWindowDays is how far back connectors request daily insights
	MetricWindowDays int
	// PostLimit caps how many recent posts a connector fetches
	PostLimit int
}

// DefaultSyncConfig returns the production defaults
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Concurrency:      2,
		Cooldown:         15 * time.Minute,
		MetricWindowDays: 30,
		PostLimit:        25,
	}
}

// Normalize fills zero values with defaults
func (c SyncConfig) Normalize() SyncConfig {
	def := DefaultSyncConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	if c.MetricWindowDays <= 0 {
		c.MetricWindowDays = def.MetricWindowDays
	}
	if c.PostLimit <= 0 {
		c.PostLimit = def.PostLimit
	}
	return c
}
