// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults and Load(ctx) to layer
//   file and environment sources on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory transition queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of settlement workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the transition dedupe window.
	DedupeSize int `koanf:"dedupe_size"`

	// DebounceWindowMS is the cross-writer suppression window in
	// milliseconds. Two writers hitting the same score action within this
	// window collapse to one effect.
	DebounceWindowMS int `koanf:"debounce_window_ms"`

	// TxnMaxAttempts bounds automatic ledger transaction retries.
	TxnMaxAttempts int `koanf:"txn_max_attempts"`

	// OutboxCapacity bounds client-side queued events before eviction.
	OutboxCapacity int `koanf:"outbox_capacity"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// RateLimitRPS and RateLimitBurst bound write-endpoint throughput.
	// Zero RPS disables rate limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          10_000,
		DebounceWindowMS:    650,
		TxnMaxAttempts:      16,
		OutboxCapacity:      1000,
		MaxLeaderboardLimit: 100,
		RateLimitRPS:        0,
		RateLimitBurst:      50,
	}
}

// DebounceWindow returns the suppression window as a duration.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceWindowMS) * time.Millisecond
}
