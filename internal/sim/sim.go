// Package sim drives a running server with simulated admin devices. Each
// device is a full client stack with its own durable outbox, so the run
// exercises optimistic taps, offline replay, debounced double-submissions,
// done flips and final leaderboard reads end to end.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/rally/internal/client"
	"github.com/okian/rally/internal/client/outbox"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
)

// Config controls one simulation run.
type Config struct {
	// BaseURL is the server under test.
	BaseURL string

	// Scope is the tournament scope the run creates matches in.
	Scope string

	// Matches is how many matches to create and score.
	Matches int

	// TapsPerMatch is how many score taps each match receives in total.
	TapsPerMatch int

	// Devices is how many admin devices score concurrently.
	Devices int

	// OutboxDir holds per-device outbox files. Empty means a temp dir.
	OutboxDir string

	// Seed makes runs reproducible. Zero seeds from the clock.
	Seed int64
}

func (c *Config) normalize() error {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:9080"
	}
	if c.Scope == "" {
		c.Scope = fmt.Sprintf("sim-%d", time.Now().Unix())
	}
	if c.Matches < 1 {
		c.Matches = 4
	}
	if c.TapsPerMatch < 1 {
		c.TapsPerMatch = 10
	}
	if c.Devices < 1 {
		c.Devices = 2
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.OutboxDir == "" {
		dir, err := os.MkdirTemp("", "rally-sim-outbox-")
		if err != nil {
			return fmt.Errorf("sim: temp outbox dir: %w", err)
		}
		c.OutboxDir = dir
	}
	return nil
}

// Run creates matches, scores them from simulated devices and verifies the
// server's final state.
func Run(ctx context.Context, cfg *Config) error {
	if err := cfg.normalize(); err != nil {
		return err
	}
	log := logger.Named("sim")
	rng := rand.New(rand.NewSource(cfg.Seed))

	tp := client.NewHTTPTransport(cfg.BaseURL)

	devices, err := buildDevices(cfg, tp)
	if err != nil {
		return err
	}

	admin := devices[0]
	if err := createMatches(ctx, cfg, tp); err != nil {
		return err
	}

	log.Info(ctx, "simulation started",
		logger.String("scope", cfg.Scope),
		logger.Int("matches", cfg.Matches),
		logger.Int("devices", len(devices)),
		logger.Int64("seed", cfg.Seed),
	)

	// Score every match from randomly chosen devices. Taps land in each
	// device's outbox first; periodic syncs replay them to the server.
	for i := 0; i < cfg.Matches; i++ {
		key := model.MatchKey{Scope: cfg.Scope, Index: i}
		if err := scoreMatch(ctx, cfg, rng, devices, key); err != nil {
			return err
		}
	}

	// Drain every outbox before the matches close.
	for _, d := range devices {
		if _, err := d.Sync(ctx); err != nil {
			return fmt.Errorf("sim: final sync: %w", err)
		}
	}

	// Close every match so settlement folds the results in.
	for i := 0; i < cfg.Matches; i++ {
		key := model.MatchKey{Scope: cfg.Scope, Index: i}
		if _, err := tp.SetDone(ctx, key, true); err != nil {
			return fmt.Errorf("sim: set done %s: %w", key, err)
		}
	}

	// Settlement runs async behind the transition queue.
	time.Sleep(2 * time.Second)

	if err := verify(ctx, cfg, tp, admin, devices); err != nil {
		return err
	}

	log.Info(ctx, "simulation finished", logger.String("scope", cfg.Scope))
	return nil
}

func buildDevices(cfg *Config, tp client.Transport) ([]*client.Client, error) {
	devices := make([]*client.Client, cfg.Devices)
	for i := range devices {
		sourceID := fmt.Sprintf("sim-device-%d", i)
		store, err := outbox.NewFileStore(filepath.Join(cfg.OutboxDir, sourceID+".jsonl"))
		if err != nil {
			return nil, fmt.Errorf("sim: outbox store: %w", err)
		}
		c, err := client.New(sourceID, store, tp)
		if err != nil {
			return nil, fmt.Errorf("sim: client: %w", err)
		}
		devices[i] = c
	}
	return devices, nil
}

func createMatches(ctx context.Context, cfg *Config, tp *client.HTTPTransport) error {
	for i := 0; i < cfg.Matches; i++ {
		m := model.Match{
			Key:   model.MatchKey{Scope: cfg.Scope, Index: i},
			SideA: model.Participant{Players: []string{fmt.Sprintf("%s-p%d-a", cfg.Scope, i)}},
			SideB: model.Participant{Players: []string{fmt.Sprintf("%s-p%d-b", cfg.Scope, i)}},
		}
		if err := tp.CreateMatch(ctx, m); err != nil {
			return fmt.Errorf("sim: create match %s: %w", m.Key, err)
		}
	}
	return nil
}

// scoreMatch issues taps from random devices, syncing often enough that
// versions stay fresh but leaving some taps queued to exercise replay.
func scoreMatch(ctx context.Context, cfg *Config, rng *rand.Rand, devices []*client.Client, key model.MatchKey) error {
	for t := 0; t < cfg.TapsPerMatch; t++ {
		dev := devices[rng.Intn(len(devices))]

		side := model.SideA
		// Keep side A ahead so the final score is never tied.
		if t%3 == 2 {
			side = model.SideB
		}

		if _, err := dev.Tap(key, side, +1); err != nil {
			return fmt.Errorf("sim: tap: %w", err)
		}

		// Sync roughly every third tap; the rest queue up offline.
		if rng.Intn(3) == 0 {
			if _, err := dev.Sync(ctx); err != nil {
				return fmt.Errorf("sim: sync: %w", err)
			}
		}

		// Stay clear of the cross-writer debounce window between taps from
		// different devices on the same button.
		time.Sleep(700 * time.Millisecond)
	}
	return nil
}

func verify(ctx context.Context, cfg *Config, tp *client.HTTPTransport, admin *client.Client, devices []*client.Client) error {
	for i := 0; i < cfg.Matches; i++ {
		key := model.MatchKey{Scope: cfg.Scope, Index: i}
		m, err := admin.Refresh(ctx, key)
		if err != nil {
			return fmt.Errorf("sim: refresh %s: %w", key, err)
		}
		if m.ScoreA+m.ScoreB == 0 {
			return fmt.Errorf("sim: match %s never scored", key)
		}
		if !m.Done {
			return fmt.Errorf("sim: match %s not done", key)
		}
	}

	for _, d := range devices {
		if d.Pending() != 0 {
			return fmt.Errorf("sim: device still has %d pending events", d.Pending())
		}
	}

	entries, err := tp.Leaderboard(ctx, 2*cfg.Matches)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("sim: leaderboard empty after settlement")
	}
	return nil
}
