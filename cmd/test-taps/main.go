package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/rally/internal/sim"
	"github.com/okian/rally/pkg/logger"
)

// Default configuration constants.
const (
	defaultMatches      = 4
	defaultTapsPerMatch = 10
	defaultDevices      = 2
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		scope        = flag.String("scope", "", "Tournament scope (default: sim-TIMESTAMP)")
		matches      = flag.Int("matches", defaultMatches, "Number of matches to create and score")
		tapsPerMatch = flag.Int("taps", defaultTapsPerMatch, "Score taps per match")
		devices      = flag.Int("devices", defaultDevices, "Concurrent admin devices")
		outboxDir    = flag.String("outbox-dir", "", "Directory for device outbox files (default: temp dir)")
		seed         = flag.Int64("seed", 0, "Random seed (default: clock)")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &sim.Config{
		BaseURL:      *baseURL,
		Scope:        *scope,
		Matches:      *matches,
		TapsPerMatch: *tapsPerMatch,
		Devices:      *devices,
		OutboxDir:    *outboxDir,
		Seed:         *seed,
	}

	if err := sim.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
