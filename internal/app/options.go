package service

import (
	"time"

	"github.com/okian/rally/internal/adapters/ledger"
	"github.com/okian/rally/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a ledger store, replacing the default in-memory one.
func WithStore(store ledger.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of settlement workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the transition queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the transition dedupe window size.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDebounceWindow sets the cross-writer suppression window.
func WithDebounceWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.debounceWindow = d
		}
	}
}

// WithTxnMaxAttempts bounds ledger transaction retries.
func WithTxnMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.txnMaxAttempts = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}
