package ledger

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithMaxTxnAttempts bounds automatic retries on write-write conflict.
func WithMaxTxnAttempts(n int) Option {
	return func(s *MemStore) {
		if n > 0 {
			s.maxTxnAttempts = n
		}
	}
}
