package dedupe

// Option applies a configuration option to the deduper.
type Option func(*seenSet)

// WithMaxSize bounds the seen window. Zero or negative means unbounded.
func WithMaxSize(n int) Option {
	return func(s *seenSet) {
		s.maxSize = n
	}
}
