package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithSeen pre-records keys, typically the tests a user already submitted.
func WithSeen(keys ...Key) Option {
	return func(d *inMemoryDeduper) {
		for _, k := range keys {
			d.seen[k] = struct{}{}
		}
	}
}
