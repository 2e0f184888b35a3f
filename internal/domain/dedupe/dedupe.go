// Package dedupe detects repeated test submissions for one (session, user, pack).
package dedupe

import "context"

// Key identifies the single test a user may submit for a pack in a session.
type Key struct {
	SessionID string
	UserID    string
	PackID    string
}

// Deduper records seen keys to enforce at-most-one test per key.
type Deduper interface {
	// SeenAndRecord checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key Key) bool
}

// inMemoryDeduper implements Deduper with a map. It serves one unit of work
// and is not safe for concurrent use.
type inMemoryDeduper struct {
	seen map[Key]struct{}
}

// NewInMemoryDeduper creates a deduper, optionally pre-seeded with keys that
// already exist in the store.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{seen: make(map[Key]struct{})}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key Key) bool {
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}
