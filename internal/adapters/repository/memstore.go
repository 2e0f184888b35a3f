package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/cupping/internal/domain/model"
	"github.com/okian/cupping/pkg/metrics"
)

// In-memory Store implementation.
//
// All rows of a session live in one bucket. A writer holds the session's
// mutex, works on a private clone of the bucket and swaps it in on commit,
// so readers only ever observe whole committed buckets.

// bucket holds every row that belongs to one session.
type bucket struct {
	session model.Session
	tests   []model.Test
	results []model.AggregateResult
}

func (b *bucket) clone() *bucket {
	if b == nil {
		return nil
	}
	c := &bucket{
		session: b.session.Clone(),
		tests:   make([]model.Test, len(b.tests)),
		results: make([]model.AggregateResult, len(b.results)),
	}
	for i, t := range b.tests {
		t.Ratings = slices.Clone(t.Ratings)
		c.tests[i] = t
	}
	for i, r := range b.results {
		c.results[i] = r.Clone()
	}
	return c
}

// MemStore keeps sessions in process memory.
type MemStore struct {
	mu      sync.RWMutex
	buckets map[string]*bucket

	// locks serializes writers per session id. Entries live only while a
	// unit of work holds or waits for them.
	locksMu sync.Mutex
	locks   map[string]*sessionLock

	metricsUpdateInterval time.Duration
	stopChan              chan struct{}
	wg                    sync.WaitGroup
}

// NewMemStore constructs an in-memory store with configuration options.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	s := &MemStore{
		buckets:               make(map[string]*bucket),
		locks:                 make(map[string]*sessionLock),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// startMetricsUpdater periodically publishes record counts.
func (s *MemStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				st := s.Stats(ctx)
				metrics.UpdateStoreRecords("sessions", st.Sessions)
				metrics.UpdateStoreRecords("tests", st.Tests)
				metrics.UpdateStoreRecords("results", st.Results)
			}
		}
	}()
}

// Close stops the metrics goroutine.
func (s *MemStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// sessionLock is a per-session writer mutex with the number of units
// holding or waiting for it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (s *MemStore) lock(sessionID string) *sessionLock {
	s.locksMu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return l
}

func (s *MemStore) unlock(sessionID string, l *sessionLock) {
	l.mu.Unlock()

	s.locksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, sessionID)
	}
	s.locksMu.Unlock()
}

// lockEntries reports how many per-session locks are currently tracked.
func (s *MemStore) lockEntries() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

// Update implements Store.Update.
func (s *MemStore) Update(ctx context.Context, sessionID string, fn TxFunc) error {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("update", float64(time.Since(start).Milliseconds())) }()

	l := s.lock(sessionID)
	defer s.unlock(sessionID, l)

	s.mu.RLock()
	b := s.buckets[sessionID].clone()
	s.mu.RUnlock()

	tx := &memTx{sessionID: sessionID, bucket: b, writable: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit abandoned: %w", err)
	}
	if tx.dirty && tx.bucket != nil {
		s.mu.Lock()
		s.buckets[sessionID] = tx.bucket
		s.mu.Unlock()
	}
	return nil
}

// View implements Store.View.
func (s *MemStore) View(ctx context.Context, sessionID string, fn TxFunc) error {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("view", float64(time.Since(start).Milliseconds())) }()

	s.mu.RLock()
	b := s.buckets[sessionID].clone()
	s.mu.RUnlock()

	return fn(ctx, &memTx{sessionID: sessionID, bucket: b})
}

// Stats implements Store.Stats.
func (s *MemStore) Stats(_ context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Backend: "memory", Sessions: len(s.buckets)}
	for _, b := range s.buckets {
		st.Tests += len(b.tests)
		st.Results += len(b.results)
	}
	return st
}

// memTx works on a private bucket clone.
type memTx struct {
	sessionID string
	bucket    *bucket
	writable  bool
	dirty     bool
}

func (t *memTx) check(id string, write bool) error {
	if id != t.sessionID {
		return fmt.Errorf("%w: %s", ErrWrongSession, id)
	}
	if write && !t.writable {
		return ErrReadOnly
	}
	return nil
}

func (t *memTx) GetSession(_ context.Context, id string) (model.Session, error) {
	if err := t.check(id, false); err != nil {
		return model.Session{}, err
	}
	if t.bucket == nil {
		return model.Session{}, ErrNotFound
	}
	return t.bucket.session.Clone(), nil
}

func (t *memTx) InsertSession(_ context.Context, sess model.Session) error {
	if err := t.check(sess.ID, true); err != nil {
		return err
	}
	if t.bucket != nil {
		return ErrDuplicate
	}
	sess = sess.Clone()
	sess.InviteeIDs = uniq(sess.InviteeIDs)
	t.bucket = &bucket{session: sess}
	t.dirty = true
	return nil
}

func (t *memTx) UpdateStatus(_ context.Context, id string, status model.Status, endedAt *time.Time) error {
	if err := t.check(id, true); err != nil {
		return err
	}
	if t.bucket == nil {
		return ErrNotFound
	}
	t.bucket.session.Status = status
	t.bucket.session.EndedAt = nil
	if endedAt != nil {
		e := *endedAt
		t.bucket.session.EndedAt = &e
	}
	t.dirty = true
	return nil
}

func (t *memTx) ListTests(_ context.Context, sessionID string) ([]model.Test, error) {
	if err := t.check(sessionID, false); err != nil {
		return nil, err
	}
	if t.bucket == nil {
		return nil, nil
	}
	return cloneTests(t.bucket.tests, func(model.Test) bool { return true }), nil
}

func (t *memTx) ListUserTests(_ context.Context, sessionID, userID string) ([]model.Test, error) {
	if err := t.check(sessionID, false); err != nil {
		return nil, err
	}
	if t.bucket == nil {
		return nil, nil
	}
	return cloneTests(t.bucket.tests, func(x model.Test) bool { return x.UserID == userID }), nil
}

func (t *memTx) InsertTests(_ context.Context, tests []model.Test) error {
	for _, x := range tests {
		if err := t.check(x.SessionID, true); err != nil {
			return err
		}
	}
	if t.bucket == nil {
		return ErrNotFound
	}
	staged := slices.Clone(t.bucket.tests)
	for _, x := range tests {
		dup := slices.ContainsFunc(staged, func(y model.Test) bool {
			return y.PackID == x.PackID && y.UserID == x.UserID
		})
		if dup {
			return fmt.Errorf("%w: test for pack %s by user %s", ErrDuplicate, x.PackID, x.UserID)
		}
		x.Ratings = slices.Clone(x.Ratings)
		staged = append(staged, x)
	}
	t.bucket.tests = staged
	t.dirty = true
	return nil
}

func (t *memTx) DeleteResults(_ context.Context, sessionID string) error {
	if err := t.check(sessionID, true); err != nil {
		return err
	}
	if t.bucket == nil {
		return nil
	}
	t.bucket.results = nil
	t.dirty = true
	return nil
}

func (t *memTx) InsertResults(_ context.Context, results []model.AggregateResult) error {
	for _, r := range results {
		if err := t.check(r.SessionID, true); err != nil {
			return err
		}
	}
	if t.bucket == nil {
		return ErrNotFound
	}
	for _, r := range results {
		if slices.ContainsFunc(t.bucket.results, func(y model.AggregateResult) bool { return y.PackID == r.PackID }) {
			return fmt.Errorf("%w: result for pack %s", ErrDuplicate, r.PackID)
		}
		t.bucket.results = append(t.bucket.results, r.Clone())
	}
	t.dirty = true
	return nil
}

func (t *memTx) ListResults(_ context.Context, sessionID string) ([]model.AggregateResult, error) {
	if err := t.check(sessionID, false); err != nil {
		return nil, err
	}
	if t.bucket == nil {
		return nil, nil
	}
	out := make([]model.AggregateResult, len(t.bucket.results))
	for i, r := range t.bucket.results {
		out[i] = r.Clone()
	}
	return out, nil
}

func cloneTests(tests []model.Test, keep func(model.Test) bool) []model.Test {
	var out []model.Test
	for _, x := range tests {
		if keep(x) {
			x.Ratings = slices.Clone(x.Ratings)
			out = append(out, x)
		}
	}
	return out
}

// uniq drops repeated ids, keeping first occurrence order.
func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
