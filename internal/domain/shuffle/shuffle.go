// Package shuffle provides a seedable source of unbiased permutations.
package shuffle

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Shuffler permutes slices in place with Fisher–Yates. Safe for concurrent use.
type Shuffler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Shuffler with a fixed seed. Equal seeds produce equal
// permutation sequences.
func New(seed uint64) *Shuffler {
	return &Shuffler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom returns a Shuffler seeded from the clock.
func NewRandom() *Shuffler {
	return New(uint64(time.Now().UnixNano())) //nolint:gosec // presentation order only
}

// Slice shuffles xs in place.
func Slice[T any](s *Shuffler, xs []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
}
