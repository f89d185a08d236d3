// Package rng provides the seeded per-query random source used for
// tie-breaking and replica selection (spec §4.3, §4.4). Scheduling
// determinism requires that identical (snapshot, plan, seed) inputs always
// produce the same rank permutation, so every Source here is built from an
// explicit seed, never process-global randomness.
//
// No example repo in the reference corpus carries a third-party PRNG
// dependency; math/rand's seeded Source is the idiomatic and sufficient
// tool for this, so this package is a deliberate exception to the
// third-party-first rule (see DESIGN.md).
package rng

import "math/rand"

// Source is a per-query random source. It is not safe for concurrent use;
// Scheduler.Schedule creates one per call and every assign.Context built
// during that call draws from it.
type Source struct {
	rnd *rand.Rand
}

// New creates a Source seeded with seed. The same seed always produces the
// same sequence of Permutation/Intn results.
func New(seed int64) *Source {
	return &Source{rnd: rand.New(rand.NewSource(seed))}
}

// Permutation returns a random permutation of [0, n).
func (s *Source) Permutation(n int) []int {
	return s.rnd.Perm(n)
}

// Intn returns a random int in [0, n).
func (s *Source) Intn(n int) int {
	return s.rnd.Intn(n)
}
