package twinfleet

import (
	"math/rand/v2"
	"sync"
)

// noise is the simulator's source of uniformly distributed perturbations. It is
// safe for concurrent use.
type noise struct {
	mu sync.Mutex
	r  *rand.Rand
}

// newNoise returns a noise source seeded with seed, or with a random seed when
// seed is zero.
func newNoise(seed uint64) *noise {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &noise{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// uniform draws a value from [s.Lo, s.Hi).
func (n *noise) uniform(s Span) float64 {
	n.mu.Lock()
	f := n.r.Float64()
	n.mu.Unlock()
	return s.Lo + f*(s.Hi-s.Lo)
}
