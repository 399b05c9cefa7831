package services

import (
	"math/rand"
	"sync"
	"time"

	"example.com/grocery/services/delivery/internal/models"
)

// SelectionPolicy picks one driver from a non-empty candidate pool and
// returns its index. Any fair tie-break is acceptable; the default is
// uniform random. Tests supply a deterministic stub.
type SelectionPolicy interface {
	Pick(candidates []models.Driver) int
}

type uniformRandomPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformRandomPolicy returns the default selection policy: each
// available driver is equally likely to be chosen.
func NewUniformRandomPolicy() SelectionPolicy {
	return &uniformRandomPolicy{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *uniformRandomPolicy) Pick(candidates []models.Driver) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(len(candidates))
}
