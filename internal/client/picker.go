package client

import (
	"math/rand"
	"sync"

	"github.com/fabrichq/fabric/internal/registry"
)

// Picker selects one endpoint among those a service resolved to.
// Implementations must be safe for concurrent use.
type Picker interface {
	Pick(service string, endpoints []registry.Endpoint) registry.Endpoint
}

// roundRobin rotates through endpoints per service across successive
// calls. Rotation position survives endpoint-set changes; the index is
// taken modulo the current set size.
type roundRobin struct {
	mu   sync.Mutex
	next map[string]int
}

// NewRoundRobin returns the default picker.
func NewRoundRobin() Picker {
	return &roundRobin{next: make(map[string]int)}
}

func (p *roundRobin) Pick(service string, endpoints []registry.Endpoint) registry.Endpoint {
	p.mu.Lock()
	idx := p.next[service]
	p.next[service] = idx + 1
	p.mu.Unlock()

	return endpoints[idx%len(endpoints)]
}

// random picks uniformly at random.
type random struct{}

// NewRandom returns a picker selecting endpoints uniformly at random.
func NewRandom() Picker {
	return random{}
}

func (random) Pick(service string, endpoints []registry.Endpoint) registry.Endpoint {
	return endpoints[rand.Intn(len(endpoints))]
}
