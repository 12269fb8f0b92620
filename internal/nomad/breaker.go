package nomad

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without a request when an endpoint has failed
// too often in a row
var ErrCircuitOpen = errors.New("circuit open")

// CircuitState is the state of one endpoint's breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type circuit struct {
	state    CircuitState
	failures int
	changed  time.Time
}

// breaker tracks consecutive server failures per endpoint path. An open
// endpoint admits one trial request after the cooldown; its outcome closes or
// reopens it.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	circuits  map[string]*circuit
	now       func() time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		circuits:  make(map[string]*circuit),
		now:       time.Now,
	}
}

func (b *breaker) get(path string) *circuit {
	c, ok := b.circuits[path]
	if !ok {
		c = &circuit{changed: b.now()}
		b.circuits[path] = c
	}
	return c
}

func (b *breaker) allow(path string) bool {
	if b.threshold < 1 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(path)
	if c.state == CircuitOpen {
		if b.now().Sub(c.changed) < b.cooldown {
			return false
		}
		c.state = CircuitHalfOpen
		c.changed = b.now()
	}
	return true
}

func (b *breaker) success(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.get(path)
	if c.state != CircuitClosed {
		c.changed = b.now()
	}
	c.state = CircuitClosed
	c.failures = 0
}

func (b *breaker) failure(path string) {
	if b.threshold < 1 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(path)
	c.failures++
	if c.state == CircuitHalfOpen || c.failures >= b.threshold {
		c.state = CircuitOpen
		c.changed = b.now()
	}
}

func (b *breaker) stateOf(path string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.circuits[path]; ok {
		return c.state
	}
	return CircuitClosed
}
