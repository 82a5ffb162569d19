package session

import "sync"

// gate is a single-flight guard. At any instant either no operation is in
// flight (inFlight false, done nil) or exactly one is (inFlight true, done is
// the channel every waiter observes). The pair is always mutated together
// under mu.
type gate struct {
	mu       sync.Mutex
	inFlight bool
	done     chan struct{}
	ok       bool
	err      error
}

// begin claims the gate. The first caller becomes the leader (leader true)
// and must call finish exactly once, in a defer, so the gate is released even
// if the guarded operation panics. Every other caller receives the in-flight
// done channel to wait on.
func (g *gate) begin() (leader bool, done <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight {
		return false, g.done
	}
	g.inFlight = true
	g.done = make(chan struct{})
	return true, g.done
}

// finish records the outcome, releases the gate, and wakes all waiters.
func (g *gate) finish(ok bool, err error) {
	g.mu.Lock()
	g.ok = ok
	g.err = err
	g.inFlight = false
	done := g.done
	g.done = nil
	g.mu.Unlock()

	close(done)
}

// outcome returns the result recorded by the most recent finish.
func (g *gate) outcome() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ok, g.err
}

// active reports whether an operation is currently in flight.
func (g *gate) active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}
