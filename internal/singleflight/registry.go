// Package singleflight implements the per-fingerprint gate of spec.md §4.2:
// at most one worker computes a given fingerprint at a time, and late
// arrivals block until the holder releases, then read the reuse cache.
//
// This is deliberately not golang.org/x/sync/singleflight: that package
// runs the duplicated call itself inside Do and blocks the calling
// goroutine until it returns. Here the "call" is a compute worker launched
// from a session's interest callback, and a second interest for the same
// fingerprint must record wait_to_grab and return immediately — only a
// dedicated waiter goroutine may block on Wait. See DESIGN.md.
package singleflight

import "sync"

// gate is a one-shot armed/fired latch with its own lock and condition,
// matching the binary semaphore shape spec.md §3/§9 describes.
type gate struct {
	mu    sync.Mutex
	cond  *sync.Cond
	fired bool
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *gate) wait() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for !g.fired {
		g.cond.Wait()
	}
}

func (g *gate) fire() {
	g.mu.Lock()
	g.fired = true
	g.mu.Unlock()
	g.cond.Broadcast()
}

// Registry is the mapping fingerprint → gate described in spec.md §3.
type Registry struct {
	mu    sync.Mutex
	gates map[string]*gate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{gates: make(map[string]*gate)}
}

// TryClaim attempts to become the sole computer of fp. If no gate exists
// for fp, one is created and claimed == true is returned: the caller is
// now the holder and MUST call Release exactly once, on every exit path
// (success, compute failure, or cancellation — spec.md §4.2/§5).
// If a gate already exists, claimed == false: the caller must record
// wait_to_grab and later call Wait.
func (r *Registry) TryClaim(fp string) (claimed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.gates[fp]; exists {
		return false
	}
	r.gates[fp] = newGate()
	return true
}

// Wait blocks until the current holder of fp releases. It is safe to call
// even if the gate has already been released and removed (the fingerprint
// is then simply not found and Wait returns immediately) — this matches
// an unavoidable narrow race for a late Wait call issued just as Release
// completes, in which case the caller is guaranteed the cache already
// holds the result per spec.md §4.2's "insert before release" ordering.
func (r *Registry) Wait(fp string) {
	r.mu.Lock()
	g, ok := r.gates[fp]
	r.mu.Unlock()
	if !ok {
		return
	}
	g.wait()
}

// Release fires the gate (waking every waiter) and removes fp from the
// registry. Safe to call at most once per TryClaim==true; a second call
// for a fingerprint with no held gate is a no-op.
func (r *Registry) Release(fp string) {
	r.mu.Lock()
	g, ok := r.gates[fp]
	if ok {
		delete(r.gates, fp)
	}
	r.mu.Unlock()
	if ok {
		g.fire()
	}
}

// InFlight reports whether fp currently has a holder. Used by callers that
// need to decide, at session-creation time, whether the fingerprint is
// already being computed (spec.md §4.7's "fingerprint is already cached"
// check is separate — this only reports flight state).
func (r *Registry) InFlight(fp string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.gates[fp]
	return ok
}
