package ndn

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Network is an in-memory stand-in for a named-data forwarder, shared by
// every Fake Face attached to it. It exists only so the rest of this
// repository's concurrency-sensitive logic (single-flight, bulk staging,
// session transitions) can be exercised deterministically in tests without
// a real forwarder — the real transport is explicitly out of scope.
type Network struct {
	mu      sync.Mutex
	filters map[string]InterestHandler // prefix (joined with "/") -> handler

	// dropOnce, keyed by the exact interest name with its version
	// component stripped, causes the next matching ExpressInterest to
	// time out instead of reaching a handler — used to exercise the
	// bulk-staging retry-with-new-version path.
	dropOnce map[string]int
}

// NewNetwork creates an empty in-memory network.
func NewNetwork() *Network {
	return &Network{
		filters:  make(map[string]InterestHandler),
		dropOnce: make(map[string]int),
	}
}

// DropNext arranges for the next n interests whose name (ignoring a
// trailing version component) equals baseName to be dropped (causing a
// timeout) rather than delivered to a handler.
func (n *Network) DropNext(baseName string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropOnce[strings.Trim(baseName, "/")] += count
}

func (n *Network) takeDrop(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	base := versionlessBase(name)
	if n.dropOnce[base] > 0 {
		n.dropOnce[base]--
		return true
	}
	return false
}

// versionlessBase drops the last path component, mirroring the "ignore
// the version component" matching rule of spec.md §4.8.
func versionlessBase(name string) string {
	name = strings.Trim(name, "/")
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return name
	}
	return name[:idx]
}

func (n *Network) register(prefix string, h InterestHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.filters[strings.Trim(prefix, "/")] = h
}

// lookup finds the longest registered prefix matching name.
func (n *Network) lookup(name string) (InterestHandler, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	parts := strings.Split(strings.Trim(name, "/"), "/")
	for end := len(parts); end > 0; end-- {
		candidate := strings.Join(parts[:end], "/")
		if h, ok := n.filters[candidate]; ok {
			return h, true
		}
	}
	return nil, false
}

// Fake is a Face backed by a shared Network.
type Fake struct {
	net *Network
}

// NewFake attaches a new Face to net.
func NewFake(net *Network) *Fake {
	return &Fake{net: net}
}

func (f *Fake) PublishInterestFilter(prefix string, handler InterestHandler) error {
	f.net.register(prefix, handler)
	return nil
}

func (f *Fake) ExpressInterest(ctx context.Context, interest Interest, onData DataCallback, onNack NackCallback, onTimeout TimeoutCallback) error {
	if f.net.takeDrop(interest.Name) {
		go f.waitTimeout(ctx, interest, onTimeout)
		return nil
	}

	handler, ok := f.net.lookup(interest.Name)
	if !ok {
		go f.waitTimeout(ctx, interest, onTimeout)
		return nil
	}

	go func() {
		hctx := ctx
		var cancel context.CancelFunc
		if interest.Lifetime > 0 {
			hctx, cancel = context.WithTimeout(ctx, interest.Lifetime)
			defer cancel()
		}
		data, ok, nackReason := handler(hctx, interest)
		switch {
		case nackReason != "":
			onNack(interest, nackReason)
		case ok:
			onData(data)
		default:
			f.waitTimeout(ctx, interest, onTimeout)
		}
	}()
	return nil
}

func (f *Fake) waitTimeout(ctx context.Context, interest Interest, onTimeout TimeoutCallback) {
	lifetime := interest.Lifetime
	if lifetime <= 0 {
		lifetime = time.Second
	}
	t := time.NewTimer(lifetime)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
		onTimeout(interest)
	}
}

func (f *Fake) Put(data Data) error {
	// The pull-based model means replies are carried back through the
	// handler's return value rather than through Put; Put exists on the
	// interface for symmetry with a real face and is a no-op here.
	return nil
}
