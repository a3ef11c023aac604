package ndn

import (
	"context"
	"time"
)

// Data is a named-data reply unit. Signature is the opaque placeholder
// spec.md §1/§7 calls for — no authentication is implemented against it.
type Data struct {
	Name      string
	Content   []byte
	Freshness time.Duration
	Signature []byte
}

// Interest is an outgoing or incoming named-data request.
type Interest struct {
	Name        string
	CanBePrefix bool
	MustBeFresh bool
	Lifetime    time.Duration
}

// InterestHandler answers an incoming interest under a registered prefix.
// It returns the Data to publish, or ok=false to silently ignore (e.g. a
// request the handler chooses not to service at all).
type InterestHandler func(ctx context.Context, interest Interest) (data Data, ok bool, nackReason string)

// DataCallback is invoked when an expressed interest is satisfied.
type DataCallback func(data Data)

// NackCallback is invoked when an expressed interest is rejected.
type NackCallback func(interest Interest, reason string)

// TimeoutCallback is invoked when an expressed interest's lifetime elapses
// with no reply.
type TimeoutCallback func(interest Interest)

// Face is the duplex the compute node talks to: publish_interest_filter,
// express_interest, put_data. The concrete named-data transport is out of
// scope per spec.md §1 — this interface and the in-memory Fake
// implementation in fake.go are the only things this repository defines.
type Face interface {
	// PublishInterestFilter registers handler for every incoming interest
	// whose name falls under prefix.
	PublishInterestFilter(prefix string, handler InterestHandler) error

	// ExpressInterest sends an outgoing interest, invoking exactly one of
	// onData, onNack, or onTimeout once the interest is resolved.
	ExpressInterest(ctx context.Context, interest Interest, onData DataCallback, onNack NackCallback, onTimeout TimeoutCallback) error

	// Put publishes a Data unit unsolicited-style, matching it against any
	// pending interest under its name (used by the staging responder side
	// of a Fake transport; a real forwarder matches this against its PIT).
	Put(data Data) error
}
