// Package service is the compute node's entrypoint of spec.md §4.9/§8: it
// registers the named-data interest filter under the shared
// "/edge-compute/computer" prefix and routes each incoming interest, by
// verb, through the per-requester session state machine (spec.md §4.7) to
// the compute dispatcher. One Service instance serves exactly one verb,
// matching the three separate CN binaries spec.md §6 names.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bukatea/reuse-edge/internal/ctt"
	"github.com/bukatea/reuse-edge/internal/dispatch"
	"github.com/bukatea/reuse-edge/internal/metrics"
	"github.com/bukatea/reuse-edge/internal/ndn"
	"github.com/bukatea/reuse-edge/internal/session"
)

const computerPrefix = "edge-compute/computer"

// placeholderSignature is the opaque signature spec.md §1/§7 calls for:
// this repository implements no authentication scheme, so every reply
// simply carries this fixed marker in the Signature field.
var placeholderSignature = []byte("reuse-edge-unsigned")

// chessMatrixFreshness is the 10s reply freshness of spec.md §6 for the
// two non-camera verbs; camera replies use cameraFreshness (1s).
const (
	chessMatrixFreshness = 10 * time.Second
	cameraFreshness      = time.Second
)

// Service wires one verb's interest filter to its session manager and
// dispatcher.
type Service struct {
	Face       ndn.Face
	Sessions   *session.Manager
	Dispatcher *dispatch.Dispatcher
	Metrics    *metrics.Metrics
	Verb       string
}

// New creates a Service for verb (one of ndn.VerbChess, ndn.VerbMultiply,
// ndn.VerbDetectFaces).
func New(face ndn.Face, sessions *session.Manager, dispatcher *dispatch.Dispatcher, m *metrics.Metrics, verb string) *Service {
	return &Service{Face: face, Sessions: sessions, Dispatcher: dispatcher, Metrics: m, Verb: verb}
}

// Register publishes the shared computer-prefix interest filter. Multiple
// Services (one per CN process) each register their own Face, so in
// practice each process only ever receives interests for the verb it was
// started to serve, but handle defensively NACKs anything else.
func (s *Service) Register() error {
	return s.Face.PublishInterestFilter(computerPrefix, s.handle)
}

func freshnessFor(verb string) time.Duration {
	if verb == ndn.VerbDetectFaces {
		return cameraFreshness
	}
	return chessMatrixFreshness
}

// handle is the ndn.InterestHandler wired to the registered filter: it
// peeks the verb, rejects anything this Service does not serve, and
// dispatches to the matching per-verb serve function.
func (s *Service) handle(ctx context.Context, interest ndn.Interest) (ndn.Data, bool, string) {
	verb, requesterID, ok := ndn.PeekVerb(interest.Name)
	if !ok || verb != s.Verb {
		return ndn.Data{}, false, "malformed-name"
	}

	var reply string
	var err error
	switch s.Verb {
	case ndn.VerbChess:
		reply, err = s.serveChess(ctx, interest.Name, requesterID)
	case ndn.VerbMultiply:
		reply, err = s.serveMultiply(ctx, interest.Name, requesterID)
	case ndn.VerbDetectFaces:
		reply, err = s.serveDetectFaces(ctx, interest.Name, requesterID)
	default:
		return ndn.Data{}, false, "malformed-name"
	}
	if err != nil {
		if err == ndn.ErrMalformedName {
			return ndn.Data{}, false, "malformed-name"
		}
		return ndn.Data{}, false, "session-error"
	}

	return ndn.Data{
		Name:      interest.Name,
		Content:   []byte(reply),
		Freshness: freshnessFor(s.Verb),
		Signature: placeholderSignature,
	}, true, ""
}

// pollReply implements spec.md §4.7's steps 2/3 for a session that is not
// in its idle state: a computing/pending_input session gets the current
// CTT estimate; a ready session hands back the final result and resets to
// idle. start is called instead when the session is still idle.
func pollReply(ctx context.Context, sess *session.Session, verb string, m *metrics.Metrics, start func() (string, error)) (string, error) {
	switch sess.State() {
	case session.StateIdle:
		reply, err := start()
		if err != nil {
			return "", err
		}
		m.RecordPoll(verb, 1)
		return reply, nil
	case session.StateComputing, session.StatePendingInput:
		n, err := sess.NextPoll()
		if err != nil {
			return "", err
		}
		m.RecordPoll(verb, n)
		return ctt.Format(n, false), nil
	case session.StateReady:
		if err := sess.Join(ctx); err != nil {
			return "", err
		}
		return sess.TakeResult()
	default:
		return "", fmt.Errorf("service: session %s in unhandled state %s", sess.RequesterID, sess.State())
	}
}
