// Package session implements the per-requester state machine of
// spec.md §4.7: idle → pending_input? → computing → ready → idle,
// advanced only by the single interest-callback thread that owns a given
// requester_id, mirroring the teacher's mutex-guarded struct with explicit
// transition methods (internal/protocol/session.go).
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bukatea/reuse-edge/internal/cache"
)

// State is one of the four states of spec.md §4.7.
type State string

const (
	StateIdle         State = "idle"
	StatePendingInput State = "pending_input"
	StateComputing    State = "computing"
	StateReady        State = "ready"
)

// ErrInvalidTransition reports an attempted transition from a state that
// does not allow it, mirroring internal/protocol/session.go's
// "cannot activate session in state %s" style errors.
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("session: cannot transition from %s to %s", e.From, e.To)
}

// Session tracks one requester_id's state across the compute lifecycle of
// spec.md §4.7, plus the camera reuse cache that persists across a
// multi-snapshot trial for that requester (spec.md §4.5's "the session
// keeps its reuse-cache entries across cycles").
type Session struct {
	mu sync.Mutex

	RequesterID string
	CreatedAt   time.Time
	LastActive  time.Time
	deadline    time.Duration // 0 disables the optional per-session deadline (spec.md §9)

	state          State
	iterationCount int
	readyFlag      bool
	result         string
	doneCh         chan struct{}

	// Camera is lazily shared across a requester's snapshot cycles; it is
	// nil until first touched by a camera request.
	Camera        *cache.CameraCache
	snapshotIndex map[float64]int
}

// New creates an idle session for requesterID. deadline is the optional
// session-wide compute deadline of spec.md §9's open question; zero
// disables it, matching the original's unbounded-wait behavior.
func New(requesterID string, deadline time.Duration) *Session {
	now := time.Now()
	return &Session{
		RequesterID:   requesterID,
		CreatedAt:     now,
		LastActive:    now,
		deadline:      deadline,
		state:         StateIdle,
		snapshotIndex: make(map[float64]int),
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) touch() {
	s.LastActive = time.Now()
}

// BeginComputing transitions idle → computing directly, used when a
// compute worker can start immediately (fingerprint already cached, or no
// bulk input required). iteration count resets to 1 for the immediate
// CTT(1) reply.
func (s *Session) BeginComputing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return &ErrInvalidTransition{From: s.state, To: StateComputing}
	}
	s.state = StateComputing
	s.iterationCount = 1
	s.readyFlag = false
	s.doneCh = make(chan struct{})
	s.touch()
	return nil
}

// BeginPendingInput transitions idle → pending_input, used when the CN
// must stage bulk input from the requester before compute can start
// (spec.md §4.8).
func (s *Session) BeginPendingInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return &ErrInvalidTransition{From: s.state, To: StatePendingInput}
	}
	s.state = StatePendingInput
	s.iterationCount = 1
	s.readyFlag = false
	s.touch()
	return nil
}

// InputStagingComplete transitions pending_input → computing once bulk
// staging has collected every expected row (spec.md §4.8).
func (s *Session) InputStagingComplete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePendingInput {
		return &ErrInvalidTransition{From: s.state, To: StateComputing}
	}
	s.state = StateComputing
	s.doneCh = make(chan struct{})
	s.touch()
	return nil
}

// NextPoll records a subsequent interest while computing or staging and
// returns the updated poll count used in the CTT formula (spec.md §4.6).
func (s *Session) NextPoll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComputing && s.state != StatePendingInput {
		return 0, &ErrInvalidTransition{From: s.state, To: s.state}
	}
	s.iterationCount++
	s.touch()
	return s.iterationCount, nil
}

// PollCount returns the current poll count without advancing it, used by
// Manager.Snapshot.
func (s *Session) PollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iterationCount
}

// MarkReady transitions computing → ready, recording the final result
// string published by the compute worker (spec.md §4.9) and signalling
// any goroutine blocked in Join.
func (s *Session) MarkReady(result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComputing {
		return &ErrInvalidTransition{From: s.state, To: StateReady}
	}
	s.state = StateReady
	s.readyFlag = true
	s.result = result
	if s.doneCh != nil {
		close(s.doneCh)
	}
	s.touch()
	return nil
}

// Join blocks until the compute worker started by the most recent
// BeginComputing/InputStagingComplete call has finished, or ctx is done,
// or the session's own optional deadline elapses first. It is a no-op
// returning immediately once the session is already in the ready state.
func (s *Session) Join(ctx context.Context) error {
	s.mu.Lock()
	done := s.doneCh
	deadline := s.deadline
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TakeResult transitions ready → idle, returning the final result and
// resetting iteration_count/ready_flag per spec.md §4.7 step 3. It is the
// caller's responsibility to have already joined the worker (e.g. via
// Join) before calling this.
func (s *Session) TakeResult() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return "", &ErrInvalidTransition{From: s.state, To: StateIdle}
	}
	result := s.result
	s.state = StateIdle
	s.iterationCount = 0
	s.readyFlag = false
	s.result = ""
	s.doneCh = nil
	s.touch()
	return result, nil
}

// Fail force-transitions computing or pending_input directly to ready
// with an error result, used when bulk staging or compute fails outright
// (spec.md §7's "compute failure" and "bulk-staging timeout/NACK"
// taxonomy) — the next poll delivers the error marker as if it were a
// normal final result.
func (s *Session) Fail(result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComputing && s.state != StatePendingInput {
		return &ErrInvalidTransition{From: s.state, To: StateReady}
	}
	s.state = StateReady
	s.readyFlag = true
	s.result = result
	if s.doneCh == nil {
		s.doneCh = make(chan struct{})
	}
	close(s.doneCh)
	s.touch()
	return nil
}

// ReadyFlag reports whether the session currently holds a computed,
// unclaimed result.
func (s *Session) ReadyFlag() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyFlag
}

// IsExpired reports whether this session's optional deadline (if any) has
// elapsed since its last activity, per spec.md §9's open question on
// bulk-staging permanent failure.
func (s *Session) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadline <= 0 {
		return false
	}
	return time.Since(s.LastActive) > s.deadline
}

// CameraCacheFor lazily creates the per-requester camera reuse cache on
// first use, then returns it on every subsequent snapshot cycle so
// detections accumulate across the whole trial (spec.md §4.5).
func (s *Session) CameraCacheFor() *cache.CameraCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Camera == nil {
		s.Camera = cache.NewCameraCache()
	}
	return s.Camera
}

// NextSnapshotIndex increments and returns the 1-based snapshot index for
// overlap, used as snapshot_index in the camera cache's coordinate
// translation (spec.md §4.5).
func (s *Session) NextSnapshotIndex(overlap float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotIndex[overlap]++
	return s.snapshotIndex[overlap]
}

// ResetOverlap starts a new camera trial for overlap: it clears both the
// accumulated rectangle set and the snapshot index, used when a "/first"
// snapshot arrives (spec.md §6).
func (s *Session) ResetOverlap(overlap float64) {
	s.mu.Lock()
	cam := s.Camera
	s.snapshotIndex[overlap] = 0
	s.mu.Unlock()
	if cam != nil {
		cam.Reset(overlap)
	}
}
