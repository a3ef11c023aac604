package chessengine

import (
	"context"
	"fmt"
	"sync/atomic"
)

// FakeEngine is a deterministic stand-in for a real search engine, used by
// tests and by the CN binaries when no real collaborator is wired. The
// result is a pure function of (fen, depth) so repeated computation of the
// same input is verifiable, and NodesComputed lets tests assert that a
// reuse-cache hit skipped computation entirely (spec.md §8 scenario 1).
type FakeEngine struct {
	nodesComputed atomic.Int64
	invocations   atomic.Int64
}

// NewFakeEngine returns a ready-to-use fake engine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{}
}

// NodesComputed returns the cumulative node count the fake has "searched".
func (e *FakeEngine) NodesComputed() int64 { return e.nodesComputed.Load() }

// Invocations returns the number of times Compute was called.
func (e *FakeEngine) Invocations() int64 { return e.invocations.Load() }

type fakeJob struct {
	result string
}

func (j *fakeJob) WaitForFinished(ctx context.Context) (string, error) {
	return j.result, nil
}

// Compute deterministically derives a move string from fen and depth and
// accrues a synthetic node count proportional to depth, the way a real
// alpha-beta search would do more work at greater depth.
func (e *FakeEngine) Compute(fen string, depth int) Job {
	e.invocations.Add(1)
	nodes := int64(1)
	for i := 0; i < depth; i++ {
		nodes *= 12
	}
	e.nodesComputed.Add(nodes)
	return &fakeJob{result: fmt.Sprintf("bestmove e2e4 depth%d fen=%s", depth, fen)}
}
