// Package chessengine declares the black-box chess search collaborator.
// Per spec.md §1 the engine itself (think Goldfish/stockfish-shaped search)
// is out of scope; only the compute(fen, depth) → result contract and its
// wait_for_finished affordance are modeled here.
package chessengine

import "context"

// Job represents one in-flight search. WaitForFinished blocks until the
// engine has produced a result or the context is cancelled.
type Job interface {
	WaitForFinished(ctx context.Context) (result string, err error)
}

// Engine launches chess searches. Compute returns immediately with a Job;
// the caller joins it via WaitForFinished, matching the "thread-per-request,
// join on worker" model of spec.md §5.
type Engine interface {
	Compute(fen string, depth int) Job
}
