package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bukatea/reuse-edge/internal/ctt"
	"github.com/bukatea/reuse-edge/internal/ndn"
	"github.com/bukatea/reuse-edge/internal/session"
)

// StartChessSession handles the first interest of a chess request
// (spec.md §4.7 step 1 / §4.9's chess worker): it claims or joins the
// fingerprint's single-flight gate, consults the reuse cache, moves the
// session to computing, launches the background worker, and returns the
// immediate CTT reply.
func (d *Dispatcher) StartChessSession(ctx context.Context, sess *session.Session, req *ndn.ChessRequest) string {
	claimed := d.SingleFlight.TryClaim(req.FEN)

	var cachedResult string
	found := false
	if d.UseChessCache {
		if d.ChessCache.EnsureAdmission(req.FEN) {
			cachedResult, found = d.ChessCache.Lookup(req.FEN, req.Depth)
		}
		d.Metrics.RecordCacheLookup("chess", found)
	}
	if !claimed {
		d.Metrics.RecordSingleFlightWait("chess")
	}

	if err := sess.BeginComputing(); err != nil {
		slog.Error("dispatch: chess BeginComputing", "requester_id", req.RequesterID, "error", err)
	}

	go d.runChessWorker(ctx, sess, req, claimed, found, cachedResult)

	return ctt.Format(1, found)
}

// runChessWorker is the chess compute worker of spec.md §4.9: feed FEN and
// depth to the chess collaborator, await completion, store the result if
// admitted (before releasing single-flight, per spec.md §9's ordering
// fix), release single-flight, set ready_flag.
func (d *Dispatcher) runChessWorker(ctx context.Context, sess *session.Session, req *ndn.ChessRequest, claimed, found bool, cachedResult string) {
	for !claimed {
		d.SingleFlight.Wait(req.FEN)
		if d.UseChessCache {
			if r, ok := d.ChessCache.Lookup(req.FEN, req.Depth); ok {
				if err := sess.MarkReady(r); err != nil {
					slog.Error("dispatch: chess MarkReady (cache hit after wait)", "error", err)
				}
				return
			}
		}
		// The prior holder computed a different depth for this FEN; claim
		// the fingerprint ourselves and compute the depth we actually need.
		claimed = d.SingleFlight.TryClaim(req.FEN)
	}
	defer d.SingleFlight.Release(req.FEN)

	if found {
		if err := sess.MarkReady(cachedResult); err != nil {
			slog.Error("dispatch: chess MarkReady (cache hit)", "error", err)
		}
		return
	}

	job := d.Engine.Compute(req.FEN, req.Depth)
	result, err := job.WaitForFinished(ctx)
	if err != nil {
		result = fmt.Sprintf("error: %v", err)
	} else if d.UseChessCache {
		d.ChessCache.Store(req.FEN, req.Depth, result)
	}

	if err := sess.MarkReady(result); err != nil {
		slog.Error("dispatch: chess MarkReady (computed)", "error", err)
	}
}
