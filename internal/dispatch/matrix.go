package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/bukatea/reuse-edge/internal/bulkstage"
	"github.com/bukatea/reuse-edge/internal/ctt"
	"github.com/bukatea/reuse-edge/internal/matrixkernel"
	"github.com/bukatea/reuse-edge/internal/ndn"
	"github.com/bukatea/reuse-edge/internal/session"
)

// matrixRowBytes is the wire size of one dim-wide matrix row in the
// bulk-staging payload format: dim decimal int64 fields, comma-separated,
// with a trailing row separator. Used to derive rows_per_packet (spec.md
// §4.8); matrix parsing itself is a non-goal codec detail, so this sizing
// is approximate (it assumes single-digit entries, matching the
// consumer's fill-value CLI convention of small test matrices).
func matrixRowBytes(dim int) int {
	return dim*2 + 1
}

// StartMatrixSession handles the first interest of a multiply request
// (spec.md §4.7 step 1 / §4.4 / §4.9's matrix worker).
func (d *Dispatcher) StartMatrixSession(ctx context.Context, sess *session.Session, req *ndn.MultiplyRequest) string {
	claimed := d.SingleFlight.TryClaim(req.MatrixHash)

	var base, startMat matrixkernel.Matrix
	startExp := 0
	found := false
	if d.UseMatrixCache && req.MatrixHash != "" {
		b, se, sm, f, err := d.MatrixCache.Lookup(req.MatrixHash, req.Exp)
		if err != nil {
			slog.Warn("dispatch: matrix cache lookup failed, degrading to no-cache path", "matrix_hash", req.MatrixHash, "error", err)
		} else if f {
			base, startExp, startMat, found = b, se, sm, f
		}
		d.Metrics.RecordCacheLookup("matrix", found)
	}
	if !claimed {
		d.Metrics.RecordSingleFlightWait("matrix")
	}

	if claimed && !found {
		if err := sess.BeginPendingInput(); err != nil {
			slog.Error("dispatch: matrix BeginPendingInput", "requester_id", req.RequesterID, "error", err)
		}
	} else {
		if err := sess.BeginComputing(); err != nil {
			slog.Error("dispatch: matrix BeginComputing", "requester_id", req.RequesterID, "error", err)
		}
	}

	go d.runMatrixWorker(ctx, sess, req, claimed, found, base, startExp, startMat)

	return ctt.Format(1, found)
}

func (d *Dispatcher) runMatrixWorker(ctx context.Context, sess *session.Session, req *ndn.MultiplyRequest, claimed, found bool, base matrixkernel.Matrix, startExp int, startMat matrixkernel.Matrix) {
	for !claimed {
		d.SingleFlight.Wait(req.MatrixHash)
		if d.UseMatrixCache && req.MatrixHash != "" {
			if b, se, sm, f, err := d.MatrixCache.Lookup(req.MatrixHash, req.Exp); err == nil && f {
				base, startExp, startMat, found = b, se, sm, f
			}
		}
		claimed = d.SingleFlight.TryClaim(req.MatrixHash)
	}
	defer d.SingleFlight.Release(req.MatrixHash)

	if !found {
		staged, err := d.stageMatrix(ctx, req)
		if err != nil {
			if ferr := sess.Fail(fmt.Sprintf("error: %v", err)); ferr != nil {
				slog.Error("dispatch: matrix Fail", "error", ferr)
			}
			return
		}
		base = staged
		startExp = 1
		startMat = base
		if d.UseMatrixCache && req.MatrixHash != "" {
			if rerr := d.MatrixCache.RegisterFirstSighting(req.MatrixHash, base); rerr != nil {
				slog.Warn("dispatch: failed to register matrix first sighting, degrading to no-cache path", "matrix_hash", req.MatrixHash, "error", rerr)
				d.MatrixCache.RollbackFirstSighting(req.MatrixHash)
			}
		}
		if err := sess.InputStagingComplete(); err != nil {
			slog.Error("dispatch: matrix InputStagingComplete", "error", err)
		}
	}

	product := startMat
	for exp := startExp + 1; exp <= req.Exp; exp++ {
		job := d.Kernel.Multiply(product, base)
		next, err := job.WaitForFinished(ctx)
		if err != nil {
			if ferr := sess.Fail(fmt.Sprintf("error: %v", err)); ferr != nil {
				slog.Error("dispatch: matrix Fail (compute)", "error", ferr)
			}
			return
		}
		product = next
		if d.UseMatrixCache && req.MatrixHash != "" && d.Cacher != nil {
			d.Cacher.EnqueueAppend(ctx, req.MatrixHash, exp, product)
		}
	}

	if err := sess.MarkReady("Done"); err != nil {
		slog.Error("dispatch: matrix MarkReady", "error", err)
	}
}

// stageMatrix pulls the dim×dim base matrix from the requester via
// spec.md §4.8's bulk-staging protocol.
func (d *Dispatcher) stageMatrix(ctx context.Context, req *ndn.MultiplyRequest) (matrixkernel.Matrix, error) {
	rowBytes := matrixRowBytes(req.Dim)
	rowsPerPacket := bulkstage.RowsPerPacket(d.AppOctetLimit, rowBytes)

	rows := make([][]int64, req.Dim)
	var mu sync.Mutex
	onRows := func(begin, end int, payload []byte) error {
		parsed, err := parseMatrixRowRange(string(payload), req.Dim)
		if err != nil {
			return err
		}
		if len(parsed) != end-begin {
			return fmt.Errorf("dispatch: staged row count mismatch: got %d want %d", len(parsed), end-begin)
		}
		mu.Lock()
		defer mu.Unlock()
		for i, row := range parsed {
			rows[begin+i] = row
		}
		return nil
	}

	if err := bulkstage.Stage(ctx, d.Face, req.RequesterID, bulkstage.KindMatrix, req.Dim, rowsPerPacket, onRows); err != nil {
		return nil, err
	}
	return matrixkernel.Matrix(rows), nil
}

// parseMatrixRowRange parses the same "," column / "|" row wire format
// internal/matrixkernel uses for a full matrix, but without requiring
// squareness, since a staged packet typically holds fewer rows than dim
// columns. Matrix parsing is an explicit non-goal codec detail; this
// format simply reuses the one already established for the on-disk spill
// file for consistency.
func parseMatrixRowRange(s string, dim int) ([][]int64, error) {
	rowStrs := strings.Split(s, "|")
	if len(rowStrs) > 0 && rowStrs[len(rowStrs)-1] == "" {
		rowStrs = rowStrs[:len(rowStrs)-1]
	}
	rows := make([][]int64, 0, len(rowStrs))
	for _, rowStr := range rowStrs {
		cols := strings.Split(rowStr, ",")
		if len(cols) != dim {
			return nil, fmt.Errorf("dispatch: staged row has %d columns, want %d", len(cols), dim)
		}
		row := make([]int64, dim)
		for i, c := range cols {
			v, err := strconv.ParseInt(c, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("dispatch: parse staged row: %w", err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
