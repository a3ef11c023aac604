// Package bulkstage implements the reverse-interest bulk-input protocol of
// spec.md §4.8: when the compute node needs large input (matrix rows,
// camera snapshot rows) it cannot fit in a single reply, it pulls the data
// from the requester itself via paced, ranged, versioned interests.
// Grounded on internal/ringbuf/reader.go's background paced producer/
// consumer loop shape and internal/protocol/frame.go's name/version
// matching discipline.
package bulkstage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bukatea/reuse-edge/internal/ndn"
)

// PacingInterval is the fixed spacing between successive staging interest
// issuances, a constant spec.md §4.8 says implementations MUST respect
// as-is (it reflects downstream hardware pacing requirements).
const PacingInterval = 30 * time.Millisecond

// OnTimeout, when non-nil, is invoked with the staging kind every time a
// row-range interest times out and is about to be reissued with a new
// version. Wired once at process startup to internal/metrics's
// RecordBulkStageTimeout; left nil in every test in this package.
var OnTimeout func(kind string)

// Kind selects which staging row-kind a name addresses.
const (
	KindMatrix = "matrix"
	KindCamera = "detectfaces"
)

// Lifetime returns the interest lifetime for kind: 1s for matrix rows, 2s
// for camera rows, per spec.md §4.8.
func Lifetime(kind string) time.Duration {
	if kind == KindCamera {
		return 2 * time.Second
	}
	return time.Second
}

// RowsPerPacket computes the maximum row count that fits in one packet:
// ⌊appOctetLimit / rowBytes⌋, floored at 1 so a caller with an oversized
// row still makes forward progress one row at a time.
func RowsPerPacket(appOctetLimit, rowBytes int) int {
	if rowBytes <= 0 {
		return 1
	}
	n := appOctetLimit / rowBytes
	if n < 1 {
		n = 1
	}
	return n
}

// OnRows is invoked once a range interest is satisfied, with the raw row
// payload for rows [begin, end).
type OnRows func(begin, end int, payload []byte) error

// Stage runs the full paced pull for one requester/kind: it issues
// ⌈totalRows/rowsPerPacket⌉ interests addressing successive row ranges,
// spaced PacingInterval apart, retries any range that times out with a
// bumped version component (to evade duplicate-interest suppression), and
// returns once every range has been satisfied (invoking onRows for each)
// or ctx is done. The caller is responsible for transitioning the
// session to computing once Stage returns successfully.
func Stage(ctx context.Context, face ndn.Face, requesterID, kind string, totalRows, rowsPerPacket int, onRows OnRows) error {
	if totalRows <= 0 {
		return nil
	}
	numRanges := (totalRows + rowsPerPacket - 1) / rowsPerPacket

	errCh := make(chan error, numRanges)
	for i := 0; i < numRanges; i++ {
		begin := i * rowsPerPacket
		end := begin + rowsPerPacket
		if end > totalRows {
			end = totalRows
		}
		go pullRange(ctx, face, requesterID, kind, begin, end, onRows, errCh)

		if i != numRanges-1 {
			select {
			case <-time.After(PacingInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	for i := 0; i < numRanges; i++ {
		if err := <-errCh; err != nil {
			return err
		}
	}
	return nil
}

type rangeResult struct {
	data    ndn.Data
	err     error
	timeout bool
}

// pullRange expresses a single row-range interest, reissuing with a fresh
// version on every timeout, until it is satisfied, nacked, or ctx ends.
func pullRange(ctx context.Context, face ndn.Face, requesterID, kind string, begin, end int, onRows OnRows, done chan<- error) {
	for {
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}

		name := (&ndn.StagingName{
			RequesterID: requesterID,
			Kind:        kind,
			Begin:       begin,
			End:         end,
			Version:     uuid.NewString(),
		}).Name()

		interest := ndn.Interest{
			Name:        name,
			MustBeFresh: true,
			Lifetime:    Lifetime(kind),
		}

		resultCh := make(chan rangeResult, 1)
		err := face.ExpressInterest(ctx, interest,
			func(data ndn.Data) { resultCh <- rangeResult{data: data} },
			func(i ndn.Interest, reason string) { resultCh <- rangeResult{err: fmt.Errorf("bulkstage: nacked: %s", reason)} },
			func(i ndn.Interest) { resultCh <- rangeResult{timeout: true} },
		)
		if err != nil {
			done <- err
			return
		}

		var r rangeResult
		select {
		case r = <-resultCh:
		case <-ctx.Done():
			done <- ctx.Err()
			return
		}
		switch {
		case r.timeout:
			slog.Warn("bulkstage: row range timed out, reissuing with new version",
				"requester_id", requesterID, "kind", kind, "begin", begin, "end", end)
			if OnTimeout != nil {
				OnTimeout(kind)
			}
			continue
		case r.err != nil:
			done <- r.err
			return
		default:
			done <- onRows(begin, end, r.data.Content)
			return
		}
	}
}
