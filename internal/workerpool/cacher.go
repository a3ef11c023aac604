package workerpool

import (
	"context"
	"log/slog"

	"github.com/bukatea/reuse-edge/internal/cache"
	"github.com/bukatea/reuse-edge/internal/matrixkernel"
)

// MatrixCacher drains the background caching work generated by a matrix
// compute worker: every power the worker computes on its way to M^target
// is appended to the spill file so later requests for the same matrix can
// start from it (spec.md §4.4). The worker hands each power over as soon
// as it is computed and the append itself runs on a Pool goroutine; the
// worker waits only when every Pool slot is busy.
type MatrixCacher struct {
	pool  *Pool
	cache *cache.MatrixCache
}

// NewMatrixCacher wires pool to the given matrix reuse cache.
func NewMatrixCacher(pool *Pool, mc *cache.MatrixCache) *MatrixCacher {
	return &MatrixCacher{pool: pool, cache: mc}
}

// EnqueueAppend submits a background append of M^exponent for
// matrixString. Failures are logged, not returned: by the time this runs
// the caller already has its answer, so a spill-file write failure only
// costs a future cache miss, not correctness (spec.md §7).
func (c *MatrixCacher) EnqueueAppend(ctx context.Context, matrixString string, exponent int, m matrixkernel.Matrix) {
	err := c.pool.Submit(ctx, func() {
		if err := c.cache.AppendPower(matrixString, exponent, m); err != nil {
			slog.Warn("workerpool: failed to append cached matrix power",
				"matrix_string", matrixString, "exponent", exponent, "error", err)
		}
	})
	if err != nil {
		slog.Warn("workerpool: failed to submit cache append job",
			"matrix_string", matrixString, "exponent", exponent, "error", err)
	}
}
