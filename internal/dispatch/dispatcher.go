// Package dispatch wires the compute workers of spec.md §4.9 to the reuse
// caches, the single-flight registry, the session state machine and the
// bulk-staging protocol. Grounded on internal/ghostpool/pool_manager.go's
// "release on every exit path" defer-guard idiom, generalized from a
// single Put-style release to the three compute flavours' single-flight
// release discipline.
package dispatch

import (
	"github.com/bukatea/reuse-edge/internal/cache"
	"github.com/bukatea/reuse-edge/internal/chessengine"
	"github.com/bukatea/reuse-edge/internal/facedetect"
	"github.com/bukatea/reuse-edge/internal/matrixkernel"
	"github.com/bukatea/reuse-edge/internal/metrics"
	"github.com/bukatea/reuse-edge/internal/ndn"
	"github.com/bukatea/reuse-edge/internal/singleflight"
	"github.com/bukatea/reuse-edge/internal/workerpool"
)

// Dispatcher owns every collaborator and cache a compute worker needs.
// One Dispatcher is shared across all sessions for a single CN process.
type Dispatcher struct {
	Face         ndn.Face
	SingleFlight *singleflight.Registry

	ChessCache    *cache.ChessCache
	MatrixCache   *cache.MatrixCache
	UseChessCache bool
	UseMatrixCache bool

	Engine   chessengine.Engine
	Kernel   matrixkernel.Kernel
	Detector facedetect.Detector

	// DisableCameraCache, when true, makes every detectfaces snapshot reset
	// its session's overlap recovery state before processing (as if it were
	// always the first snapshot of a trial), so StartCameraSession never
	// reuses rectangles detected on a prior snapshot. Unlike
	// UseChessCache/UseMatrixCache this has no matching constructor
	// parameter: it defaults to false (cache enabled), matching every
	// existing camera test, and cmd/camera-cn sets it directly from its
	// use_cache CLI argument.
	DisableCameraCache bool

	Cacher *workerpool.MatrixCacher

	// AppOctetLimit bounds how many bytes fit in one staged reply packet,
	// used to derive rows_per_packet per spec.md §4.8.
	AppOctetLimit int

	// Metrics is optional operational instrumentation (internal/metrics);
	// a nil value (the zero value left by New, and by every test in this
	// package) makes every recording call a no-op.
	Metrics *metrics.Metrics
}

// New creates a Dispatcher from its collaborators. Any cache may be nil
// when its Use*Cache flag is false.
func New(face ndn.Face, sf *singleflight.Registry, chessCache *cache.ChessCache, matrixCache *cache.MatrixCache, useChessCache, useMatrixCache bool, engine chessengine.Engine, kernel matrixkernel.Kernel, detector facedetect.Detector, cacher *workerpool.MatrixCacher, appOctetLimit int) *Dispatcher {
	return &Dispatcher{
		Face:           face,
		SingleFlight:   sf,
		ChessCache:     chessCache,
		MatrixCache:    matrixCache,
		UseChessCache:  useChessCache,
		UseMatrixCache: useMatrixCache,
		Engine:         engine,
		Kernel:         kernel,
		Detector:       detector,
		Cacher:         cacher,
		AppOctetLimit:  appOctetLimit,
	}
}
