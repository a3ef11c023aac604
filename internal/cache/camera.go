package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/bukatea/reuse-edge/internal/facedetect"
)

// CameraCache holds, per overlap ratio, the ordered set of absolute
// detection rectangles accumulated across a sliding-capture trial
// (spec.md §4.5). It is owned by a single session and is not shared across
// sessions.
type CameraCache struct {
	mu        sync.Mutex
	byOverlap map[float64][]facedetect.Rectangle // kept sorted by X
}

// NewCameraCache creates an empty camera reuse cache.
func NewCameraCache() *CameraCache {
	return &CameraCache{byOverlap: make(map[float64][]facedetect.Rectangle)}
}

// Reset clears the accumulated set for overlap, used when a "/first"
// snapshot starts a new trial for that overlap ratio (spec.md §6).
func (c *CameraCache) Reset(overlap float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byOverlap, overlap)
}

func (c *CameraCache) insertLocked(overlap float64, rects []facedetect.Rectangle) {
	set := c.byOverlap[overlap]
	set = append(set, rects...)
	sort.Slice(set, func(i, j int) bool { return set[i].X < set[j].X })
	c.byOverlap[overlap] = set
}

// recoverFromLocked returns rectangles in the set for overlap whose X is
// at least xMin.
func (c *CameraCache) recoverFromLocked(overlap float64, xMin int) []facedetect.Rectangle {
	set := c.byOverlap[overlap]
	idx := sort.Search(len(set), func(i int) bool { return set[i].X >= xMin })
	out := make([]facedetect.Rectangle, len(set)-idx)
	copy(out, set[idx:])
	return out
}

// ProcessSnapshot runs spec.md §4.5's per-snapshot algorithm: detect only
// the non-overlap strip, recover previously-detected rectangles in the
// overlapping region, translate new detections to absolute coordinates,
// and report the total face count. snapshotIndex is 1-based; the first
// snapshot for a given overlap (empty set) runs detection on the full
// image instead of only the strip.
func (c *CameraCache) ProcessSnapshot(ctx context.Context, detector facedetect.Detector, img facedetect.Image, overlap float64, snapshotIndex int) (int, error) {
	move := ceilMove(img.Width, overlap)

	c.mu.Lock()
	bootstrapping := len(c.byOverlap[overlap]) == 0
	c.mu.Unlock()

	var translateOffset int
	var strip facedetect.Image
	if bootstrapping {
		translateOffset = 0
		strip = img
	} else {
		stripStart := img.Width - move
		if stripStart < 0 {
			stripStart = 0
		}
		strip = img.SubImage(stripStart, img.Width)
		// spec.md §4.5: absolute coordinates use
		// (width - move + (snapshot_index-1)*move, 0), which accumulates
		// the sliding offset across the whole trial rather than being
		// local to this single snapshot.
		translateOffset = img.Width - move + (snapshotIndex-1)*move
	}

	job := detector.Compute(strip)
	relRects, err := job.WaitForFinished(ctx)
	if err != nil {
		return 0, err
	}

	absRects := make([]facedetect.Rectangle, len(relRects))
	for i, r := range relRects {
		absRects[i] = facedetect.Rectangle{
			X: r.X + translateOffset,
			Y: r.Y,
			W: r.W,
			H: r.H,
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var recovered []facedetect.Rectangle
	if !bootstrapping {
		recovered = c.recoverFromLocked(overlap, (snapshotIndex-1)*move)
	}
	c.insertLocked(overlap, absRects)
	return len(absRects) + len(recovered), nil
}

// ceilMove computes ⌈width·(1−overlap)⌉.
func ceilMove(width int, overlap float64) int {
	v := float64(width) * (1 - overlap)
	m := int(v)
	if float64(m) < v {
		m++
	}
	return m
}
