package cache

import (
	"context"
	"testing"

	"github.com/bukatea/reuse-edge/internal/facedetect"
)

func markerImage(width, height int, markers ...[2]int) facedetect.Image {
	pixels := make([]byte, width*height)
	for _, m := range markers {
		pixels[m[1]*width+m[0]] = 0xFF
	}
	return facedetect.Image{Width: width, Height: height, Pixels: pixels}
}

func TestProcessSnapshotBootstrapRunsOnFullImage(t *testing.T) {
	det := facedetect.NewFakeDetector()
	c := NewCameraCache()
	img := markerImage(100, 10, [2]int{10, 5}, [2]int{90, 5})

	count, err := c.ProcessSnapshot(context.Background(), det, img, 0.5, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 faces on bootstrap, got %d", count)
	}
	if got := det.Invocations(); got != 1 {
		t.Fatalf("expected 1 detector invocation, got %d", got)
	}
}

func TestProcessSnapshotDetectsOnlyNonOverlapStrip(t *testing.T) {
	det := facedetect.NewFakeDetector()
	c := NewCameraCache()
	// Seed the set so this is not a bootstrap snapshot.
	c.insertLocked(0.5, []facedetect.Rectangle{{X: 10, Y: 0, W: 10, H: 10}})

	img := markerImage(100, 10, [2]int{60, 5}) // inside the right 50px strip
	count, err := c.ProcessSnapshot(context.Background(), det, img, 0.5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// move = ceil(100*0.5) = 50; strip is [50,100). Marker at x=60 is
	// inside it. Recovered set: rectangles with X >= (2-1)*50 = 50 -> none
	// from the seeded rect at X=10.
	if count != 1 {
		t.Fatalf("expected 1 face (new detection only), got %d", count)
	}
}

func TestProcessSnapshotRecoversOverlapRegion(t *testing.T) {
	det := facedetect.NewFakeDetector()
	c := NewCameraCache()
	// Pretend a previous snapshot already found a face at absolute x=70.
	c.insertLocked(0.5, []facedetect.Rectangle{{X: 70, Y: 0, W: 10, H: 10}})

	img := markerImage(100, 10) // no new faces in this snapshot
	count, err := c.ProcessSnapshot(context.Background(), det, img, 0.5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// recovered set: X >= 50 -> the rect at X=70 qualifies.
	if count != 1 {
		t.Fatalf("expected 1 recovered face, got %d", count)
	}
}

func TestResetClearsOverlapSet(t *testing.T) {
	c := NewCameraCache()
	c.insertLocked(0.5, []facedetect.Rectangle{{X: 1, Y: 1, W: 1, H: 1}})
	c.Reset(0.5)
	c.mu.Lock()
	n := len(c.byOverlap[0.5])
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected overlap set cleared, got %d entries", n)
	}
}
