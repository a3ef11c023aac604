package facedetect

import "context"

// FakeDetector is a deterministic stand-in detector: any pixel with value
// 0xFF marks the center of a synthetic face, so tests can place markers at
// known coordinates and assert on the returned rectangles.
type FakeDetector struct {
	invocations int
}

// NewFakeDetector returns a ready-to-use fake detector.
func NewFakeDetector() *FakeDetector { return &FakeDetector{} }

// Invocations returns how many detection passes were requested — tests use
// this to verify that spec.md §4.5's "detect only the non-overlap strip"
// rule is honored (the strip is much smaller than the full snapshot).
func (d *FakeDetector) Invocations() int { return d.invocations }

const markerValue = 0xFF
const faceHalf = 5

type fakeJob struct {
	rects []Rectangle
}

func (j *fakeJob) WaitForFinished(ctx context.Context) ([]Rectangle, error) {
	return j.rects, nil
}

// Compute scans img for marker pixels and returns a fixed-size rectangle
// centered on each, in img's own (relative) coordinate space.
func (d *FakeDetector) Compute(img Image) Job {
	d.invocations++
	var rects []Rectangle
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if img.Pixels[y*img.Width+x] != markerValue {
				continue
			}
			x0 := x - faceHalf
			if x0 < 0 {
				x0 = 0
			}
			y0 := y - faceHalf
			if y0 < 0 {
				y0 = 0
			}
			rects = append(rects, Rectangle{X: x0, Y: y0, W: 2 * faceHalf, H: 2 * faceHalf})
		}
	}
	return &fakeJob{rects: rects}
}
