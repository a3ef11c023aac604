// Package facedetect declares the black-box face detection collaborator
// operating over a grayscale sliding image capture. Per spec.md §1 the
// detector itself is out of scope; only the compute(image) → rectangles
// contract is modeled here.
package facedetect

import "context"

// Image is a grayscale raster, row-major, one byte per pixel.
type Image struct {
	Width, Height int
	Pixels        []byte
}

// SubImage returns the vertical strip [x0, x1) of img, sharing no memory
// with img.
func (img Image) SubImage(x0, x1 int) Image {
	w := x1 - x0
	out := Image{Width: w, Height: img.Height, Pixels: make([]byte, w*img.Height)}
	for y := 0; y < img.Height; y++ {
		copy(out.Pixels[y*w:(y+1)*w], img.Pixels[y*img.Width+x0:y*img.Width+x1])
	}
	return out
}

// Rectangle is a detected face's bounding box in absolute image
// coordinates.
type Rectangle struct {
	X, Y, W, H int
}

// Job represents one in-flight detection pass.
type Job interface {
	WaitForFinished(ctx context.Context) ([]Rectangle, error)
}

// Detector runs face detection over a (sub-)image.
type Detector interface {
	Compute(img Image) Job
}
