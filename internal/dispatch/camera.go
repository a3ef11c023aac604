package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/bukatea/reuse-edge/internal/bulkstage"
	"github.com/bukatea/reuse-edge/internal/ctt"
	"github.com/bukatea/reuse-edge/internal/facedetect"
	"github.com/bukatea/reuse-edge/internal/ndn"
	"github.com/bukatea/reuse-edge/internal/session"
)

// StartCameraSession handles the first interest of a detectfaces request
// (spec.md §4.7 step 1 / §4.5 / §4.9's camera worker). Camera has no
// fingerprint (glossary: "not applicable for camera"), so there is no
// single-flight coordination; bulk input is always required, so the
// session always moves to pending_input.
func (d *Dispatcher) StartCameraSession(ctx context.Context, sess *session.Session, req *ndn.DetectFacesRequest) string {
	if req.First || d.DisableCameraCache {
		sess.ResetOverlap(req.Overlap)
	}
	snapshotIndex := sess.NextSnapshotIndex(req.Overlap)

	if err := sess.BeginPendingInput(); err != nil {
		slog.Error("dispatch: camera BeginPendingInput", "requester_id", req.RequesterID, "error", err)
	}

	go d.runCameraWorker(ctx, sess, req, snapshotIndex)

	return ctt.Format(1, false)
}

func (d *Dispatcher) runCameraWorker(ctx context.Context, sess *session.Session, req *ndn.DetectFacesRequest, snapshotIndex int) {
	img, err := d.stageCameraSnapshot(ctx, req)
	if err != nil {
		if ferr := sess.Fail(fmt.Sprintf("error: %v", err)); ferr != nil {
			slog.Error("dispatch: camera Fail (staging)", "error", ferr)
		}
		return
	}
	if err := sess.InputStagingComplete(); err != nil {
		slog.Error("dispatch: camera InputStagingComplete", "error", err)
	}

	camCache := sess.CameraCacheFor()
	count, err := camCache.ProcessSnapshot(ctx, d.Detector, img, req.Overlap, snapshotIndex)
	if err != nil {
		if ferr := sess.Fail(fmt.Sprintf("error: %v", err)); ferr != nil {
			slog.Error("dispatch: camera Fail (detect)", "error", ferr)
		}
		return
	}

	if err := sess.MarkReady(strconv.Itoa(count)); err != nil {
		slog.Error("dispatch: camera MarkReady", "error", err)
	}
}

// stageCameraSnapshot pulls the height×width grayscale snapshot from the
// requester via spec.md §4.8's bulk-staging protocol. Each row is one
// width-byte grayscale scanline, so rowBytes equals width directly.
func (d *Dispatcher) stageCameraSnapshot(ctx context.Context, req *ndn.DetectFacesRequest) (facedetect.Image, error) {
	rowsPerPacket := bulkstage.RowsPerPacket(d.AppOctetLimit, req.Width)

	pixels := make([]byte, req.Height*req.Width)
	var mu sync.Mutex
	onRows := func(begin, end int, payload []byte) error {
		want := (end - begin) * req.Width
		if len(payload) != want {
			return fmt.Errorf("dispatch: staged snapshot payload is %d bytes, want %d", len(payload), want)
		}
		mu.Lock()
		defer mu.Unlock()
		copy(pixels[begin*req.Width:end*req.Width], payload)
		return nil
	}

	if err := bulkstage.Stage(ctx, d.Face, req.RequesterID, bulkstage.KindCamera, req.Height, rowsPerPacket, onRows); err != nil {
		return facedetect.Image{}, err
	}
	return facedetect.Image{Width: req.Width, Height: req.Height, Pixels: pixels}, nil
}
