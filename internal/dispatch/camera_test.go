package dispatch

import (
	"context"
	"testing"

	"github.com/bukatea/reuse-edge/internal/bulkstage"
	"github.com/bukatea/reuse-edge/internal/facedetect"
	"github.com/bukatea/reuse-edge/internal/ndn"
	"github.com/bukatea/reuse-edge/internal/session"
	"github.com/bukatea/reuse-edge/internal/singleflight"
)

// registerSnapshotProvider wires a bulkstage responder that serves the rows
// of a height×width grayscale snapshot where pixel (y, x) is markerValue iff
// (y, x) is in markers.
func registerSnapshotProvider(t *testing.T, face ndn.Face, requesterID string, height, width int, markers map[[2]int]bool) {
	t.Helper()
	const markerValue = 0xFF
	err := bulkstage.RegisterResponder(face, requesterID, bulkstage.KindCamera, func(begin, end int) ([]byte, error) {
		row := make([]byte, width)
		payload := make([]byte, 0, (end-begin)*width)
		for y := begin; y < end; y++ {
			for x := 0; x < width; x++ {
				if markers[[2]int{y, x}] {
					row[x] = markerValue
				} else {
					row[x] = 0
				}
			}
			payload = append(payload, row...)
		}
		return payload, nil
	})
	if err != nil {
		t.Fatalf("RegisterResponder: %v", err)
	}
}

func newCameraTestDispatcher(net *ndn.Network) (*Dispatcher, *facedetect.FakeDetector) {
	detector := facedetect.NewFakeDetector()
	cnFace := ndn.NewFake(net)
	d := New(cnFace, singleflight.NewRegistry(), nil, nil, false, false, nil, nil, detector, nil, 4096)
	return d, detector
}

func TestCameraSessionFirstSnapshotDetectsWholeImage(t *testing.T) {
	net := ndn.NewNetwork()
	d, _ := newCameraTestDispatcher(net)
	consumerFace := ndn.NewFake(net)

	// One marker at (0, 10): inside the first (bootstrapping) snapshot.
	registerSnapshotProvider(t, consumerFace, "req-cam", 20, 100, map[[2]int]bool{{0, 10}: true})

	sess := session.New("req-cam", 0)
	req := &ndn.DetectFacesRequest{RequesterID: "req-cam", Overlap: 0.5, Height: 20, Width: 100, First: true}

	d.StartCameraSession(context.Background(), sess, req)
	waitForReady(t, sess)
	result, err := sess.TakeResult()
	if err != nil {
		t.Fatalf("TakeResult: %v", err)
	}
	if result != "1" {
		t.Fatalf("expected 1 face detected on first snapshot, got %q", result)
	}
}

func TestCameraSessionSecondSnapshotDetectsStripAndRecoversPrior(t *testing.T) {
	net := ndn.NewNetwork()
	d, detector := newCameraTestDispatcher(net)
	consumerFace := ndn.NewFake(net)

	width := 100
	height := 20
	// The provider serves the same image for both snapshots.
	// Snapshot 1 (bootstrapping, full image): faces at x=10 and x=70, stored
	// as rectangles with X=5 and X=65.
	// Snapshot 2 (move=50): one new face at x=70, inside the non-overlap
	// strip [50, 100) whose relative x is 20, absolute x = 100-50+(2-1)*50+20 = 120.
	// Recovery threshold is (snapshotIndex-1)*move = 50: the X=65 rectangle
	// is recovered, the X=5 one is not. Total: 1 new + 1 recovered.
	markers := map[[2]int]bool{
		{5, 10}: true,
		{5, 70}: true,
	}
	registerSnapshotProvider(t, consumerFace, "req-cam2", height, width, markers)

	sess := session.New("req-cam2", 0)
	req1 := &ndn.DetectFacesRequest{RequesterID: "req-cam2", Overlap: 0.5, Height: height, Width: width, First: true}
	d.StartCameraSession(context.Background(), sess, req1)
	waitForReady(t, sess)
	if _, err := sess.TakeResult(); err != nil {
		t.Fatalf("TakeResult 1: %v", err)
	}
	invocationsAfterFirst := detector.Invocations()

	req2 := &ndn.DetectFacesRequest{RequesterID: "req-cam2", Overlap: 0.5, Height: height, Width: width}
	d.StartCameraSession(context.Background(), sess, req2)
	waitForReady(t, sess)
	result, err := sess.TakeResult()
	if err != nil {
		t.Fatalf("TakeResult 2: %v", err)
	}
	if result != "2" {
		t.Fatalf("expected 2 faces (1 new strip detection + 1 recovered from x>=50, prior x=10 below the recovery threshold), got %q", result)
	}
	if got := detector.Invocations() - invocationsAfterFirst; got != 1 {
		t.Fatalf("expected exactly 1 detection pass on the second snapshot (strip only), got %d", got)
	}
}

func TestCameraSessionStagingTimeoutFailsSessionGracefully(t *testing.T) {
	net := ndn.NewNetwork()
	d, _ := newCameraTestDispatcher(net)
	// No responder registered for req-cam3: staging can never be satisfied.

	sess := session.New("req-cam3", 0)
	req := &ndn.DetectFacesRequest{RequesterID: "req-cam3", Overlap: 0.5, Height: 4, Width: 4, First: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.StartCameraSession(ctx, sess, req)
	waitForReady(t, sess)
	result, err := sess.TakeResult()
	if err != nil {
		t.Fatalf("TakeResult: %v", err)
	}
	if len(result) < 6 || result[:6] != "error:" {
		t.Fatalf("expected error marker result, got %q", result)
	}
}
