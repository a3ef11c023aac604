package bulkstage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bukatea/reuse-edge/internal/ndn"
)

func TestRowsPerPacketFloors(t *testing.T) {
	if got := RowsPerPacket(1024, 100); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := RowsPerPacket(50, 100); got != 1 {
		t.Fatalf("expected floor of 1 for an oversized row, got %d", got)
	}
}

func TestLifetimeByKind(t *testing.T) {
	if Lifetime(KindMatrix) != time.Second {
		t.Fatal("expected 1s lifetime for matrix")
	}
	if Lifetime(KindCamera) != 2*time.Second {
		t.Fatal("expected 2s lifetime for camera")
	}
}

func TestStagePullsAllRangesInOrder(t *testing.T) {
	net := ndn.NewNetwork()
	responderFace := ndn.NewFake(net)
	pullerFace := ndn.NewFake(net)

	rows := map[int]byte{0: 'a', 1: 'b', 2: 'c', 3: 'd', 4: 'e'}
	provider := func(begin, end int) ([]byte, error) {
		buf := make([]byte, end-begin)
		for i := begin; i < end; i++ {
			buf[i-begin] = rows[i]
		}
		return buf, nil
	}
	if err := RegisterResponder(responderFace, "req-1", KindMatrix, provider); err != nil {
		t.Fatalf("RegisterResponder: %v", err)
	}

	var got []byte
	var mu sync.Mutex
	onRows := func(begin, end int, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		for len(got) < end {
			got = append(got, 0)
		}
		copy(got[begin:end], payload)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := Stage(ctx, pullerFace, "req-1", KindMatrix, 5, 2, onRows); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	want := "abcde"
	if string(got) != want {
		t.Fatalf("expected %q, got %q", want, string(got))
	}
}

func TestStageZeroRowsIsNoop(t *testing.T) {
	net := ndn.NewNetwork()
	face := ndn.NewFake(net)
	called := false
	err := Stage(context.Background(), face, "req-1", KindMatrix, 0, 4, func(begin, end int, payload []byte) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("expected onRows never called for zero total rows")
	}
}

func TestStageRetriesOnTimeoutWithNewVersion(t *testing.T) {
	net := ndn.NewNetwork()
	responderFace := ndn.NewFake(net)
	pullerFace := ndn.NewFake(net)

	// Drop the first attempt at range [0,2) once, forcing a timeout and a
	// version-bumped retry per spec.md §4.8.
	net.DropNext("/edge-compute/requester/req-1/matrix/0/2", 1)

	provider := func(begin, end int) ([]byte, error) {
		return []byte{byte(begin), byte(end)}, nil
	}
	if err := RegisterResponder(responderFace, "req-1", KindMatrix, provider); err != nil {
		t.Fatalf("RegisterResponder: %v", err)
	}

	var gotCalls int
	onRows := func(begin, end int, payload []byte) error {
		gotCalls++
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := Stage(ctx, pullerFace, "req-1", KindMatrix, 2, 2, onRows); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if gotCalls != 1 {
		t.Fatalf("expected exactly 1 successful delivery after retry, got %d", gotCalls)
	}
}
