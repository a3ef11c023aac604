package consumerutil

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/bukatea/reuse-edge/internal/ndn"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollUntilFinalReturnsOnFirstNonCTTReply(t *testing.T) {
	net := ndn.NewNetwork()
	cnFace := ndn.NewFake(net)
	err := cnFace.PublishInterestFilter("edge-compute/computer", func(ctx context.Context, interest ndn.Interest) (ndn.Data, bool, string) {
		return ndn.Data{Name: interest.Name, Content: []byte("42")}, true, ""
	})
	if err != nil {
		t.Fatalf("PublishInterestFilter: %v", err)
	}

	consumerFace := ndn.NewFake(net)
	got, err := PollUntilFinal(context.Background(), consumerFace, "/edge-compute/computer/req-1/chess/2/fen", discardLogger())
	if err != nil {
		t.Fatalf("PollUntilFinal: %v", err)
	}
	if got != "42" {
		t.Fatalf("expected final reply %q, got %q", "42", got)
	}
}

func TestPollUntilFinalPollsThroughCTTReplies(t *testing.T) {
	net := ndn.NewNetwork()
	cnFace := ndn.NewFake(net)
	var calls atomic.Int64
	err := cnFace.PublishInterestFilter("edge-compute/computer", func(ctx context.Context, interest ndn.Interest) (ndn.Data, bool, string) {
		n := calls.Add(1)
		if n < 3 {
			return ndn.Data{Name: interest.Name, Content: []byte("CTT: 0")}, true, ""
		}
		return ndn.Data{Name: interest.Name, Content: []byte("Done")}, true, ""
	})
	if err != nil {
		t.Fatalf("PublishInterestFilter: %v", err)
	}

	consumerFace := ndn.NewFake(net)
	got, err := PollUntilFinal(context.Background(), consumerFace, "/edge-compute/computer/req-2/multiply/4/2", discardLogger())
	if err != nil {
		t.Fatalf("PollUntilFinal: %v", err)
	}
	if got != "Done" {
		t.Fatalf("expected final reply %q, got %q", "Done", got)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected exactly 3 polls, got %d", calls.Load())
	}
}

func TestPollUntilFinalPropagatesNack(t *testing.T) {
	net := ndn.NewNetwork()
	cnFace := ndn.NewFake(net)
	err := cnFace.PublishInterestFilter("edge-compute/computer", func(ctx context.Context, interest ndn.Interest) (ndn.Data, bool, string) {
		return ndn.Data{}, false, "malformed-name"
	})
	if err != nil {
		t.Fatalf("PublishInterestFilter: %v", err)
	}

	consumerFace := ndn.NewFake(net)
	_, err = PollUntilFinal(context.Background(), consumerFace, "/edge-compute/computer/req-3/chess/bad", discardLogger())
	if err == nil {
		t.Fatal("expected an error for a nacked interest")
	}
}
