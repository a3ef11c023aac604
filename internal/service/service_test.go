package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bukatea/reuse-edge/internal/cache"
	"github.com/bukatea/reuse-edge/internal/chessengine"
	"github.com/bukatea/reuse-edge/internal/dispatch"
	"github.com/bukatea/reuse-edge/internal/ndn"
	"github.com/bukatea/reuse-edge/internal/session"
	"github.com/bukatea/reuse-edge/internal/singleflight"
)

func newChessService(t *testing.T) (*Service, *ndn.Network, *chessengine.FakeEngine) {
	t.Helper()
	net := ndn.NewNetwork()
	face := ndn.NewFake(net)
	engine := chessengine.NewFakeEngine()
	d := dispatch.New(face, singleflight.NewRegistry(), cache.NewChessCache(1, 1), nil, true, false, engine, nil, nil, nil, 512)
	svc := New(face, session.NewManager(0), d, nil, ndn.VerbChess)
	require.NoError(t, svc.Register())
	return svc, net, engine
}

// express issues name as an interest over a fresh Face attached to net and
// blocks for the reply (or nack/timeout).
func express(t *testing.T, net *ndn.Network, name string) (ndn.Data, string) {
	t.Helper()
	face := ndn.NewFake(net)
	type outcome struct {
		data ndn.Data
		nack string
	}
	ch := make(chan outcome, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := face.ExpressInterest(ctx,
		ndn.Interest{Name: name, Lifetime: time.Second},
		func(d ndn.Data) { ch <- outcome{data: d} },
		func(i ndn.Interest, reason string) { ch <- outcome{nack: reason} },
		func(i ndn.Interest) { ch <- outcome{nack: "timeout"} },
	)
	require.NoError(t, err)
	select {
	case o := <-ch:
		return o.data, o.nack
	case <-ctx.Done():
		t.Fatal("timed out waiting for reply")
	}
	return ndn.Data{}, ""
}

// TestServeChessEndToEndCycle drives a full idle -> computing -> ready ->
// idle cycle through the real Service/Dispatcher/Session wiring (spec.md
// §4.7), matching the teacher's internal/federation handshake-flow style
// of an end-to-end scenario test expressed with testify's require/assert.
func TestServeChessEndToEndCycle(t *testing.T) {
	_, net, engine := newChessService(t)
	req := &ndn.ChessRequest{RequesterID: "req-1", Depth: 2, FEN: "8/8/8/8/8/8/8/8 w - - 0 1"}

	data, nack := express(t, net, req.Name())
	require.Empty(t, nack)
	assert.True(t, strings.HasPrefix(string(data.Content), "CTT: "), "expected CTT reply, got %q", data.Content)

	var final string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, nack = express(t, net, req.Name())
		require.Empty(t, nack)
		if !strings.HasPrefix(string(data.Content), "CTT: ") {
			final = string(data.Content)
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NotEmpty(t, final, "never received a final (non-CTT) reply")
	assert.Equal(t, int64(1), engine.Invocations())

	// The session reset to idle; a fresh request for the same requester
	// starts a brand new cycle and gets a CTT reply again.
	data, nack = express(t, net, req.Name())
	require.Empty(t, nack)
	assert.True(t, strings.HasPrefix(string(data.Content), "CTT: "), "expected a fresh CTT reply after reset, got %q", data.Content)
}

func TestServeChessRejectsMismatchedVerb(t *testing.T) {
	_, net, _ := newChessService(t)
	_, nack := express(t, net, "/edge-compute/computer/req-1/multiply/4/2/abc")
	assert.Equal(t, "malformed-name", nack)
}

func TestServeChessRejectsMalformedName(t *testing.T) {
	svc, net, _ := newChessService(t)
	_, nack := express(t, net, "/edge-compute/computer/req-1/chess/not-a-depth/8/8/8/8/8/8/8/8%20w%20-%20-%200%201")
	require.Equal(t, "malformed-name", nack)

	_, existed := svc.Sessions.Get("req-1")
	assert.False(t, existed, "spec.md §7: a malformed first-sighting request must not create a session")
}
