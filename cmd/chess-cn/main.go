// Command chess-cn is the compute node binary serving the chess verb
// (spec.md §4.7/§4.9, §6). CLI: <non_first_frac:[0..1]> <use_cache:0|1>.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bukatea/reuse-edge/internal/adminserver"
	"github.com/bukatea/reuse-edge/internal/bulkstage"
	"github.com/bukatea/reuse-edge/internal/cache"
	"github.com/bukatea/reuse-edge/internal/chessengine"
	"github.com/bukatea/reuse-edge/internal/config"
	"github.com/bukatea/reuse-edge/internal/dispatch"
	"github.com/bukatea/reuse-edge/internal/metrics"
	"github.com/bukatea/reuse-edge/internal/ndn"
	"github.com/bukatea/reuse-edge/internal/service"
	"github.com/bukatea/reuse-edge/internal/session"
	"github.com/bukatea/reuse-edge/internal/singleflight"
)

func main() {
	if len(os.Args) != 3 {
		slog.Error("chess-cn: usage: chess-cn <non_first_frac:[0..1]> <use_cache:0|1>")
		os.Exit(1)
	}
	nonFirstFrac, err := strconv.ParseFloat(os.Args[1], 64)
	if err != nil || nonFirstFrac < 0 || nonFirstFrac > 1 {
		slog.Error("chess-cn: non_first_frac must be a float in [0,1]", "value", os.Args[1])
		os.Exit(1)
	}
	useCache, err := strconv.Atoi(os.Args[2])
	if err != nil || (useCache != 0 && useCache != 1) {
		slog.Error("chess-cn: use_cache must be 0 or 1", "value", os.Args[2])
		os.Exit(1)
	}

	cfg := config.Get()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// The real named-data forwarder is out of scope (spec.md §1); Fake is
	// an in-memory stand-in, so this process only talks to Faces attached
	// to the same Network (see internal/ndn/fake.go).
	net := ndn.NewNetwork()
	face := ndn.NewFake(net)

	chessCache := cache.NewChessCache(nonFirstFrac, time.Now().UnixNano())
	sf := singleflight.NewRegistry()
	engine := chessengine.NewFakeEngine()
	sessions := session.NewManager(cfg.SessionDeadline())

	d := dispatch.New(face, sf, chessCache, nil, useCache == 1, false, engine, nil, nil, nil, cfg.Node.AppOctetLimit)
	d.Metrics = m
	bulkstage.OnTimeout = m.RecordBulkStageTimeout

	svc := service.New(face, sessions, d, m, ndn.VerbChess)
	if err := svc.Register(); err != nil {
		slog.Error("chess-cn: failed to register interest filter, shutting down", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Admin.Enabled {
		admin := adminserver.New(cfg.Admin.ListenAddr, sessions, m, registry)
		go func() {
			if err := admin.Start(ctx); err != nil {
				slog.Error("chess-cn: admin server stopped", "error", err)
			}
		}()
	}

	slog.Info("chess-cn: serving", "non_first_frac", nonFirstFrac, "use_cache", useCache == 1)
	<-ctx.Done()
	slog.Info("chess-cn: shutting down")
}
