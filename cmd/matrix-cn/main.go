// Command matrix-cn is the compute node binary serving the multiply verb
// (spec.md §4.4/§4.7/§4.9, §6). CLI: <use_cache:0|1>.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bukatea/reuse-edge/internal/adminserver"
	"github.com/bukatea/reuse-edge/internal/bulkstage"
	"github.com/bukatea/reuse-edge/internal/cache"
	"github.com/bukatea/reuse-edge/internal/config"
	"github.com/bukatea/reuse-edge/internal/dispatch"
	"github.com/bukatea/reuse-edge/internal/matrixkernel"
	"github.com/bukatea/reuse-edge/internal/metrics"
	"github.com/bukatea/reuse-edge/internal/ndn"
	"github.com/bukatea/reuse-edge/internal/service"
	"github.com/bukatea/reuse-edge/internal/session"
	"github.com/bukatea/reuse-edge/internal/singleflight"
	"github.com/bukatea/reuse-edge/internal/workerpool"
)

func main() {
	if len(os.Args) != 2 {
		slog.Error("matrix-cn: usage: matrix-cn <use_cache:0|1>")
		os.Exit(1)
	}
	useCache, err := strconv.Atoi(os.Args[1])
	if err != nil || (useCache != 0 && useCache != 1) {
		slog.Error("matrix-cn: use_cache must be 0 or 1", "value", os.Args[1])
		os.Exit(1)
	}

	cfg := config.Get()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	net := ndn.NewNetwork()
	face := ndn.NewFake(net)

	matrixCache, err := cache.NewMatrixCache(cfg.Cache.ReusablesDir)
	if err != nil {
		slog.Error("matrix-cn: failed to open reusables dir", "dir", cfg.Cache.ReusablesDir, "error", err)
		os.Exit(1)
	}
	pool := workerpool.NewDefault()
	cacher := workerpool.NewMatrixCacher(pool, matrixCache)
	kernel := matrixkernel.NewFakeKernel()
	sf := singleflight.NewRegistry()
	sessions := session.NewManager(cfg.SessionDeadline())

	d := dispatch.New(face, sf, nil, matrixCache, false, useCache == 1, nil, kernel, nil, cacher, cfg.Node.AppOctetLimit)
	d.Metrics = m
	bulkstage.OnTimeout = m.RecordBulkStageTimeout

	svc := service.New(face, sessions, d, m, ndn.VerbMultiply)
	if err := svc.Register(); err != nil {
		slog.Error("matrix-cn: failed to register interest filter, shutting down", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Admin.Enabled {
		admin := adminserver.New(cfg.Admin.ListenAddr, sessions, m, registry)
		go func() {
			if err := admin.Start(ctx); err != nil {
				slog.Error("matrix-cn: admin server stopped", "error", err)
			}
		}()
	}

	slog.Info("matrix-cn: serving", "use_cache", useCache == 1, "reusables_dir", cfg.Cache.ReusablesDir)
	<-ctx.Done()
	pool.Wait()
	slog.Info("matrix-cn: shutting down")
}
