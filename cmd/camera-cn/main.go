// Command camera-cn is the compute node binary serving the detectfaces
// verb (spec.md §4.5/§4.7/§4.9, §6). CLI: <use_cache:0|1>. use_cache=0
// disables cross-snapshot rectangle reuse (Dispatcher.DisableCameraCache),
// so every snapshot runs full detection instead of the non-overlap-strip
// recovery path.
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
	"github.com/bukatea/reuse-edge/internal/config"
	"github.com/bukatea/reuse-edge/internal/dispatch"
	"github.com/bukatea/reuse-edge/internal/facedetect"
	"github.com/bukatea/reuse-edge/internal/metrics"
	"github.com/bukatea/reuse-edge/internal/ndn"
	"github.com/bukatea/reuse-edge/internal/service"
	"github.com/bukatea/reuse-edge/internal/session"
	"github.com/bukatea/reuse-edge/internal/singleflight"
)

func main() {
	if len(os.Args) != 2 {
		slog.Error("camera-cn: usage: camera-cn <use_cache:0|1>")
		os.Exit(1)
	}
	useCache, err := strconv.Atoi(os.Args[1])
	if err != nil || (useCache != 0 && useCache != 1) {
		slog.Error("camera-cn: use_cache must be 0 or 1", "value", os.Args[1])
		os.Exit(1)
	}

	cfg := config.Get()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	net := ndn.NewNetwork()
	face := ndn.NewFake(net)

	detector := facedetect.NewFakeDetector()
	sf := singleflight.NewRegistry()
	sessions := session.NewManager(cfg.SessionDeadline())

	d := dispatch.New(face, sf, nil, nil, false, false, nil, nil, detector, nil, cfg.Node.AppOctetLimit)
	d.Metrics = m
	d.DisableCameraCache = useCache == 0
	bulkstage.OnTimeout = m.RecordBulkStageTimeout

	svc := service.New(face, sessions, d, m, ndn.VerbDetectFaces)
	if err := svc.Register(); err != nil {
		slog.Error("camera-cn: failed to register interest filter, shutting down", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Admin.Enabled {
		admin := adminserver.New(cfg.Admin.ListenAddr, sessions, m, registry)
		go func() {
			if err := admin.Start(ctx); err != nil {
				slog.Error("camera-cn: admin server stopped", "error", err)
			}
		}()
	}

	slog.Info("camera-cn: serving", "use_cache", useCache == 1)
	<-ctx.Done()
	slog.Info("camera-cn: shutting down")
}
