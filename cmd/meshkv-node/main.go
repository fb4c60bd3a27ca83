// Command meshkv-node runs a single replica: the gRPC diff-protocol
// service, the periodic reconciliation engine, the health prober, the sync
// cadence scheduler, and a Prometheus metrics endpoint.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/devrajpatel/meshkv/internal/bitmap"
	"github.com/devrajpatel/meshkv/internal/config"
	"github.com/devrajpatel/meshkv/internal/health"
	"github.com/devrajpatel/meshkv/internal/hlc"
	"github.com/devrajpatel/meshkv/internal/metrics"
	"github.com/devrajpatel/meshkv/internal/peerid"
	"github.com/devrajpatel/meshkv/internal/persist"
	"github.com/devrajpatel/meshkv/internal/reconcile"
	"github.com/devrajpatel/meshkv/internal/replica"
	"github.com/devrajpatel/meshkv/internal/replication"
	"github.com/devrajpatel/meshkv/internal/server"
	"github.com/devrajpatel/meshkv/internal/syncsched"
	"github.com/devrajpatel/meshkv/internal/transport"

	_ "github.com/devrajpatel/meshkv/internal/codec" // registers the gob grpc.Codec
)

// snapshotInterval is how often the in-memory replica is flushed to the
// SQLite binding. Not config-driven: durability is a background concern
// independent of sync cadence.
const snapshotInterval = 10 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("starting meshkv node",
		zap.String("node_id", cfg.NodeID),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Strings("peers", cfg.Peers),
		zap.String("storage_path", cfg.StoragePath))

	m := metrics.NewMetrics("meshkv")

	store, err := persist.OpenWithLocalID(cfg.StoragePath, peerid.ID(cfg.NodeID))
	if err != nil {
		logger.Fatal("failed to open storage binding", zap.Error(err))
	}
	defer store.Close()

	snap, err := store.Load()
	if err != nil {
		logger.Fatal("failed to load persisted snapshot", zap.Error(err))
	}

	var opts []replica.Option
	if cfg.OpsetCaptureEnabled {
		opts = append(opts, replica.WithOpsetCapture())
	}

	var local *replica.Replica
	if len(snap.Entries) == 0 && len(snap.Peers) == 0 {
		local = replica.New(peerid.ID(cfg.NodeID), opts...)
		logger.Info("replica initialised empty")
	} else {
		entries := make([]replica.EntrySnapshot, 0, len(snap.Entries))
		for _, rec := range snap.Entries {
			entries = append(entries, replica.EntrySnapshot{
				Key: rec.Key, Value: rec.Value, Author: rec.Author, HLC: rec.HLC.ToU64(),
			})
		}
		peers := make([]replica.PeerSnapshot, 0, len(snap.Peers))
		for _, pr := range snap.Peers {
			peers = append(peers, replica.PeerSnapshot{
				ID: pr.ID, Index: pr.Bitmap.ToSlice(), Bookmark: pr.Bookmark.ToU64(),
			})
		}
		local = replica.Restore(peerid.ID(cfg.NodeID), entries, peers, opts...)
		logger.Info("replica restored from disk", zap.Int("entries", len(entries)), zap.Int("peers", len(peers)))
	}

	coordinator, err := replication.NewCoordinator(cfg.NodeID, cfg.Peers, logger, m, cfg.RPCTimeout)
	if err != nil {
		logger.Fatal("failed to initialise replication coordinator", zap.Error(err))
	}
	defer coordinator.Close()

	prober := health.NewProber(cfg.NodeID, coordinator, cfg.HealthProbeInterval, logger, m)
	defer prober.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reconciler *reconcile.Engine
	if cfg.ReconciliationEnabled {
		reconciler = reconcile.NewEngine(local, coordinator, cfg.SyncMinInterval, cfg.ReconciliationEnabled, logger, m)
		prober.SetHealingListener(reconciler)
		logger.Info("reconciliation engine initialised", zap.Duration("initial_interval", cfg.SyncMinInterval))

		reader := metrics.NewReader(m)
		computer := syncsched.NewConfidenceComputer(logger, m)
		scheduler := syncsched.NewScheduler(
			reconciler, coordinator, reader, computer,
			cfg.SyncMinInterval,
			cfg.SyncMinInterval, cfg.SyncMaxInterval,
			cfg.SyncRelaxThreshold, cfg.SyncTightenThreshold,
			logger, m,
		)
		go reconciler.Start(ctx)
		go scheduler.Start(ctx)
	}

	prober.Start()
	logger.Info("health probe started")

	go runSnapshotLoop(ctx, local, store, logger, m)

	if headlessSvc := os.Getenv("HEADLESS_SERVICE"); headlessSvc != "" {
		namespace := getEnv("NAMESPACE", "default")
		discoveryInterval := 30 * time.Second
		logger.Info("starting dynamic peer discovery",
			zap.String("headless_service", headlessSvc),
			zap.String("namespace", namespace))
		go coordinator.StartPeerDiscovery(ctx, cfg.NodeID, headlessSvc, namespace, discoveryInterval)
	}

	handler := server.NewHandler(peerid.ID(cfg.NodeID), local, logger, m)
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&transport.ServiceDesc, handler)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.ListenAddr), zap.Error(err))
	}

	go func() {
		logger.Info("grpc server listening", zap.String("addr", cfg.ListenAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("grpc server failed", zap.Error(err))
		}
	}()

	http.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr}

	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
	cancel()
	grpcServer.GracefulStop()
	metricsServer.Close()
	flushSnapshot(local, store, logger, m)
	logger.Info("shutdown complete")
}

func runSnapshotLoop(ctx context.Context, local *replica.Replica, store *persist.Store, logger *zap.Logger, m *metrics.Metrics) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			flushSnapshot(local, store, logger, m)
		case <-ctx.Done():
			return
		}
	}
}

func flushSnapshot(local *replica.Replica, store *persist.Store, logger *zap.Logger, m *metrics.Metrics) {
	entries, peers := local.Snapshot()

	records := make([]persist.EntryRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, persist.EntryRecord{
			Key: e.Key, Value: e.Value, Author: e.Author, HLC: hlc.FromU64(e.HLC),
		})
	}
	peerRecords := make([]persist.PeerRecord, 0, len(peers))
	for _, p := range peers {
		bm := bitmap.New()
		for _, v := range p.Index {
			bm.Add(v)
		}
		m.IndexSizeBytes.WithLabelValues(string(p.ID)).Set(float64(bm.SerializedSize()))
		m.IndexCardinality.WithLabelValues(string(p.ID)).Set(float64(bm.Cardinality()))
		peerRecords = append(peerRecords, persist.PeerRecord{
			ID: p.ID, Bitmap: bm, Bookmark: hlc.FromU64(p.Bookmark),
		})
	}

	if err := store.SaveSnapshot(records, peerRecords); err != nil {
		m.PersistErrors.WithLabelValues("snapshot").Inc()
		logger.Warn("failed to persist snapshot", zap.Error(err))
		return
	}
	logger.Debug("snapshot persisted", zap.Int("entries", len(records)), zap.Int("peers", len(peerRecords)))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
