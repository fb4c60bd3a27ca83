// Command meshkv-bench drives three data-volume convergence scenarios
// against a pair of in-process replicas (the same replica.Replica code
// path a live meshkv-node runs), reporting DiffRequest.IndexSize() and
// wall-clock convergence time, and optionally drives a concurrent Put
// load against live nodes: flag-based config, a worker pool for the
// load-generation mode, periodic progress reporting.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/devrajpatel/meshkv/internal/peerid"
	"github.com/devrajpatel/meshkv/internal/replica"
	"github.com/devrajpatel/meshkv/pkg/client"
)

type config struct {
	Mode             string
	Endpoints        string
	Duration         time.Duration
	Concurrency      int
	TargetThroughput int
}

func main() {
	cfg := config{}
	flag.StringVar(&cfg.Mode, "mode", "scenarios", "bench mode: scenarios, load")
	flag.StringVar(&cfg.Endpoints, "endpoints", "localhost:8080", "comma-separated node endpoints (load mode)")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "load mode duration")
	flag.IntVar(&cfg.Concurrency, "concurrency", 10, "load mode concurrent clients")
	flag.IntVar(&cfg.TargetThroughput, "target-throughput", 1000, "load mode target ops/sec")
	flag.Parse()

	var err error
	switch cfg.Mode {
	case "scenarios":
		err = runScenarios()
	case "load":
		err = runLoad(cfg)
	default:
		err = fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runScenarios() error {
	fmt.Println("=== scenario 1: basic sync (1000x16B/128B) ===")
	if err := basicSyncScenario(); err != nil {
		return err
	}

	fmt.Println("\n=== scenario 2: transactional compression (1,000,000 entries) ===")
	if err := transactionalScenario(); err != nil {
		return err
	}

	fmt.Println("\n=== scenario 3: opset push (1,000,000 entries) ===")
	if err := opsetScenario(); err != nil {
		return err
	}
	return nil
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

func basicSyncScenario() error {
	a := replica.New(peerid.Random())
	b := replica.New(peerid.Random())

	start := time.Now()
	for i := 0; i < 1000; i++ {
		a.Insert(string(randomBytes(16)), randomBytes(128))
	}
	for i := 0; i < 1000; i++ {
		b.Insert(string(randomBytes(16)), randomBytes(128))
	}

	reqA := a.RequestDiff()
	fmt.Printf("A.request_diff().index_size() = %d (want <= 2200)\n", reqA.IndexSize())

	dFromB := b.BuildDiff(reqA)
	a.IntegrateDiff(dFromB)

	reqB := b.RequestDiff()
	dFromA := a.BuildDiff(reqB)
	b.IntegrateDiff(dFromA)

	elapsed := time.Since(start)
	fmt.Printf("converged in %s: A has %d entries, B has %d entries (want 2000 each)\n", elapsed, a.Len(), b.Len())
	if a.Len() != 2000 || b.Len() != 2000 {
		return fmt.Errorf("convergence mismatch: A=%d B=%d", a.Len(), b.Len())
	}
	return nil
}

func transactionalScenario() error {
	a := replica.New(peerid.Random())
	b := replica.New(peerid.Random())

	start := time.Now()
	txn := a.Begin()
	for i := 0; i < 1_000_000; i++ {
		txn.Insert(fmt.Sprintf("key-%d", i), randomBytes(32))
	}
	txn.Commit()
	commitElapsed := time.Since(start)
	fmt.Printf("committed 1,000,000 entries in %s\n", commitElapsed)

	req := b.RequestDiff()
	fmt.Printf("B.request_diff().index_size() = %d (want == 8)\n", req.IndexSize())
	if req.IndexSize() != 8 {
		return fmt.Errorf("unexpected empty-replica index size: %d", req.IndexSize())
	}

	d := a.BuildDiff(req)
	b.IntegrateDiff(d)
	fmt.Printf("converged in %s total: B has %d entries\n", time.Since(start), b.Len())
	if b.Len() != a.Len() {
		return fmt.Errorf("convergence mismatch: A=%d B=%d", a.Len(), b.Len())
	}
	return nil
}

func opsetScenario() error {
	a := replica.New(peerid.Random(), replica.WithOpsetCapture())
	b := replica.New(peerid.Random())

	start := time.Now()
	for i := 0; i < 1_000_000; i++ {
		a.Insert(fmt.Sprintf("key-%d", i), randomBytes(32))
	}
	insertElapsed := time.Since(start)
	fmt.Printf("inserted 1,000,000 entries (with live opset capture) in %s\n", insertElapsed)

	o := a.TakeOpSet()
	b.IntegrateOpSet(o)
	fmt.Printf("converged in %s total: B has %d entries\n", time.Since(start), b.Len())
	if b.Len() != a.Len() {
		return fmt.Errorf("convergence mismatch: A=%d B=%d", a.Len(), b.Len())
	}
	return nil
}

type loadStats struct {
	totalOps       atomic.Int64
	successOps     atomic.Int64
	failedOps      atomic.Int64
	totalLatencyNs atomic.Int64
}

func runLoad(cfg config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nreceived interrupt, shutting down...")
		cancel()
	}()

	endpoints := strings.Split(cfg.Endpoints, ",")
	for i := range endpoints {
		endpoints[i] = strings.TrimSpace(endpoints[i])
	}

	clients := make([]*client.Client, 0, len(endpoints))
	for _, addr := range endpoints {
		c, err := client.NewClient(addr)
		if err != nil {
			return fmt.Errorf("connect %s: %w", addr, err)
		}
		defer c.Close()
		clients = append(clients, c)
	}

	stats := &loadStats{}
	fmt.Printf("starting load: duration=%s concurrency=%d target_throughput=%d ops/sec\n",
		cfg.Duration, cfg.Concurrency, cfg.TargetThroughput)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runLoadWorker(ctx, cfg, clients[workerID%len(clients)], stats, workerID)
		}(i)
	}

	go reportLoadProgress(ctx, stats)

	select {
	case <-ctx.Done():
	case <-time.After(cfg.Duration):
		cancel()
	}
	wg.Wait()

	total := stats.totalOps.Load()
	success := stats.successOps.Load()
	fmt.Printf("\n=== load complete ===\ntotal=%d success=%d failed=%d throughput=%.1f ops/sec\n",
		total, success, stats.failedOps.Load(), float64(total)/cfg.Duration.Seconds())
	return nil
}

func runLoadWorker(ctx context.Context, cfg config, c *client.Client, stats *loadStats, workerID int) {
	targetOpsPerSec := cfg.TargetThroughput / cfg.Concurrency
	if targetOpsPerSec == 0 {
		targetOpsPerSec = 1
	}
	throttle := time.NewTicker(time.Second / time.Duration(targetOpsPerSec))
	defer throttle.Stop()

	rng := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		case <-throttle.C:
			key := fmt.Sprintf("bench-key-%d", rng.Intn(100_000))
			value := fmt.Sprintf("value-%d-%d", workerID, time.Now().UnixNano())

			start := time.Now()
			opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			_, err := c.Put(opCtx, key, []byte(value))
			cancel()
			latency := time.Since(start)

			stats.totalOps.Add(1)
			stats.totalLatencyNs.Add(latency.Nanoseconds())
			if err != nil {
				stats.failedOps.Add(1)
			} else {
				stats.successOps.Add(1)
			}
		}
	}
}

func reportLoadProgress(ctx context.Context, stats *loadStats) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			total := stats.totalOps.Load()
			success := stats.successOps.Load()
			avgLatency := 0.0
			if success > 0 {
				avgLatency = float64(stats.totalLatencyNs.Load()) / float64(success) / 1e6
			}
			fmt.Printf("[%s] ops=%d success=%d throughput=%.0f ops/sec avg_latency=%.2fms\n",
				elapsed.Round(time.Second), total, success, float64(total)/elapsed.Seconds(), avgLatency)
		}
	}
}
