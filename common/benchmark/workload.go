package benchmark

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/small-db/smalldb/btree"
)

// Config describes one workload run against the transactional engine.
// It generalizes the teacher's Config (which only named an operation mix
// and a key/value size) with the knobs a transactional benchmark needs:
// how many operations to batch per transaction, and how often to force a
// deliberate Abort to exercise rollback under load.
type Config struct {
	Name        string
	Duration    time.Duration
	Concurrency int
	NumKeys     int
	KeySize     int

	ReadFraction  float64 // fraction of ops that are Get rather than Insert
	OpsPerTx      int     // operations batched into a single transaction before commit
	AbortFraction float64 // fraction of transactions deliberately aborted instead of committed
}

// QuickWorkloads mirrors the teacher's QuickWorkloads: short runs, sized
// for CI or an interactive demo rather than throughput measurement.
func QuickWorkloads() []Config {
	return []Config{
		{Name: "write-heavy", Duration: 2 * time.Second, Concurrency: 4, NumKeys: 1000, KeySize: 16, ReadFraction: 0.2, OpsPerTx: 4},
		{Name: "read-heavy", Duration: 2 * time.Second, Concurrency: 4, NumKeys: 1000, KeySize: 16, ReadFraction: 0.8, OpsPerTx: 4},
		{Name: "balanced", Duration: 2 * time.Second, Concurrency: 4, NumKeys: 1000, KeySize: 16, ReadFraction: 0.5, OpsPerTx: 4},
	}
}

// StandardWorkloads mirrors the teacher's StandardWorkloads: longer runs
// meant for an actual benchmark report.
func StandardWorkloads() []Config {
	return []Config{
		{Name: "write-heavy", Duration: 60 * time.Second, Concurrency: 8, NumKeys: 100000, KeySize: 16, ReadFraction: 0.2, OpsPerTx: 8},
		{Name: "read-heavy", Duration: 60 * time.Second, Concurrency: 8, NumKeys: 100000, KeySize: 16, ReadFraction: 0.8, OpsPerTx: 8},
		{Name: "balanced", Duration: 60 * time.Second, Concurrency: 8, NumKeys: 100000, KeySize: 16, ReadFraction: 0.5, OpsPerTx: 8},
		{Name: "write-only", Duration: 60 * time.Second, Concurrency: 8, NumKeys: 100000, KeySize: 16, ReadFraction: 0.0, OpsPerTx: 8},
	}
}

// Result summarizes one Config run, in the shape the teacher's
// printSummaryTable (cmd/benchmark) expects to tabulate.
type Result struct {
	Name         string
	Ops          int64
	Commits      int64
	Aborts       int64
	Deadlocks    int64
	Duration     time.Duration
	Throughput   float64 // ops/sec
	Latency      LatencyStats
	CommitLatency LatencyStats
}

// Run drives cfg.Concurrency goroutines against table for cfg.Duration,
// each issuing transactions of cfg.OpsPerTx Insert/Get calls keyed by a
// KeyGenerator, committing or (per AbortFraction) deliberately aborting.
// Deadlocks and latch timeouts are counted, not treated as fatal — they
// are an expected outcome of concurrent contention (spec.md §4.4).
func Run(db *btree.Database, table *btree.Table, cfg Config) Result {
	stop := time.After(cfg.Duration)
	var ops, commits, aborts, deadlocks int64
	opLatency := NewLatencyHistogram()
	commitLatency := NewLatencyHistogram()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			kg := NewKeyGenerator(cfg.NumKeys, cfg.KeySize, DistZipfian, int64(worker)+1)
			txCounter := 0
			for {
				select {
				case <-stop:
					return
				default:
				}
				runTx(db, table, cfg, kg, &ops, &commits, &aborts, &deadlocks, opLatency, commitLatency)
				txCounter++
			}
		}(w)
	}
	wg.Wait()

	return Result{
		Name:          cfg.Name,
		Ops:           atomic.LoadInt64(&ops),
		Commits:       atomic.LoadInt64(&commits),
		Aborts:        atomic.LoadInt64(&aborts),
		Deadlocks:     atomic.LoadInt64(&deadlocks),
		Duration:      cfg.Duration,
		Throughput:    float64(atomic.LoadInt64(&ops)) / cfg.Duration.Seconds(),
		Latency:       opLatency.Stats(),
		CommitLatency: commitLatency.Stats(),
	}
}

func runTx(db *btree.Database, table *btree.Table, cfg Config, kg *KeyGenerator,
	ops, commits, aborts, deadlocks *int64, opLatency, commitLatency *LatencyHistogram) {
	tx, err := db.Begin()
	if err != nil {
		return
	}

	for i := 0; i < cfg.OpsPerTx; i++ {
		keyBytes := kg.NextKey()
		keyNum := int64(0)
		for _, b := range keyBytes[:8] {
			keyNum = keyNum<<8 | int64(b)
		}
		key := btree.IntField(keyNum)

		start := time.Now()
		var opErr error
		if isRead(cfg.ReadFraction, i, cfg.OpsPerTx) {
			_, _, opErr = table.Get(tx.ID(), key)
		} else {
			opErr = table.Insert(tx.ID(), []btree.Field{
				key,
				btree.BytesField(keyBytes),
				btree.IntField(int64(i)),
			})
		}
		opLatency.Record(time.Since(start))
		atomic.AddInt64(ops, 1)

		if opErr != nil {
			if opErr == btree.ErrDeadlockDetected || opErr == btree.ErrLatchTimeout {
				atomic.AddInt64(deadlocks, 1)
			}
			tx.Abort()
			atomic.AddInt64(aborts, 1)
			return
		}
	}

	deliberateAbort := cfg.AbortFraction > 0 && kg.rng.Float64() < cfg.AbortFraction
	start := time.Now()
	if deliberateAbort {
		tx.Abort()
		atomic.AddInt64(aborts, 1)
	} else if err := tx.Commit(); err != nil {
		tx.Abort()
		atomic.AddInt64(aborts, 1)
	} else {
		atomic.AddInt64(commits, 1)
	}
	commitLatency.Record(time.Since(start))
}

func isRead(readFraction float64, i, total int) bool {
	if total == 0 {
		return false
	}
	threshold := int(readFraction * float64(total))
	return i < threshold
}

// PrintSummary renders results the way the teacher's printSummaryTable
// does: one row per workload, aligned columns.
func PrintSummary(results []Result) {
	fmt.Printf("%-14s %10s %10s %10s %10s %12s %12s\n",
		"workload", "ops", "commits", "aborts", "deadlocks", "throughput", "p99 (op)")
	for _, r := range results {
		fmt.Printf("%-14s %10d %10d %10d %10d %9.0f/s %12s\n",
			r.Name, r.Ops, r.Commits, r.Aborts, r.Deadlocks, r.Throughput, r.Latency.P99)
	}
}
