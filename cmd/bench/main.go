package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/small-db/smalldb/btree"
	"github.com/small-db/smalldb/common/benchmark"
)

func main() {
	quick := flag.Bool("quick", false, "Run quick benchmarks (shorter duration)")
	workload := flag.String("workload", "all", "Workload to run (all, write-heavy, read-heavy, balanced, write-only)")
	duration := flag.Duration("duration", 60*time.Second, "Duration for each benchmark")
	concurrency := flag.Int("concurrency", 8, "Number of concurrent workers")
	flag.Parse()

	fmt.Println("smalldb Benchmark Suite")
	fmt.Println("=======================")
	fmt.Printf("Mode: %s\n\n", *workload)

	var configs []benchmark.Config
	if *quick {
		configs = benchmark.QuickWorkloads()
	} else {
		configs = benchmark.StandardWorkloads()
	}

	if flag.Lookup("duration").Value.String() != flag.Lookup("duration").DefValue {
		for i := range configs {
			configs[i].Duration = *duration
		}
	}
	if flag.Lookup("concurrency").Value.String() != flag.Lookup("concurrency").DefValue {
		for i := range configs {
			configs[i].Concurrency = *concurrency
		}
	}

	if *workload != "all" {
		filtered := make([]benchmark.Config, 0)
		for _, c := range configs {
			if c.Name == *workload {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 0 {
			fmt.Printf("Unknown workload: %s\n", *workload)
			os.Exit(1)
		}
		configs = filtered
	}

	dir, err := os.MkdirTemp("", "smalldb-bench-*")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	cfg := btree.DefaultConfig(dir)
	cfg.CacheSize = 20000
	db, err := btree.Open(cfg)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		fmt.Printf("Failed to begin setup tx: %v\n", err)
		os.Exit(1)
	}
	table, err := db.CreateTable(tx, "bench", []btree.FieldDesc{
		{Name: "id", Type: btree.FieldInt64, IsPrimary: true},
		{Name: "payload", Type: btree.FieldBytes, MaxBytes: 32},
		{Name: "seq", Type: btree.FieldInt64},
	})
	if err != nil {
		fmt.Printf("Failed to create table: %v\n", err)
		os.Exit(1)
	}
	if err := tx.Commit(); err != nil {
		fmt.Printf("Failed to commit setup tx: %v\n", err)
		os.Exit(1)
	}

	var results []benchmark.Result
	for _, c := range configs {
		fmt.Printf("Running %s (concurrency=%d, duration=%v)...\n", c.Name, c.Concurrency, c.Duration)
		results = append(results, benchmark.Run(db, table, c))
	}

	fmt.Println()
	benchmark.PrintSummary(results)
}
