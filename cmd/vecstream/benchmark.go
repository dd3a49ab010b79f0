package main

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/vecstream/internal/backend"
	"github.com/samcharles93/vecstream/internal/logger"
	"github.com/samcharles93/vecstream/internal/pipeline"
)

func benchmarkCmd() *cli.Command {
	var (
		length     int64
		warmupRuns int64
		benchRuns  int64
	)

	return &cli.Command{
		Name:  "benchmark",
		Usage: "Compare multi-stream and single-stream pipeline wall time",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "length",
				Aliases:     []string{"n"},
				Usage:       "number of elements per vector",
				Value:       1 << 20,
				Destination: &length,
			},
			&cli.Int64Flag{
				Name:        "warmup",
				Usage:       "number of warmup runs",
				Value:       1,
				Destination: &warmupRuns,
			},
			&cli.Int64Flag{
				Name:        "runs",
				Usage:       "number of benchmark runs",
				Value:       5,
				Destination: &benchRuns,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			if length < 0 || benchRuns <= 0 {
				return cli.Exit("error: --length must be >= 0 and --runs > 0", 1)
			}

			dev, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = dev.Close() }()
			info := backend.Describe(dev)

			n := int(length)
			r := rand.New(rand.NewSource(42))
			in1 := make([]float32, n)
			in2 := make([]float32, n)
			for i := range n {
				in1[i] = r.Float32()
				in2[i] = r.Float32()
			}

			multi := pipeline.DefaultConfig()
			single := multi
			single.Streams = 1

			fmt.Println("=== vecstream benchmark ===")
			fmt.Printf("Device:     %s (%s)\n", info.Name, info.Backend)
			fmt.Printf("CPUs:       %d\n", runtime.NumCPU())
			fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
			fmt.Printf("Length:     %s elements (%s per vector)\n",
				humanize.Comma(length), humanize.IBytes(uint64(n)*4))
			fmt.Printf("Segment:    %d, block %d\n", multi.SegmentSize, multi.BlockSize)
			fmt.Printf("Runs:       %d (+%d warmup)\n", benchRuns, warmupRuns)
			fmt.Println()

			configs := []struct {
				name string
				cfg  pipeline.Config
			}{
				{name: fmt.Sprintf("%d streams", multi.Streams), cfg: multi},
				{name: "1 stream", cfg: single},
			}

			fmt.Printf("%-12s %12s %12s %12s %12s\n", "Config", "Min", "Avg", "Max", "Throughput")
			for _, c := range configs {
				for i := range int(warmupRuns) {
					log.Debug("warmup run", "config", c.name, "run", i+1)
					if _, err := pipeline.Add(ctx, dev, c.cfg, in1, in2); err != nil {
						return deviceExit(err)
					}
				}

				var lo, hi, sum time.Duration
				for i := range int(benchRuns) {
					start := time.Now()
					if _, err := pipeline.Add(ctx, dev, c.cfg, in1, in2); err != nil {
						return deviceExit(err)
					}
					d := time.Since(start)
					log.Debug("benchmark run", "config", c.name, "run", i+1, "elapsed", d)
					if i == 0 || d < lo {
						lo = d
					}
					hi = max(hi, d)
					sum += d
				}
				avg := sum / time.Duration(benchRuns)
				// Three vectors cross the host/device boundary per run.
				moved := uint64(n) * 4 * 3
				throughput := "-"
				if avg > 0 {
					throughput = humanize.IBytes(uint64(float64(moved)/avg.Seconds())) + "/s"
				}
				fmt.Printf("%-12s %12s %12s %12s %12s\n", c.name,
					lo.Round(time.Microsecond), avg.Round(time.Microsecond), hi.Round(time.Microsecond), throughput)
			}

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			fmt.Printf("\nMemory: %s alloc, %s sys\n", humanize.IBytes(mem.Alloc), humanize.IBytes(mem.Sys))
			return nil
		},
	}
}
