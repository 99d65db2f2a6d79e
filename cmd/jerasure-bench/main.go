package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ppopth/jerasure-go"
	"github.com/ppopth/jerasure-go/schedule"
)

var log = logging.Logger("jerasure-bench")

// BenchmarkResult stores timing data for one technique
type BenchmarkResult struct {
	Technique   jerasure.Technique `json:"technique"`
	K           int                `json:"k"`
	M           int                `json:"m"`
	W           int                `json:"w"`
	PacketSize  int                `json:"packet_size"`
	DeviceSize  int                `json:"device_size"` // Bytes per device after alignment
	Iterations  int                `json:"iterations"`
	Operations  int                `json:"schedule_ops"` // Encoding schedule length, 0 for matrix techniques
	Encode      time.Duration      `json:"encode_ns"`    // Average time for Encode
	Decode      time.Duration      `json:"decode_ns"`    // Average time for Decode of m erasures
	EncodeMBps  float64            `json:"encode_mbps"`
	DecodeMBps  float64            `json:"decode_mbps"`
	EncodeStats schedule.Stats     `json:"encode_stats"`
	DecodeStats schedule.Stats     `json:"decode_stats"`
}

type options struct {
	k, m, w    int
	packetSize int
	bufferSize int
	techniques []string
	iterations int
	output     string
	logLevel   string
	cache      bool
	dumb       bool
	seed       int64
}

func addFlags(fs *pflag.FlagSet, o *options) {
	fs.IntVarP(&o.k, "k", "k", 6, "Number of data devices")
	fs.IntVarP(&o.m, "m", "m", 2, "Number of coding devices")
	fs.IntVarP(&o.w, "w", "w", 8, "Field width in bits")
	fs.IntVar(&o.packetSize, "packet-size", 0, "Packet size in bytes for bitmatrix techniques (0 picks one from the L1 cache size)")
	fs.IntVar(&o.bufferSize, "buffer-size", 1<<20, "Bytes of data spread over the data devices")
	fs.StringSliceVar(&o.techniques, "technique", []string{"all"}, "Techniques to benchmark, or all")
	fs.IntVar(&o.iterations, "iterations", 100, "Number of iterations per benchmark")
	fs.StringVar(&o.output, "output", "jerasure_benchmark.json", "Output file for benchmark results")
	fs.StringVar(&o.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")
	fs.BoolVar(&o.cache, "cache", false, "Decode with cached schedules")
	fs.BoolVar(&o.dumb, "dumb", false, "Compile dumb schedules instead of smart ones")
	fs.Int64Var(&o.seed, "seed", 1, "Seed for data and erasure patterns")
}

func main() {
	var o options
	root := &cobra.Command{
		Use:          "jerasure-bench",
		Short:        "Benchmark encoding and decoding of every erasure-coding technique",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), &o)
		},
	}
	addFlags(root.Flags(), &o)

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, o *options) error {
	lvl, err := logging.LevelFromString(o.logLevel)
	if err != nil {
		return errors.Wrapf(err, "log level %q", o.logLevel)
	}
	logging.SetAllLoggers(lvl)

	if o.iterations <= 0 {
		return errors.Errorf("iterations must be positive, got %d", o.iterations)
	}
	if o.bufferSize <= 0 {
		return errors.Errorf("buffer size must be positive, got %d", o.bufferSize)
	}
	techniques, err := parseTechniques(o.techniques)
	if err != nil {
		return err
	}

	fmt.Printf("Benchmarking erasure coding with:\n")
	fmt.Printf("  k=%d m=%d w=%d\n", o.k, o.m, o.w)
	fmt.Printf("  Buffer size: %d bytes\n", o.bufferSize)
	fmt.Printf("  Iterations: %d\n", o.iterations)
	fmt.Println()

	results := make([]BenchmarkResult, len(techniques))
	g, ctx := errgroup.WithContext(ctx)
	for i, tech := range techniques {
		i, tech := i, tech
		g.Go(func() error {
			r, err := benchmark(ctx, tech, o)
			if err != nil {
				return errors.Wrapf(err, "%s", tech)
			}
			results[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		fmt.Printf("%-15s k=%-3d m=%-3d w=%-3d encode %10v (%8.1f MB/s)  decode %10v (%8.1f MB/s)\n",
			r.Technique, r.K, r.M, r.W, r.Encode, r.EncodeMBps, r.Decode, r.DecodeMBps)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal results")
	}
	if err := os.WriteFile(o.output, data, 0644); err != nil {
		return errors.Wrap(err, "write results")
	}
	fmt.Printf("\nBenchmark results written to: %s\n", o.output)
	return nil
}

func parseTechniques(names []string) ([]jerasure.Technique, error) {
	var out []jerasure.Technique
	for _, name := range names {
		if name == "all" {
			return jerasure.Techniques(), nil
		}
		t, err := jerasure.ParseTechnique(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// coderConfig fits the requested parameters to what the technique supports.
func coderConfig(tech jerasure.Technique, o *options) *jerasure.CoderConfig {
	cfg := &jerasure.CoderConfig{
		Technique:      tech,
		K:              o.k,
		M:              o.m,
		W:              o.w,
		PacketSize:     o.packetSize,
		Smart:          !o.dumb,
		CacheSchedules: o.cache,
	}
	switch tech {
	case jerasure.ReedSolVan:
		if cfg.W != 8 && cfg.W != 16 && cfg.W != 32 {
			cfg.W = 8
		}
	case jerasure.ReedSolR6Op:
		cfg.M = 2
		if cfg.W != 8 && cfg.W != 16 && cfg.W != 32 {
			cfg.W = 8
		}
	case jerasure.Liberation:
		cfg.M = 2
		cfg.W = nextPrime(max(cfg.K, 3))
	case jerasure.BlaumRoth:
		cfg.M = 2
		cfg.W = nextPrime(max(cfg.K, 2)+1) - 1
	case jerasure.Liber8tion:
		cfg.K = min(cfg.K, 8)
		cfg.M = 2
		cfg.W = 8
	case jerasure.NoCoding:
		cfg.M = 0
	}
	if cfg.K != o.k || cfg.M != o.m || cfg.W != o.w {
		log.Infof("%s runs with k=%d m=%d w=%d", tech, cfg.K, cfg.M, cfg.W)
	}
	return cfg
}

func nextPrime(n int) int {
	for ; ; n++ {
		prime := n > 1
		for d := 2; d*d <= n; d++ {
			if n%d == 0 {
				prime = false
				break
			}
		}
		if prime {
			return n
		}
	}
}

func benchmark(ctx context.Context, tech jerasure.Technique, o *options) (*BenchmarkResult, error) {
	c, err := jerasure.NewCoder(coderConfig(tech, o))
	if err != nil {
		return nil, err
	}
	cfg := c.Config()
	if cache := c.Cache(); cache != nil {
		if err := cache.Warm(ctx); err != nil {
			return nil, err
		}
	}

	size := c.DeviceSize(o.bufferSize)
	rng := rand.New(rand.NewSource(o.seed))
	data := make([][]byte, cfg.K)
	for i := range data {
		data[i] = make([]byte, size)
		rng.Read(data[i])
	}
	coding := make([][]byte, cfg.M)
	for i := range coding {
		coding[i] = make([]byte, size)
	}

	result := &BenchmarkResult{
		Technique:  tech,
		K:          cfg.K,
		M:          cfg.M,
		W:          cfg.W,
		PacketSize: cfg.PacketSize,
		DeviceSize: size,
		Iterations: o.iterations,
	}
	if s := c.Schedule(); s != nil {
		result.Operations = s.Len()
	}

	start := time.Now()
	for i := 0; i < o.iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.Encode(data, coding); err != nil {
			return nil, err
		}
	}
	result.Encode = time.Since(start) / time.Duration(o.iterations)
	result.EncodeStats = c.Stats()

	wantData := cloneDevices(data)
	wantCoding := cloneDevices(coding)
	var decodeTime time.Duration
	for i := 0; i < o.iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		erasures := rng.Perm(cfg.K + cfg.M)[:cfg.M]
		sort.Ints(erasures)
		for _, e := range erasures {
			if e < cfg.K {
				clear(data[e])
			} else {
				clear(coding[e-cfg.K])
			}
		}

		start := time.Now()
		if err := c.Decode(erasures, data, coding); err != nil {
			return nil, err
		}
		decodeTime += time.Since(start)

		for j := range data {
			if !bytes.Equal(data[j], wantData[j]) {
				return nil, errors.Errorf("data device %d differs after decoding %v", j, erasures)
			}
		}
		for j := range coding {
			if !bytes.Equal(coding[j], wantCoding[j]) {
				return nil, errors.Errorf("coding device %d differs after decoding %v", j, erasures)
			}
		}
	}
	result.Decode = decodeTime / time.Duration(o.iterations)
	result.DecodeStats = c.Stats()

	total := float64(cfg.K * size)
	result.EncodeMBps = throughput(total, result.Encode)
	result.DecodeMBps = throughput(total, result.Decode)
	log.Debugf("%s done: encode %v decode %v", tech, result.Encode, result.Decode)
	return result, nil
}

func throughput(n float64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return n / d.Seconds() / 1e6
}

func cloneDevices(bufs [][]byte) [][]byte {
	out := make([][]byte, len(bufs))
	for i, b := range bufs {
		out[i] = append([]byte(nil), b...)
	}
	return out
}
