// Command tokenload issues refresh tokens and rotates them concurrently,
// optionally presenting each token several times at once, and reports
// latency percentiles and how many presenters won each rotation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hotelcast/tokenauth"
	"github.com/hotelcast/tokenauth/internal/logging"
	"github.com/hotelcast/tokenauth/internal/redisclient"
	"github.com/hotelcast/tokenauth/principal"
	"go.uber.org/zap"
)

func main() {
	pairs := flag.Int("pairs", 10000, "token pairs to issue")
	workers := flag.Int("concurrency", 256, "concurrent workers per phase")
	presenters := flag.Int("presenters", 1, "simultaneous rotations of each refresh token")
	addr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "redis address; an in-process miniredis is used when empty")
	prefix := flag.String("prefix", "load:", "token store key prefix")
	flag.Parse()

	if *pairs < 1 || *workers < 1 || *presenters < 1 {
		fmt.Fprintln(os.Stderr, "-pairs, -concurrency and -presenters must be positive")
		os.Exit(2)
	}

	logger, err := logging.New("info", true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger, *addr, *prefix, *pairs, *workers, *presenters); err != nil {
		logger.Fatal("tokenload failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, addr, prefix string, pairs, workers, presenters int) error {
	ctx := context.Background()

	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		logger.Info("using in-process miniredis", zap.String("addr", addr))
	}

	redisCfg := redisclient.DefaultConfig()
	redisCfg.Addr = addr
	redisCfg.PoolSize = workers
	rdb, err := redisclient.Connect(ctx, redisCfg, logger)
	if err != nil {
		return err
	}
	defer rdb.Close()

	cfg := tokenauth.DefaultConfig()
	cfg.JWT.Secret = []byte("tokenload-signing-secret-0123456789")
	cfg.Store.KeyPrefix = prefix
	authority, err := tokenauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logger).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return fmt.Errorf("build authority: %w", err)
	}
	defer authority.Close()

	batch := newBatch(pairs)
	issued := batch.issue(ctx, authority, workers)
	rotated, winners := batch.rotate(ctx, authority, workers, presenters)

	fmt.Println("phase    ops  failed   total     ops/s      p50      p95      p99")
	issued.print("issue")
	rotated.print("rotate")
	reportWinners(winners)

	snap := authority.MetricsSnapshot()
	logger.Info("authority counters",
		zap.Uint64("rotate_success", snap.Counters[tokenauth.MetricRotateSuccess]),
		zap.Uint64("replay_rejected", snap.Counters[tokenauth.MetricRotateReplayRejected]),
		zap.Uint64("store_failures", snap.Counters[tokenauth.MetricStoreFailure]),
		zap.Duration("rotate_latency_total", snap.HistogramSums[tokenauth.MetricRotateLatency]),
	)
	return nil
}

// batch holds the principals and refresh tokens of one run. An empty token
// marks an index whose issuance failed.
type batch struct {
	principals []principal.Principal
	tokens     []string
}

func newBatch(n int) *batch {
	return &batch{
		principals: make([]principal.Principal, n),
		tokens:     make([]string, n),
	}
}

func (b *batch) issue(ctx context.Context, a *tokenauth.Authority, workers int) phaseResult {
	var s sampler
	s.fanOut(workers, len(b.tokens), func(i int) bool {
		p := principalFor(i)
		pair, err := a.IssueTokenPair(ctx, p)
		if err != nil {
			return false
		}
		b.principals[i] = p
		b.tokens[i] = pair.RefreshToken
		return true
	})
	return s.result()
}

// rotate presents every issued refresh token presenters times at once and
// returns, besides latencies, the number of tokens per winner count.
func (b *batch) rotate(ctx context.Context, a *tokenauth.Authority, workers, presenters int) (phaseResult, map[int]int) {
	wins := make([]atomic.Int32, len(b.tokens))

	var s sampler
	// Adjacent jobs share a token so its presenters overlap in time.
	s.fanOut(workers, len(b.tokens)*presenters, func(job int) bool {
		i := job / presenters
		if b.tokens[i] == "" {
			return true
		}
		_, err := a.Rotate(ctx, b.tokens[i], b.principals[i])
		switch {
		case err == nil:
			wins[i].Add(1)
		case errors.Is(err, tokenauth.ErrRevoked):
		default:
			return false
		}
		return true
	})

	winners := map[int]int{}
	for i := range wins {
		if b.tokens[i] != "" {
			winners[int(wins[i].Load())]++
		}
	}
	return s.result(), winners
}

func principalFor(i int) principal.Principal {
	p, err := principal.New(int64(i+1), principal.RoleUser, []principal.HotelAccess{
		{HotelID: int64(i%50 + 1), Role: principal.HotelViewer},
	})
	if err != nil {
		panic(err)
	}
	return p
}

// sampler times operations run by a worker pool.
type sampler struct {
	mu      sync.Mutex
	samples []time.Duration
	failed  atomic.Int64
	elapsed time.Duration
}

// fanOut runs op for every index in [0, jobs) on workers goroutines. op
// reports whether the operation succeeded.
func (s *sampler) fanOut(workers, jobs int, op func(int) bool) {
	s.samples = make([]time.Duration, 0, jobs)
	var next atomic.Int64
	var wg sync.WaitGroup

	begin := time.Now()
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job := int(next.Add(1) - 1)
				if job >= jobs {
					return
				}
				t0 := time.Now()
				ok := op(job)
				took := time.Since(t0)
				if !ok {
					s.failed.Add(1)
				}
				s.mu.Lock()
				s.samples = append(s.samples, took)
				s.mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.elapsed = time.Since(begin)
}

type phaseResult struct {
	ops           int
	failed        int64
	elapsed       time.Duration
	p50, p95, p99 time.Duration
}

func (s *sampler) result() phaseResult {
	slices.Sort(s.samples)
	return phaseResult{
		ops:     len(s.samples),
		failed:  s.failed.Load(),
		elapsed: s.elapsed,
		p50:     quantile(s.samples, 0.50),
		p95:     quantile(s.samples, 0.95),
		p99:     quantile(s.samples, 0.99),
	}
}

// quantile uses the nearest-rank method on sorted samples.
func quantile(sorted []time.Duration, q float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(q*float64(n)+0.999999) - 1
	return sorted[max(0, min(rank, n-1))]
}

func (r phaseResult) print(phase string) {
	var rate float64
	if r.elapsed > 0 {
		rate = float64(r.ops) / r.elapsed.Seconds()
	}
	fmt.Printf("%-6s %6d %7d %8s %9.0f %8s %8s %8s\n",
		phase, r.ops, r.failed,
		r.elapsed.Round(time.Millisecond), rate,
		r.p50.Round(time.Microsecond), r.p95.Round(time.Microsecond), r.p99.Round(time.Microsecond))
}

func reportWinners(winners map[int]int) {
	counts := make([]int, 0, len(winners))
	for n := range winners {
		counts = append(counts, n)
	}
	slices.Sort(counts)
	for _, n := range counts {
		fmt.Printf("tokens rotated by %d presenter(s): %d\n", n, winners[n])
	}
	if len(counts) != 1 || counts[0] != 1 {
		fmt.Println("WARNING: some tokens did not rotate exactly once")
	}
}
