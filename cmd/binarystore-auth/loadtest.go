package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/E8A281E6ACA2/BinaryStore/session"
)

type loadtestOptions struct {
	sessions    int
	concurrency int
	ops         int
	prefix      string
}

func newLoadtestCmd(s *settings) *cobra.Command {
	var opts loadtestOptions

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure Redis session store latency",
		Long: "Seeds sessions into the Redis session store and measures concurrent " +
			"lookup and touch latency. Uses REDIS_URL, or an in-process miniredis when unset.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("sessions, concurrency and ops must be > 0")
			}

			var client redis.UniversalClient
			if s.RedisURL == "" {
				mr, err := miniredis.Run()
				if err != nil {
					return fmt.Errorf("start miniredis: %w", err)
				}
				defer mr.Close()
				client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
				cmd.Printf("using miniredis at %s\n", mr.Addr())
			} else {
				rdb, err := connectRedis(cmd.Context(), s.RedisURL, s.StartupTimeout)
				if err != nil {
					return err
				}
				client = rdb
				cmd.Printf("using redis at %s\n", rdb.Options().Addr)
			}
			defer client.Close()

			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), session.NewRedisStore(client, opts.prefix), opts)
		},
	}
	cmd.Flags().IntVar(&opts.sessions, "sessions", 10000, "number of sessions to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 50000, "operations per phase (lookup + touch)")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "sbs-load", "session key prefix")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, store session.Store, opts loadtestOptions) error {
	ids := make([]string, opts.sessions)
	fmt.Fprintf(out, "seeding %d sessions...\n", opts.sessions)
	startSeed := time.Now()
	for i := range ids {
		sess, err := store.Create(ctx, fmt.Sprintf("user-%d", i%100), session.CreateOptions{
			TTL:       24 * time.Hour,
			IP:        "127.0.0.1",
			UserAgent: "binarystore-loadtest",
		})
		if err != nil {
			return fmt.Errorf("seed session: %w", err)
		}
		ids[i] = sess.ID
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	lookup := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand) error {
		sess, err := store.Lookup(ctx, ids[r.Intn(len(ids))])
		if err == nil && sess == nil {
			err = errors.New("session missing")
		}
		return err
	})
	touch := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand) error {
		return store.Touch(ctx, ids[r.Intn(len(ids))], session.TouchInfo{At: time.Now()})
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "lookup", lookup)
	printStats(out, "touch", touch)
	return nil
}

// runPhase calls op ops times across concurrency workers and records the
// latency of each call.
func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
