package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	loadUser     = "loadtest"
	loadPassword = "loadtest-password"
	loadSalt     = "loadtest-salt"
	loadPerm     = "system:user:list"
)

type sessionState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

type directory struct {
	cred adminauth.UserCredential
}

func (d *directory) FindUserByUsername(_ context.Context, username string) (adminauth.UserCredential, error) {
	if username != d.cred.Username {
		return adminauth.UserCredential{}, adminauth.ErrUserNotFound
	}
	return d.cred, nil
}

func (d *directory) ResolveRoles(context.Context, string) ([]string, error) {
	return []string{"operator"}, nil
}

func (d *directory) ResolvePermissions(context.Context, string) ([]string, error) {
	return []string{loadPerm, "monitor:online:list"}, nil
}

func main() {
	var (
		sessions    = flag.Int("sessions", 1000, "number of sessions to log in before the run")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (authorize + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, ADMINAUTH_REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "aa-load", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("ADMINAUTH_REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := newEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]sessionState, *sessions)
	fmt.Printf("logging in %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range states {
		pair, err := engine.Login(ctx, adminauth.LoginRequest{Username: loadUser, Password: loadPassword})
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i].access = pair.AccessToken
		states[i].refresh = pair.RefreshToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authorizeStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand, _ int) error {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		token := state.access
		state.mu.Unlock()
		_, err := engine.Authorize(ctx, token, loadPerm)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand, _ int) error {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		defer state.mu.Unlock()
		pair, err := engine.Refresh(ctx, state.refresh)
		if err != nil {
			return err
		}
		state.access = pair.AccessToken
		state.refresh = pair.RefreshToken
		return nil
	})

	online, err := engine.OnlineCount(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "online count: %v\n", err)
	}

	fmt.Println("---- results ----")
	printStats("authorize", authorizeStats)
	printStats("refresh", refreshStats)
	fmt.Printf("online sessions: %d\n", online)
}

func newEngine(client redis.UniversalClient, prefix string) (*adminauth.Engine, error) {
	cfg := adminauth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("adminauth-loadtest-secret-0123456789")
	cfg.Session.RedisPrefix = prefix
	cfg.Captcha.Enabled = false
	// Login cost only matters for seeding.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.MaxLoginAttempts = 1 << 20

	dir := &directory{}
	engine, err := adminauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(dir).
		WithRoleResolver(dir).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return nil, err
	}

	hash, err := engine.HashPassword(loadPassword, loadSalt)
	if err != nil {
		engine.Close()
		return nil, err
	}
	dir.cred = adminauth.UserCredential{
		UserID:       "1",
		Username:     loadUser,
		PasswordHash: hash,
		Salt:         loadSalt,
		Status:       adminauth.StatusEnabled,
	}
	return engine, nil
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
		firstErr  error
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	stats := computeStats(time.Since(start), latencies, failures)
	stats.firstErr = firstErr
	return stats
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	firstErr error
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
	if s.firstErr != nil && !errors.Is(s.firstErr, context.Canceled) {
		fmt.Printf("%s: first error: %v\n", name, s.firstErr)
	}
}
