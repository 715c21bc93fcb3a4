package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	hmsAuth "github.com/MrEthical07/hmsAuth"
	"github.com/MrEthical07/hmsAuth/jwt"
	"github.com/MrEthical07/hmsAuth/mailer"
	"github.com/MrEthical07/hmsAuth/principal"
	"github.com/MrEthical07/hmsAuth/store/memory"
	"github.com/MrEthical07/hmsAuth/verification"
)

const (
	loadSecret   = "loadtest-secret-0123456789abcdef"
	loadPassword = "loadtest-pass-1"
)

type staffLogin struct {
	email    string
	password string
}

func main() {
	var (
		staff       = flag.Int("staff", 200, "number of staff members to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "authenticate operations")
		logins      = flag.Int("logins", 500, "login operations (bcrypt bound)")
		cost        = flag.Int("bcrypt-cost", 10, "bcrypt cost for seeded credentials")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "hmsload", "redis key prefix")
	)
	flag.Parse()

	if *staff <= 0 || *concurrency <= 0 || *ops <= 0 || *logins < 0 {
		fmt.Fprintln(os.Stderr, "staff, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := hmsAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(loadSecret)
	cfg.Password.BcryptCost = *cost
	cfg.Metrics.EnableLatencyHistograms = true

	mail := &mailer.Memory{}
	engine, err := hmsAuth.New().
		WithConfig(cfg).
		WithStore(memory.New()).
		WithMailer(mail).
		WithVerificationStore(verification.NewRedisStore(client, *prefix, cfg.Verification.Retention)).
		WithDenylist(jwt.NewRedisDenylist(client, *prefix)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding tenant and %d staff members...\n", *staff)
	startSeed := time.Now()
	tokens, creds, err := seed(ctx, engine, mail, *staff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	loginStats := runPhase(*logins, *concurrency, 6151, func(r *rand.Rand) error {
		c := creds[r.Intn(len(creds))]
		_, err := engine.LoginStaff(ctx, c.email, c.password)
		return err
	})

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("login", loginStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: sessions_issued=%d authenticate_failures=%d\n",
		snap.Counters[hmsAuth.MetricSessionIssued],
		snap.Counters[hmsAuth.MetricAuthenticateFailure],
	)
}

// seed registers one hospital and signs in every staff member once with
// their temporary password.
func seed(ctx context.Context, engine *hmsAuth.Engine, mail *mailer.Memory, n int) ([]string, []staffLogin, error) {
	req := hmsAuth.RegisterTenantRequest{
		HospitalName:       "Load Hospital",
		HospitalEmail:      "contact@load.test",
		RegistrationNumber: "RN-LOAD",
		LicenseNumber:      "LN-LOAD",
		HospitalNumber:     "HN-LOAD",
		AdminName:          "Load Admin",
		AdminEmail:         "admin@load.test",
		AdminPassword:      loadPassword,
	}
	if _, err := engine.RegisterTenant(ctx, req); err != nil {
		return nil, nil, err
	}
	code, err := lastMatch(mail, req.AdminEmail, extractCode)
	if err != nil {
		return nil, nil, err
	}
	admin, err := engine.VerifyEmail(ctx, req.AdminEmail, code)
	if err != nil {
		return nil, nil, err
	}

	tokens := make([]string, 0, n)
	creds := make([]staffLogin, 0, n)
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("staff-%d@load.test", i)
		role := principal.StaffRoles[i%len(principal.StaffRoles)]
		if _, err := engine.CreateStaff(ctx, admin.Principal, hmsAuth.CreateStaffRequest{
			Name:  fmt.Sprintf("Staff %d", i),
			Email: email,
			Role:  role,
		}); err != nil {
			return nil, nil, err
		}
		temp, err := lastMatch(mail, email, extractTemporaryPassword)
		if err != nil {
			return nil, nil, err
		}
		res, err := engine.LoginStaff(ctx, email, temp)
		if err != nil {
			return nil, nil, err
		}
		tokens = append(tokens, res.Token)
		creds = append(creds, staffLogin{email: email, password: temp})
	}
	return tokens, creds, nil
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

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
}
