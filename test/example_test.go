package test

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	hmsAuth "github.com/MrEthical07/hmsAuth"
	"github.com/MrEthical07/hmsAuth/jwt"
	"github.com/MrEthical07/hmsAuth/mailer"
	"github.com/MrEthical07/hmsAuth/store/memory"
	"github.com/MrEthical07/hmsAuth/verification"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := hmsAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("replace-with-32-bytes-of-secret!")

	engine, _ := hmsAuth.New().
		WithConfig(cfg).
		WithStore(memory.New()).
		WithMailer(&mailer.Memory{}).
		WithVerificationStore(verification.NewRedisStore(rdb, "hms", 0)).
		WithDenylist(jwt.NewRedisDenylist(rdb, "hms")).
		Build()
	_ = engine
}

// ExampleEngine_LoginStaff shows a typical login entrypoint call and structured error handling.
func ExampleEngine_LoginStaff() {
	var engine *hmsAuth.Engine
	_, err := engine.LoginStaff(context.Background(), "nurse@example.org", "password")

	var locked *hmsAuth.AccountLockedError
	switch {
	case errors.As(err, &locked):
		fmt.Printf("locked for %d minutes\n", locked.RemainingMinutes)
	case errors.Is(err, hmsAuth.ErrEngineNotReady):
		fmt.Println("engine not ready")
	}
	// Output: engine not ready
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *hmsAuth.Engine
	snapshot := engine.MetricsSnapshot()
	fmt.Println(snapshot.Counters[hmsAuth.MetricLoginSuccess])
	// Output: 0
}
