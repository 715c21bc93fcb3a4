// Command hmsauth-server serves the hospital authentication engine over
// HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	hmsAuth "github.com/MrEthical07/hmsAuth"
	"github.com/MrEthical07/hmsAuth/internal/config"
	"github.com/MrEthical07/hmsAuth/internal/httpapi"
	"github.com/MrEthical07/hmsAuth/internal/logging"
	"github.com/MrEthical07/hmsAuth/internal/rate"
	"github.com/MrEthical07/hmsAuth/jwt"
	"github.com/MrEthical07/hmsAuth/mailer"
	promexport "github.com/MrEthical07/hmsAuth/metrics/export/prometheus"
	"github.com/MrEthical07/hmsAuth/principal"
	"github.com/MrEthical07/hmsAuth/store/memory"
	"github.com/MrEthical07/hmsAuth/store/postgres"
	"github.com/MrEthical07/hmsAuth/verification"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hmsauth-server: %v\n", err)
		os.Exit(1)
	}
}

// closer releases one resource at shutdown; closers run newest first.
type closer func()

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.Logger())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
		_ = closeLog()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	dispatcher, closeMail, err := openMailer(cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeMail)

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	b := hmsAuth.New().
		WithConfig(engineCfg).
		WithStore(store).
		WithMailer(dispatcher).
		WithLogger(logger.Named("engine")).
		WithAuditSink(hmsAuth.NewZapSink(logger))

	if cfg.Permissions.RoleTemplates != "" {
		doc, err := os.ReadFile(cfg.Permissions.RoleTemplates)
		if err != nil {
			return fmt.Errorf("role templates: %w", err)
		}
		b.WithRoleTemplates(doc)
	}

	var limiter rate.Limiter
	if cfg.Server.RequestsPerSecond > 0 {
		limiter = rate.NewLocal(cfg.Server.RequestsPerSecond, cfg.Server.Burst)
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		b.WithVerificationStore(verification.NewRedisStore(rdb, cfg.Redis.Prefix, cfg.Verification.Retention))
		if cfg.JWT.Revocation {
			b.WithDenylist(jwt.NewRedisDenylist(rdb, cfg.Redis.Prefix))
		}
		if cfg.Server.RequestsPerSecond > 0 {
			limiter = rate.NewRedis(rdb, cfg.Redis.Prefix, cfg.Server.Burst, time.Second)
		}
		logger.Info("redis enabled", zap.String("addr", cfg.Redis.Addr))
	} else if cfg.JWT.Revocation {
		b.WithDenylist(jwt.NewMemoryDenylist(time.Now))
	}

	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	closers = append(closers, engine.Close)

	router := httpapi.NewRouter(httpapi.Options{
		Engine:      engine,
		Logger:      logger.Named("http"),
		Limiter:     limiter,
		Metrics:     promexport.Handler(engine),
		MetricsPath: cfg.Server.MetricsPath,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.Server.Address),
			zap.String("database", cfg.Database.Driver),
			zap.String("mail", cfg.Mail.Driver),
			zap.Bool("revocation", engine.RevocationEnabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (principal.Store, closer, error) {
	if cfg.Database.Driver != config.DatabasePostgres {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	store := postgres.New(db)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return store, closeDB(db), nil
}

func closeDB(db *sqlx.DB) closer {
	return func() { _ = db.Close() }
}

func openMailer(cfg *config.Config, logger *zap.Logger) (mailer.Dispatcher, closer, error) {
	var (
		base    mailer.Dispatcher
		release closer = func() {}
	)
	switch cfg.Mail.Driver {
	case config.MailSMTP:
		s, err := mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.Username,
			Password: cfg.Mail.SMTP.Password,
			From:     cfg.Mail.SMTP.From,
		})
		if err != nil {
			return nil, nil, err
		}
		base = s
	case config.MailMQTT:
		o, err := mailer.ConnectMQTTOutbox(mailer.MQTTConfig{
			BrokerURL: cfg.Mail.MQTT.Broker,
			ClientID:  cfg.Mail.MQTT.ClientID,
			Username:  cfg.Mail.MQTT.Username,
			Password:  cfg.Mail.MQTT.Password,
			Topic:     cfg.Mail.MQTT.Topic,
			QoS:       byte(cfg.Mail.MQTT.QoS),
		})
		if err != nil {
			return nil, nil, err
		}
		base, release = o, o.Close
	default:
		logger.Warn("mail driver is log; account emails are written to the log only")
		base = mailer.NewLogDispatcher(logger.Named("mail"))
	}

	if cfg.Mail.RatePerSecond > 0 {
		base = mailer.NewThrottled(base, cfg.Mail.RatePerSecond, cfg.Mail.Burst)
	}
	return base, release, nil
}
