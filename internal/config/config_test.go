package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

const testSecret = "config-test-secret-0123456789abc"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HMSAUTH_JWT_SECRET", testSecret)

	cfg, err := load(viper.New(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8080" || cfg.Server.MetricsPath != "/metrics" {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Database.Driver != DatabaseMemory || cfg.Mail.Driver != MailLog {
		t.Fatalf("unexpected drivers %q %q", cfg.Database.Driver, cfg.Mail.Driver)
	}
	if cfg.JWT.TTL != 7*24*time.Hour || cfg.Lockout.MaxAttempts != 5 || cfg.Lockout.Duration != 2*time.Hour {
		t.Fatalf("engine defaults not carried: jwt=%v lockout=%+v", cfg.JWT.TTL, cfg.Lockout)
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if err := engineCfg.Validate(); err != nil {
		t.Fatalf("engine config invalid: %v", err)
	}
	if string(engineCfg.JWT.PrivateKey) != testSecret {
		t.Fatal("secret not mapped")
	}
	if !engineCfg.Audit.Enabled || !engineCfg.Metrics.EnableLatencyHistograms {
		t.Fatalf("server defaults should enable audit and histograms: %+v %+v", engineCfg.Audit, engineCfg.Metrics)
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hmsauth.yaml")
	doc := []byte(`
server:
  address: 127.0.0.1:9000
jwt:
  secret: ` + testSecret + `
  ttl: 12h
lockout:
  max_attempts: 3
  duration: 30m
mail:
  driver: smtp
  smtp:
    host: smtp.example.org
    from: noreply@example.org
`)
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HMSAUTH_LOCKOUT_MAX_ATTEMPTS", "7")

	cfg, err := load(viper.New(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != "127.0.0.1:9000" {
		t.Fatalf("file value ignored: %q", cfg.Server.Address)
	}
	if cfg.Lockout.MaxAttempts != 7 {
		t.Fatalf("env must override file, got %d", cfg.Lockout.MaxAttempts)
	}
	if cfg.Lockout.Duration != 30*time.Minute || cfg.JWT.TTL != 12*time.Hour {
		t.Fatalf("durations not decoded: %v %v", cfg.Lockout.Duration, cfg.JWT.TTL)
	}
	if cfg.Mail.SMTP.Port != 587 {
		t.Fatalf("nested default lost, got port %d", cfg.Mail.SMTP.Port)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"unknown database", map[string]string{"HMSAUTH_JWT_SECRET": testSecret, "HMSAUTH_DATABASE_DRIVER": "mysql"}},
		{"postgres without dsn", map[string]string{"HMSAUTH_JWT_SECRET": testSecret, "HMSAUTH_DATABASE_DRIVER": "postgres"}},
		{"smtp without host", map[string]string{"HMSAUTH_JWT_SECRET": testSecret, "HMSAUTH_MAIL_DRIVER": "smtp"}},
		{"mqtt without broker", map[string]string{"HMSAUTH_JWT_SECRET": testSecret, "HMSAUTH_MAIL_DRIVER": "mqtt"}},
		{"unknown mail", map[string]string{"HMSAUTH_JWT_SECRET": testSecret, "HMSAUTH_MAIL_DRIVER": "pigeon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := load(viper.New(), ""); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEngineConfigReadsKeyFiles(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "jwt.pem")
	if err := os.WriteFile(priv, []byte("private-pem"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	var cfg Config
	cfg.JWT.SigningMethod = "ED25519"
	cfg.JWT.PrivateKeyFile = priv
	out, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if string(out.JWT.PrivateKey) != "private-pem" || out.JWT.SigningMethod != "ed25519" {
		t.Fatalf("unexpected jwt config %+v", out.JWT)
	}

	cfg.JWT.PublicKeyFile = filepath.Join(dir, "missing.pem")
	if _, err := cfg.EngineConfig(); err == nil {
		t.Fatal("expected missing public key error")
	}
}
