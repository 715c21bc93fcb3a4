// Package config loads hmsauth-server settings from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	hmsAuth "github.com/MrEthical07/hmsAuth"
	"github.com/MrEthical07/hmsAuth/internal/logging"
)

// EnvPrefix is prepended to every environment key, so logs.level is read
// from HMSAUTH_LOGS_LEVEL.
const EnvPrefix = "HMSAUTH"

// Storage and mail drivers.
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"

	MailLog  = "log"
	MailSMTP = "smtp"
	MailMQTT = "mqtt"
)

type Config struct {
	Server struct {
		Address         string        `mapstructure:"address"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		MetricsPath     string        `mapstructure:"metrics_path"`
		// RequestsPerSecond caps each client IP on the public auth routes.
		RequestsPerSecond float64 `mapstructure:"requests_per_second"`
		Burst             int     `mapstructure:"burst"`
	} `mapstructure:"server"`

	Logging struct {
		Level        string        `mapstructure:"level"`
		Dev          bool          `mapstructure:"dev"`
		File         string        `mapstructure:"file"`
		MaxAge       time.Duration `mapstructure:"max_age"`
		RotationTime time.Duration `mapstructure:"rotation_time"`
	} `mapstructure:"logs"`

	JWT struct {
		Secret         string        `mapstructure:"secret"`
		SigningMethod  string        `mapstructure:"signing_method"` // hs256|ed25519
		PrivateKeyFile string        `mapstructure:"private_key_file"`
		PublicKeyFile  string        `mapstructure:"public_key_file"`
		TTL            time.Duration `mapstructure:"ttl"`
		Issuer         string        `mapstructure:"issuer"`
		Audience       string        `mapstructure:"audience"`
		Leeway         time.Duration `mapstructure:"leeway"`
		KeyID          string        `mapstructure:"key_id"`
		Revocation     bool          `mapstructure:"revocation"`
	} `mapstructure:"jwt"`

	Password struct {
		BcryptCost      int  `mapstructure:"bcrypt_cost"`
		MinLength       int  `mapstructure:"min_length"`
		TemporaryLength int  `mapstructure:"temporary_length"`
		UpgradeOnLogin  bool `mapstructure:"upgrade_on_login"`
	} `mapstructure:"password"`

	Lockout struct {
		MaxAttempts  int           `mapstructure:"max_attempts"`
		Duration     time.Duration `mapstructure:"duration"`
		ApplyToStaff bool          `mapstructure:"apply_to_staff"`
	} `mapstructure:"lockout"`

	Verification struct {
		TTL         time.Duration `mapstructure:"ttl"`
		MaxAttempts int           `mapstructure:"max_attempts"`
		Retention   time.Duration `mapstructure:"retention"`
	} `mapstructure:"verification"`

	Database struct {
		Driver string `mapstructure:"driver"` // memory|postgres
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		// Addr enables the Redis verification store and token deny-list.
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"redis"`

	Mail struct {
		Driver         string        `mapstructure:"driver"` // log|smtp|mqtt
		ProductName    string        `mapstructure:"product_name"`
		Timeout        time.Duration `mapstructure:"timeout"`
		MaxAttempts    int           `mapstructure:"max_attempts"`
		InitialBackoff time.Duration `mapstructure:"initial_backoff"`
		MaxBackoff     time.Duration `mapstructure:"max_backoff"`
		RatePerSecond  float64       `mapstructure:"rate_per_second"`
		Burst          int           `mapstructure:"burst"`

		SMTP struct {
			Host     string `mapstructure:"host"`
			Port     int    `mapstructure:"port"`
			Username string `mapstructure:"username"`
			Password string `mapstructure:"password"`
			From     string `mapstructure:"from"`
		} `mapstructure:"smtp"`

		MQTT struct {
			Broker   string `mapstructure:"broker"`
			ClientID string `mapstructure:"client_id"`
			Username string `mapstructure:"username"`
			Password string `mapstructure:"password"`
			Topic    string `mapstructure:"topic"`
			QoS      int    `mapstructure:"qos"`
		} `mapstructure:"mqtt"`
	} `mapstructure:"mail"`

	Tenant struct {
		IDPrefix string `mapstructure:"id_prefix"`
		IDWidth  int    `mapstructure:"id_width"`
	} `mapstructure:"tenant"`

	Permissions struct {
		// RoleTemplates is a YAML file replacing the built-in role
		// permission templates.
		RoleTemplates string `mapstructure:"role_templates"`
	} `mapstructure:"permissions"`

	Audit struct {
		Enabled    bool `mapstructure:"enabled"`
		BufferSize int  `mapstructure:"buffer_size"`
		DropIfFull bool `mapstructure:"drop_if_full"`
	} `mapstructure:"audit"`

	Metrics struct {
		Enabled           bool `mapstructure:"enabled"`
		LatencyHistograms bool `mapstructure:"latency_histograms"`
	} `mapstructure:"metrics"`
}

// Load reads .env (if present), the optional config file and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return load(viper.New(), os.Getenv(EnvPrefix+"_CONFIG_FILE"))
}

// MustLoad is Load that panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func load(v *viper.Viper, cfgFile string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("hmsauth")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "hmsauth"))
		}
		v.AddConfigPath("/etc/hmsauth")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := hmsAuth.DefaultConfig()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.metrics_path", "/metrics")
	v.SetDefault("server.requests_per_second", 5.0)
	v.SetDefault("server.burst", 10)

	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.dev", false)
	v.SetDefault("logs.file", "")
	v.SetDefault("logs.max_age", 7*24*time.Hour)
	v.SetDefault("logs.rotation_time", 24*time.Hour)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.signing_method", d.JWT.SigningMethod)
	v.SetDefault("jwt.private_key_file", "")
	v.SetDefault("jwt.public_key_file", "")
	v.SetDefault("jwt.ttl", d.JWT.TTL)
	v.SetDefault("jwt.issuer", d.JWT.Issuer)
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.leeway", d.JWT.Leeway)
	v.SetDefault("jwt.key_id", "")
	v.SetDefault("jwt.revocation", true)

	v.SetDefault("password.bcrypt_cost", d.Password.BcryptCost)
	v.SetDefault("password.min_length", d.Password.MinLength)
	v.SetDefault("password.temporary_length", d.Password.TemporaryLength)
	v.SetDefault("password.upgrade_on_login", d.Password.UpgradeOnLogin)

	v.SetDefault("lockout.max_attempts", d.Lockout.MaxAttempts)
	v.SetDefault("lockout.duration", d.Lockout.Duration)
	v.SetDefault("lockout.apply_to_staff", d.Lockout.ApplyToStaff)

	v.SetDefault("verification.ttl", d.Verification.TTL)
	v.SetDefault("verification.max_attempts", d.Verification.MaxAttempts)
	v.SetDefault("verification.retention", d.Verification.Retention)

	v.SetDefault("database.driver", DatabaseMemory)
	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "hmsauth")

	v.SetDefault("mail.driver", MailLog)
	v.SetDefault("mail.product_name", d.Email.ProductName)
	v.SetDefault("mail.timeout", d.Email.Timeout)
	v.SetDefault("mail.max_attempts", d.Email.MaxAttempts)
	v.SetDefault("mail.initial_backoff", d.Email.InitialBackoff)
	v.SetDefault("mail.max_backoff", d.Email.MaxBackoff)
	v.SetDefault("mail.rate_per_second", 10.0)
	v.SetDefault("mail.burst", 20)
	v.SetDefault("mail.smtp.host", "")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.smtp.from", "")
	v.SetDefault("mail.mqtt.broker", "")
	v.SetDefault("mail.mqtt.client_id", "hmsauth")
	v.SetDefault("mail.mqtt.username", "")
	v.SetDefault("mail.mqtt.password", "")
	v.SetDefault("mail.mqtt.topic", "hmsauth/outbox")
	v.SetDefault("mail.mqtt.qos", 1)

	v.SetDefault("tenant.id_prefix", d.Tenant.IDPrefix)
	v.SetDefault("tenant.id_width", d.Tenant.IDWidth)

	v.SetDefault("permissions.role_templates", "")

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.latency_histograms", true)
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DatabaseMemory:
	case DatabasePostgres:
		if c.Database.DSN == "" {
			return errors.New("config: database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}

	switch c.Mail.Driver {
	case MailLog:
	case MailSMTP:
		if c.Mail.SMTP.Host == "" || c.Mail.SMTP.From == "" {
			return errors.New("config: mail.smtp.host and mail.smtp.from are required")
		}
	case MailMQTT:
		if c.Mail.MQTT.Broker == "" {
			return errors.New("config: mail.mqtt.broker is required")
		}
		if c.Mail.MQTT.QoS < 0 || c.Mail.MQTT.QoS > 2 {
			return errors.New("config: mail.mqtt.qos must be 0, 1 or 2")
		}
	default:
		return fmt.Errorf("config: unknown mail.driver %q", c.Mail.Driver)
	}

	if c.Mail.RatePerSecond < 0 || c.Server.RequestsPerSecond < 0 {
		return errors.New("config: rates must not be negative")
	}
	if c.JWT.Secret == "" && c.JWT.PrivateKeyFile == "" {
		return errors.New("config: jwt.secret or jwt.private_key_file is required")
	}
	return nil
}

// Logger returns the logging settings.
func (c *Config) Logger() logging.Config {
	return logging.Config{
		Level:        c.Logging.Level,
		Dev:          c.Logging.Dev,
		File:         c.Logging.File,
		MaxAge:       c.Logging.MaxAge,
		RotationTime: c.Logging.RotationTime,
	}
}

// EngineConfig maps the loaded settings onto an engine configuration,
// reading key files where configured. The result is validated by the
// engine builder, not here.
func (c *Config) EngineConfig() (hmsAuth.Config, error) {
	out := hmsAuth.DefaultConfig()

	out.JWT.SigningMethod = strings.ToLower(c.JWT.SigningMethod)
	out.JWT.TTL = c.JWT.TTL
	out.JWT.Issuer = c.JWT.Issuer
	out.JWT.Audience = c.JWT.Audience
	out.JWT.Leeway = c.JWT.Leeway
	out.JWT.KeyID = c.JWT.KeyID
	out.JWT.PrivateKey = []byte(c.JWT.Secret)
	if c.JWT.PrivateKeyFile != "" {
		key, err := os.ReadFile(c.JWT.PrivateKeyFile)
		if err != nil {
			return hmsAuth.Config{}, fmt.Errorf("config: read jwt private key: %w", err)
		}
		out.JWT.PrivateKey = key
	}
	if c.JWT.PublicKeyFile != "" {
		key, err := os.ReadFile(c.JWT.PublicKeyFile)
		if err != nil {
			return hmsAuth.Config{}, fmt.Errorf("config: read jwt public key: %w", err)
		}
		out.JWT.PublicKey = key
	}

	out.Password.BcryptCost = c.Password.BcryptCost
	out.Password.MinLength = c.Password.MinLength
	out.Password.TemporaryLength = c.Password.TemporaryLength
	out.Password.UpgradeOnLogin = c.Password.UpgradeOnLogin

	out.Lockout.MaxAttempts = c.Lockout.MaxAttempts
	out.Lockout.Duration = c.Lockout.Duration
	out.Lockout.ApplyToStaff = c.Lockout.ApplyToStaff

	out.Verification.TTL = c.Verification.TTL
	out.Verification.MaxAttempts = c.Verification.MaxAttempts
	out.Verification.Retention = c.Verification.Retention

	out.Email.Timeout = c.Mail.Timeout
	out.Email.MaxAttempts = c.Mail.MaxAttempts
	out.Email.InitialBackoff = c.Mail.InitialBackoff
	out.Email.MaxBackoff = c.Mail.MaxBackoff
	out.Email.ProductName = c.Mail.ProductName

	out.Tenant.IDPrefix = c.Tenant.IDPrefix
	out.Tenant.IDWidth = c.Tenant.IDWidth

	out.Audit.Enabled = c.Audit.Enabled
	out.Audit.BufferSize = c.Audit.BufferSize
	out.Audit.DropIfFull = c.Audit.DropIfFull

	out.Metrics.Enabled = c.Metrics.Enabled
	out.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms

	return out, nil
}
