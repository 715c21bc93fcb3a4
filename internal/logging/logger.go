// Package logging builds the process-wide zap logger for the hmsauth
// binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding and destination.
type Config struct {
	Level string
	Dev   bool
	// File, when set, receives logs through a daily-rotated writer in
	// addition to stdout. Rotated files are named File.YYYYMMDD and File
	// links to the current one.
	File         string
	MaxAge       time.Duration
	RotationTime time.Duration
}

// LevelFromString maps a level name to a zap level. Unknown names map to
// info.
func LevelFromString(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger from cfg. The returned close func releases the
// rotated file, if any, and must be called after the final Sync.
func New(cfg Config) (*zap.Logger, func() error, error) {
	return newLogger(cfg, zapcore.AddSync(os.Stdout))
}

func newLogger(cfg Config, stdout zapcore.WriteSyncer) (*zap.Logger, func() error, error) {
	lvl := LevelFromString(cfg.Level)
	closeFn := func() error { return nil }

	if cfg.Dev && cfg.File == "" {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		logger, err := c.Build()
		return logger, closeFn, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	sink := stdout
	if cfg.File != "" {
		rotated, err := newRotatedWriter(cfg)
		if err != nil {
			return nil, nil, err
		}
		sink = zapcore.NewMultiWriteSyncer(stdout, zapcore.AddSync(rotated))
		closeFn = rotated.Close
	}

	core := zapcore.NewCore(encoder, sink, lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Dev {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...), closeFn, nil
}

func newRotatedWriter(cfg Config) (io.WriteCloser, error) {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	rotation := cfg.RotationTime
	if rotation <= 0 {
		rotation = 24 * time.Hour
	}
	return rotatelogs.New(
		cfg.File+".%Y%m%d",
		rotatelogs.WithLinkName(cfg.File),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotation),
	)
}
