package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the zap-backed implementation of Logger, configured the way
// the teacher's mzap package configures its sugared logger: production
// encoding under ENV_NAME=production, development encoding otherwise, and
// LOG_LEVEL read once at construction time.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a ZapLogger. envName selects the zap config preset;
// logLevel (e.g. "debug", "info") overrides the preset's default level
// when it parses, and falls back silently to the preset's level otherwise.
func NewZapLogger(envName, logLevel string) (*ZapLogger, error) {
	var cfg zap.Config

	if envName == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if logLevel != "" {
		var lvl zapcore.Level
		if err := lvl.Set(logLevel); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("building zap logger: %w", err)
	}

	return &ZapLogger{sugar: logger.Sugar()}, nil
}

func (l *ZapLogger) Info(args ...any)                  { l.sugar.Info(args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Error(args ...any)                 { l.sugar.Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
func (l *ZapLogger) Warn(args ...any)                  { l.sugar.Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Debug(args ...any)                 { l.sugar.Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Fatal(args ...any)                 { l.sugar.Fatal(args...) }
func (l *ZapLogger) Fatalf(format string, args ...any) { l.sugar.Fatalf(format, args...) }
func (l *ZapLogger) Sync() error                       { return l.sugar.Sync() }

func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(fields...)}
}

// NewDefault builds a ZapLogger from the process environment, mirroring
// the teacher's InitializeLoggerWithError: ENV_NAME and LOG_LEVEL.
func NewDefault() (Logger, error) {
	return NewZapLogger(os.Getenv("ENV_NAME"), os.Getenv("LOG_LEVEL"))
}
