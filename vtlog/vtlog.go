// Package vtlog provides structured logging for the matching engine,
// wrapping go.uber.org/zap with the two profiles the engine runs under and
// the audit sink used for match decisions.
package vtlog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Profile selects the encoder and destination a Logger writes to.
type Profile string

const (
	// ProfileCLI writes a readable console-encoded stream to stderr; used
	// by tests and embedding hosts that display logs directly.
	ProfileCLI Profile = "cli"
	// ProfileHost writes JSON lines to stderr for a host to forward into
	// its own aggregation pipeline.
	ProfileHost Profile = "host"
)

// Config controls logger construction. The rotated JSON audit file sink
// (via lumberjack) is not configured here; NewAuditLogger builds it.
type Config struct {
	Profile      Profile
	Level        zapcore.Level
	Service      string
	StaticFields map[string]any
}

// Logger wraps a *zap.Logger with the component/field/error helpers used
// throughout the engine.
type Logger struct {
	zap         *zap.Logger
	atomicLevel zap.AtomicLevel
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "severity",
		NameKey:        "logger",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New builds a Logger for the given configuration. Level defaults to Info
// if unset (its zero value).
func New(cfg Config) (*Logger, error) {
	if cfg.Service == "" {
		return nil, fmt.Errorf("vtlog: Service must be set")
	}

	atomicLevel := zap.NewAtomicLevelAt(cfg.Level)

	var encoder zapcore.Encoder
	switch cfg.Profile {
	case ProfileHost:
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	default:
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), atomicLevel)

	opts := []zap.Option{zap.AddCaller()}
	fields := []zap.Field{zap.String("service", cfg.Service)}
	for k, v := range cfg.StaticFields {
		fields = append(fields, zap.Any(k, v))
	}
	opts = append(opts, zap.Fields(fields...))

	return &Logger{zap: zap.New(core, opts...), atomicLevel: atomicLevel}, nil
}

// NewCLI is a convenience constructor for ProfileCLI at Info level.
func NewCLI(service string) (*Logger, error) {
	return New(Config{Profile: ProfileCLI, Level: zapcore.InfoLevel, Service: service})
}

// NewAuditLogger builds a Logger whose only sink is a rotated NDJSON file
// at path, intended for the match-decision audit trail (see vtlog.Audit).
func NewAuditLogger(path string, maxSizeMB, maxAgeDays, maxBackups int) *Logger {
	lumber := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxAge:     maxAgeDays,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(lumber), zap.NewAtomicLevelAt(zapcore.InfoLevel))
	return &Logger{zap: zap.New(core), atomicLevel: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

// WithComponent returns a child Logger tagging every subsequent entry with
// the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("component", component)), atomicLevel: l.atomicLevel}
}

// WithFields returns a child Logger carrying the given static fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &Logger{zap: l.zap.With(zapFields...), atomicLevel: l.atomicLevel}
}

// WithError returns a child Logger carrying err under the "error" key.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zap: l.zap.With(zap.Error(err)), atomicLevel: l.atomicLevel}
}

// SetLevel adjusts the logger's atomic level at runtime.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.atomicLevel.SetLevel(level)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// AuditEntry is the NDJSON shape written for every match attempt (spec §6
// external interface).
type AuditEntry struct {
	Hypothesis string  `json:"hypothesis"`
	Confidence float64 `json:"confidence,omitempty"`
	ResultType string  `json:"result_type"`
	Source     string  `json:"source"`
	SpeciesID  string  `json:"species_id,omitempty"`
	Amount     int     `json:"amount,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// Audit writes a structured audit line for a completed match attempt.
func (l *Logger) Audit(entry AuditEntry) {
	l.zap.Info("match_attempt",
		zap.String("hypothesis", entry.Hypothesis),
		zap.Float64("confidence", entry.Confidence),
		zap.String("result_type", entry.ResultType),
		zap.String("source", entry.Source),
		zap.String("species_id", entry.SpeciesID),
		zap.Int("amount", entry.Amount),
		zap.Float64("duration_ms", entry.DurationMs),
	)
}
