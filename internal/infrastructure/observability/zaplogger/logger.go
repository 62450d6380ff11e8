package zaplogger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Zhima-Mochi/sushistore/internal/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultOutput keeps log lines off stdout, which carries command results.
const DefaultOutput = "stderr"

// Config selects the level, the primary sink and an optional file sink of the logger.
// Output is any zap sink path ("stderr", "stdout" or a file); empty means DefaultOutput.
type Config struct {
	Level  string
	Output string
	File   string
}

func (c Config) outputPaths() []string {
	out := c.Output
	if out == "" {
		out = DefaultOutput
	}
	paths := []string{out}
	if c.File != "" && c.File != out {
		paths = append(paths, c.File)
	}
	return paths
}

type logger struct{ l *zap.Logger }

// New builds a JSON logger. Fixed fields are attached to every entry.
func New(cfg Config, fixed ...observability.Field) (observability.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = cfg.outputPaths()
	zcfg.ErrorOutputPaths = cfg.outputPaths()

	if cfg.File != "" {
		if err := ensureLogFile(cfg.File); err != nil {
			return nil, fmt.Errorf("prepare log file: %w", err)
		}
	}

	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	// Ensure encoder keys align with structured logging requirements.
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.MessageKey = "msg"
	zcfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	zcfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	zcfg.InitialFields = make(map[string]any, len(fixed))
	for _, f := range fixed {
		zcfg.InitialFields[f.Key] = f.Value
	}

	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return &logger{l: l}, nil
}

// Wrap adapts an existing zap logger.
func Wrap(l *zap.Logger) observability.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &logger{l: l}
}

func (z *logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return &logger{l: z.l}
	}
	return &logger{l: z.l.With(toZapFields(fields)...)}
}

func (z *logger) Debug(msg string, fields ...observability.Field) {
	z.l.Debug(msg, toZapFields(fields)...)
}
func (z *logger) Info(msg string, fields ...observability.Field) {
	z.l.Info(msg, toZapFields(fields)...)
}
func (z *logger) Warn(msg string, fields ...observability.Field) {
	z.l.Warn(msg, toZapFields(fields)...)
}
func (z *logger) Error(msg string, fields ...observability.Field) {
	z.l.Error(msg, toZapFields(fields)...)
}

// Sync flushes any buffered log entries. Safe to call on shutdown.
func (z *logger) Sync() error {
	return z.l.Sync()
}

// Sync flushes l when it is backed by zap.
func Sync(l observability.Logger) error {
	if z, ok := l.(*logger); ok {
		return z.Sync()
	}
	return nil
}

func toZapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func ensureLogFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		f, createErr := os.OpenFile(path, os.O_CREATE, 0o644)
		if createErr != nil {
			return createErr
		}
		_ = f.Close()
	}
	return nil
}
