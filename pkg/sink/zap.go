package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gravito-framework/helioscope-go/pkg/types"
)

// EncoderConfig is the JSON layout shared by agent logs and emitted records.
// Timestamps are always written in UTC.
func EncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.LevelKey = "level"
	cfg.EncodeTime = utcTimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

func utcTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}

// NewLogger builds the JSON stdout logger at the given level
// (debug, info, warn or error).
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig = EncoderConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	// Per-core records share a message; sampling would drop them.
	cfg.Sampling = nil

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return logger, nil
}

// ZapSink writes each record as one structured log entry. The entry keeps
// the record's own timestamp and level.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(_ context.Context, rec types.Record) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	ce := s.logger.Core().Check(zapcore.Entry{
		Level:   zapLevel(rec.Level),
		Time:    ts.UTC(),
		Message: rec.Message,
	}, nil)
	if ce == nil {
		return nil
	}

	fields := make([]zap.Field, 0, len(rec.Fields)+1)
	fields = append(fields, zap.String("probe", rec.Probe))
	for _, f := range rec.Fields {
		fields = append(fields, zapField(f))
	}
	ce.Write(fields...)
	return nil
}

func zapLevel(l types.Level) zapcore.Level {
	switch l {
	case types.LevelDebug:
		return zapcore.DebugLevel
	case types.LevelWarn:
		return zapcore.WarnLevel
	case types.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func zapField(f types.Field) zap.Field {
	v := f.Value
	switch v.Kind() {
	case types.KindInt:
		return zap.Int64(f.Key, v.Int())
	case types.KindUint:
		return zap.Uint64(f.Key, v.Uint())
	case types.KindFloat:
		return zap.Float64(f.Key, v.Float())
	case types.KindBool:
		return zap.Bool(f.Key, v.Bool())
	default:
		return zap.String(f.Key, v.Str())
	}
}

// Ensure ZapSink implements Sink
var _ Sink = (*ZapSink)(nil)
