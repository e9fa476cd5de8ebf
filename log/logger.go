// Package log is the structured JSON logger of the session engine.
//
// Every entry carries the session context (session_id, experiment and,
// when known, participant_id); call-site fields are nested under "fields".
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/numlab/numerosity/types"
)

// Logger wraps a zap.Logger and remembers its context fields so they
// survive WithOutput.
type Logger struct {
	zap     *zap.Logger
	context []zap.Field
}

// NewLogger returns a logger for the session writing to stderr.
func NewLogger(meta *types.SessionMeta) *Logger {
	return newLoggerWithWriter(meta, os.Stderr)
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func newLoggerWithWriter(meta *types.SessionMeta, w io.Writer) *Logger {
	var ctx []zap.Field
	if meta != nil {
		ctx = append(ctx, zap.String("session_id", meta.SessionID))
		if meta.Experiment != "" {
			ctx = append(ctx, zap.String("experiment", meta.Experiment))
		}
		if meta.ParticipantID != nil {
			ctx = append(ctx, zap.String("participant_id", *meta.ParticipantID))
		}
	}
	return build(w, ctx)
}

func build(w io.Writer, ctx []zap.Field) *Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel)
	return &Logger{zap: zap.New(core).With(ctx...), context: ctx}
}

// WithOutput returns a copy writing to w.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return build(w, l.context)
}

// With returns a child logger that adds fields to the context.
func (l *Logger) With(fields map[string]any) *Logger {
	ctx := append([]zap.Field(nil), l.context...)
	for k, v := range fields {
		ctx = append(ctx, zap.Any(k, v))
	}
	return &Logger{zap: l.zap.With(ctx[len(l.context):]...), context: ctx}
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
