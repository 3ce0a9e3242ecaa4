package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with the field-map call style the rest of the pipeline
// uses, so call sites never import zap directly.
type Logger struct {
	zap *zap.Logger
}

// New builds a JSON logger at the requested level, writing to stdout.
func New(level string) *Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		zapLevel,
	)

	z := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{zap: z}
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	if len(fields) > 0 {
		l.zap.Info(msg, toZapFields(fields[0])...)
	} else {
		l.zap.Info(msg)
	}
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	if len(fields) > 0 {
		l.zap.Debug(msg, toZapFields(fields[0])...)
	} else {
		l.zap.Debug(msg)
	}
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	if len(fields) > 0 {
		l.zap.Warn(msg, toZapFields(fields[0])...)
	} else {
		l.zap.Warn(msg)
	}
}

func (l *Logger) Error(msg string, err error, fields ...map[string]interface{}) {
	zapFields := []zap.Field{zap.Error(err)}
	if len(fields) > 0 {
		zapFields = append(zapFields, toZapFields(fields[0])...)
	}
	l.zap.Error(msg, zapFields...)
}

func (l *Logger) Fatal(msg string, err error, fields ...map[string]interface{}) {
	zapFields := []zap.Field{zap.Error(err)}
	if len(fields) > 0 {
		zapFields = append(zapFields, toZapFields(fields[0])...)
	}
	l.zap.Fatal(msg, zapFields...)
}

// TimeTrack logs the elapsed time since start under the given operation name.
func (l *Logger) TimeTrack(start time.Time, name string) {
	l.Info("execution time", map[string]interface{}{
		"operation": name,
		"duration":  time.Since(start).String(),
	})
}

// With returns a derived logger carrying the given fields on every call.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{zap: l.zap.With(toZapFields(fields)...)}
}

func (l *Logger) Sync() { _ = l.zap.Sync() }

func toZapFields(fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
