// Package logger provides basic logging functionalities.
//
// The package keeps a process-wide level-gated logger for binaries and a
// constructor for the *zap.Logger that components receive explicitly.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines a simple interface for logging.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
}

// sugared adapts a zap.SugaredLogger to Logger.
type sugared struct {
	s *zap.SugaredLogger
}

// NewLogger creates a new Logger writing at the given level.
// loglevel could be "debug", "info", "warn", "error", "fatal"
func NewLogger(logLevel string) Logger {
	return &sugared{s: build(logLevel, 1).Sugar()}
}

// NewZap creates the structured logger handed to components.
// Debug level uses the console encoder, every other level emits JSON.
func NewZap(logLevel string) *zap.Logger {
	return build(logLevel, 0)
}

func build(logLevel string, callerSkip int) *zap.Logger {
	level := ParseLevel(logLevel)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if level == zapcore.DebugLevel {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
	return zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(callerSkip),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)
}

// ParseLevel maps a textual level to a zap level. Unknown values mean info.
func ParseLevel(logLevel string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *sugared) Debug(args ...interface{})                 { l.s.Debug(args...) }
func (l *sugared) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *sugared) Info(args ...interface{})                  { l.s.Info(args...) }
func (l *sugared) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *sugared) Warn(args ...interface{})                  { l.s.Warn(args...) }
func (l *sugared) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *sugared) Error(args ...interface{})                 { l.s.Error(args...) }
func (l *sugared) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }
func (l *sugared) Fatal(args ...interface{})                 { l.s.Fatal(args...) }
func (l *sugared) Fatalf(format string, args ...interface{}) { l.s.Fatalf(format, args...) }

// Global std logger instance, initialized with default "info" settings.
// The extra caller skip accounts for the package-level wrappers below.
var (
	std    Logger      = &sugared{s: build("info", 2).Sugar()}
	stdZap *zap.Logger = build("info", 0)
)

// SetGlobalLogLevel reconfigures the global std logger's level.
func SetGlobalLogLevel(logLevel string) {
	std = &sugared{s: build(logLevel, 2).Sugar()}
	stdZap = build(logLevel, 0)
}

// Zap returns the structured logger matching the global level.
func Zap() *zap.Logger {
	return stdZap
}

// Sync flushes buffered entries of the global loggers.
func Sync() {
	if s, ok := std.(*sugared); ok {
		_ = s.s.Sync()
	}
	_ = stdZap.Sync()
}

// Debug logs a debug message using the global std logger.
func Debug(args ...interface{}) {
	std.Debug(args...)
}

// Debugf logs a debug message with formatting.
func Debugf(format string, args ...interface{}) {
	std.Debugf(format, args...)
}

// Info logs an informational message using the global std logger.
func Info(args ...interface{}) {
	std.Info(args...)
}

// Infof logs an informational message with formatting.
func Infof(format string, args ...interface{}) {
	std.Infof(format, args...)
}

// Warn logs a warning message.
func Warn(args ...interface{}) {
	std.Warn(args...)
}

// Warnf logs a warning message with formatting.
func Warnf(format string, args ...interface{}) {
	std.Warnf(format, args...)
}

// Error logs an error message.
func Error(args ...interface{}) {
	std.Error(args...)
}

// Errorf logs an error message with formatting.
func Errorf(format string, args ...interface{}) {
	std.Errorf(format, args...)
}

// Fatal logs a fatal error message and exits.
func Fatal(args ...interface{}) {
	std.Fatal(args...)
}

// Fatalf logs a fatal error message with formatting and exits.
func Fatalf(format string, args ...interface{}) {
	std.Fatalf(format, args...)
}
