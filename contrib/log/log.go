// Package log is a small structured-logging facade backed by zap.
//
// It exists because the teacher repo this project learned its shape
// from calls a `contrib/log` package at every log site (log.Infof,
// log.With, log.Context(ctx), log.NewHelper) without vendoring a
// general-purpose logging dependency directly into business code —
// only this facade knows it is zap underneath.
package log

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors zapcore levels under names call sites already use.
type Level = zapcore.Level

const (
	LevelDebug = zapcore.DebugLevel
	LevelInfo  = zapcore.InfoLevel
	LevelWarn  = zapcore.WarnLevel
	LevelError = zapcore.ErrorLevel
)

// Logger is the minimal structured-logging surface other packages depend on.
type Logger interface {
	Log(level Level, keyvals ...any)
}

type zapLogger struct {
	z *zap.SugaredLogger
}

func (l *zapLogger) Log(level Level, keyvals ...any) {
	switch level {
	case LevelDebug:
		l.z.Debugw("", keyvals...)
	case LevelWarn:
		l.z.Warnw("", keyvals...)
	case LevelError:
		l.z.Errorw("", keyvals...)
	default:
		l.z.Infow("", keyvals...)
	}
}

// NewStdLogger wraps a *zap.Logger as a Logger.
func NewStdLogger(z *zap.Logger) Logger {
	return &zapLogger{z: z.Sugar()}
}

var global Logger = NewStdLogger(zap.NewExample())

// SetLogger installs the process-wide default logger.
func SetLogger(l Logger) { global = l }

// GetLogger returns the process-wide default logger.
func GetLogger() Logger { return global }

// With decorates a Logger with static key/value pairs, same contract as
// the teacher's `log.With(base, "ts", ..., "pid", ...)` call in main.go.
func With(l Logger, keyvals ...any) Logger {
	return &withLogger{base: l, kv: keyvals}
}

type withLogger struct {
	base Logger
	kv   []any
}

func (w *withLogger) Log(level Level, keyvals ...any) {
	w.base.Log(level, append(append([]any{}, w.kv...), keyvals...)...)
}

// Timestamp returns a `ts` valuer compatible with With; zap stamps its
// own timestamp so this only needs to satisfy the call signature used
// at the teacher's call site (`log.Timestamp(time.RFC3339)`).
func Timestamp(layout string) any {
	return layout
}

// Helper is a leveled convenience wrapper, used pervasively instead of
// calling Logger.Log directly.
type Helper struct {
	l Logger
}

// NewHelper builds a Helper around l.
func NewHelper(l Logger) *Helper { return &Helper{l: l} }

func (h *Helper) Debugf(format string, a ...any) { h.l.Log(LevelDebug, "msg", fmt.Sprintf(format, a...)) }
func (h *Helper) Infof(format string, a ...any)  { h.l.Log(LevelInfo, "msg", fmt.Sprintf(format, a...)) }
func (h *Helper) Warnf(format string, a ...any)  { h.l.Log(LevelWarn, "msg", fmt.Sprintf(format, a...)) }
func (h *Helper) Errorf(format string, a ...any) { h.l.Log(LevelError, "msg", fmt.Sprintf(format, a...)) }

func (h *Helper) Debug(args ...any) { h.l.Log(LevelDebug, "msg", fmt.Sprint(args...)) }
func (h *Helper) Info(args ...any)  { h.l.Log(LevelInfo, "msg", fmt.Sprint(args...)) }
func (h *Helper) Warn(args ...any)  { h.l.Log(LevelWarn, "msg", fmt.Sprint(args...)) }
func (h *Helper) Error(args ...any) { h.l.Log(LevelError, "msg", fmt.Sprint(args...)) }

func (h *Helper) Fatalf(format string, a ...any) {
	h.l.Log(LevelError, "msg", fmt.Sprintf(format, a...))
	os.Exit(1)
}

// package-level convenience funcs against the global logger, exactly
// as the teacher's call sites use them (log.Infof(...), log.Warnf(...)).
var defaultHelper = NewHelper(global)

func refreshHelper() { defaultHelper = NewHelper(global) }

func Debugf(format string, a ...any) { refreshHelper(); defaultHelper.Debugf(format, a...) }
func Infof(format string, a ...any)  { refreshHelper(); defaultHelper.Infof(format, a...) }
func Warnf(format string, a ...any)  { refreshHelper(); defaultHelper.Warnf(format, a...) }
func Errorf(format string, a ...any) { refreshHelper(); defaultHelper.Errorf(format, a...) }
func Debug(a ...any)                 { refreshHelper(); defaultHelper.Debug(a...) }
func Info(a ...any)                  { refreshHelper(); defaultHelper.Info(a...) }
func Warn(a ...any)                  { refreshHelper(); defaultHelper.Warn(a...) }
func Error(a ...any)                 { refreshHelper(); defaultHelper.Error(a...) }

func Fatal(a ...any) {
	refreshHelper()
	defaultHelper.Error(a...)
	os.Exit(1)
}

func Fatalf(format string, a ...any) {
	refreshHelper()
	defaultHelper.Fatalf(format, a...)
}

// enabledLevel tracks the minimum level Enabled reports true for; it is
// set once at startup from conf.Logger.Level.
var enabledLevel = LevelInfo

// SetLevel adjusts the level Enabled() checks against.
func SetLevel(l Level) { enabledLevel = l }

// Enabled reports whether level would currently be logged, used to
// guard expensive debug-only formatting (e.g. dumping full request
// bodies) the way the teacher's `log.Enabled(log.LevelDebug)` guards do.
func Enabled(level Level) bool { return level >= enabledLevel }

type ctxKey struct{}

// WithContext attaches a per-request Helper (e.g. one tagged with a
// request id) to ctx.
func WithContext(ctx context.Context, h *Helper) context.Context {
	return context.WithValue(ctx, ctxKey{}, h)
}

// Context pulls a request-scoped Helper out of ctx, falling back to the
// process-wide default when none was attached.
func Context(ctx context.Context) *Helper {
	if h, ok := ctx.Value(ctxKey{}).(*Helper); ok {
		return h
	}
	return NewHelper(GetLogger())
}

// ParseLevel maps a TOML `logger.level` string onto a Level.
func ParseLevel(s string) Level {
	l, err := zapcore.ParseLevel(s)
	if err != nil {
		return LevelInfo
	}
	return l
}
