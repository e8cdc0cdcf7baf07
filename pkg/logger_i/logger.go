package logger_i

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/akolanti/uniassist/internal/config"
)

// Logger resolves the default handler on every call, so package level
// loggers created before Init still follow it.
type Logger struct {
	attrs []any
}

// Options controls the process-wide handler. A nil Output means stdout.
type Options struct {
	Output io.Writer
	Level  slog.Level
	JSON   bool
}

// Init installs the default handler: text in dev, JSON in prod.
func Init() {
	InitWith(Options{Level: slog.LevelDebug, JSON: config.IS_PROD})
}

// InitWith is used by the CLI and the MCP server, where stdout belongs to the user or the protocol.
func InitWith(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	options := &slog.HandlerOptions{
		Level: opts.Level,
	}

	var handler slog.Handler
	if opts.JSON {
		if opts.Level < config.LOG_LEVEL_PROD {
			options.Level = config.LOG_LEVEL_PROD
		}
		handler = slog.NewJSONHandler(out, options)
	} else {
		handler = slog.NewTextHandler(out, options)
	}
	slog.SetDefault(slog.New(handler))
}

func NewLogger(section string) *Logger {
	return &Logger{
		attrs: []any{"component", section},
	}
}

func (l *Logger) inner() *slog.Logger {
	return slog.Default().With(l.attrs...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.inner().Info(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.logWithSource(slog.LevelError, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.logWithSource(slog.LevelWarn, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.logWithSource(slog.LevelDebug, msg, args...)
}

func (l *Logger) logWithSource(level slog.Level, msg string, args ...any) {
	inner := l.inner()
	if !inner.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	// skip runtime.Callers, logWithSource and the level wrapper
	runtime.Callers(3, pcs[:])
	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	if frame.Function != "" {
		args = append(args, "caller", frame.Function)
	}
	inner.Log(context.Background(), level, msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	return &Logger{
		attrs: append(attrs, args...),
	}
}

// WithTrace attaches the trace id carried by ctx, if any.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok && trace != "" {
		return l.With("traceId", trace)
	}
	return l
}
