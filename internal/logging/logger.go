// Package logging builds the zerolog logger used across the service and
// carries request-scoped loggers through context.Context.
//
// # Usage
//
//	log := logging.New(logging.Options{ServiceName: "librarian", Level: logging.ParseLevel("debug")})
//	logging.SetDefault(log)
//
//	ctx = logging.WithRequestID(ctx, requestID)
//	logging.FromContext(ctx).Info().Msg("borrow approved")
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	Format      string
	Output      io.Writer
}

var defaultLogger atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	defaultLogger.Store(&l)
}

// New creates a logger writing JSON lines (or console output when
// Format is "console") tagged with the service name.
func New(opts Options) zerolog.Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	if strings.EqualFold(opts.Format, FormatConsole) {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	builder := zerolog.New(output).With().Timestamp()
	if opts.ServiceName != "" {
		builder = builder.Str("service", opts.ServiceName)
	}
	return builder.Logger().Level(opts.Level)
}

// ParseLevel converts a textual level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(levelString); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}

// SetDefault replaces the process-wide logger returned by Default and by
// FromContext for contexts that carry none.
func SetDefault(l zerolog.Logger) {
	defaultLogger.Store(&l)
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return defaultLogger.Load()
}

// FromContext returns the logger attached to ctx, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return Default()
}

// WithField returns a context whose logger carries key=value.
func WithField(ctx context.Context, key string, value any) context.Context {
	l := FromContext(ctx).With().Interface(key, value).Logger()
	return l.WithContext(ctx)
}

// WithFields returns a context whose logger carries every field.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	builder := FromContext(ctx).With()
	for k, v := range fields {
		builder = builder.Interface(k, v)
	}
	l := builder.Logger()
	return l.WithContext(ctx)
}

type requestIDKey struct{}

// WithRequestID tags the context logger with request_id and keeps the raw
// value for RequestIDFromContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey{}, requestID)
	return WithField(ctx, "request_id", requestID)
}

// RequestIDFromContext returns the id stored by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithMemberID(ctx context.Context, memberID uint) context.Context {
	return WithField(ctx, "member_id", memberID)
}
