package debugctx

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

type runIDKey struct{}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// Logger returns the logger carried by ctx or a disabled logger.
func Logger(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		disabled := zerolog.Nop()
		return &disabled
	}
	return zerolog.Ctx(ctx)
}

func Enabled(ctx context.Context) bool {
	return Logger(ctx).GetLevel() <= zerolog.DebugLevel
}

// WithRunID tags every log line of one invocation with id.
func WithRunID(ctx context.Context, id string) context.Context {
	logger := Logger(ctx).With().Str("run_id", id).Logger()
	return WithLogger(context.WithValue(ctx, runIDKey{}, id), logger)
}

func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func Printf(ctx context.Context, format string, args ...any) {
	logger := Logger(ctx)
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}

	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	if message == "" {
		return
	}
	logger.Debug().Msg(message)
}

func Warnf(ctx context.Context, format string, args ...any) {
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	if message == "" {
		return
	}
	Logger(ctx).Warn().Msg(message)
}
