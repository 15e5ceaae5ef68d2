package reconciler

import (
	"context"
	"fmt"
	"strings"

	"github.com/crmarques/quayconf/debugctx"
	"github.com/crmarques/quayconf/internal/metrics"
	"github.com/crmarques/quayconf/registry"
)

// Engine runs one convergence pass against the registry. It is not safe for
// concurrent use: an invocation issues its calls strictly in sequence.
type Engine struct {
	client   registry.Client
	dryRun   bool
	metrics  *metrics.Recorder
	warnings []string
}

type Option func(*Engine)

// WithDryRun makes every mutation primitive report the change it would
// perform without calling the registry.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = recorder
	}
}

func NewEngine(client registry.Client, opts ...Option) *Engine {
	engine := &Engine{client: client}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(engine)
	}
	return engine
}

func (e *Engine) DryRun() bool {
	return e.dryRun
}

// Authenticated reports whether the registry calls carry credentials.
func (e *Engine) Authenticated() bool {
	return e.client != nil && e.client.Authenticated()
}

// Warn records a warning for the invocation result and logs it.
func (e *Engine) Warn(ctx context.Context, format string, args ...any) {
	message := strings.TrimSpace(fmt.Sprintf(format, args...))
	if message == "" {
		return
	}
	e.warnings = append(e.warnings, message)
	debugctx.Warnf(ctx, "%s", message)
}

func (e *Engine) Warnings() []string {
	if len(e.warnings) == 0 {
		return nil
	}
	return append([]string(nil), e.warnings...)
}

// Outcome builds the invocation result with the warnings recorded so far.
func (e *Engine) Outcome(changed bool, data map[string]any) Outcome {
	return Outcome{
		Changed:  changed,
		Data:     data,
		Warnings: e.Warnings(),
	}
}

// Skip builds a result for an invocation that deliberately did nothing.
func (e *Engine) Skip(message string) Outcome {
	return Outcome{
		Skipped:  true,
		Message:  message,
		Warnings: e.Warnings(),
	}
}
