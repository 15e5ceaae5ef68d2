package common

import (
	"context"
	"errors"

	"github.com/crmarques/quayconf/config"
	"github.com/crmarques/quayconf/debugctx"
	"github.com/crmarques/quayconf/internal/metrics"
	registryhttp "github.com/crmarques/quayconf/internal/providers/registry/http"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/spf13/cobra"
)

// Session is the per-invocation wiring shared by the module commands.
type Session struct {
	Settings config.Registry
	Engine   *reconciler.Engine
	Metrics  *metrics.Recorder
}

// ResolveSettings loads the registry settings and applies the global flags
// set on the command line.
func ResolveSettings(command *cobra.Command, deps CommandDependencies, flags *GlobalFlags) (config.Registry, error) {
	settings, err := config.Load(command.Context(), config.LoadOptions{
		File:     flags.Config,
		Lookuper: deps.Lookuper,
	})
	if err != nil {
		return config.Registry{}, err
	}

	changed := command.Flags().Changed
	if changed("host") {
		settings.Host = flags.Host
	}
	if changed("token") {
		settings.Token = flags.Token
	}
	if changed("validate-certs") {
		validate := flags.ValidateCerts
		settings.ValidateCerts = &validate
	}
	if changed("ca-cert-file") {
		settings.CACertFile = flags.CACertFile
	}
	if changed("timeout") {
		settings.Timeout = flags.Timeout
	}
	if changed("rate-limit") {
		settings.RateLimit = flags.RateLimit
	}
	return settings, nil
}

func NewSession(command *cobra.Command, deps CommandDependencies, flags *GlobalFlags) (*Session, error) {
	settings, err := ResolveSettings(command, deps, flags)
	if err != nil {
		return nil, err
	}

	recorder := metrics.New()
	gateway, err := registryhttp.NewGateway(
		settings,
		registryhttp.WithMetrics(recorder),
		registryhttp.WithHTTPClient(deps.HTTPClient),
	)
	if err != nil {
		return nil, err
	}

	debugctx.Printf(
		command.Context(),
		"registry host=%q authenticated=%t validate_certs=%t check=%t",
		gateway.BaseURL(),
		settings.Authenticated(),
		settings.VerifyTLS(),
		flags.Check,
	)

	return &Session{
		Settings: settings,
		Engine: reconciler.NewEngine(
			gateway,
			reconciler.WithDryRun(flags.Check),
			reconciler.WithMetrics(recorder),
		),
		Metrics: recorder,
	}, nil
}

// RunModule decodes the module options, converges once and prints the
// result. The metrics file is written even when the module fails.
func RunModule[T any](
	command *cobra.Command,
	deps CommandDependencies,
	flags *GlobalFlags,
	input *InputFlags,
	options *OptionSet,
	request *T,
	execute func(context.Context, *reconciler.Engine, T) (reconciler.Outcome, error),
) (err error) {
	if input != nil {
		data, readErr := ReadOptionalInput(command, *input)
		if readErr != nil {
			return readErr
		}
		if data != nil {
			if decodeErr := DecodeInto(data, input.Format, request); decodeErr != nil {
				return decodeErr
			}
		}
	}
	if options != nil {
		if applyErr := options.Apply(); applyErr != nil {
			return applyErr
		}
	}

	session, err := NewSession(command, deps, flags)
	if err != nil {
		return err
	}
	defer func() {
		if writeErr := session.Metrics.WriteTextfile(flags.MetricsFile); writeErr != nil {
			err = errors.Join(err, writeErr)
		}
	}()

	outcome, err := execute(command.Context(), session.Engine, *request)
	if err != nil {
		return err
	}
	RecordOutcome(command, outcome)
	return WriteResult(command, flags, outcome.Map())
}

type outcomeKey struct{}

// RecordOutcome attaches a module outcome to the command context for the
// status line.
func RecordOutcome(command *cobra.Command, outcome reconciler.Outcome) {
	parent := command.Context()
	if parent == nil {
		parent = context.Background()
	}
	command.SetContext(context.WithValue(parent, outcomeKey{}, outcome))
}

func RecordedOutcome(command *cobra.Command) (reconciler.Outcome, bool) {
	if command == nil || command.Context() == nil {
		return reconciler.Outcome{}, false
	}
	outcome, ok := command.Context().Value(outcomeKey{}).(reconciler.Outcome)
	return outcome, ok
}
