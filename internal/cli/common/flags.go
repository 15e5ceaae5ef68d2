package common

import (
	"time"

	"github.com/spf13/cobra"
)

type GlobalFlags struct {
	Config        string
	Host          string
	Token         string
	ValidateCerts bool
	CACertFile    string
	Timeout       time.Duration
	RateLimit     float64
	Check         bool
	Output        string
	Query         string
	Debug         bool
	LogLevel      string
	LogFormat     string
	MetricsFile   string
	NoStatus      bool
	NoColor       bool
}

type InputFlags struct {
	Payload string
	Format  string
}

func BindGlobalFlags(command *cobra.Command, flags *GlobalFlags) {
	persistent := command.PersistentFlags()
	persistent.StringVar(&flags.Config, "config", "", "settings file path (default $QUAYCONF_CONFIG)")
	persistent.StringVar(&flags.Host, "host", "", "registry URL (default $QUAY_HOST)")
	persistent.StringVarP(&flags.Token, "token", "t", "", "OAuth access token (default $QUAY_TOKEN)")
	persistent.BoolVar(&flags.ValidateCerts, "validate-certs", true, "validate the registry TLS certificate")
	persistent.StringVar(&flags.CACertFile, "ca-cert-file", "", "CA bundle used to validate the registry certificate")
	persistent.DurationVar(&flags.Timeout, "timeout", 0, "timeout of one API request")
	persistent.Float64Var(&flags.RateLimit, "rate-limit", 0, "maximum API requests per second (0 disables pacing)")
	persistent.BoolVarP(&flags.Check, "check", "C", false, "report the changes without applying them")
	persistent.StringVarP(&flags.Output, "output", "o", OutputText, "output format: text|json|yaml")
	persistent.StringVarP(&flags.Query, "query", "q", "", "jq expression applied to the result")
	persistent.BoolVarP(&flags.Debug, "debug", "d", false, "enable debug output")
	persistent.StringVar(&flags.LogLevel, "log-level", "", "log level: debug|info|warn|error")
	persistent.StringVar(&flags.LogFormat, "log-format", "", "log format: console|json")
	persistent.StringVar(&flags.MetricsFile, "metrics-file", "", "write prometheus metrics to this file on exit")
	persistent.BoolVarP(&flags.NoStatus, "no-status", "n", false, "hide status output")
	persistent.BoolVar(&flags.NoColor, "no-color", false, "disable color output")
}

func BindInputFlags(command *cobra.Command, flags *InputFlags) {
	command.Flags().StringVarP(&flags.Payload, "payload", "f", "", "options file path (use '-' to read options from stdin)")
	command.Flags().StringVarP(&flags.Format, "format", "i", OutputYAML, "options file format: json|yaml")
}
