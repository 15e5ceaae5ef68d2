package config

import "time"

const (
	ConfigFileEnvVar   = "QUAYCONF_CONFIG"
	DefaultHost        = "http://127.0.0.1"
	DefaultTimeout     = 30 * time.Second
	APIPrefix          = "/api/v1/"
	DefaultOutputLevel = "warn"
)

// Registry holds the connection settings for the remote registry API.
// Precedence is defaults, then the YAML file, then the environment, then
// command line flags.
type Registry struct {
	Host          string        `yaml:"host,omitempty" env:"QUAY_HOST, overwrite"`
	Token         string        `yaml:"token,omitempty" env:"QUAY_TOKEN, overwrite"`
	ValidateCerts *bool         `yaml:"validate-certs,omitempty" env:"QUAY_VERIFY_SSL, overwrite, noinit"`
	CACertFile    string        `yaml:"ca-cert-file,omitempty" env:"QUAY_CA_CERT_FILE, overwrite"`
	Timeout       time.Duration `yaml:"timeout,omitempty" env:"QUAY_TIMEOUT, overwrite"`
	RateLimit     float64       `yaml:"rate-limit,omitempty" env:"QUAY_RATE_LIMIT, overwrite"`
}

// VerifyTLS reports whether server certificates are validated. Validation is
// on unless explicitly disabled.
func (r Registry) VerifyTLS() bool {
	if r.ValidateCerts == nil {
		return true
	}
	return *r.ValidateCerts
}

func (r Registry) EffectiveTimeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r Registry) Authenticated() bool {
	return r.Token != ""
}

type TLS struct {
	CACertFile         string
	InsecureSkipVerify bool
}

func (r Registry) TLS() *TLS {
	return &TLS{
		CACertFile:         r.CACertFile,
		InsecureSkipVerify: !r.VerifyTLS(),
	}
}
