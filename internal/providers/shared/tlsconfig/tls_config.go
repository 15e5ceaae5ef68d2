package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/crmarques/quayconf/config"
	"github.com/crmarques/quayconf/faults"
)

// BuildTLSConfig returns the client TLS settings for the registry API. A CA
// file is added on top of the system roots so that public registries keep
// working next to an internal one.
func BuildTLSConfig(settings *config.TLS) (*tls.Config, error) {
	if settings == nil {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: settings.InsecureSkipVerify,
	}

	caFile := strings.TrimSpace(settings.CACertFile)
	if caFile == "" {
		return tlsConfig, nil
	}

	caBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, faults.Validation(fmt.Sprintf("ca-cert-file %q could not be read", caFile), err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if ok := pool.AppendCertsFromPEM(caBytes); !ok {
		return nil, faults.Validation(fmt.Sprintf("ca-cert-file %q is not valid PEM", caFile), nil)
	}
	tlsConfig.RootCAs = pool

	return tlsConfig, nil
}
