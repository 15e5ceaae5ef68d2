package http

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crmarques/quayconf/config"
	"github.com/crmarques/quayconf/internal/metrics"
	"github.com/crmarques/quayconf/internal/providers/shared/tlsconfig"
	"github.com/crmarques/quayconf/registry"
	"golang.org/x/time/rate"
)

const (
	defaultMediaType  = "application/json"
	requestIDHeader   = "X-Request-Id"
	maxResponseLength = 8 << 20
)

var _ registry.Client = (*Gateway)(nil)

// Gateway is the registry.Client backed by the registry HTTP API.
type Gateway struct {
	baseURL  *url.URL
	token    string
	client   *http.Client
	limiter  *rate.Limiter
	metrics  *metrics.Recorder
	tlsDebug tlsDebugInfo
	now      func() time.Time
}

type Option func(*Gateway)

// WithRateLimit paces requests to at most perSecond. Zero or a negative
// value disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(g *Gateway) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(g *Gateway) {
		g.metrics = recorder
	}
}

// WithHTTPClient replaces the underlying client. The TLS settings of cfg are
// not applied to a replaced client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

func NewGateway(cfg config.Registry, opts ...Option) (*Gateway, error) {
	baseURL, err := config.ParseHost(cfg.Host)
	if err != nil {
		return nil, err
	}

	tlsSettings := cfg.TLS()
	tlsConfig, err := buildTLSConfig(tlsSettings)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	gateway := &Gateway{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		client: &http.Client{
			Timeout:   cfg.EffectiveTimeout(),
			Transport: transport,
		},
		tlsDebug: newTLSDebugInfo(tlsSettings),
		now:      time.Now,
	}
	WithRateLimit(cfg.RateLimit)(gateway)

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(gateway)
	}
	return gateway, nil
}

func (g *Gateway) Authenticated() bool {
	return g != nil && g.token != ""
}

// BaseURL is the registry root, without the API prefix.
func (g *Gateway) BaseURL() string {
	if g == nil || g.baseURL == nil {
		return ""
	}
	return g.baseURL.String()
}

func buildTLSConfig(settings *config.TLS) (*tls.Config, error) {
	return tlsconfig.BuildTLSConfig(settings)
}
