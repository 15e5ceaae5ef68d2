package fakeregistry

import (
	"testing"

	"github.com/crmarques/quayconf/config"
	registryhttp "github.com/crmarques/quayconf/internal/providers/registry/http"
	"github.com/crmarques/quayconf/reconciler"
)

// Settings returns registry settings that reach the server with its token.
func (s *Server) Settings() config.Registry {
	return config.Registry{Host: s.URL, Token: s.Token}
}

// Engine returns an engine wired to the server through the HTTP gateway.
func (s *Server) Engine(t *testing.T, opts ...reconciler.Option) *reconciler.Engine {
	t.Helper()

	gateway, err := registryhttp.NewGateway(s.Settings())
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	return reconciler.NewEngine(gateway, opts...)
}
