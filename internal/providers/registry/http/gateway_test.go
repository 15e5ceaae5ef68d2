package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/crmarques/quayconf/config"
	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/internal/metrics"
	"github.com/google/go-cmp/cmp"
)

func TestNewGatewayValidation(t *testing.T) {
	t.Parallel()

	t.Run("unsupported_scheme", func(t *testing.T) {
		t.Parallel()

		_, err := NewGateway(config.Registry{Host: "ftp://quay.example.com"})
		assertTypedCategory(t, err, faults.ValidationError)
	})

	t.Run("missing_ca_file", func(t *testing.T) {
		t.Parallel()

		_, err := NewGateway(config.Registry{Host: "https://quay.example.com", CACertFile: "/nonexistent/ca.pem"})
		assertTypedCategory(t, err, faults.ValidationError)
	})

	t.Run("host_without_scheme_defaults_to_https", func(t *testing.T) {
		t.Parallel()

		gateway, err := NewGateway(config.Registry{Host: "quay.example.com"})
		if err != nil {
			t.Fatalf("NewGateway returned error: %v", err)
		}
		if gateway.BaseURL() != "https://quay.example.com" {
			t.Fatalf("unexpected base URL %q", gateway.BaseURL())
		}
		if gateway.Authenticated() {
			t.Fatalf("expected anonymous gateway")
		}
	})
}

func TestRequestHeadersAndBody(t *testing.T) {
	t.Parallel()

	var captured *http.Request
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &capturedBody)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"name":"production","tag_expiration_s":1209600}`)
	}))
	t.Cleanup(server.Close)

	gateway := mustGateway(t, config.Registry{Host: server.URL, Token: "secret-token"})
	response, err := gateway.Request(context.Background(), "post", "organization/", map[string]any{
		"name":  "production",
		"email": "ops@example.com",
	})
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	if captured.Method != http.MethodPost || captured.URL.Path != "/api/v1/organization/" {
		t.Fatalf("unexpected request %s %s", captured.Method, captured.URL.Path)
	}
	if captured.Header.Get("Authorization") != "Bearer secret-token" {
		t.Fatalf("expected bearer token, got %q", captured.Header.Get("Authorization"))
	}
	if captured.Header.Get("Content-Type") != "application/json" || captured.Header.Get("Accept") != "application/json" {
		t.Fatalf("unexpected media type headers %v", captured.Header)
	}
	if captured.Header.Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
	if diff := cmp.Diff(map[string]any{"name": "production", "email": "ops@example.com"}, capturedBody); diff != "" {
		t.Fatalf("unexpected request body (-want +got):\n%s", diff)
	}

	if response.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", response.StatusCode)
	}
	want := map[string]any{"name": "production", "tag_expiration_s": int64(1209600)}
	if diff := cmp.Diff(want, response.Body); diff != "" {
		t.Fatalf("unexpected response body (-want +got):\n%s", diff)
	}
}

func TestRequestStatusPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		category faults.ErrorCategory
		passed   bool
	}{
		{name: "server_error", status: http.StatusBadGateway, body: "<html>bad gateway</html>", category: faults.ServerError},
		{name: "unauthenticated", status: http.StatusUnauthorized, body: `{"detail":"Requires authentication"}`, category: faults.UnauthenticatedError},
		{name: "forbidden", status: http.StatusForbidden, body: `{"detail":"Unauthorized"}`, category: faults.ForbiddenError},
		{name: "method_not_allowed", status: http.StatusMethodNotAllowed, category: faults.MethodNotAllowedError},
		{name: "not_found_passes_through", status: http.StatusNotFound, body: `{"detail":"Not Found"}`, passed: true},
		{name: "bad_request_passes_through", status: http.StatusBadRequest, body: `{"message":"Invalid name"}`, passed: true},
		{name: "no_content_passes_through", status: http.StatusNoContent, passed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(server.Close)

			gateway := mustGateway(t, config.Registry{Host: server.URL})
			response, err := gateway.Request(context.Background(), http.MethodDelete, "organization/production", nil)
			if tt.passed {
				if err != nil {
					t.Fatalf("expected pass-through, got %v", err)
				}
				if response.StatusCode != tt.status {
					t.Fatalf("expected status %d, got %d", tt.status, response.StatusCode)
				}
				return
			}
			assertTypedCategory(t, err, tt.category)
			if faults.StatusCode(err) != tt.status {
				t.Fatalf("expected status %d on error, got %d", tt.status, faults.StatusCode(err))
			}
		})
	}
}

func TestRequestServerErrorSummaryKeepsRunes(t *testing.T) {
	t.Parallel()

	// The leading ASCII byte puts the cut inside a two-byte rune.
	body := "x" + strings.Repeat("é", 400)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	gateway := mustGateway(t, config.Registry{Host: server.URL})
	_, err := gateway.Request(context.Background(), http.MethodGet, "organization/production", nil)
	assertTypedCategory(t, err, faults.ServerError)
	if !utf8.ValidString(err.Error()) {
		t.Fatalf("expected valid UTF-8 in %q", err.Error())
	}
	if !strings.Contains(err.Error(), "x"+strings.Repeat("é", 255)+"...") {
		t.Fatalf("expected truncated body in %q", err.Error())
	}
}

func TestSummarizeBody(t *testing.T) {
	t.Parallel()

	if got := summarizeBody([]byte("  \n")); got != "<empty>" {
		t.Fatalf("expected <empty>, got %q", got)
	}
	if got := summarizeBody([]byte(" short ")); got != "short" {
		t.Fatalf("expected trimmed body, got %q", got)
	}
	got := summarizeBody([]byte(strings.Repeat("a", 511) + "日本"))
	if got != strings.Repeat("a", 511)+"..." {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestRequestDecodeFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"name":`)
	}))
	t.Cleanup(server.Close)

	gateway := mustGateway(t, config.Registry{Host: server.URL})
	_, err := gateway.Request(context.Background(), http.MethodGet, "organization/production", nil)
	assertTypedCategory(t, err, faults.DecodeError)
}

func TestRequestTransportFailures(t *testing.T) {
	t.Parallel()

	t.Run("connection_refused", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		host := server.URL
		server.Close()

		gateway := mustGateway(t, config.Registry{Host: host})
		_, err := gateway.Request(context.Background(), http.MethodGet, "user/", nil)
		assertTypedCategory(t, err, faults.TransportError)
	})

	t.Run("untrusted_certificate", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.NotFoundHandler())
		t.Cleanup(server.Close)

		gateway := mustGateway(t, config.Registry{Host: server.URL})
		_, err := gateway.Request(context.Background(), http.MethodGet, "user/", nil)
		assertTypedCategory(t, err, faults.TLSError)
	})

	t.Run("validation_disabled", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"username":"admin"}`)
		}))
		t.Cleanup(server.Close)

		disabled := false
		gateway := mustGateway(t, config.Registry{Host: server.URL, ValidateCerts: &disabled})
		response, err := gateway.Request(context.Background(), http.MethodGet, "user/", nil)
		if err != nil {
			t.Fatalf("Request returned error: %v", err)
		}
		if response.Object().String("username") != "admin" {
			t.Fatalf("unexpected body %#v", response.Body)
		}
	})
}

func TestRequestURLResolution(t *testing.T) {
	t.Parallel()

	gateway := mustGateway(t, config.Registry{Host: "https://quay.example.com/registry"})

	tests := []struct {
		input string
		want  string
	}{
		{input: "organization/production", want: "https://quay.example.com/registry/api/v1/organization/production"},
		{input: "/user/", want: "https://quay.example.com/registry/api/v1/user/"},
		{input: "", want: "https://quay.example.com/registry/api/v1/"},
		{input: "repository?namespace=production", want: "https://quay.example.com/registry/api/v1/repository?namespace=production"},
		{input: "organization/team%20a/robots/bot", want: "https://quay.example.com/registry/api/v1/organization/team%20a/robots/bot"},
		{input: "user/robots/org+bot", want: "https://quay.example.com/registry/api/v1/user/robots/org+bot"},
	}
	for _, tt := range tests {
		got, err := gateway.resolveRequestURL(tt.input)
		if err != nil {
			t.Fatalf("resolveRequestURL(%q) returned error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("resolveRequestURL(%q): expected %q, got %q", tt.input, tt.want, got)
		}
	}

	for _, invalid := range []string{"https://other.example.com/api", "organization/%zz"} {
		if _, err := gateway.resolveRequestURL(invalid); !faults.IsCategory(err, faults.ValidationError) {
			t.Fatalf("resolveRequestURL(%q): expected validation error, got %v", invalid, err)
		}
	}
}

func TestRequestRecordsMetrics(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	recorder := metrics.New()
	gateway := mustGateway(t, config.Registry{Host: server.URL}, WithMetrics(recorder), WithRateLimit(1000))
	if _, err := gateway.Request(context.Background(), http.MethodGet, "organization/missing", nil); err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	families, err := recorder.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() != "quayconf_api_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, label := range metric.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}
			if labels["method"] == "GET" && labels["status"] == "404" && metric.GetCounter().GetValue() == 1 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected GET 404 request to be counted")
	}
}

func TestRequestRateLimitHonoursContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(server.Close)

	gateway := mustGateway(t, config.Registry{Host: server.URL, RateLimit: 0.001})
	if _, err := gateway.Request(context.Background(), http.MethodGet, "user/", nil); err != nil {
		t.Fatalf("first request returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := gateway.Request(ctx, http.MethodGet, "user/", nil)
	assertTypedCategory(t, err, faults.TransportError)
}

func TestRedactURLForDebug(t *testing.T) {
	t.Parallel()

	request := httptest.NewRequest(http.MethodGet, "https://admin:pw@quay.example.com/api/v1/repository?token=abc", nil)
	got := redactURLForDebug(request.URL)
	if strings.Contains(got, "abc") || strings.Contains(got, "pw") {
		t.Fatalf("expected redacted URL, got %q", got)
	}
}

func mustGateway(t *testing.T, cfg config.Registry, opts ...Option) *Gateway {
	t.Helper()

	gateway, err := NewGateway(cfg, opts...)
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	return gateway
}

func assertTypedCategory(t *testing.T, err error, category faults.ErrorCategory) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", category)
	}
	if !faults.IsCategory(err, category) {
		t.Fatalf("expected %s error, got %v", category, err)
	}
}
