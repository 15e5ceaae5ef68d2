package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/registry"
	"github.com/crmarques/quayconf/resource"
	"github.com/google/uuid"
)

// Request sends one call to the registry API. The status policy is applied
// before the body is decoded: 401, 403, 405 and every 5xx fail with a typed
// error, every other status is returned to the caller.
func (g *Gateway) Request(
	ctx context.Context,
	method string,
	endpointPath string,
	body resource.Value,
) (registry.Response, error) {
	resolvedMethod := strings.ToUpper(strings.TrimSpace(method))
	if resolvedMethod == "" {
		return registry.Response{}, faults.Validation("request method is required", nil)
	}

	request, err := g.newRequest(ctx, resolvedMethod, endpointPath, body)
	if err != nil {
		return registry.Response{}, err
	}

	response, err := g.execute(ctx, request)
	if err != nil {
		g.metrics.ObserveFailure(resolvedMethod, categoryOf(err))
		return registry.Response{}, err
	}
	return response, nil
}

func (g *Gateway) execute(ctx context.Context, request *http.Request) (registry.Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return registry.Response{}, transportError(request.URL.Host, err)
		}
	}

	started := g.now()
	response, err := g.doRequest(ctx, request)
	if err != nil {
		g.metrics.ObserveRequest(request.Method, 0, g.now().Sub(started))
		return registry.Response{}, classifyTransportError(request.URL.Host, err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseLength))
	g.metrics.ObserveRequest(request.Method, response.StatusCode, g.now().Sub(started))
	if err != nil {
		return registry.Response{}, faults.NewTypedError(
			faults.TransportError,
			"Cannot read response from the "+request.Method+" request to "+request.URL.Path,
			err,
		)
	}

	if err := classifyStatus(request.Method, request.URL.Path, response.StatusCode, payload); err != nil {
		return registry.Response{}, err
	}

	value, err := decodeJSONResponse(request.Method, request.URL.Path, payload)
	if err != nil {
		return registry.Response{}, err
	}
	return registry.Response{StatusCode: response.StatusCode, Body: value}, nil
}

func (g *Gateway) newRequest(ctx context.Context, method string, endpointPath string, body resource.Value) (*http.Request, error) {
	targetURL, err := g.resolveRequestURL(endpointPath)
	if err != nil {
		return nil, err
	}

	requestBody, err := encodeRequestBody(body)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if len(requestBody) > 0 {
		bodyReader = bytes.NewReader(requestBody)
	}

	request, err := http.NewRequestWithContext(ctx, method, targetURL, bodyReader)
	if err != nil {
		return nil, faults.Internal("failed to create registry request", err)
	}

	request.Header.Set("Accept", defaultMediaType)
	if len(requestBody) > 0 {
		request.Header.Set("Content-Type", defaultMediaType)
	}
	request.Header.Set(requestIDHeader, uuid.NewString())
	if g.token != "" {
		request.Header.Set("Authorization", "Bearer "+g.token)
	}

	return request, nil
}

// resolveRequestURL places endpointPath under the API prefix of the host.
// A query string in endpointPath is kept as is.
func (g *Gateway) resolveRequestURL(endpointPath string) (string, error) {
	trimmed := strings.TrimSpace(endpointPath)
	if strings.Contains(trimmed, "://") {
		return "", faults.Validation("request path must be relative to the registry API", nil)
	}

	rawPath, rawQuery, _ := strings.Cut(trimmed, "?")

	// Callers escape path segments themselves, names may contain reserved
	// characters.
	escapedPath := joinAPIPath(g.baseURL.EscapedPath(), rawPath)
	decodedPath, err := url.PathUnescape(escapedPath)
	if err != nil {
		return "", faults.Validation(fmt.Sprintf("request path %q is not correctly escaped", endpointPath), err)
	}

	target := *g.baseURL
	target.User = nil
	target.Path = decodedPath
	target.RawPath = escapedPath
	target.RawQuery = rawQuery
	target.Fragment = ""
	return target.String(), nil
}

func joinAPIPath(basePath string, endpointPath string) string {
	endpoint := strings.TrimLeft(endpointPath, "/")
	joined := path.Join("/", basePath, "api", "v1", endpoint)
	if endpoint == "" || strings.HasSuffix(endpoint, "/") {
		joined += "/"
	}
	return joined
}
