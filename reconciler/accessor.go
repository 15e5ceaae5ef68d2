package reconciler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/crmarques/quayconf/config"
	"github.com/crmarques/quayconf/debugctx"
	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/registry"
	"github.com/crmarques/quayconf/resource"
)

type fetchOptions struct {
	absent map[int]struct{}
}

type FetchOption func(*fetchOptions)

// AbsentOn declares extra status codes that mean "the object does not
// exist" for one fetch, on top of 404. Some endpoints answer 400 or 403 for
// a missing object.
func AbsentOn(codes ...int) FetchOption {
	return func(opts *fetchOptions) {
		for _, code := range codes {
			opts.absent[code] = struct{}{}
		}
	}
}

// Fetch reads one object. A nil object and a nil error mean the object is
// absent, which is distinct from an existing empty object.
func (e *Engine) Fetch(ctx context.Context, path string, opts ...FetchOption) (*resource.Object, error) {
	value, found, err := e.FetchValue(ctx, path, opts...)
	if err != nil || !found {
		return nil, err
	}

	switch typed := value.(type) {
	case nil:
		return resource.NewObject(nil), nil
	case map[string]any:
		return resource.NewObject(typed), nil
	default:
		return nil, faults.NewTypedError(
			faults.DecodeError,
			fmt.Sprintf("Unable to get %s: expected a JSON object, got %T", apiPath(path), value),
			nil,
		)
	}
}

// FetchValue reads one endpoint and returns the decoded body as is, for
// endpoints that answer with a list.
func (e *Engine) FetchValue(ctx context.Context, path string, opts ...FetchOption) (resource.Value, bool, error) {
	resolved := fetchOptions{absent: map[int]struct{}{http.StatusNotFound: {}}}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}

	response, err := e.client.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		if _, absent := resolved.absent[faults.StatusCode(err)]; absent {
			debugctx.Printf(ctx, "object absent path=%q status=%d", path, faults.StatusCode(err))
			return nil, false, nil
		}
		return nil, false, err
	}

	if _, absent := resolved.absent[response.StatusCode]; absent {
		debugctx.Printf(ctx, "object absent path=%q status=%d", path, response.StatusCode)
		return nil, false, nil
	}
	if response.StatusCode != http.StatusOK {
		return nil, false, responseError(
			response,
			fmt.Sprintf("Unable to get %s: %d", apiPath(path), response.StatusCode),
			".",
		)
	}
	return response.Body, true, nil
}

// responseError builds the failure for an unexpected status. The extracted
// error message is appended to prefix when the body carries one.
func responseError(response registry.Response, prefix string, suffix string) error {
	message := prefix
	if extracted := response.Message(); extracted != "" {
		message += ": " + extracted
	}
	message += suffix

	return faults.NewStatusError(statusCategory(response.StatusCode), response.StatusCode, message)
}

// statusCategory classifies a status that reached the caller unexpectedly.
func statusCategory(statusCode int) faults.ErrorCategory {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return faults.ServerError
	case statusCode == http.StatusNotFound:
		return faults.NotFoundError
	case statusCode < http.StatusBadRequest:
		return faults.InternalError
	default:
		return faults.ClientError
	}
}

func apiPath(path string) string {
	trimmed, _, _ := strings.Cut(strings.TrimSpace(path), "?")
	return config.APIPrefix + strings.TrimLeft(trimmed, "/")
}
