package reconciler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/crmarques/quayconf/registry"
	"github.com/crmarques/quayconf/resource"
)

type recordedCall struct {
	Method string
	Path   string
	Body   any
}

// scriptedClient answers from a "METHOD path" table and records calls.
type scriptedClient struct {
	responses map[string]scriptedResponse
	calls     []recordedCall
	token     bool
}

type scriptedResponse struct {
	status int
	body   resource.Value
	err    error
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{responses: map[string]scriptedResponse{}}
}

func (c *scriptedClient) on(method string, path string, status int, body resource.Value) *scriptedClient {
	c.responses[method+" "+path] = scriptedResponse{status: status, body: body}
	return c
}

func (c *scriptedClient) fail(method string, path string, err error) *scriptedClient {
	c.responses[method+" "+path] = scriptedResponse{err: err}
	return c
}

func (c *scriptedClient) Request(_ context.Context, method string, path string, body resource.Value) (registry.Response, error) {
	c.calls = append(c.calls, recordedCall{Method: method, Path: path, Body: body})

	scripted, found := c.responses[method+" "+path]
	if !found {
		return registry.Response{}, fmt.Errorf("unexpected call %s %s", method, path)
	}
	if scripted.err != nil {
		return registry.Response{}, scripted.err
	}
	return registry.Response{StatusCode: scripted.status, Body: scripted.body}, nil
}

func (c *scriptedClient) Authenticated() bool {
	return c.token
}

func (c *scriptedClient) mutations() []string {
	var calls []string
	for _, call := range c.calls {
		if call.Method == http.MethodGet {
			continue
		}
		calls = append(calls, call.Method+" "+call.Path)
	}
	return calls
}

func (c *scriptedClient) callList() string {
	parts := make([]string, 0, len(c.calls))
	for _, call := range c.calls {
		parts = append(parts, call.Method+" "+call.Path)
	}
	return strings.Join(parts, ", ")
}
