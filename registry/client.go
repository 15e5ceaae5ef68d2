package registry

import (
	"context"
	"strings"

	"github.com/crmarques/quayconf/resource"
)

// Client issues one request against the registry API. Paths are relative
// to the versioned API prefix.
//
// Implementations fail with a faults.TypedError for transport failures and
// for the statuses that are never a normal outcome (401, 403, 405, >=500).
// Every other status, including 404 and the remaining 4xx codes, is returned
// in Response so that the caller decides between absence and failure.
type Client interface {
	Request(ctx context.Context, method string, path string, body resource.Value) (Response, error)
	// Authenticated reports whether requests carry a bearer token.
	Authenticated() bool
}

type Response struct {
	StatusCode int
	Body       resource.Value
}

// Object returns the response body as an object, or nil when the body is
// not a JSON object.
func (r Response) Object() *resource.Object {
	fields, ok := r.Body.(map[string]any)
	if !ok {
		return nil
	}
	return resource.NewObject(fields)
}

// Message is the human readable error message carried by the body.
func (r Response) Message() string {
	return ErrorMessage(r.Body)
}

// ErrorMessage builds a single message from the heterogeneous error payload
// shapes returned by the registry. A `message` attribute is used verbatim.
// Otherwise title, error_type, error_message and detail are joined with
// ": ", skipping error_type when it repeats title and detail when it
// repeats error_message.
func ErrorMessage(body resource.Value) string {
	fields, ok := body.(map[string]any)
	if !ok {
		return ""
	}

	if message, found := stringField(fields, "message"); found {
		return message
	}

	parts := make([]string, 0, 4)
	title, hasTitle := stringField(fields, "title")
	if hasTitle {
		parts = append(parts, title)
	}
	if errorType, found := stringField(fields, "error_type"); found && (!hasTitle || errorType != title) {
		parts = append(parts, errorType)
	}
	errorMessage, hasErrorMessage := stringField(fields, "error_message")
	if hasErrorMessage {
		parts = append(parts, errorMessage)
	}
	if detail, found := stringField(fields, "detail"); found && (!hasErrorMessage || detail != errorMessage) {
		parts = append(parts, detail)
	}
	return strings.Join(parts, ": ")
}

func stringField(fields map[string]any, name string) (string, bool) {
	value, found := fields[name]
	if !found || value == nil {
		return "", false
	}
	text, ok := value.(string)
	if !ok {
		return "", false
	}
	return text, true
}
