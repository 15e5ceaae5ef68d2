package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/resource"
)

func encodeRequestBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	normalized, err := resource.Normalize(body)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(normalized)
	if err != nil {
		return nil, faults.Validation("failed to encode JSON request body", err)
	}
	return encoded, nil
}

func decodeJSONResponse(method string, requestPath string, body []byte) (resource.Value, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, faults.NewTypedError(
			faults.DecodeError,
			fmt.Sprintf("Failed to parse the JSON response from the %s request to %s", method, requestPath),
			err,
		)
	}

	normalized, err := resource.Normalize(value)
	if err != nil {
		return nil, faults.NewTypedError(faults.DecodeError, "registry response contains unsupported values", err)
	}
	return normalized, nil
}

// classifyStatus returns the typed error for statuses that are never a
// normal outcome, in priority order, and nil for pass-through statuses.
func classifyStatus(method string, requestPath string, statusCode int, body []byte) error {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return faults.NewStatusError(
			faults.ServerError,
			statusCode,
			fmt.Sprintf(
				"The host sent back a server error: %s: %d %s. Please check the logs and try again later.",
				requestPath, statusCode, summarizeBody(body),
			),
		)
	case statusCode == http.StatusUnauthorized:
		return faults.NewStatusError(
			faults.UnauthenticatedError,
			statusCode,
			fmt.Sprintf("Invalid authentication credentials for %s (HTTP 401).", requestPath),
		)
	case statusCode == http.StatusForbidden:
		return faults.NewStatusError(
			faults.ForbiddenError,
			statusCode,
			fmt.Sprintf("You do not have permission to %s %s (HTTP 403).", method, requestPath),
		)
	case statusCode == http.StatusMethodNotAllowed:
		return faults.NewStatusError(
			faults.MethodNotAllowedError,
			statusCode,
			fmt.Sprintf("Cannot make a %s request to this endpoint %s.", method, requestPath),
		)
	}
	return nil
}

const maxBodySummary = 512

// summarizeBody cuts long bodies on a rune boundary.
func summarizeBody(body []byte) string {
	trimmed := string(bytes.TrimSpace(body))
	if trimmed == "" {
		return "<empty>"
	}
	if len(trimmed) <= maxBodySummary {
		return trimmed
	}
	cut := maxBodySummary
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut] + "..."
}
