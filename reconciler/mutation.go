package reconciler

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/crmarques/quayconf/debugctx"
	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/registry"
	"github.com/crmarques/quayconf/resource"
)

// Target names the object a mutation applies to, for messages only.
type Target struct {
	Kind string
	Name string
}

func (t Target) String() string {
	return strings.TrimSpace(t.Kind + " " + t.Name)
}

const (
	operationCreate = "create"
	operationUpdate = "update"
	operationDelete = "delete"
)

// Delete removes the object at path. present is the result of the earlier
// read: an absent object is left alone without calling the registry.
func (e *Engine) Delete(ctx context.Context, present bool, target Target, path string) (bool, error) {
	if !present {
		return false, nil
	}
	if e.dryRun {
		e.recordMutation(ctx, target, operationDelete, path)
		return true, nil
	}

	response, err := e.client.Request(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return false, err
	}

	switch response.StatusCode {
	case http.StatusAccepted, http.StatusNoContent:
		e.recordMutation(ctx, target, operationDelete, path)
		return true, nil
	case http.StatusNotFound:
		// Removed by someone else between the read and this call.
		debugctx.Printf(ctx, "delete target vanished kind=%q name=%q path=%q", target.Kind, target.Name, path)
		return false, nil
	}
	return false, mutationError("delete", target, response)
}

// Create posts payload to path. The decoded response body is returned, it
// carries the identifiers generated by the registry.
func (e *Engine) Create(ctx context.Context, target Target, path string, payload any) (bool, resource.Value, error) {
	if e.dryRun {
		e.recordMutation(ctx, target, operationCreate, path)
		return true, nil, nil
	}

	response, err := e.client.Request(ctx, http.MethodPost, path, payload)
	if err != nil {
		return false, nil, err
	}
	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		return false, nil, mutationError("create", target, response)
	}

	e.recordMutation(ctx, target, operationCreate, path)
	return true, response.Body, nil
}

// Update puts desired to path when NeedsUpdate reports a difference with
// current.
func (e *Engine) Update(
	ctx context.Context,
	current *resource.Object,
	target Target,
	path string,
	desired map[string]any,
) (bool, resource.Value, error) {
	if !e.NeedsUpdate(ctx, current, target, desired) {
		return false, nil, nil
	}
	return e.UnconditionalUpdate(ctx, target, path, desired)
}

// UnconditionalUpdate puts payload to path without comparing it first.
func (e *Engine) UnconditionalUpdate(ctx context.Context, target Target, path string, payload any) (bool, resource.Value, error) {
	if e.dryRun {
		e.recordMutation(ctx, target, operationUpdate, path)
		return true, nil, nil
	}

	response, err := e.client.Request(ctx, http.MethodPut, path, payload)
	if err != nil {
		return false, nil, err
	}
	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		return false, nil, mutationError("update", target, response)
	}

	e.recordMutation(ctx, target, operationUpdate, path)
	return true, response.Body, nil
}

// NeedsUpdate reports whether some attribute of desired differs from
// current. Attributes are looked up by canonical name and compared after
// normalisation. A secret attribute always needs an update because the
// registry never returns secret values.
func (e *Engine) NeedsUpdate(ctx context.Context, current *resource.Object, target Target, desired map[string]any) bool {
	if len(desired) == 0 {
		return false
	}

	keys := make([]string, 0, len(desired))
	for key := range desired {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if IsSecretAttribute(key) {
			e.Warn(
				ctx,
				"The %s field of %s has secret data and may inaccurately report the object as changed.",
				key,
				target,
			)
			return true
		}
	}

	for _, key := range keys {
		if !current.Equal(key, desired[key]) {
			debugctx.Printf(ctx, "attribute differs target=%q attribute=%q", target.String(), key)
			return true
		}
	}
	return false
}

// IsSecretAttribute reports whether name holds a password the registry
// never returns.
func IsSecretAttribute(name string) bool {
	return strings.HasSuffix(strings.ToLower(resource.CanonicalName(name)), "password")
}

func (e *Engine) recordMutation(ctx context.Context, target Target, operation string, path string) {
	e.metrics.ObserveMutation(target.Kind, operation, e.dryRun)
	debugctx.Printf(
		ctx,
		"mutation operation=%q kind=%q name=%q path=%q dry_run=%t",
		operation,
		target.Kind,
		target.Name,
		path,
		e.dryRun,
	)
}

func mutationError(verb string, target Target, response registry.Response) error {
	detail := response.Message()
	if detail == "" {
		detail = strconv.Itoa(response.StatusCode)
	}
	message := fmt.Sprintf("Unable to %s %s: %s", verb, target, detail)
	return faults.NewStatusError(statusCategory(response.StatusCode), response.StatusCode, message)
}
