package reconciler

import (
	"context"
	"net/url"
	"strings"

	"github.com/crmarques/quayconf/resource"
)

// Policy is one auto-prune policy. UUID is assigned by the registry and is
// ignored when two policies are compared.
type Policy struct {
	UUID              string
	Method            string
	Value             any
	TagPattern        *string
	TagPatternMatches bool
}

// NewPolicy builds a desired policy. tagPatternMatches defaults to true.
func NewPolicy(method string, value any, tagPattern *string, tagPatternMatches *bool) Policy {
	policy := Policy{
		Method:            method,
		Value:             value,
		TagPatternMatches: true,
	}
	if tagPattern != nil && strings.TrimSpace(*tagPattern) != "" {
		pattern := *tagPattern
		policy.TagPattern = &pattern
		if tagPatternMatches != nil {
			policy.TagPatternMatches = *tagPatternMatches
		}
	}
	return policy
}

// PoliciesFromObject reads the "policies" list of an autoprunepolicy
// response. An absent object has no policies.
func PoliciesFromObject(object *resource.Object) []Policy {
	items := object.List("policies")
	policies := make([]Policy, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		policies = append(policies, policyFromFields(resource.NewObject(fields)))
	}
	return policies
}

func policyFromFields(fields *resource.Object) Policy {
	policy := Policy{
		UUID:              fields.String("uuid"),
		Method:            fields.String("method"),
		TagPatternMatches: true,
	}
	policy.Value, _ = fields.Get("value")
	if pattern, ok := fields.Get("tagPattern"); ok {
		if text, isText := pattern.(string); isText && text != "" {
			policy.TagPattern = &text
		}
	}
	if matches, ok := fields.Get("tagPatternMatches"); ok {
		if flag, isFlag := matches.(bool); isFlag {
			policy.TagPatternMatches = flag
		}
	}
	return policy
}

// Matches compares method, value and tag filter.
func (p Policy) Matches(other Policy) bool {
	if p.Method != other.Method || !resource.ValuesEqual(p.Value, other.Value) {
		return false
	}
	if (p.TagPattern == nil) != (other.TagPattern == nil) {
		return false
	}
	if p.TagPattern != nil && *p.TagPattern != *other.TagPattern {
		return false
	}
	return p.TagPatternMatches == other.TagPatternMatches
}

// Payload is the request body that creates the policy.
func (p Policy) Payload() map[string]any {
	payload := map[string]any{
		"method": p.Method,
		"value":  p.Value,
	}
	if p.TagPattern != nil {
		payload["tagPattern"] = *p.TagPattern
		payload["tagPatternMatches"] = p.TagPatternMatches
	}
	return payload
}

// PolicySet is the input of the singleton policy algorithms.
type PolicySet struct {
	Existing []Policy
	Desired  Policy
	// Append keeps the other policies in place. Without it the desired
	// policy becomes the only one.
	Append bool
	Target Target
	// CollectionPath is the autoprunepolicy collection, with a trailing
	// slash. Policies are addressed below it by UUID.
	CollectionPath string
}

func (s PolicySet) itemPath(uuid string) string {
	return strings.TrimSuffix(s.CollectionPath, "/") + "/" + url.PathEscape(uuid)
}

func (s PolicySet) match() (Policy, int, bool) {
	for idx, policy := range s.Existing {
		if policy.Matches(s.Desired) {
			return policy, idx, true
		}
	}
	return Policy{}, -1, false
}

// ReconcilePolicy makes the desired policy present. In append mode an
// existing match is enough. Otherwise every other policy is deleted first.
// The UUID of the matching or created policy is returned; it is empty in
// check mode when the policy would be created.
func (e *Engine) ReconcilePolicy(ctx context.Context, set PolicySet) (bool, string, error) {
	matched, matchedIdx, found := set.match()
	if found && set.Append {
		return false, matched.UUID, nil
	}

	if !set.Append {
		deletions := false
		for idx, policy := range set.Existing {
			if idx == matchedIdx || (matched.UUID != "" && policy.UUID == matched.UUID) {
				continue
			}
			deleted, err := e.deletePolicy(ctx, set, policy)
			if err != nil {
				return false, "", err
			}
			deletions = deletions || deleted
		}
		if found {
			return deletions, matched.UUID, nil
		}
	}

	_, result, err := e.Create(ctx, set.Target, set.CollectionPath, set.Desired.Payload())
	if err != nil {
		return false, "", err
	}
	return true, createdUUID(result), nil
}

// RemovePolicy deletes the policy matching the desired one, if any.
func (e *Engine) RemovePolicy(ctx context.Context, set PolicySet) (bool, string, error) {
	matched, _, found := set.match()
	if !found {
		return false, "", nil
	}
	deleted, err := e.deletePolicy(ctx, set, matched)
	if err != nil {
		return false, "", err
	}
	return deleted, matched.UUID, nil
}

// RemoveAllPolicies deletes every existing policy one by one.
func (e *Engine) RemoveAllPolicies(ctx context.Context, set PolicySet) (bool, error) {
	changed := false
	for _, policy := range set.Existing {
		deleted, err := e.deletePolicy(ctx, set, policy)
		if err != nil {
			return false, err
		}
		changed = changed || deleted
	}
	return changed, nil
}

// ReconcileLegacyPolicy keeps a single method/value policy, as configured by
// the deprecated auto_prune_method options. An existing policy with the same
// method and value is enough. Otherwise the first policy that has a UUID is
// rewritten in place, or a new one is created when none is addressable.
func (e *Engine) ReconcileLegacyPolicy(ctx context.Context, set PolicySet) (bool, error) {
	for _, policy := range set.Existing {
		if policy.Method == set.Desired.Method && resource.ValuesEqual(policy.Value, set.Desired.Value) {
			return false, nil
		}
	}

	var addressable *Policy
	for idx := range set.Existing {
		if set.Existing[idx].UUID == "" {
			e.Warn(ctx, "Ignoring %s policy without uuid (method %s).", set.Target, set.Existing[idx].Method)
			continue
		}
		if addressable == nil {
			addressable = &set.Existing[idx]
		}
	}

	payload := map[string]any{
		"method": set.Desired.Method,
		"value":  set.Desired.Value,
	}
	if addressable == nil {
		changed, _, err := e.Create(ctx, set.Target, set.CollectionPath, payload)
		return changed, err
	}

	payload["uuid"] = addressable.UUID
	changed, _, err := e.UnconditionalUpdate(ctx, set.Target, set.itemPath(addressable.UUID), payload)
	return changed, err
}

func (e *Engine) deletePolicy(ctx context.Context, set PolicySet, policy Policy) (bool, error) {
	if policy.UUID == "" {
		e.Warn(ctx, "Cannot delete %s policy without uuid (method %s).", set.Target, policy.Method)
		return false, nil
	}
	return e.Delete(ctx, true, set.Target, set.itemPath(policy.UUID))
}

func createdUUID(result any) string {
	fields, ok := result.(map[string]any)
	if !ok {
		return ""
	}
	uuid, _ := fields["uuid"].(string)
	return uuid
}
