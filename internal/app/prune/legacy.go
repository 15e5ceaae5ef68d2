package prune

import (
	"context"
	"fmt"
	"strings"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/reconciler"
)

// Legacy is the single policy configured through the deprecated
// auto_prune_method and auto_prune_value options of the organization and
// repository modules.
type Legacy struct {
	Method string
	Value  any
}

// ParseLegacy validates the deprecated options. A nil result means the
// options are not set.
func ParseLegacy(method *string, value *string) (*Legacy, error) {
	if method == nil {
		if value != nil {
			return nil, faults.Validation("missing parameter(s) required by 'auto_prune_value': auto_prune_method", nil)
		}
		return nil, nil
	}

	selected := strings.TrimSpace(*method)
	if selected == reconciler.PruneMethodNone {
		return &Legacy{Method: reconciler.PruneMethodNone}, nil
	}
	if value == nil {
		return nil, faults.Validation(
			fmt.Sprintf("auto_prune_method is %s but all of the following are missing: auto_prune_value", selected),
			nil,
		)
	}

	apiMethod, apiValue, err := reconciler.ParsePruneValue("auto_prune_value", selected, *value)
	if err != nil {
		return nil, err
	}
	return &Legacy{Method: apiMethod, Value: apiValue}, nil
}

// Apply converges the policy collection at collectionPath. Method "none"
// removes every policy.
func (l *Legacy) Apply(ctx context.Context, engine *reconciler.Engine, target reconciler.Target, collectionPath string) (bool, error) {
	if l == nil {
		return false, nil
	}
	owner, _, _ := strings.Cut(target.Kind, " ")
	engine.Warn(
		ctx,
		"The auto_prune_method and auto_prune_value options are deprecated. Use the %s prune command instead.",
		owner,
	)

	existing, err := engine.Fetch(ctx, collectionPath)
	if err != nil {
		return false, err
	}

	set := reconciler.PolicySet{
		Existing:       reconciler.PoliciesFromObject(existing),
		Desired:        reconciler.Policy{Method: l.Method, Value: l.Value, TagPatternMatches: true},
		Target:         target,
		CollectionPath: collectionPath,
	}
	if l.Method == reconciler.PruneMethodNone {
		return engine.RemoveAllPolicies(ctx, set)
	}
	return engine.ReconcileLegacyPolicy(ctx, set)
}
