package prune

import (
	"context"
	"fmt"
	"strings"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/internal/app/lookup"
	"github.com/crmarques/quayconf/internal/app/validation"
	"github.com/crmarques/quayconf/reconciler"
)

const (
	StatePresent = "present"
	StateAbsent  = "absent"
)

const policyKind = "auto-pruning policy"

// OrganizationRequest manages one auto-prune policy of an organization or
// a personal namespace.
type OrganizationRequest struct {
	Namespace         string  `yaml:"namespace" json:"namespace" validate:"required"`
	Append            *bool   `yaml:"append,omitempty" json:"append,omitempty"`
	Method            string  `yaml:"method" json:"method" validate:"required,oneof=tags date"`
	Value             string  `yaml:"value" json:"value" validate:"required"`
	TagPattern        *string `yaml:"tag_pattern,omitempty" json:"tag_pattern,omitempty"`
	TagPatternMatches *bool   `yaml:"tag_pattern_matches,omitempty" json:"tag_pattern_matches,omitempty"`
	State             string  `yaml:"state,omitempty" json:"state,omitempty" validate:"omitempty,oneof=present absent"`
}

// RepositoryRequest manages one auto-prune policy of a repository.
type RepositoryRequest struct {
	Repository        string  `yaml:"repository" json:"repository" validate:"required"`
	Append            *bool   `yaml:"append,omitempty" json:"append,omitempty"`
	Method            string  `yaml:"method" json:"method" validate:"required,oneof=tags date"`
	Value             string  `yaml:"value" json:"value" validate:"required"`
	TagPattern        *string `yaml:"tag_pattern,omitempty" json:"tag_pattern,omitempty"`
	TagPatternMatches *bool   `yaml:"tag_pattern_matches,omitempty" json:"tag_pattern_matches,omitempty"`
	State             string  `yaml:"state,omitempty" json:"state,omitempty" validate:"omitempty,oneof=present absent"`
}

// ExecuteOrganization converges the policies of an organization.
func ExecuteOrganization(ctx context.Context, engine *reconciler.Engine, request OrganizationRequest) (reconciler.Outcome, error) {
	if err := validation.Struct(request); err != nil {
		return reconciler.Outcome{}, err
	}
	desired, err := desiredPolicy(request.Method, request.Value, request.TagPattern, request.TagPatternMatches)
	if err != nil {
		return reconciler.Outcome{}, err
	}

	namespace := strings.TrimSpace(request.Namespace)
	details, err := lookup.NewResolver(engine).Namespace(ctx, namespace)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	if details == nil {
		if request.State == StateAbsent {
			return engine.Outcome(false, nil), nil
		}
		return reconciler.Outcome{}, faults.Validation(
			fmt.Sprintf("The %s organization or personal namespace does not exist.", namespace),
			nil,
		)
	}

	collection := lookup.Path("organization", namespace, "autoprunepolicy") + "/"
	existing, err := engine.Fetch(ctx, collection)
	if err != nil {
		return reconciler.Outcome{}, err
	}

	return converge(ctx, engine, reconciler.PolicySet{
		Existing:       reconciler.PoliciesFromObject(existing),
		Desired:        desired,
		Append:         appendMode(request.Append),
		Target:         reconciler.Target{Kind: policyKind, Name: request.Method},
		CollectionPath: collection,
	}, request.State)
}

// ExecuteRepository converges the policies of a repository.
func ExecuteRepository(ctx context.Context, engine *reconciler.Engine, request RepositoryRequest) (reconciler.Outcome, error) {
	if err := validation.Struct(request); err != nil {
		return reconciler.Outcome{}, err
	}
	desired, err := desiredPolicy(request.Method, request.Value, request.TagPattern, request.TagPatternMatches)
	if err != nil {
		return reconciler.Outcome{}, err
	}

	name, err := lookup.NewResolver(engine).RepositoryName(ctx, "repository", request.Repository)
	if err != nil {
		return reconciler.Outcome{}, err
	}

	collection := lookup.Path("repository", name.Namespace, name.Short, "autoprunepolicy") + "/"
	existing, err := engine.Fetch(ctx, collection)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	if existing == nil {
		if request.State == StateAbsent {
			return engine.Outcome(false, nil), nil
		}
		return reconciler.Outcome{}, faults.Validation(fmt.Sprintf("The %s repository does not exist.", name), nil)
	}

	return converge(ctx, engine, reconciler.PolicySet{
		Existing:       reconciler.PoliciesFromObject(existing),
		Desired:        desired,
		Append:         appendMode(request.Append),
		Target:         reconciler.Target{Kind: policyKind, Name: request.Method},
		CollectionPath: collection,
	}, request.State)
}

func converge(ctx context.Context, engine *reconciler.Engine, set reconciler.PolicySet, state string) (reconciler.Outcome, error) {
	var (
		changed bool
		id      string
		err     error
	)
	if state == StateAbsent {
		changed, id, err = engine.RemovePolicy(ctx, set)
	} else {
		changed, id, err = engine.ReconcilePolicy(ctx, set)
	}
	if err != nil {
		return reconciler.Outcome{}, err
	}

	data := map[string]any{}
	if id != "" {
		data["id"] = id
	}
	return engine.Outcome(changed, data), nil
}

func desiredPolicy(method string, value string, tagPattern *string, tagPatternMatches *bool) (reconciler.Policy, error) {
	apiMethod, apiValue, err := reconciler.ParsePruneValue("value", method, value)
	if err != nil {
		return reconciler.Policy{}, err
	}
	return reconciler.NewPolicy(apiMethod, apiValue, tagPattern, tagPatternMatches), nil
}

func appendMode(value *bool) bool {
	return value == nil || *value
}
