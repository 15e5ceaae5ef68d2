package robot

import (
	"context"
	"fmt"
	"net/http"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/internal/app/lookup"
	"github.com/crmarques/quayconf/internal/app/validation"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/crmarques/quayconf/resource"
)

const (
	kind           = "robot account"
	federationKind = "robot account federation"
	stateAbsent    = "absent"
)

type Federation struct {
	Issuer  string `yaml:"issuer" json:"issuer" validate:"required"`
	Subject string `yaml:"subject" json:"subject" validate:"required"`
}

type Request struct {
	Name        string       `yaml:"name" json:"name" validate:"required"`
	Description *string      `yaml:"description,omitempty" json:"description,omitempty"`
	Federations []Federation `yaml:"federations,omitempty" json:"federations,omitempty" validate:"omitempty,dive"`
	Append      *bool        `yaml:"append,omitempty" json:"append,omitempty"`
	State       string       `yaml:"state,omitempty" json:"state,omitempty" validate:"omitempty,oneof=present absent"`
}

// Execute converges one robot account. Names in the "namespace+short" form
// address organization robots, a bare short name a robot of the
// authenticated user.
func Execute(ctx context.Context, engine *reconciler.Engine, request Request) (reconciler.Outcome, error) {
	if err := validation.Struct(request); err != nil {
		return reconciler.Outcome{}, err
	}

	robotPath, exists, err := resolvePath(ctx, engine, request.Name)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	self := reconciler.Target{Kind: kind, Name: request.Name}
	if !exists {
		if request.State == stateAbsent {
			return engine.Outcome(false, nil), nil
		}
		namespace, _, _ := lookup.Split(request.Name, lookup.RobotSeparator)
		return reconciler.Outcome{}, faults.Validation(
			fmt.Sprintf("The %s organization or personal namespace does not exist.", namespace),
			nil,
		)
	}

	// Unknown robots are reported with 400.
	current, err := engine.Fetch(ctx, robotPath, reconciler.AbsentOn(http.StatusBadRequest))
	if err != nil {
		return reconciler.Outcome{}, err
	}

	if request.State == stateAbsent {
		changed, err := engine.Delete(ctx, current != nil, self, robotPath)
		return engine.Outcome(changed, nil), err
	}

	federationPath := robotPath + "/federation"
	if current != nil {
		changed, err := reconcileFederations(ctx, engine, federationPath, request)
		if err != nil {
			return reconciler.Outcome{}, err
		}
		return engine.Outcome(changed, accountData(current)), nil
	}

	payload := map[string]any{}
	if request.Description != nil && *request.Description != "" {
		payload["description"] = *request.Description
	}
	_, result, err := engine.UnconditionalUpdate(ctx, self, robotPath, payload)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	if len(request.Federations) > 0 {
		desired := reconciler.UniquePairs(desiredFederations(request.Federations))
		if _, _, err := engine.Create(
			ctx,
			reconciler.Target{Kind: federationKind, Name: request.Name},
			federationPath,
			federationPayload(desired),
		); err != nil {
			return reconciler.Outcome{}, err
		}
	}

	var created *resource.Object
	if fields, ok := result.(map[string]any); ok {
		created = resource.NewObject(fields)
	}
	return engine.Outcome(true, accountData(created)), nil
}

// resolvePath returns the API path of the robot and whether its namespace
// exists.
func resolvePath(ctx context.Context, engine *reconciler.Engine, name string) (string, bool, error) {
	namespace, short, namespaced := lookup.Split(name, lookup.RobotSeparator)
	if short == "" {
		return "", false, faults.Validation(
			fmt.Sprintf("Wrong format for the `name' parameter: %s is not <namespace>+<name>.", name),
			nil,
		)
	}
	if !namespaced {
		return lookup.Path("user", "robots", short), true, nil
	}

	resolver := lookup.NewResolver(engine)
	organization, err := resolver.Organization(ctx, namespace)
	if err != nil {
		return "", false, err
	}
	if organization != nil {
		return lookup.Path("organization", namespace, "robots", short), true, nil
	}

	user, err := resolver.CurrentUser(ctx)
	if err != nil {
		return "", false, err
	}
	return lookup.Path("user", "robots", short), user != "" && user == namespace, nil
}

// reconcileFederations rewrites the whole federation list when the
// issuer/subject set differs. In append mode the current federations are
// kept in the list.
func reconcileFederations(ctx context.Context, engine *reconciler.Engine, federationPath string, request Request) (bool, error) {
	if request.Federations == nil {
		return false, nil
	}

	value, _, err := engine.FetchValue(ctx, federationPath)
	if err != nil {
		return false, err
	}
	observed := observedFederations(value)
	desired := desiredFederations(request.Federations)
	appendOnly := request.Append == nil || *request.Append

	if reconciler.DiffMembership(desired, observed, appendOnly).Empty() {
		return false, nil
	}

	list := reconciler.UniquePairs(desired)
	if appendOnly {
		list = reconciler.UnionPairs(desired, observed)
	}
	changed, _, err := engine.Create(
		ctx,
		reconciler.Target{Kind: federationKind, Name: request.Name},
		federationPath,
		federationPayload(list),
	)
	return changed, err
}

func desiredFederations(federations []Federation) []reconciler.Pair {
	pairs := make([]reconciler.Pair, 0, len(federations))
	for _, federation := range federations {
		pairs = append(pairs, reconciler.Pair{Name: federation.Issuer, Value: federation.Subject})
	}
	return pairs
}

func observedFederations(value resource.Value) []reconciler.Pair {
	items, _ := value.([]any)
	pairs := make([]reconciler.Pair, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		issuer, _ := fields["issuer"].(string)
		subject, _ := fields["subject"].(string)
		pairs = append(pairs, reconciler.Pair{Name: issuer, Value: subject})
	}
	return pairs
}

func federationPayload(pairs []reconciler.Pair) []any {
	payload := make([]any, 0, len(pairs))
	for _, pair := range pairs {
		payload = append(payload, map[string]any{
			"issuer":     pair.Name,
			"subject":    pair.Value,
			"isExpanded": false,
		})
	}
	return payload
}

// accountData exposes the name and token of the robot account.
func accountData(account *resource.Object) map[string]any {
	data := map[string]any{}
	if account.Has("name") {
		data["name"] = account.String("name")
	}
	if account.Has("token") {
		data["token"] = account.String("token")
	}
	return data
}
