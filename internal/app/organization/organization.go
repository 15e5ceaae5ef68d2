package organization

import (
	"context"
	"fmt"
	"strings"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/internal/app/lookup"
	"github.com/crmarques/quayconf/internal/app/prune"
	"github.com/crmarques/quayconf/internal/app/validation"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/crmarques/quayconf/resource"
)

const kind = "organization"

type Request struct {
	Name                  string  `yaml:"name" json:"name" validate:"required,excludesall= /"`
	NewName               *string `yaml:"new_name,omitempty" json:"new_name,omitempty" validate:"omitempty,excludesall= /"`
	Email                 *string `yaml:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
	TimeMachineExpiration *string `yaml:"time_machine_expiration,omitempty" json:"time_machine_expiration,omitempty"`
	AutoPruneMethod       *string `yaml:"auto_prune_method,omitempty" json:"auto_prune_method,omitempty" validate:"omitempty,oneof=none tags date"`
	AutoPruneValue        *string `yaml:"auto_prune_value,omitempty" json:"auto_prune_value,omitempty"`
	State                 string  `yaml:"state,omitempty" json:"state,omitempty" validate:"omitempty,oneof=present absent"`
}

// Execute creates, renames, updates or deletes one organization.
func Execute(ctx context.Context, engine *reconciler.Engine, request Request) (reconciler.Outcome, error) {
	if err := validation.Struct(request); err != nil {
		return reconciler.Outcome{}, err
	}
	legacy, err := prune.ParseLegacy(request.AutoPruneMethod, request.AutoPruneValue)
	if err != nil {
		return reconciler.Outcome{}, err
	}

	desired := map[string]any{}
	if request.TimeMachineExpiration != nil && strings.TrimSpace(*request.TimeMachineExpiration) != "" {
		seconds, err := reconciler.ParseDuration("time_machine_expiration", *request.TimeMachineExpiration)
		if err != nil {
			return reconciler.Outcome{}, err
		}
		desired["tag_expiration_s"] = seconds
	}
	email := ""
	if request.Email != nil {
		email = strings.TrimSpace(*request.Email)
	}
	if email != "" {
		desired["email"] = email
	}

	name := strings.TrimSpace(request.Name)
	newName := ""
	if request.NewName != nil {
		newName = strings.TrimSpace(*request.NewName)
	}

	resolver := lookup.NewResolver(engine)
	current, err := resolver.Organization(ctx, name)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	var renamed *resource.Object
	if newName != "" {
		if renamed, err = resolver.Organization(ctx, newName); err != nil {
			return reconciler.Outcome{}, err
		}
	}
	if current != nil && renamed != nil {
		return reconciler.Outcome{}, faults.Validation(
			fmt.Sprintf("The %s organization (`new_name') already exists.", newName),
			nil,
		)
	}

	if request.State == prune.StateAbsent {
		if renamed != nil {
			changed, err := engine.Delete(ctx, true, target(newName), lookup.Path("organization", newName))
			return engine.Outcome(changed, nil), err
		}
		changed, err := engine.Delete(ctx, current != nil, target(name), lookup.Path("organization", name))
		return engine.Outcome(changed, nil), err
	}

	created := false
	switch {
	case newName != "" && current == nil && renamed != nil:
		// Renamed by an earlier run.
		current = renamed
		name = newName
	case newName != "" && current != nil:
		if _, _, err := engine.UnconditionalUpdate(
			ctx,
			target(newName),
			lookup.Path("superuser", "organizations", name),
			map[string]any{"name": newName},
		); err != nil {
			return reconciler.Outcome{}, err
		}
		created = true
		name = newName
	case current == nil:
		if newName != "" {
			name = newName
		}
		payload := map[string]any{"name": name}
		if email != "" {
			payload["email"] = email
		}
		if _, _, err := engine.Create(ctx, target(name), "organization/", payload); err != nil {
			return reconciler.Outcome{}, err
		}
		created = true
		current = resource.NewObject(payload)
	}

	updated, _, err := engine.Update(ctx, current, target(name), lookup.Path("organization", name), desired)
	if err != nil {
		return reconciler.Outcome{}, err
	}

	pruned, err := legacy.Apply(
		ctx,
		engine,
		reconciler.Target{Kind: "organization auto-pruning policy", Name: name},
		lookup.Path("organization", name, "autoprunepolicy")+"/",
	)
	if err != nil {
		return reconciler.Outcome{}, err
	}

	return engine.Outcome(created || updated || pruned, map[string]any{"name": name}), nil
}

func target(name string) reconciler.Target {
	return reconciler.Target{Kind: kind, Name: name}
}
