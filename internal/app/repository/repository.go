package repository

import (
	"context"

	"github.com/crmarques/quayconf/internal/app/lookup"
	"github.com/crmarques/quayconf/internal/app/prune"
	"github.com/crmarques/quayconf/internal/app/validation"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/crmarques/quayconf/resource"
)

const kind = "repository"

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	PermissionTypeUser = "user"
	PermissionTypeTeam = "team"
)

type Permission struct {
	Type string `yaml:"type,omitempty" json:"type,omitempty" validate:"omitempty,oneof=user team"`
	Name string `yaml:"name" json:"name" validate:"required"`
	Role string `yaml:"role,omitempty" json:"role,omitempty" validate:"omitempty,oneof=read write admin"`
}

type Request struct {
	Name            string       `yaml:"name" json:"name" validate:"required"`
	Visibility      *string      `yaml:"visibility,omitempty" json:"visibility,omitempty" validate:"omitempty,oneof=public private"`
	Description     *string      `yaml:"description,omitempty" json:"description,omitempty"`
	Perms           []Permission `yaml:"perms,omitempty" json:"perms,omitempty" validate:"omitempty,dive"`
	Append          *bool        `yaml:"append,omitempty" json:"append,omitempty"`
	Star            *bool        `yaml:"star,omitempty" json:"star,omitempty"`
	RepoState       *string      `yaml:"repo_state,omitempty" json:"repo_state,omitempty" validate:"omitempty,oneof=NORMAL READ_ONLY MIRROR"`
	AutoPruneMethod *string      `yaml:"auto_prune_method,omitempty" json:"auto_prune_method,omitempty" validate:"omitempty,oneof=none tags date"`
	AutoPruneValue  *string      `yaml:"auto_prune_value,omitempty" json:"auto_prune_value,omitempty"`
	State           string       `yaml:"state,omitempty" json:"state,omitempty" validate:"omitempty,oneof=present absent"`
}

// Execute converges one repository and, when perms is set, its team and
// user permissions.
func Execute(ctx context.Context, engine *reconciler.Engine, request Request) (reconciler.Outcome, error) {
	if err := validation.Struct(request); err != nil {
		return reconciler.Outcome{}, err
	}
	legacy, err := prune.ParseLegacy(request.AutoPruneMethod, request.AutoPruneValue)
	if err != nil {
		return reconciler.Outcome{}, err
	}

	resolver := lookup.NewResolver(engine)
	name, err := resolver.RepositoryName(ctx, "name", request.Name)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	repoPath := lookup.Path("repository", name.Namespace, name.Short)
	self := reconciler.Target{Kind: kind, Name: name.String()}

	current, err := engine.Fetch(ctx, repoPath)
	if err != nil {
		return reconciler.Outcome{}, err
	}

	if request.State == prune.StateAbsent {
		changed, err := engine.Delete(ctx, current != nil, self, repoPath)
		return engine.Outcome(changed, nil), err
	}

	changed := false
	if current == nil {
		payload := map[string]any{
			"namespace":   name.Namespace,
			"repository":  name.Short,
			"repo_kind":   "image",
			"description": valueOr(request.Description, ""),
			"visibility":  valueOr(request.Visibility, VisibilityPrivate),
		}
		if _, _, err := engine.Create(ctx, self, "repository", payload); err != nil {
			return reconciler.Outcome{}, err
		}
		changed = true
	} else {
		if request.Description != nil {
			updated, _, err := engine.Update(ctx, current, self, repoPath, map[string]any{"description": *request.Description})
			if err != nil {
				return reconciler.Outcome{}, err
			}
			changed = changed || updated
		}
		if visibilityDiffers(current, request.Visibility) {
			if _, _, err := engine.Create(
				ctx,
				self,
				repoPath+"/changevisibility",
				map[string]any{"visibility": *request.Visibility},
			); err != nil {
				return reconciler.Outcome{}, err
			}
			changed = true
		}
	}

	if request.RepoState != nil && stateDiffers(current, *request.RepoState) {
		if _, _, err := engine.UnconditionalUpdate(
			ctx,
			self,
			repoPath+"/changestate",
			map[string]any{"state": *request.RepoState},
		); err != nil {
			return reconciler.Outcome{}, err
		}
		changed = true
	}

	starred, err := reconcileStar(ctx, engine, current, name, request.Star)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	changed = changed || starred

	pruned, err := legacy.Apply(
		ctx,
		engine,
		reconciler.Target{Kind: "repository auto-pruning policy", Name: name.String()},
		repoPath+"/autoprunepolicy/",
	)
	if err != nil {
		return reconciler.Outcome{}, err
	}
	changed = changed || pruned

	if request.Perms != nil {
		permsChanged, err := reconcilePermissions(ctx, engine, resolver, name, request)
		if err != nil {
			return reconciler.Outcome{}, err
		}
		changed = changed || permsChanged
	}

	return engine.Outcome(changed, nil), nil
}

func visibilityDiffers(current *resource.Object, visibility *string) bool {
	if visibility == nil || !current.Has("is_public") {
		return false
	}
	return current.Bool("is_public") != (*visibility == VisibilityPublic)
}

// stateDiffers reports whether the repository state must change. A new
// repository starts in the NORMAL state.
func stateDiffers(current *resource.Object, state string) bool {
	if current == nil {
		return state != "NORMAL"
	}
	return current.String("state") != state
}

// reconcileStar stars or unstars the repository for the authenticated user.
// Anonymous calls cannot star anything and leave the option unapplied.
func reconcileStar(ctx context.Context, engine *reconciler.Engine, current *resource.Object, name lookup.Name, star *bool) (bool, error) {
	if star == nil || !engine.Authenticated() {
		return false, nil
	}

	self := reconciler.Target{Kind: kind, Name: name.String()}
	isStarred := current.Bool("is_starred")
	if *star && !isStarred {
		changed, _, err := engine.Create(
			ctx,
			self,
			"user/starred",
			map[string]any{"namespace": name.Namespace, "repository": name.Short},
		)
		return changed, err
	}
	if !*star && isStarred {
		return engine.Delete(ctx, true, self, lookup.Path("user", "starred", name.Namespace, name.Short))
	}
	return false, nil
}

func valueOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}

func appendMode(value *bool) bool {
	return value == nil || *value
}
