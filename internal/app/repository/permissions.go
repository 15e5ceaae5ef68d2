package repository

import (
	"context"
	"sort"

	"github.com/crmarques/quayconf/internal/app/lookup"
	"github.com/crmarques/quayconf/reconciler"
)

type permissionKind struct {
	pathSegment string
	targetKind  string
	subject     string
	exists      func(ctx context.Context, name string) (bool, error)
}

// reconcilePermissions converges the team permissions, then the user
// permissions. Both collections are diffed and every new team or account is
// verified before the first permission changes.
func reconcilePermissions(
	ctx context.Context,
	engine *reconciler.Engine,
	resolver *lookup.Resolver,
	name lookup.Name,
	request Request,
) (bool, error) {
	kinds := []permissionKind{
		{
			pathSegment: PermissionTypeTeam,
			targetKind:  "team repository permission",
			subject:     "team to associate to the repository",
			exists: func(ctx context.Context, team string) (bool, error) {
				return resolver.TeamExists(ctx, name.Namespace, team)
			},
		},
		{
			pathSegment: PermissionTypeUser,
			targetKind:  "user repository permission",
			subject:     "user to add as team member",
			exists:      resolver.AccountExists,
		},
	}

	plans := make([]reconciler.MembershipPlan, 0, len(kinds))
	diffs := make([]reconciler.MembershipDiff, 0, len(kinds))
	for _, permKind := range kinds {
		collection := lookup.Path("repository", name.Namespace, name.Short, "permissions", permKind.pathSegment) + "/"
		current, err := engine.Fetch(ctx, collection)
		if err != nil {
			return false, err
		}

		plan := permissionPlan(engine, name, permKind)
		plan.Desired = desiredPermissions(request.Perms, permKind.pathSegment)
		plan.Observed = observedPermissions(current.Map("permissions"))
		plan.Append = appendMode(request.Append)

		diff, err := engine.CheckMembership(ctx, plan)
		if err != nil {
			return false, err
		}
		plans = append(plans, plan)
		diffs = append(diffs, diff)
	}

	changed := false
	for i, plan := range plans {
		kindChanged, err := engine.ApplyMembership(ctx, plan, diffs[i])
		if err != nil {
			return false, err
		}
		changed = changed || kindChanged
	}
	return changed, nil
}

func permissionPlan(engine *reconciler.Engine, name lookup.Name, permKind permissionKind) reconciler.MembershipPlan {
	permissionPath := func(member string) string {
		return lookup.Path("repository", name.Namespace, name.Short, "permissions", permKind.pathSegment, member)
	}
	return reconciler.MembershipPlan{
		Subject: permKind.subject,
		Exists:  permKind.exists,
		Remove: func(ctx context.Context, pair reconciler.Pair) error {
			_, err := engine.Delete(ctx, true, reconciler.Target{Kind: permKind.targetKind, Name: pair.Name}, permissionPath(pair.Name))
			return err
		},
		Add: func(ctx context.Context, pair reconciler.Pair) error {
			_, _, err := engine.UnconditionalUpdate(
				ctx,
				reconciler.Target{Kind: permKind.targetKind, Name: pair.Name},
				permissionPath(pair.Name),
				map[string]any{"role": pair.Value},
			)
			return err
		},
	}
}

func desiredPermissions(perms []Permission, permType string) []reconciler.Pair {
	pairs := make([]reconciler.Pair, 0, len(perms))
	for _, perm := range perms {
		if effectiveType(perm) != permType {
			continue
		}
		role := perm.Role
		if role == "" {
			role = "read"
		}
		pairs = append(pairs, reconciler.Pair{Name: perm.Name, Value: role})
	}
	return pairs
}

// observedPermissions reads the "permissions" map of a permission listing,
// keyed by team or user name.
func observedPermissions(permissions map[string]any) []reconciler.Pair {
	keys := make([]string, 0, len(permissions))
	for key := range permissions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]reconciler.Pair, 0, len(keys))
	for _, key := range keys {
		entry, ok := permissions[key].(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			name = key
		}
		role, _ := entry["role"].(string)
		pairs = append(pairs, reconciler.Pair{Name: name, Value: role})
	}
	return pairs
}

func effectiveType(perm Permission) string {
	if perm.Type == "" {
		return PermissionTypeUser
	}
	return perm.Type
}
