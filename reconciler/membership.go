package reconciler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/crmarques/quayconf/faults"
)

// Pair is one member of a collection: a team and its role, a user and its
// role, an issuer and a subject.
type Pair struct {
	Name  string
	Value string
}

// MembershipDiff lists the pairs to add and to remove. The two lists never
// share a pair.
type MembershipDiff struct {
	ToAdd    []Pair
	ToRemove []Pair
}

func (d MembershipDiff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// DiffMembership compares two pair sets. In append mode nothing is removed.
// Both lists are sorted so that calls are issued in a stable order.
func DiffMembership(desired []Pair, observed []Pair, appendOnly bool) MembershipDiff {
	desiredSet := pairSet(desired)
	observedSet := pairSet(observed)

	diff := MembershipDiff{}
	for pair := range desiredSet {
		if _, found := observedSet[pair]; !found {
			diff.ToAdd = append(diff.ToAdd, pair)
		}
	}
	if !appendOnly {
		for pair := range observedSet {
			if _, found := desiredSet[pair]; !found {
				diff.ToRemove = append(diff.ToRemove, pair)
			}
		}
	}
	sortPairs(diff.ToAdd)
	sortPairs(diff.ToRemove)
	return diff
}

// UnionPairs returns the sorted union of both sets.
func UnionPairs(left []Pair, right []Pair) []Pair {
	union := pairSet(left)
	for _, pair := range right {
		union[pair] = struct{}{}
	}
	return sortedPairs(union)
}

// UniquePairs returns the sorted set of pairs.
func UniquePairs(pairs []Pair) []Pair {
	return sortedPairs(pairSet(pairs))
}

// MembershipPlan drives ReconcileMembership. Remove and Add perform one
// mutation each through the engine primitives.
type MembershipPlan struct {
	Desired  []Pair
	Observed []Pair
	Append   bool
	// Subject completes "At least one <Subject> does not exist" when some
	// names to add are unknown to the registry.
	Subject string
	Exists  func(ctx context.Context, name string) (bool, error)
	Remove  func(ctx context.Context, pair Pair) error
	Add     func(ctx context.Context, pair Pair) error
}

// CheckMembership computes the diff of the plan and verifies that every name
// to add exists. It never mutates, so callers that reconcile several plans
// check all of them before applying any.
func (e *Engine) CheckMembership(ctx context.Context, plan MembershipPlan) (MembershipDiff, error) {
	diff := DiffMembership(plan.Desired, plan.Observed, plan.Append)
	if len(diff.ToAdd) == 0 || plan.Exists == nil {
		return diff, nil
	}

	missing := make([]string, 0)
	checked := make(map[string]struct{}, len(diff.ToAdd))
	for _, pair := range diff.ToAdd {
		if _, done := checked[pair.Name]; done {
			continue
		}
		checked[pair.Name] = struct{}{}

		exists, err := plan.Exists(ctx, pair.Name)
		if err != nil {
			return diff, err
		}
		if !exists {
			missing = append(missing, pair.Name)
		}
	}
	if len(missing) > 0 {
		return diff, faults.Validation(
			fmt.Sprintf("At least one %s does not exist: %s.", plan.Subject, strings.Join(missing, ", ")),
			nil,
		)
	}
	return diff, nil
}

// ApplyMembership issues the removals, then the additions, of a checked diff.
func (e *Engine) ApplyMembership(ctx context.Context, plan MembershipPlan, diff MembershipDiff) (bool, error) {
	if diff.Empty() {
		return false, nil
	}
	for _, pair := range diff.ToRemove {
		if err := plan.Remove(ctx, pair); err != nil {
			return false, err
		}
	}
	for _, pair := range diff.ToAdd {
		if err := plan.Add(ctx, pair); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ReconcileMembership checks then applies a single plan. A missing name fails
// the whole plan before any mutation.
func (e *Engine) ReconcileMembership(ctx context.Context, plan MembershipPlan) (bool, MembershipDiff, error) {
	diff, err := e.CheckMembership(ctx, plan)
	if err != nil {
		return false, diff, err
	}
	changed, err := e.ApplyMembership(ctx, plan, diff)
	return changed, diff, err
}

func pairSet(pairs []Pair) map[Pair]struct{} {
	set := make(map[Pair]struct{}, len(pairs))
	for _, pair := range pairs {
		set[pair] = struct{}{}
	}
	return set
}

func sortedPairs(set map[Pair]struct{}) []Pair {
	pairs := make([]Pair, 0, len(set))
	for pair := range set {
		pairs = append(pairs, pair)
	}
	sortPairs(pairs)
	return pairs
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Name != pairs[j].Name {
			return pairs[i].Name < pairs[j].Name
		}
		return pairs[i].Value < pairs[j].Value
	})
}
