package reconciler

import (
	"context"
	"net/http"
	"testing"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/resource"
	"github.com/google/go-cmp/cmp"
)

var orgTarget = Target{Kind: "organization", Name: "production"}

func TestDelete(t *testing.T) {
	t.Parallel()

	t.Run("absent_object_issues_no_call", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient()
		changed, err := NewEngine(client).Delete(context.Background(), false, orgTarget, "organization/production")
		if err != nil || changed {
			t.Fatalf("expected no change, got %t %v", changed, err)
		}
		if len(client.calls) != 0 {
			t.Fatalf("expected no calls, got %s", client.callList())
		}
	})

	t.Run("dry_run_reports_change_without_call", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient()
		changed, err := NewEngine(client, WithDryRun(true)).Delete(context.Background(), true, orgTarget, "organization/production")
		if err != nil || !changed {
			t.Fatalf("expected change, got %t %v", changed, err)
		}
		if len(client.calls) != 0 {
			t.Fatalf("expected no calls, got %s", client.callList())
		}
	})

	t.Run("success_statuses", func(t *testing.T) {
		t.Parallel()

		for _, status := range []int{http.StatusAccepted, http.StatusNoContent} {
			client := newScriptedClient().on(http.MethodDelete, "organization/production", status, nil)
			changed, err := NewEngine(client).Delete(context.Background(), true, orgTarget, "organization/production")
			if err != nil || !changed {
				t.Fatalf("status %d: expected change, got %t %v", status, changed, err)
			}
		}
	})

	t.Run("vanished_object", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient().on(http.MethodDelete, "organization/production", http.StatusNotFound, nil)
		changed, err := NewEngine(client).Delete(context.Background(), true, orgTarget, "organization/production")
		if err != nil || changed {
			t.Fatalf("expected no change, got %t %v", changed, err)
		}
	})

	t.Run("failure_names_the_object", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient().on(http.MethodDelete, "organization/production", http.StatusBadRequest, map[string]any{
			"message": "Cannot delete an organization with repositories",
		})
		_, err := NewEngine(client).Delete(context.Background(), true, orgTarget, "organization/production")
		if err == nil || err.Error() != "Unable to delete organization production: Cannot delete an organization with repositories" {
			t.Fatalf("unexpected error %v", err)
		}

		client = newScriptedClient().on(http.MethodDelete, "organization/production", http.StatusOK, nil)
		_, err = NewEngine(client).Delete(context.Background(), true, orgTarget, "organization/production")
		if err == nil || err.Error() != "Unable to delete organization production: 200" {
			t.Fatalf("unexpected error %v", err)
		}
	})
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("returns_response_body", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient().on(http.MethodPost, "organization/production/autoprunepolicy/", http.StatusCreated, map[string]any{"uuid": "1234"})
		changed, result, err := NewEngine(client).Create(context.Background(), orgTarget, "organization/production/autoprunepolicy/", map[string]any{"method": "number_of_tags", "value": 5})
		if err != nil || !changed {
			t.Fatalf("expected change, got %t %v", changed, err)
		}
		if diff := cmp.Diff(map[string]any{"uuid": "1234"}, result); diff != "" {
			t.Fatalf("unexpected result (-want +got):\n%s", diff)
		}
	})

	t.Run("dry_run", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient()
		changed, _, err := NewEngine(client, WithDryRun(true)).Create(context.Background(), orgTarget, "organization/", map[string]any{"name": "production"})
		if err != nil || !changed || len(client.calls) != 0 {
			t.Fatalf("expected dry-run change without calls, got %t %v %s", changed, err, client.callList())
		}
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient().on(http.MethodPost, "organization/", http.StatusBadRequest, map[string]any{
			"title":         "invalid_request",
			"error_message": "Organization name already taken",
		})
		_, _, err := NewEngine(client).Create(context.Background(), orgTarget, "organization/", map[string]any{"name": "production"})
		if !faults.IsCategory(err, faults.ClientError) {
			t.Fatalf("expected client error, got %v", err)
		}
		if err.Error() != "Unable to create organization production: invalid_request: Organization name already taken" {
			t.Fatalf("unexpected message %q", err.Error())
		}
	})
}

func TestNeedsUpdate(t *testing.T) {
	t.Parallel()

	current := resource.NewObject(map[string]any{
		"email":            "ops@example.com",
		"tag_expiration_s": int64(1209600),
	})

	tests := []struct {
		name     string
		current  *resource.Object
		desired  map[string]any
		want     bool
		warnings int
	}{
		{name: "empty_desired", current: current, desired: map[string]any{}, want: false},
		{name: "equal_values", current: current, desired: map[string]any{"email": "ops@example.com", "tag_expiration_s": 1209600}, want: false},
		{name: "separator_free_spelling", current: current, desired: map[string]any{"tagexpirations": 1209600}, want: false},
		{name: "different_value", current: current, desired: map[string]any{"email": "dev@example.com"}, want: true},
		{name: "absent_current", current: nil, desired: map[string]any{"email": "ops@example.com"}, want: true},
		{name: "password_forces_update", current: current, desired: map[string]any{"password": "s3cr3t"}, want: true, warnings: 1},
		{name: "suffixed_password", current: current, desired: map[string]any{"external_registry_password": "s3cr3t"}, want: true, warnings: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := NewEngine(newScriptedClient())
			got := engine.NeedsUpdate(context.Background(), tt.current, orgTarget, tt.desired)
			if got != tt.want {
				t.Fatalf("expected %t, got %t", tt.want, got)
			}
			if len(engine.Warnings()) != tt.warnings {
				t.Fatalf("expected %d warnings, got %v", tt.warnings, engine.Warnings())
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	current := resource.NewObject(map[string]any{"email": "ops@example.com"})

	t.Run("no_change_issues_no_call", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient()
		changed, _, err := NewEngine(client).Update(context.Background(), current, orgTarget, "organization/production", map[string]any{"email": "ops@example.com"})
		if err != nil || changed || len(client.calls) != 0 {
			t.Fatalf("expected no change, got %t %v %s", changed, err, client.callList())
		}
	})

	t.Run("puts_desired_fields", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient().on(http.MethodPut, "organization/production", http.StatusOK, map[string]any{"email": "dev@example.com"})
		changed, _, err := NewEngine(client).Update(context.Background(), current, orgTarget, "organization/production", map[string]any{"email": "dev@example.com"})
		if err != nil || !changed {
			t.Fatalf("expected change, got %t %v", changed, err)
		}
		if diff := cmp.Diff(map[string]any{"email": "dev@example.com"}, client.calls[0].Body); diff != "" {
			t.Fatalf("unexpected body (-want +got):\n%s", diff)
		}
	})

	t.Run("dry_run_reports_live_result", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient()
		engine := NewEngine(client, WithDryRun(true))
		changed, _, err := engine.Update(context.Background(), current, orgTarget, "organization/production", map[string]any{"email": "dev@example.com"})
		if err != nil || !changed || len(client.calls) != 0 {
			t.Fatalf("expected dry-run change, got %t %v %s", changed, err, client.callList())
		}
		changed, _, _ = engine.Update(context.Background(), current, orgTarget, "organization/production", map[string]any{"email": "ops@example.com"})
		if changed {
			t.Fatalf("expected no change in dry-run when nothing differs")
		}
	})

	t.Run("unconditional_failure", func(t *testing.T) {
		t.Parallel()

		client := newScriptedClient().on(http.MethodPut, "organization/production", http.StatusBadRequest, nil)
		_, _, err := NewEngine(client).UnconditionalUpdate(context.Background(), orgTarget, "organization/production", map[string]any{"email": "x"})
		if err == nil || err.Error() != "Unable to update organization production: 400" {
			t.Fatalf("unexpected error %v", err)
		}
	})
}

func TestOutcomeMap(t *testing.T) {
	t.Parallel()

	engine := NewEngine(newScriptedClient())
	engine.Warn(context.Background(), "first warning")
	outcome := engine.Outcome(true, map[string]any{"id": "1234"})

	want := map[string]any{
		"changed":  true,
		"id":       "1234",
		"warnings": []any{"first warning"},
	}
	if diff := cmp.Diff(want, outcome.Map()); diff != "" {
		t.Fatalf("unexpected outcome (-want +got):\n%s", diff)
	}

	skipped := engine.Skip("sync in progress").Map()
	if skipped["skipped"] != true || skipped["msg"] != "sync in progress" || skipped["changed"] != false {
		t.Fatalf("unexpected skipped outcome %#v", skipped)
	}
}
