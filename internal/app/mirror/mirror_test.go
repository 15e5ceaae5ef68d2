package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/internal/testutil/fakeregistry"
	"github.com/crmarques/quayconf/reconciler"
	"github.com/google/go-cmp/cmp"
)

func stringPtr(value string) *string {
	return &value
}

func boolPtr(value bool) *bool {
	return &value
}

func newMirrorServer(t *testing.T) (*fakeregistry.Server, *fakeregistry.Repository) {
	t.Helper()

	server := fakeregistry.New(t, "secret")
	server.AddOrganization("production")
	repository := server.AddRepository("production/ubi9")
	repository.State = "MIRROR"
	return server, repository
}

func TestExecuteCreate(t *testing.T) {
	t.Parallel()

	server, repository := newMirrorServer(t)
	request := Request{
		Name:              "production/ubi9",
		IsEnabled:         boolPtr(true),
		RobotUsername:     stringPtr("production+mirrorbot"),
		ExternalReference: stringPtr("registry.access.redhat.com/ubi9/ubi"),
		ImageTags:         []string{"latest", "9.*"},
		SyncStartDate:     stringPtr("2025-01-01T12:00:00Z"),
		SyncInterval:      stringPtr("1d"),
		ForceSync:         true,
	}

	outcome, err := Execute(context.Background(), server.Engine(t), request)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !outcome.Changed {
		t.Fatalf("expected a created mirror")
	}
	want := []string{
		"POST repository/production/ubi9/mirror",
		"POST repository/production/ubi9/mirror/sync-now",
	}
	if diff := cmp.Diff(want, server.Mutations()); diff != "" {
		t.Fatalf("unexpected mutations (-want +got):\n%s", diff)
	}
	if repository.Mirror["sync_status"] != "SYNC_NOW" {
		t.Fatalf("expected a requested synchronization, got %#v", repository.Mirror)
	}

	server.ResetRequests()
	second, err := Execute(context.Background(), server.Engine(t), request)
	if err != nil {
		t.Fatalf("second Execute returned error: %v", err)
	}
	if second.Changed || len(server.Mutations()) != 0 {
		t.Fatalf("expected no change while SYNC_NOW is pending, got %#v and %v", second, server.Mutations())
	}
}

func TestCreatePayloadDefaults(t *testing.T) {
	previous := now
	now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600)) }
	t.Cleanup(func() { now = previous })

	payload := createPayload(Request{
		RobotUsername:     stringPtr("production+mirrorbot"),
		ExternalReference: stringPtr("quay.io/prometheus/node-exporter"),
		ImageTags:         []string{"v1.*"},
	}, defaultSyncInterval)

	want := map[string]any{
		"is_enabled":                 false,
		"robot_username":             "production+mirrorbot",
		"external_reference":         "quay.io/prometheus/node-exporter",
		"root_rule":                  map[string]any{"rule_kind": "tag_glob_csv", "rule_value": []string{"v1.*"}},
		"sync_interval":              int64(86400),
		"sync_start_date":            "2025-03-04T04:06:07Z",
		"external_registry_username": nil,
		"external_registry_config": map[string]any{
			"verify_tls": true,
			"proxy": map[string]any{
				"http_proxy":  nil,
				"https_proxy": nil,
				"no_proxy":    nil,
			},
			"unsigned_images": false,
		},
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("unexpected payload (-want +got):\n%s", diff)
	}
}

func TestExecuteUpdate(t *testing.T) {
	t.Parallel()

	t.Run("merges_registry_config", func(t *testing.T) {
		t.Parallel()

		server, repository := newMirrorServer(t)
		repository.Mirror = map[string]any{
			"is_enabled":         true,
			"robot_username":     "production+mirrorbot",
			"external_reference": "quay.io/prometheus/node-exporter",
			"sync_status":        "SUCCESS",
			"sync_interval":      86400,
			"external_registry_config": map[string]any{
				"verify_tls":      true,
				"unsigned_images": false,
				"proxy":           map[string]any{"http_proxy": "http://proxy:3128", "https_proxy": nil, "no_proxy": nil},
			},
		}

		outcome, err := Execute(context.Background(), server.Engine(t), Request{
			Name:      "production/ubi9",
			VerifyTLS: boolPtr(false),
			NoProxy:   stringPtr("localhost"),
		})
		if err != nil || !outcome.Changed {
			t.Fatalf("expected an update, got %#v, %v", outcome, err)
		}
		config := repository.Mirror["external_registry_config"].(map[string]any)
		proxy := config["proxy"].(map[string]any)
		if config["verify_tls"] != false || proxy["http_proxy"] != "http://proxy:3128" || proxy["no_proxy"] != "localhost" {
			t.Fatalf("unexpected registry configuration %#v", config)
		}

		server.ResetRequests()
		outcome, err = Execute(context.Background(), server.Engine(t), Request{Name: "production/ubi9", IsEnabled: boolPtr(true)})
		if err != nil || outcome.Changed || len(server.Mutations()) != 0 {
			t.Fatalf("expected no change, got %#v, %v, %v", outcome, err, server.Mutations())
		}
	})

	t.Run("skipped_while_syncing", func(t *testing.T) {
		t.Parallel()

		server, repository := newMirrorServer(t)
		repository.Mirror = map[string]any{"is_enabled": true, "sync_status": "SYNCING"}

		outcome, err := Execute(context.Background(), server.Engine(t), Request{
			Name:      "production/ubi9",
			IsEnabled: boolPtr(false),
			ForceSync: true,
		})
		if err != nil {
			t.Fatalf("Execute returned error: %v", err)
		}
		if !outcome.Skipped || outcome.Changed || len(server.Mutations()) != 0 {
			t.Fatalf("expected a skipped outcome, got %#v", outcome)
		}
	})

	t.Run("password_always_updates", func(t *testing.T) {
		t.Parallel()

		server, repository := newMirrorServer(t)
		repository.Mirror = map[string]any{"is_enabled": true, "sync_status": "NEVER_RUN"}

		outcome, err := Execute(context.Background(), server.Engine(t), Request{
			Name:                     "production/ubi9",
			ExternalRegistryPassword: stringPtr("s3cr3t"),
		})
		if err != nil || !outcome.Changed || len(outcome.Warnings) != 1 {
			t.Fatalf("expected an update with a warning, got %#v, %v", outcome, err)
		}
	})
}

func TestExecuteValidation(t *testing.T) {
	t.Parallel()

	server, _ := newMirrorServer(t)

	_, err := Execute(context.Background(), server.Engine(t), Request{Name: "production/ubi9", IsEnabled: boolPtr(true)})
	if !faults.IsCategory(err, faults.ValidationError) || err.Error() != "missing required arguments: external_reference, robot_username, image_tags" {
		t.Fatalf("expected missing arguments error, got %v", err)
	}

	invalid := []Request{
		{Name: "production/ubi9", ExternalReference: stringPtr("ubuntu")},
		{Name: "production/ubi9", ExternalReference: stringPtr("quay.io/org/repo:latest")},
		{Name: "production/ubi9", SyncInterval: stringPtr("daily")},
		{Name: "production/ubi9", RobotUsername: stringPtr("jdoe")},
	}
	for _, request := range invalid {
		if _, err := Execute(context.Background(), server.Engine(t), request); !faults.IsCategory(err, faults.ValidationError) {
			t.Fatalf("expected validation error for %#v, got %v", request, err)
		}
	}
}

func TestExecuteDryRun(t *testing.T) {
	t.Parallel()

	server, _ := newMirrorServer(t)
	outcome, err := Execute(context.Background(), server.Engine(t, reconciler.WithDryRun(true)), Request{
		Name:              "production/ubi9",
		RobotUsername:     stringPtr("production+mirrorbot"),
		ExternalReference: stringPtr("quay.io/org/repo"),
		ImageTags:         []string{"*"},
		ForceSync:         true,
	})
	if err != nil || !outcome.Changed || len(server.Mutations()) != 0 {
		t.Fatalf("expected a reported change without mutation, got %#v, %v, %v", outcome, err, server.Mutations())
	}
}
