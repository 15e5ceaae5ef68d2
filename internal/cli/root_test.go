package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crmarques/quayconf/faults"
	"github.com/crmarques/quayconf/internal/testutil/fakeregistry"
	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
)

func TestRequiredCommandPathsRegistered(t *testing.T) {
	t.Parallel()

	requiredPaths := []string{
		"organization",
		"repository",
		"mirror",
		"robot",
		"prune",
		"prune organization",
		"prune repository",
		"proxy-cache",
		"info",
		"info config",
		"info pull-statistics",
		"version",
	}

	registered := map[string]bool{}
	for _, path := range registeredPaths(NewRootCommand(Dependencies{}), nil) {
		registered[joinPath(path)] = true
	}
	for _, path := range requiredPaths {
		if !registered[path] {
			t.Fatalf("expected command path %q to be registered", path)
		}
	}
}

func TestOrganizationCommandConverges(t *testing.T) {
	t.Parallel()

	server := fakeregistry.New(t, "secret")
	deps := registryDependencies(t, server)

	output, err := executeForTest(deps, "", "organization", "production", "--email", "ops@example.com", "-o", "json")
	if err != nil {
		t.Fatalf("organization returned error: %v", err)
	}
	result := decodeResult(t, output)
	if result["changed"] != true || result["name"] != "production" {
		t.Fatalf("unexpected result %#v", result)
	}
	if organization := server.Organization("production"); organization == nil || organization.Email != "ops@example.com" {
		t.Fatalf("expected organization to be created with email, got %#v", organization)
	}

	server.ResetRequests()
	output, err = executeForTest(deps, "", "organization", "production", "--email", "ops@example.com", "-o", "json")
	if err != nil {
		t.Fatalf("second organization run returned error: %v", err)
	}
	if result := decodeResult(t, output); result["changed"] != false {
		t.Fatalf("expected unchanged second run, got %#v", result)
	}
	if mutations := server.Mutations(); len(mutations) != 0 {
		t.Fatalf("expected no mutation on second run, got %v", mutations)
	}
}

func TestCheckModeIssuesNoMutation(t *testing.T) {
	t.Parallel()

	server := fakeregistry.New(t, "secret")
	server.AddOrganization("production", "developers")
	deps := registryDependencies(t, server)

	output, err := executeForTest(deps, "", "--check", "repository", "production/api", "--visibility", "public", "--perm", "team:developers:write", "-o", "json")
	if err != nil {
		t.Fatalf("repository returned error: %v", err)
	}
	if result := decodeResult(t, output); result["changed"] != true {
		t.Fatalf("expected a reported change, got %#v", result)
	}
	if mutations := server.Mutations(); len(mutations) != 0 {
		t.Fatalf("expected no mutation in check mode, got %v", mutations)
	}
	if server.Repository("production/api") != nil {
		t.Fatalf("expected repository to stay absent")
	}
}

func TestPayloadFileWithFlagOverride(t *testing.T) {
	t.Parallel()

	server := fakeregistry.New(t, "secret")
	server.AddOrganization("production")
	deps := registryDependencies(t, server)

	payload := filepath.Join(t.TempDir(), "repository.yaml")
	content := "name: production/api\nvisibility: public\ndescription: from file\n"
	if err := os.WriteFile(payload, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if _, err := executeForTest(deps, "", "repository", "-f", payload, "--description", "from flag"); err != nil {
		t.Fatalf("repository returned error: %v", err)
	}

	repository := server.Repository("production/api")
	if repository == nil {
		t.Fatalf("expected repository to be created")
	}
	if !repository.Public || repository.Description != "from flag" {
		t.Fatalf("unexpected repository %#v", repository)
	}
}

func TestPayloadFromStdin(t *testing.T) {
	t.Parallel()

	server := fakeregistry.New(t, "secret")
	server.AddOrganization("production")
	deps := registryDependencies(t, server)

	stdin := `{"namespace":"production","method":"tags","value":"20"}`
	output, err := executeForTest(deps, stdin, "prune", "organization", "-f", "-", "-i", "json", "-q", ".changed")
	if err != nil {
		t.Fatalf("prune organization returned error: %v", err)
	}
	if output != "true\n" {
		t.Fatalf("unexpected output %q", output)
	}
	if policies := server.Organization("production").Policies; len(policies) != 1 {
		t.Fatalf("expected one policy, got %v", policies)
	}
}

func TestQueryOutput(t *testing.T) {
	t.Parallel()

	server := fakeregistry.New(t, "secret")
	deps := registryDependencies(t, server)

	output, err := executeForTest(deps, "", "-q", ".name", "organization", "production")
	if err != nil {
		t.Fatalf("organization returned error: %v", err)
	}
	if output != "production\n" {
		t.Fatalf("unexpected output %q", output)
	}

	if _, err := executeForTest(deps, "", "-q", ".[", "organization", "production"); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error for invalid query, got %v", err)
	}
}

func TestMissingNamePrintsUsage(t *testing.T) {
	t.Parallel()

	server := fakeregistry.New(t, "secret")
	deps := registryDependencies(t, server)

	_, stderr, err := executeForTestWithStreams(deps, "", "organization")
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ExitCodeForError(err) != 2 {
		t.Fatalf("expected exit code 2, got %d", ExitCodeForError(err))
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Fatalf("expected usage on stderr, got %q", stderr)
	}
	if requests := server.Requests(); len(requests) != 0 {
		t.Fatalf("expected no request, got %v", requests)
	}
}

func TestInvalidOptionsFail(t *testing.T) {
	t.Parallel()

	server := fakeregistry.New(t, "secret")
	deps := registryDependencies(t, server)

	testCases := []struct {
		name string
		args []string
	}{
		{name: "output format", args: []string{"-o", "xml", "organization", "production"}},
		{name: "log format", args: []string{"--log-format", "xml", "organization", "production"}},
		{name: "permission syntax", args: []string{"repository", "production/api", "--perm", "developers"}},
		{name: "federation syntax", args: []string{"robot", "production+ci", "--federation", "issuer"}},
		{name: "payload format", args: []string{"organization", "production", "-f", "-", "-i", "toml"}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := executeForTest(deps, "name: production\n", testCase.args...)
			if !faults.IsCategory(err, faults.ValidationError) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if mutations := server.Mutations(); len(mutations) != 0 {
		t.Fatalf("expected no mutation, got %v", mutations)
	}
}

func TestRejectedTokenMapsToExitCode(t *testing.T) {
	t.Parallel()

	server := fakeregistry.New(t, "secret")
	deps := Dependencies{
		Lookuper: envconfig.MapLookuper(map[string]string{
			"QUAY_HOST":  server.URL,
			"QUAY_TOKEN": "stale",
		}),
	}

	_, err := executeForTest(deps, "", "info", "config")
	if !faults.IsCategory(err, faults.UnauthenticatedError) {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
	if ExitCodeForError(err) != 4 {
		t.Fatalf("expected exit code 4, got %d", ExitCodeForError(err))
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Parallel()

	server := fakeregistry.New(t, "secret")
	deps := Dependencies{
		Lookuper: envconfig.MapLookuper(map[string]string{
			"QUAY_HOST":  "http://127.0.0.1:1",
			"QUAY_TOKEN": "stale",
		}),
	}

	output, err := executeForTest(deps, "", "--host", server.URL, "--token", "secret", "info", "config", "-q", ".config.SERVER_HOSTNAME")
	if err != nil {
		t.Fatalf("info config returned error: %v", err)
	}
	if output != "quay.example.com\n" {
		t.Fatalf("unexpected output %q", output)
	}
}

func TestMetricsFileWritten(t *testing.T) {
	t.Parallel()

	server := fakeregistry.New(t, "secret")
	deps := registryDependencies(t, server)
	path := filepath.Join(t.TempDir(), "quayconf.prom")

	if _, err := executeForTest(deps, "", "--metrics-file", path, "organization", "production"); err != nil {
		t.Fatalf("organization returned error: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected metrics file: %v", err)
	}
	for _, metric := range []string{"quayconf_api_requests_total", "quayconf_mutations_total"} {
		if !strings.Contains(string(content), metric) {
			t.Fatalf("expected %s in metrics file:\n%s", metric, content)
		}
	}
}

func TestVersionOutput(t *testing.T) {
	t.Parallel()

	output, err := executeForTest(Dependencies{}, "", "version", "-o", "json")
	if err != nil {
		t.Fatalf("version returned error: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("expected json output, got %q: %v", output, err)
	}
	want := map[string]string{"version": "dev", "commit": "unknown", "build_date": "unknown"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected version (-want +got):\n%s", diff)
	}
}

func decodeResult(t *testing.T, output string) map[string]any {
	t.Helper()

	var result map[string]any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("expected json output, got %q: %v", output, err)
	}
	return result
}
