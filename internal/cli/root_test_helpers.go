package cli

import (
	"testing"

	clitestkit "github.com/crmarques/quayconf/internal/cli/testkit"
	"github.com/crmarques/quayconf/internal/testutil/fakeregistry"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

func executeForTest(deps Dependencies, stdin string, args ...string) (string, error) {
	return clitestkit.ExecuteCommandForTest(NewRootCommand(deps), stdin, args...)
}

func executeForTestWithStreams(deps Dependencies, stdin string, args ...string) (string, string, error) {
	return clitestkit.ExecuteCommandForTestWithStreams(NewRootCommand(deps), stdin, args...)
}

// registryDependencies points the CLI at server through the environment
// lookuper, so tests never read the real process environment.
func registryDependencies(t *testing.T, server *fakeregistry.Server) Dependencies {
	t.Helper()

	return Dependencies{
		Lookuper: envconfig.MapLookuper(map[string]string{
			"QUAY_HOST":  server.URL,
			"QUAY_TOKEN": server.Token,
		}),
	}
}

func registeredPaths(command *cobra.Command, prefix []string) [][]string {
	return clitestkit.RegisteredPaths(command, prefix)
}

func joinPath(path []string) string {
	return clitestkit.JoinPath(path)
}

func commandByPath(root *cobra.Command, path ...string) *cobra.Command {
	command := root
	for _, name := range path {
		found := false
		for _, child := range command.Commands() {
			if child.Name() != name {
				continue
			}
			command = child
			found = true
			break
		}
		if !found {
			return nil
		}
	}
	return command
}
