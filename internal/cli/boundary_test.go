package cli

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
)

// Only the shared session wiring may reach the gateway implementation;
// command packages talk to the modules.
func TestCommandsDoNotImportProviderImplementations(t *testing.T) {
	t.Parallel()

	assertNoForbiddenImports(t, ".", []string{"common/session.go"}, []string{
		"github.com/crmarques/quayconf/internal/providers/",
	})
}

func TestModulesDoNotImportCLI(t *testing.T) {
	t.Parallel()

	assertNoForbiddenImports(t, filepath.Join("..", "app"), nil, []string{
		"github.com/crmarques/quayconf/internal/cli",
		"github.com/crmarques/quayconf/internal/providers/",
	})
}

func assertNoForbiddenImports(t *testing.T, root string, allowed []string, forbiddenPrefixes []string) {
	t.Helper()

	fset := token.NewFileSet()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		for _, exempt := range allowed {
			if filepath.ToSlash(path) == exempt {
				return nil
			}
		}

		file, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			return parseErr
		}

		for _, imp := range file.Imports {
			importPath := strings.Trim(imp.Path.Value, "\"")
			for _, prefix := range forbiddenPrefixes {
				if strings.HasPrefix(importPath, prefix) {
					t.Fatalf("forbidden import %q in %s", importPath, path)
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
}
