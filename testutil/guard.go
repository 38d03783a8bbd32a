// Package testutil provides reusable testing helpers for enforcing layering
// rules between the domain, core, adapter and infra packages.
package testutil

import (
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
)

// ModulePath is the import path prefix of this module.
const ModulePath = "humans"

// AssertNoTransitiveDependency shells out to `go list -deps` with the provided pattern
// (e.g. ./... or .) and fails the test if any dependency path satisfies the forbidden predicate.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, out, err := transitiveDependencyViolations(pattern, forbidden)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, string(out))
	}
	failIfViolations(t, "transitive dependency", reason, viols)
}

// AssertNoDirectImports scans the non-test .go files of dir (not its
// subdirectories) and fails if any import path satisfies forbidden.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "direct imports", reason, viols)
}

// AssertNoImportsInTree walks root recursively, skipping the directories in
// allowed (relative to root) and any directory starting with "_" or ".", and
// fails if a non-test file imports a forbidden path.
func AssertNoImportsInTree(t testing.TB, root string, allowed []string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := treeImportViolations(root, allowed, forbidden)
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	failIfViolations(t, "imports", reason, viols)
}

// InternalImportForbidden matches any import path under an internal/ directory.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/") || strings.HasSuffix(path, "/internal")
}

// PrefixForbidden returns a predicate matching import paths equal to, or
// nested under, any of prefixes.
func PrefixForbidden(prefixes ...string) func(string) bool {
	return func(path string) bool {
		for _, p := range prefixes {
			if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
				return true
			}
		}
		return false
	}
}

var goListDeps = func(pattern string) ([]byte, error) {
	cmd := exec.Command("go", "list", "-deps", pattern)
	return cmd.CombinedOutput()
}

func transitiveDependencyViolations(pattern string, forbidden func(path string) bool) ([]string, []byte, error) {
	out, err := goListDeps(pattern)
	if err != nil {
		return nil, out, err
	}
	var viols []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && forbidden(line) {
			viols = append(viols, line)
		}
	}
	return viols, out, nil
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		if e.IsDir() || !isSourceFile(e.Name()) {
			continue
		}
		found, err := fileViolations(fset, filepath.Join(dir, e.Name()), forbidden)
		if err != nil {
			return nil, err
		}
		for _, ip := range found {
			viols = append(viols, ip+" (in "+e.Name()+")")
		}
	}
	return viols, nil
}

func treeImportViolations(root string, allowed []string, forbidden func(importPath string) bool) ([]string, error) {
	skip := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		skip[filepath.Clean(filepath.Join(root, a))] = true
	}
	fset := token.NewFileSet()
	var viols []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (skip[filepath.Clean(path)] || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSourceFile(d.Name()) {
			return nil
		}
		found, err := fileViolations(fset, path, forbidden)
		if err != nil {
			return err
		}
		for _, ip := range found {
			viols = append(viols, ip+" (in "+path+")")
		}
		return nil
	})
	sort.Strings(viols)
	return viols, err
}

func fileViolations(fset *token.FileSet, path string, forbidden func(string) bool) ([]string, error) {
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}
	var found []string
	for _, imp := range file.Imports {
		ip, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return nil, err
		}
		if forbidden(ip) {
			found = append(found, ip)
		}
	}
	return found, nil
}

func isSourceFile(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, kind, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden %s detected (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
	}
}
