package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const testForbiddenImport = "some/forbidden/package"

type recordingFatal struct {
	msg string
}

func (r *recordingFatal) Fatalf(format string, args ...any) {
	r.msg = fmt.Sprintf(format, args...)
}

func writeGoFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDomainImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"supplywatch/pkg/domain", true},
		{"example.com/mod/pkg/domain@v1", true},
		{"example.com/mod/pkg/notdomain", false},
		{"example.com/pkg/domain/subpackage", false},
		{"example.com/pkg/domainutil", false},
		{"", false},
	}
	for _, c := range cases {
		if got := DomainImportForbidden(c.in); got != c.want {
			t.Errorf("DomainImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"supplywatch/internal/core", true},
		{"example.com/some/internal/deep/path", true},
		{"example.com/internal", false},
		{"notinternal", false},
		{"supplywatch/pkg/domain", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Errorf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestPersistenceImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"supplywatch/internal/infra/persistence/file", true},
		{"supplywatch/internal/infra/persistence/postgres/testutil", true},
		{"supplywatch/internal/infra/persistence", true},
		{"supplywatch/internal/core", false},
		{"supplywatch/internal/infra/persistencex", false},
	}
	for _, c := range cases {
		if got := PersistenceImportForbidden(c.in); got != c.want {
			t.Errorf("PersistenceImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAssertNoDirectImportsIgnoresTestsAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "main.go", "package tmp\nimport (\n\t\"fmt\"\n\talias \"context\"\n\t. \"io\"\n)\nfunc X() { fmt.Println(1) }\n")
	writeGoFile(t, dir, "main_test.go", "package tmp\nimport \""+testForbiddenImport+"\"\n")
	writeGoFile(t, dir, "readme.txt", "import \""+testForbiddenImport+"\"")
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeGoFile(t, sub, "sub.go", "package sub\nimport \""+testForbiddenImport+"\"\n")

	AssertNoDirectImports(t, dir, func(ip string) bool { return ip == testForbiddenImport }, "only package sources count")
}

func TestDirectImportViolationsReported(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "bad.go", "package tmp\nimport \""+testForbiddenImport+"\"\n")

	viols, err := directImportViolations(dir, func(ip string) bool { return ip == testForbiddenImport })
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != testForbiddenImport+" (in bad.go)" {
		t.Fatalf("unexpected violations: %v", viols)
	}

	rec := &recordingFatal{}
	failIfDirectViolations(rec, "boundary", viols)
	if !strings.Contains(rec.msg, "boundary") || !strings.Contains(rec.msg, "bad.go") {
		t.Fatalf("unexpected failure message %q", rec.msg)
	}
}

func TestDirectImportViolationsErrors(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), func(string) bool { return false }); err == nil {
		t.Fatalf("expected error for missing directory")
	}
	dir := t.TempDir()
	writeGoFile(t, dir, "broken.go", "package tmp\nimport (\n")
	if _, err := directImportViolations(dir, func(string) bool { return false }); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTransitiveDependencyViolationsUsesLoader(t *testing.T) {
	orig := loadPackages
	t.Cleanup(func() { loadPackages = orig })

	leaf := &packages.Package{PkgPath: "example.com/forbidden"}
	mid := &packages.Package{PkgPath: "example.com/mid", Imports: map[string]*packages.Package{leaf.PkgPath: leaf}}
	root := &packages.Package{PkgPath: "example.com/root", Imports: map[string]*packages.Package{mid.PkgPath: mid}}
	loadPackages = func(string) ([]*packages.Package, error) { return []*packages.Package{root}, nil }

	viols, err := transitiveDependencyViolations("./...", func(p string) bool { return strings.HasSuffix(p, "forbidden") })
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(viols) != 1 || viols[0] != leaf.PkgPath {
		t.Fatalf("expected leaf violation, got %v", viols)
	}

	loadPackages = func(string) ([]*packages.Package, error) { return nil, errors.New("boom") }
	if _, err := transitiveDependencyViolations("./...", func(string) bool { return false }); err == nil {
		t.Fatalf("expected loader error")
	}

	broken := &packages.Package{PkgPath: "example.com/broken", Errors: []packages.Error{{Msg: "no go files"}}}
	loadPackages = func(string) ([]*packages.Package, error) { return []*packages.Package{broken}, nil }
	if _, err := transitiveDependencyViolations("./...", func(string) bool { return false }); err == nil {
		t.Fatalf("expected package error to surface")
	}
}

func TestFailIfTransitiveViolations(t *testing.T) {
	rec := &recordingFatal{}
	failIfTransitiveViolations(rec, "none", nil)
	if rec.msg != "" {
		t.Fatalf("unexpected failure %q", rec.msg)
	}
	failIfTransitiveViolations(rec, "layering", []string{"a/internal/b"})
	if !strings.Contains(rec.msg, "layering") || !strings.Contains(rec.msg, "a/internal/b") {
		t.Fatalf("unexpected failure message %q", rec.msg)
	}
}

func TestAssertNoTransitiveDependency(t *testing.T) {
	AssertNoTransitiveDependency(t, ".", func(path string) bool {
		return path == "github.com/some/nonexistent/package"
	}, "should not depend on nonexistent package")
}
