package pathsec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newValidator(t *testing.T, root string, patterns ...string) *Validator {
	t.Helper()
	v, err := New(root, patterns)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestResolveInsideRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "file.py"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	v := newValidator(t, root)
	rt, err := v.Resolve(filepath.Join(root, "sub", "file.py"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !rt.Exists {
		t.Fatalf("expected target to exist")
	}
	if rt.Path != filepath.Join(v.Root(), "sub", "file.py") {
		t.Fatalf("unexpected canonical path %q", rt.Path)
	}
}

func TestResolveRelativePath(t *testing.T) {
	root := t.TempDir()
	v := newValidator(t, root)
	rt, err := v.Resolve("pkg/new/file.go")
	if err != nil {
		t.Fatalf("Resolve relative: %v", err)
	}
	if rt.Exists {
		t.Fatalf("expected non-existent target")
	}
	if rt.Path != filepath.Join(v.Root(), "pkg", "new", "file.go") {
		t.Fatalf("unexpected canonical path %q", rt.Path)
	}
}

func TestResolveDotDotEscape(t *testing.T) {
	root := t.TempDir()
	v := newValidator(t, root)
	_, err := v.Resolve(filepath.Join(root, "a", "..", "..", "etc", "passwd"))
	var se *SecurityError
	if !errors.As(err, &se) {
		t.Fatalf("expected SecurityError, got %v", err)
	}
}

func TestResolveSiblingPrefixNotContained(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "workspace")
	evil := filepath.Join(base, "workspace-evil")
	for _, d := range []string{root, evil} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	v := newValidator(t, root)
	_, err := v.Resolve(filepath.Join(evil, "file.txt"))
	var se *SecurityError
	if !errors.As(err, &se) {
		t.Fatalf("expected SecurityError for sibling dir, got %v", err)
	}
}

func TestResolveSymlinkEscape(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "workspace")
	outside := filepath.Join(base, "outside")
	for _, d := range []string{root, outside} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	v := newValidator(t, root)

	// Existing file behind the link.
	if err := os.WriteFile(filepath.Join(outside, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	var se *SecurityError
	if _, err := v.Resolve(filepath.Join(root, "link", "f.txt")); !errors.As(err, &se) {
		t.Fatalf("expected SecurityError for symlinked file, got %v", err)
	}

	// Non-existent file whose ancestor is a symlink out of the root.
	if _, err := v.Resolve(filepath.Join(root, "link", "new.txt")); !errors.As(err, &se) {
		t.Fatalf("expected SecurityError for symlinked ancestor, got %v", err)
	}
}

func TestResolveDanglingSymlink(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "workspace")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	// Link inside the root whose target outside it does not exist yet.
	// Writing through it would create the target, so it is an escape even
	// though nothing resolves today.
	link := filepath.Join(root, "link.sh")
	if err := os.Symlink(filepath.Join(base, "outside", "evil.sh"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	v := newValidator(t, root)
	var se *SecurityError
	if _, err := v.Resolve("link.sh"); !errors.As(err, &se) {
		t.Fatalf("expected SecurityError for dangling symlink, got %v", err)
	}

	// Same for a dangling symlinked directory in the middle of the path.
	if err := os.Symlink(filepath.Join(base, "gone"), filepath.Join(root, "dir")); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Resolve(filepath.Join("dir", "new.txt")); !errors.As(err, &se) {
		t.Fatalf("expected SecurityError for dangling symlinked dir, got %v", err)
	}

	// A dangling symlink pointing back inside the root is still rejected:
	// the write would land wherever the link points, not at the named path.
	if err := os.Symlink(filepath.Join(root, "missing.txt"), filepath.Join(root, "inlink.txt")); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Resolve("inlink.txt"); !errors.As(err, &se) {
		t.Fatalf("expected SecurityError for dangling in-root symlink, got %v", err)
	}
}

func TestResolveProtectedPattern(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	v := newValidator(t, root, ".git/**", "**/*.pem")

	var pe *PolicyError
	if _, err := v.Resolve(".git/config"); !errors.As(err, &pe) {
		t.Fatalf("expected PolicyError for .git, got %v", err)
	}
	if _, err := v.Resolve("certs/server.pem"); !errors.As(err, &pe) {
		t.Fatalf("expected PolicyError for pem, got %v", err)
	}
	if pe.Pattern != "**/*.pem" {
		t.Fatalf("unexpected pattern %q", pe.Pattern)
	}
	if _, err := v.Resolve("src/main.go"); err != nil {
		t.Fatalf("unprotected path rejected: %v", err)
	}
}
