// Package pathsec bounds proposed write targets to a workspace root.
// Resolution follows symlinks in the target and every ancestor directory so
// a symlinked directory cannot smuggle a write outside the workspace.
package pathsec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/writegate/writegate/pkg/types"
)

// SecurityError reports a path traversal or symlink escape attempt.
// Evaluation aborts before any file is read or written.
type SecurityError struct {
	Path   string
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("path security: %s: %s", e.Path, e.Reason)
}

// PolicyError reports a write target matched a protected-path pattern.
type PolicyError struct {
	Path    string
	Pattern string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("protected path: %s matches %q", e.Path, e.Pattern)
}

type protectedRule struct {
	pattern string
	g       glob.Glob
}

// Validator resolves requested paths against a canonical workspace root.
// It is pure: no file is opened, only metadata is consulted.
type Validator struct {
	root      string
	protected []protectedRule
}

// New canonicalizes root (which must exist) and compiles the protected-path
// glob patterns. Patterns match the slash-separated path relative to root,
// e.g. ".git/**" or "**/*.pem".
func New(root string, protectedPatterns []string) (*Validator, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs workspace root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	v := &Validator{root: filepath.Clean(resolved)}
	for _, pat := range protectedPatterns {
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return nil, fmt.Errorf("compile protected pattern %q: %w", pat, err)
		}
		v.protected = append(v.protected, protectedRule{pattern: pat, g: g})
	}
	return v, nil
}

// Root returns the canonical workspace root.
func (v *Validator) Root() string { return v.root }

// Resolve maps a requested path (absolute or relative to the workspace root)
// to its canonical absolute form and verifies it does not escape the root via
// ".." components or symlinks. The target itself may not exist yet; in that
// case the deepest existing ancestor is resolved instead.
func (v *Validator) Resolve(p string) (types.ResolvedTarget, error) {
	if p == "" {
		return types.ResolvedTarget{}, &SecurityError{Path: p, Reason: "empty path"}
	}
	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(v.root, candidate)
	}

	// Fast ".." escape check before touching the filesystem.
	candidate = filepath.Clean(candidate)
	if !v.under(candidate) {
		return types.ResolvedTarget{}, &SecurityError{Path: p, Reason: "escapes workspace root"}
	}

	resolved, exists, err := v.resolveExisting(candidate)
	if err != nil {
		// Symlink loops and unreadable ancestors are indistinguishable from
		// escape attempts; fail closed.
		return types.ResolvedTarget{}, &SecurityError{Path: p, Reason: err.Error()}
	}
	if !v.under(resolved) {
		return types.ResolvedTarget{}, &SecurityError{Path: p, Reason: "symlink escape outside workspace root"}
	}

	if rule, ok := v.matchProtected(resolved); ok {
		return types.ResolvedTarget{}, &PolicyError{Path: p, Pattern: rule}
	}
	return types.ResolvedTarget{Path: resolved, Exists: exists}, nil
}

// resolveExisting resolves symlinks through the deepest existing ancestor of
// candidate and rejoins the not-yet-existing remainder.
func (v *Validator) resolveExisting(candidate string) (string, bool, error) {
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		return filepath.Clean(resolved), true, nil
	} else if !os.IsNotExist(err) {
		return "", false, err
	}

	base := candidate
	var tail []string
	for {
		parent := filepath.Dir(base)
		if parent == base {
			return "", false, fmt.Errorf("no existing ancestor for %s", candidate)
		}
		tail = append([]string{filepath.Base(base)}, tail...)
		base = parent

		resolved, err := filepath.EvalSymlinks(base)
		if err == nil {
			// EvalSymlinks failed on the full path, so something in tail is
			// either absent or a symlink whose target is absent. A dangling
			// symlink still redirects a write; it must not pass as a plain
			// nonexistent file.
			probe := resolved
			for _, name := range tail {
				probe = filepath.Join(probe, name)
				fi, lerr := os.Lstat(probe)
				if lerr != nil {
					if os.IsNotExist(lerr) {
						break
					}
					return "", false, lerr
				}
				if fi.Mode()&os.ModeSymlink != 0 {
					return "", false, fmt.Errorf("dangling symlink at %s", probe)
				}
			}
			out := filepath.Clean(filepath.Join(append([]string{resolved}, tail...)...))
			return out, false, nil
		}
		if !os.IsNotExist(err) {
			return "", false, err
		}
	}
}

func (v *Validator) under(p string) bool {
	return p == v.root || strings.HasPrefix(p, v.root+string(os.PathSeparator))
}

func (v *Validator) matchProtected(resolved string) (string, bool) {
	if len(v.protected) == 0 {
		return "", false
	}
	rel, err := filepath.Rel(v.root, resolved)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, r := range v.protected {
		if r.g.Match(rel) {
			return r.pattern, true
		}
	}
	return "", false
}
