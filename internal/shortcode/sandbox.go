package shortcode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sandbox is the canonical directory boundary for shortcode-triggered file
// reads. Any path that does not resolve inside it is refused.
type Sandbox struct {
	root string
}

// NewSandbox canonicalizes root and returns the resulting boundary.
func NewSandbox(root string) (*Sandbox, error) {
	canonical, err := canonicalize(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	return &Sandbox{root: canonical}, nil
}

// Root returns the canonical boundary directory.
func (s *Sandbox) Root() string { return s.root }

// Resolve canonicalizes path and verifies it sits under the boundary.
func (s *Sandbox) Resolve(path string) (string, error) {
	canonical, err := canonicalize(path)
	if err != nil {
		return "", err
	}
	if canonical != s.root && !strings.HasPrefix(canonical, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes sandbox %s", path, s.root)
	}
	return canonical, nil
}

// canonicalize makes a path absolute and resolves symlinks. For paths that
// do not exist yet, the deepest existing ancestor is resolved instead so
// traversal components are still normalized.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	dir, base := filepath.Split(filepath.Clean(abs))
	parent, err := canonicalize(filepath.Clean(dir))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, base), nil
}
