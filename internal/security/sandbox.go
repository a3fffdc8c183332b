// Package security confines client-supplied file paths.
package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"camsession/internal/domain"
)

// Sandbox keeps output paths inside one directory tree.
type Sandbox struct {
	root string // absolute, symlinks resolved
}

// NewSandbox creates the root if needed and returns a sandbox over it.
func NewSandbox(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create sandbox root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("eval symlinks for sandbox root: %w", err)
	}
	return &Sandbox{root: resolved}, nil
}

// Root returns the sandbox root directory.
func (s *Sandbox) Root() string { return s.root }

// ValidatePath resolves requested against the root and rejects anything
// that lands outside it. Relative paths are taken relative to the root.
// Missing directories are allowed; the nearest existing ancestor is
// resolved so a symlink cannot point the write elsewhere.
func (s *Sandbox) ValidatePath(requested string) (string, error) {
	const op = "Sandbox.ValidatePath"
	if requested == "" {
		return "", domain.NewSubSystemError("sandbox", op, domain.ErrInvalidInput, "empty path")
	}
	p := requested
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)

	resolved, err := resolveExisting(p)
	if err != nil {
		return "", domain.NewSubSystemError("sandbox", op, domain.ErrInvalidInput, err.Error())
	}
	if !s.within(resolved) {
		return "", domain.NewSubSystemError("sandbox", op, domain.ErrInvalidInput,
			fmt.Sprintf("%q is outside %q", requested, s.root))
	}
	return resolved, nil
}

// resolveExisting evaluates symlinks on the longest existing prefix of p
// and re-appends the missing tail.
func resolveExisting(p string) (string, error) {
	var tail []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

func (s *Sandbox) within(path string) bool {
	return path == s.root || strings.HasPrefix(path, s.root+string(os.PathSeparator))
}
