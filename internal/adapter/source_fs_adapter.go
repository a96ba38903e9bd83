// Package adapter contains the infrastructure adapters of gapfill: filesystem,
// Go parsing, version control, process execution and coverage reports.
package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	m "gapfill.dev/pkg/gapfill/internal/model"
)

// SourceFSAdapter abstracts filesystem operations rooted at the project
// directory. Every path is relative to that root so the domain layer can be
// tested against an in-memory filesystem.
type SourceFSAdapter interface {
	// Walk traverses root recursively.
	Walk(root m.Path, fn FilepathWalkFunc) error

	// ReadFile loads a file and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// WriteFile replaces the file content atomically, creating parent directories.
	WriteFile(path m.Path, content []byte, perm os.FileMode) error

	// FileInfo returns metadata for a path.
	FileInfo(path m.Path) (os.FileInfo, error)

	// Exists reports whether the path exists.
	Exists(path m.Path) bool

	// MkdirAll creates a directory and its parents.
	MkdirAll(path m.Path) error
}

// FilepathWalkFunc mirrors the callback shape used by filepath.Walk. It is
// defined here to avoid leaking the standard-library type into the domain layer.
type FilepathWalkFunc func(path m.Path, info os.FileInfo, err error) error

// LocalSourceFSAdapter implements SourceFSAdapter on top of an afero.Fs.
type LocalSourceFSAdapter struct {
	fs afero.Fs
}

// NewLocalSourceFSAdapter constructs an adapter rooted at root on the OS filesystem.
func NewLocalSourceFSAdapter(root string) *LocalSourceFSAdapter {
	return NewSourceFSAdapter(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewSourceFSAdapter wraps an arbitrary afero.Fs whose root is the project root.
func NewSourceFSAdapter(base afero.Fs) *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{fs: base}
}

// Walk iterates over every file and directory under root.
func (a *LocalSourceFSAdapter) Walk(root m.Path, fn FilepathWalkFunc) error {
	return afero.Walk(a.fs, filepath.FromSlash(string(root)), func(path string, info os.FileInfo, err error) error {
		return fn(m.Path(filepath.ToSlash(path)), info, err)
	})
}

// ReadFile loads file contents.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return afero.ReadFile(a.fs, filepath.FromSlash(string(path)))
}

// WriteFile writes to a temporary sibling and renames it over the target, so a
// crash never leaves a half-written test file behind.
func (a *LocalSourceFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	target := filepath.FromSlash(string(path))
	dir := filepath.Dir(target)

	if err := a.fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(a.fs, dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}

	tmpName := tmp.Name()

	_, writeErr := tmp.Write(content)
	closeErr := tmp.Close()

	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := a.fs.Chmod(tmpName, perm); err != nil {
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}

	if err := a.fs.Rename(tmpName, target); err != nil {
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalSourceFSAdapter) FileInfo(path m.Path) (os.FileInfo, error) {
	return a.fs.Stat(filepath.FromSlash(string(path)))
}

// Exists reports whether the path exists.
func (a *LocalSourceFSAdapter) Exists(path m.Path) bool {
	_, err := a.FileInfo(path)
	return err == nil
}

// MkdirAll creates a directory and any missing parents.
func (a *LocalSourceFSAdapter) MkdirAll(path m.Path) error {
	return a.fs.MkdirAll(filepath.FromSlash(string(path)), 0o750)
}

// FindProjectRoot searches for a go.mod file walking up the directory tree
// from startDir and returns the directory that holds it.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory of %s", startDir)
		}

		dir = parent
	}
}
