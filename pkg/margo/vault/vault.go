// Package vault provides sandboxed access to a Markdown note vault on the
// local filesystem. Every path supplied by a user or by the LLM is resolved
// against a single root directory; anything that escapes the root is rejected
// before it reaches the filesystem.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a relative path resolves outside the
// vault root. Callers must not treat it as a plain "not found".
var ErrPathTraversal = errors.New("vault: path escapes vault root")

// ErrVaultRoot is returned by destructive operations aimed at the vault root
// itself. This check is independent of path resolution.
var ErrVaultRoot = errors.New("vault: refusing to operate on vault root")

// Vault is a sandboxed file store rooted at a single directory.
type Vault struct {
	root   string // absolute, symlink-resolved at construction
	logger *slog.Logger
}

// New creates a Vault rooted at dir. The directory must already exist.
func New(dir string, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault: root is not a directory: %s", abs)
	}
	return &Vault{root: abs, logger: logger.With("component", "vault")}, nil
}

// Root returns the absolute vault root directory.
func (v *Vault) Root() string { return v.root }

// Resolve maps a caller-supplied relative path to an absolute path inside
// the vault. Leading slashes are stripped, absolute inputs are rejected, and
// the result must stay at or under the root. The containment check follows
// symlinks so a link inside the vault cannot be used to escape it; the
// returned path keeps the non-resolved, display form.
func (v *Vault) Resolve(rel string) (string, error) {
	trimmed := strings.TrimLeft(rel, "/\\")
	if filepath.IsAbs(trimmed) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, rel)
	}
	joined := filepath.Join(v.root, filepath.Clean(trimmed))

	if !v.contained(joined) {
		v.logger.Warn("rejected unsafe path", "path", rel)
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, rel)
	}

	// Second check against the symlink-resolved form. The target (or its
	// nearest existing ancestor) must also land inside the root.
	real, err := resolveExisting(joined)
	if err == nil && !v.contained(real) {
		v.logger.Warn("rejected symlinked path", "path", rel, "target", real)
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, rel)
	}

	return joined, nil
}

// contained reports whether abs equals the root or is a descendant of it.
func (v *Vault) contained(abs string) bool {
	if abs == v.root {
		return true
	}
	return strings.HasPrefix(abs, v.root+string(os.PathSeparator))
}

// resolveExisting evaluates symlinks for path, falling back to the nearest
// existing ancestor when the path itself does not exist yet (writes create
// files that are not on disk at resolve time).
func resolveExisting(path string) (string, error) {
	p := path
	var suffix []string
	for {
		real, err := filepath.EvalSymlinks(p)
		if err == nil {
			if len(suffix) == 0 {
				return real, nil
			}
			parts := append([]string{real}, suffix...)
			return filepath.Join(parts...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		suffix = append([]string{filepath.Base(p)}, suffix...)
		p = parent
	}
}

// Exists reports whether a file or folder exists at the given relative path.
func (v *Vault) Exists(rel string) bool {
	abs, err := v.Resolve(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// Read returns the raw bytes of a vault file.
func (v *Vault) Read(rel string) ([]byte, error) {
	abs, err := v.Resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", rel, err)
	}
	return data, nil
}

// Write atomically writes content through a synced temp file and rename.
// Parent directories are created as needed.
func (v *Vault) Write(rel string, content []byte) error {
	abs, err := v.Resolve(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vault: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".margo-tmp-*")
	if err != nil {
		return fmt.Errorf("vault: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("vault: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("vault: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("vault: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a single file.
func (v *Vault) Delete(rel string) error {
	abs, err := v.Resolve(rel)
	if err != nil {
		return err
	}
	if abs == v.root {
		return ErrVaultRoot
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("vault: delete %s: %w", rel, err)
	}
	return nil
}

// CreateFolder creates a directory (and parents) inside the vault.
func (v *Vault) CreateFolder(rel string) error {
	abs, err := v.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("vault: create folder %s: %w", rel, err)
	}
	return nil
}

// DeleteFolder removes a directory and its contents. Removing the vault
// root itself is unconditionally rejected, regardless of how the path was
// spelled.
func (v *Vault) DeleteFolder(rel string) error {
	abs, err := v.Resolve(rel)
	if err != nil {
		return err
	}
	if abs == v.root {
		return ErrVaultRoot
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("vault: delete folder %s: %w", rel, err)
	}
	return nil
}

// Move renames a file or folder within the vault.
func (v *Vault) Move(oldRel, newRel string) error {
	absOld, err := v.Resolve(oldRel)
	if err != nil {
		return err
	}
	absNew, err := v.Resolve(newRel)
	if err != nil {
		return err
	}
	if absOld == v.root {
		return ErrVaultRoot
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("vault: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("vault: move: %w", err)
	}
	return nil
}

// List walks dir (relative to root, "" for the whole vault) and returns the
// relative paths of all files with the given extension, e.g. ".md".
func (v *Vault) List(dir, ext string) ([]string, error) {
	base, err := v.Resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || (ext != "" && !strings.HasSuffix(d.Name(), ext)) {
			return nil
		}
		rel, relErr := filepath.Rel(v.root, p)
		if relErr != nil {
			return relErr
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vault: list: %w", err)
	}
	return out, nil
}
