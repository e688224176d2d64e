package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tikgrab/tikgrab/internal/validate"
)

var (
	ErrInvalidName = errors.New("invalid artifact name")
	ErrNotFound    = errors.New("artifact not found")
)

// Dir is the local directory artifacts are written to and served from.
type Dir struct {
	root string
}

// New resolves root to an absolute path and creates it if needed.
func New(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) Root() string {
	return d.root
}

// Ping reports whether the directory is still present.
func (d *Dir) Ping(_ context.Context) error {
	info, err := os.Stat(d.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", d.root)
	}
	return nil
}

// OutputTemplate returns the yt-dlp output template for an artifact id.
// The title is capped at 80 bytes by yt-dlp itself.
func (d *Dir) OutputTemplate(id string) string {
	return filepath.Join(d.root, id+"_%(title).80B.%(ext)s")
}

// Resolve maps a client-supplied name to a path inside the directory.
func (d *Dir) Resolve(name string) (string, error) {
	if !validate.IsServedFilename(name) {
		return "", ErrInvalidName
	}
	path := filepath.Join(d.root, name)
	if filepath.Dir(path) != d.root {
		return "", ErrInvalidName
	}
	return path, nil
}

// Open opens a previously resolved artifact. A missing file is ErrNotFound.
func (d *Dir) Open(name string) (*os.File, os.FileInfo, error) {
	path, err := d.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

// Owns reports whether path is a direct child of the directory belonging to
// the artifact id.
func (d *Dir) Owns(path, id string) bool {
	abs, err := filepath.Abs(path)
	if err != nil || filepath.Dir(abs) != d.root {
		return false
	}
	base := filepath.Base(abs)
	return strings.HasPrefix(base, id+"_") || strings.HasPrefix(base, id+".")
}

// Normalize renames the artifact at path so its basename is servable and
// returns the new path. Already safe names are left alone.
func (d *Dir) Normalize(path string) (string, error) {
	base := filepath.Base(path)
	if validate.IsServedFilename(base) {
		return path, nil
	}
	target := filepath.Join(d.root, validate.SanitizeFilename(base))
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("rename artifact: %w", err)
	}
	return target, nil
}

// RemoveByID deletes every file that belongs to the artifact id, such as
// partial downloads left behind by a failed extraction.
func (d *Dir) RemoveByID(id string) int {
	matches, err := filepath.Glob(filepath.Join(d.root, id+"*"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Error("storage: failed to remove partial artifact", "path", m, "error", err)
			continue
		}
		removed++
	}
	return removed
}
