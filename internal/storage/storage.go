// Package storage persists original and processed image bytes under
// opaque name references. The rest of the system never touches raw
// filesystem paths.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is the artifact persistence contract consumed by the worker
// loop and the HTTP front end.
type Store interface {
	Read(ctx context.Context, ref string) ([]byte, error)
	Write(ctx context.Context, ref string, data []byte) error
	Path(ref string) string
}

// Disk stores artifacts as flat files under a single directory.
type Disk struct {
	root string
}

func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ensure storage dir: %w", err)
	}
	return &Disk{root: root}, nil
}

// Path resolves a reference inside the store root. References are
// reduced to their base name so a crafted ref cannot escape the root.
func (d *Disk) Path(ref string) string {
	return filepath.Join(d.root, SafeName(ref))
}

func (d *Disk) Read(ctx context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(d.Path(ref))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", ref, err)
	}
	return data, nil
}

func (d *Disk) Write(ctx context.Context, ref string, data []byte) error {
	if err := os.WriteFile(d.Path(ref), data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", ref, err)
	}
	return nil
}

// SafeName reduces an untrusted filename to a flat, storable name.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}
