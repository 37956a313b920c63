package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudvault/cloudvault-cli/internal/diskspace"
	"github.com/cloudvault/cloudvault-cli/internal/pathutil"
)

// DirSink writes files below a local directory.
type DirSink struct {
	root string
}

// NewDirSink resolves root (expanding ~) and creates it if needed.
func NewDirSink(root string) (*DirSink, error) {
	root, err := pathutil.ResolveAbsolutePath(root)
	if err != nil {
		return nil, fmt.Errorf("invalid mirror directory: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory %s: %w", root, err)
	}
	return &DirSink{root: root}, nil
}

func (d *DirSink) String() string { return d.root }

// Put writes data atomically: a temp file in the target directory is
// renamed over the destination.
func (d *DirSink) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel, err := objectKey("", key)
	if err != nil {
		return err
	}
	target := filepath.Join(d.root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := diskspace.CheckAvailableSpace(target, int64(len(data)), diskspace.DefaultMargin); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".mirror-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", rel, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", rel, err)
	}
	return nil
}
