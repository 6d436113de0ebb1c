package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// DiskStore writes avatars to Dir; URLPrefix is the path they are served at.
type DiskStore struct {
	Dir       string
	URLPrefix string
}

func NewDiskStore(dir, urlPrefix string) *DiskStore {
	return &DiskStore{Dir: dir, URLPrefix: urlPrefix}
}

func (d *DiskStore) Save(_ context.Context, name, _ string, body io.Reader, _ int64) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(d.Dir, name)
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return path.Join(d.URLPrefix, name), nil
}
