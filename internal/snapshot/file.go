package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"StockKeeper/internal/inventory"
)

type File struct {
	Path string
}

func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Save(_ context.Context, snap inventory.Snapshot) error {
	if err := inventory.WriteFile(f.Path, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (f *File) Load(_ context.Context) (inventory.Snapshot, error) {
	snap, err := inventory.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return snap, nil
}

func (f *File) Ping(_ context.Context) error {
	dir := filepath.Dir(f.Path)
	st, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (f *File) Close() error { return nil }

func (f *File) String() string { return "file:" + f.Path }
