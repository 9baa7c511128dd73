package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type store struct {
	root string
}

// New returns a script source backed by a local directory.
func New(root string) *store {
	return &store{root: root}
}

func (s *store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local: couldn't read directory %q: %w", s.root, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *store) Read(ctx context.Context, name string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		return nil, fmt.Errorf("local: couldn't read file %q: %w", name, err)
	}
	return b, nil
}

func (s *store) Write(ctx context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("local: couldn't create directory %q: %w", s.root, err)
	}
	dst := filepath.Join(s.root, name)
	// Scripts are immutable once written, refuse to overwrite.
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("local: couldn't create file %q: %w", dst, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("local: couldn't write file %q: %w", dst, err)
	}
	return nil
}
