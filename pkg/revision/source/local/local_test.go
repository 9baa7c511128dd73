package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestListMissingDirectory(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "migrations"))
	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() err = %v; want nil", err)
	}
	if len(names) != 0 {
		t.Fatalf("List() = %v; want empty", names)
	}
}

func TestWriteReadList(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "migrations")
	s := New(dir)

	if err := s.Write(ctx, "01a_create_accounts.sql", []byte("-- +up\n")); err != nil {
		t.Fatalf("Write() err = %v; want nil", err)
	}
	if err := s.Write(ctx, "01b_add_name.sql", []byte("-- +up\n")); err != nil {
		t.Fatalf("Write() err = %v; want nil", err)
	}
	// Subdirectories are not scripts.
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatalf("Mkdir() err = %v; want nil", err)
	}

	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() err = %v; want nil", err)
	}
	if len(names) != 2 {
		t.Fatalf("List() = %v; want 2 scripts", names)
	}

	b, err := s.Read(ctx, "01a_create_accounts.sql")
	if err != nil {
		t.Fatalf("Read() err = %v; want nil", err)
	}
	if string(b) != "-- +up\n" {
		t.Fatalf("Read() = %q; want script body", b)
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	if err := s.Write(ctx, "01a_create_accounts.sql", []byte("first")); err != nil {
		t.Fatalf("Write() err = %v; want nil", err)
	}
	if err := s.Write(ctx, "01a_create_accounts.sql", []byte("second")); err == nil {
		t.Fatal("Write() overwrite err = nil; want error")
	}
	b, err := s.Read(ctx, "01a_create_accounts.sql")
	if err != nil {
		t.Fatalf("Read() err = %v; want nil", err)
	}
	if string(b) != "first" {
		t.Fatalf("Read() = %q; want original body", b)
	}
}
