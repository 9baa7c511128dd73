package source

import (
	"context"
	"testing"
	"time"

	"github.com/finwise/finmig/pkg/revision"
)

func TestNewUnknownType(t *testing.T) {
	if _, err := New("ftp", "host"); err == nil {
		t.Fatal("New(ftp) err = nil; want error")
	}
}

func TestNewInvalidS3Conn(t *testing.T) {
	for _, conn := range []string{
		"no-auth-separator",
		"key@bucket.region",
		"key:secret@bucketnoregion",
	} {
		if _, err := New("s3", conn); err == nil {
			t.Fatalf("New(s3, %q) err = nil; want error", conn)
		}
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	src, err := New("local", t.TempDir())
	if err != nil {
		t.Fatalf("New(local) err = %v; want nil", err)
	}

	revs := []*revision.Revision{
		{
			ID:          "01AR",
			Description: "create accounts",
			CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			Up:          []string{"CREATE TABLE accounts (id text)"},
			Down:        []string{"DROP TABLE accounts"},
		},
		{
			ID:          "01BX",
			Parents:     []string{"01AR"},
			Description: "add name",
			CreatedAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			Up:          []string{"ALTER TABLE accounts ADD COLUMN name text"},
			Down:        []string{"ALTER TABLE accounts DROP COLUMN name"},
		},
	}
	for _, rev := range revs {
		if err := src.Write(ctx, rev.Filename(), revision.Format(rev)); err != nil {
			t.Fatalf("Write() err = %v; want nil", err)
		}
	}
	// Non-script files are skipped.
	if err := src.Write(ctx, "README.md", []byte("docs")); err != nil {
		t.Fatalf("Write() err = %v; want nil", err)
	}

	chain, err := Load(ctx, src)
	if err != nil {
		t.Fatalf("Load() err = %v; want nil", err)
	}
	if chain.Len() != 2 {
		t.Fatalf("Len() = %d; want 2", chain.Len())
	}
	head, err := chain.HeadID()
	if err != nil {
		t.Fatalf("HeadID() err = %v; want nil", err)
	}
	if head != "01BX" {
		t.Fatalf("HeadID() = %q; want 01BX", head)
	}
	if got := chain.Get("01AR"); got == nil || got.Description != "create accounts" {
		t.Fatalf("Get(01AR) = %+v; want parsed revision", got)
	}
}

func TestLoadRejectsBrokenScript(t *testing.T) {
	ctx := context.Background()
	src, err := New("local", t.TempDir())
	if err != nil {
		t.Fatalf("New(local) err = %v; want nil", err)
	}
	if err := src.Write(ctx, "01a_broken.sql", []byte("-- description: no id\n")); err != nil {
		t.Fatalf("Write() err = %v; want nil", err)
	}
	if _, err := Load(ctx, src); err == nil {
		t.Fatal("Load() err = nil; want error")
	}
}
