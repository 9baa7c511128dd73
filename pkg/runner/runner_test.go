package runner

import (
	"context"
	"testing"

	"github.com/finwise/finmig/pkg/revision"
	"github.com/finwise/finmig/pkg/storage"
)

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	ctx := context.Background()
	s, err := storage.New("sqlite", ":memory:", false)
	if err != nil {
		t.Fatalf("storage.New() err = %v; want nil", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() err = %v; want nil", err)
	}
	return s
}

func testChain(t *testing.T, revs []*revision.Revision) *revision.Chain {
	t.Helper()
	chain, err := revision.NewChain(revs)
	if err != nil {
		t.Fatalf("NewChain() err = %v; want nil", err)
	}
	return chain
}

// financeChain is a three-step chain creating and evolving an accounts
// table, with reversible downs.
func financeChain(t *testing.T) *revision.Chain {
	t.Helper()
	return testChain(t, []*revision.Revision{
		{
			ID:          "01A",
			Description: "create accounts",
			Up:          []string{"CREATE TABLE accounts (id text PRIMARY KEY)"},
			Down:        []string{"DROP TABLE accounts"},
		},
		{
			ID:          "01B",
			Parents:     []string{"01A"},
			Description: "add name",
			Up:          []string{"ALTER TABLE accounts ADD COLUMN name text"},
			Down:        []string{"ALTER TABLE accounts DROP COLUMN name"},
		},
		{
			ID:          "01C",
			Parents:     []string{"01B"},
			Description: "index name",
			Up:          []string{"CREATE INDEX idx_accounts_name ON accounts (name)"},
			Down:        []string{"DROP INDEX idx_accounts_name"},
		},
	})
}

func current(t *testing.T, s *storage.Store) string {
	t.Helper()
	id, err := s.CurrentRevision(context.Background())
	if err != nil {
		t.Fatalf("CurrentRevision() err = %v; want nil", err)
	}
	return id
}

func TestUpgradeHead(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	r := New(s, financeChain(t))

	if err := r.Upgrade(ctx, revision.Head); err != nil {
		t.Fatalf("Upgrade(head) err = %v; want nil", err)
	}
	if got := current(t, s); got != "01C" {
		t.Fatalf("current = %q; want 01C", got)
	}
	if !s.DB().Migrator().HasTable("accounts") {
		t.Fatal("HasTable(accounts) = false; want true")
	}

	// Already at head: a no-op, not an error.
	if err := r.Upgrade(ctx, revision.Head); err != nil {
		t.Fatalf("Upgrade(head) again err = %v; want nil", err)
	}
}

func TestUpgradeStepwise(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	r := New(s, financeChain(t))

	for _, want := range []string{"01A", "01B", "01C"} {
		if err := r.Upgrade(ctx, "+1"); err != nil {
			t.Fatalf("Upgrade(+1) err = %v; want nil", err)
		}
		if got := current(t, s); got != want {
			t.Fatalf("current = %q; want %s", got, want)
		}
	}
}

func TestDowngrade(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	r := New(s, financeChain(t))
	if err := r.Upgrade(ctx, revision.Head); err != nil {
		t.Fatalf("Upgrade(head) err = %v; want nil", err)
	}

	if err := r.Downgrade(ctx, "-1"); err != nil {
		t.Fatalf("Downgrade(-1) err = %v; want nil", err)
	}
	if got := current(t, s); got != "01B" {
		t.Fatalf("current = %q; want 01B", got)
	}

	if err := r.Downgrade(ctx, revision.Base); err != nil {
		t.Fatalf("Downgrade(base) err = %v; want nil", err)
	}
	if got := current(t, s); got != "" {
		t.Fatalf("current = %q; want base", got)
	}
	if s.DB().Migrator().HasTable("accounts") {
		t.Fatal("HasTable(accounts) = true; want false")
	}

	// The chain is replayable after a full unwind.
	if err := r.Upgrade(ctx, revision.Head); err != nil {
		t.Fatalf("Upgrade(head) after unwind err = %v; want nil", err)
	}
}

func TestUpgradeFailureLeavesMarker(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	broken := testChain(t, []*revision.Revision{
		{
			ID:   "01A",
			Up:   []string{"CREATE TABLE accounts (id text PRIMARY KEY)"},
			Down: []string{"DROP TABLE accounts"},
		},
		{
			ID:      "01B",
			Parents: []string{"01A"},
			Up:      []string{"THIS IS NOT SQL"},
			Down:    []string{},
		},
	})

	if err := New(s, broken).Upgrade(ctx, revision.Head); err == nil {
		t.Fatal("Upgrade(head) err = nil; want error")
	}
	// The marker stays at the last revision that applied cleanly.
	if got := current(t, s); got != "01A" {
		t.Fatalf("current after failure = %q; want 01A", got)
	}

	// A corrected script chain resumes from the marker.
	fixed := testChain(t, []*revision.Revision{
		{
			ID:   "01A",
			Up:   []string{"CREATE TABLE accounts (id text PRIMARY KEY)"},
			Down: []string{"DROP TABLE accounts"},
		},
		{
			ID:      "01B",
			Parents: []string{"01A"},
			Up:      []string{"ALTER TABLE accounts ADD COLUMN name text"},
			Down:    []string{"ALTER TABLE accounts DROP COLUMN name"},
		},
	})
	if err := New(s, fixed).Upgrade(ctx, revision.Head); err != nil {
		t.Fatalf("Upgrade(head) after fix err = %v; want nil", err)
	}
	if got := current(t, s); got != "01B" {
		t.Fatalf("current = %q; want 01B", got)
	}
}

// mergedChain returns 01A diverging into 01B and 01C, joined by the
// empty merge revision 01M. The optional cDown overrides 01C's down
// statements.
func mergedChain(t *testing.T, cDown ...string) *revision.Chain {
	t.Helper()
	if len(cDown) == 0 {
		cDown = []string{"DROP TABLE budgets"}
	}
	return testChain(t, []*revision.Revision{
		{
			ID:   "01A",
			Up:   []string{"CREATE TABLE accounts (id text PRIMARY KEY)"},
			Down: []string{"DROP TABLE accounts"},
		},
		{
			ID:      "01B",
			Parents: []string{"01A"},
			Up:      []string{"CREATE TABLE transfers (id text PRIMARY KEY)"},
			Down:    []string{"DROP TABLE transfers"},
		},
		{
			ID:      "01C",
			Parents: []string{"01A"},
			Up:      []string{"CREATE TABLE budgets (id text PRIMARY KEY)"},
			Down:    cDown,
		},
		{
			ID:      "01M",
			Parents: []string{"01B", "01C"},
		},
	})
}

func TestMergeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	r := New(s, mergedChain(t))

	if err := r.Upgrade(ctx, revision.Head); err != nil {
		t.Fatalf("Upgrade(head) err = %v; want nil", err)
	}
	if got := current(t, s); got != "01M" {
		t.Fatalf("current = %q; want 01M", got)
	}

	if err := r.Downgrade(ctx, revision.Base); err != nil {
		t.Fatalf("Downgrade(base) err = %v; want nil", err)
	}
	if got := current(t, s); got != "" {
		t.Fatalf("current = %q; want base", got)
	}
	for _, table := range []string{"accounts", "transfers", "budgets"} {
		if s.DB().Migrator().HasTable(table) {
			t.Fatalf("HasTable(%s) = true; want false", table)
		}
	}
}

func TestDowngradeFailureAcrossMerge(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	broken := mergedChain(t, "THIS IS NOT SQL")
	if err := New(s, broken).Upgrade(ctx, revision.Head); err != nil {
		t.Fatalf("Upgrade(head) err = %v; want nil", err)
	}

	// 01C's down fails while 01B's branch is still applied. The marker
	// must stay at the merge: no single revision's ancestry describes a
	// half-reverted pair of branches.
	if err := New(s, broken).Downgrade(ctx, revision.Base); err == nil {
		t.Fatal("Downgrade(base) err = nil; want error")
	}
	if got := current(t, s); got != "01M" {
		t.Fatalf("current after failure = %q; want 01M", got)
	}
	if !s.DB().Migrator().HasTable("transfers") {
		t.Fatal("HasTable(transfers) = false; want true")
	}

	// A rerun with a corrected script chain reverts both branches.
	if err := New(s, mergedChain(t)).Downgrade(ctx, revision.Base); err != nil {
		t.Fatalf("Downgrade(base) after fix err = %v; want nil", err)
	}
	if got := current(t, s); got != "" {
		t.Fatalf("current = %q; want base", got)
	}
	for _, table := range []string{"accounts", "transfers", "budgets"} {
		if s.DB().Migrator().HasTable(table) {
			t.Fatalf("HasTable(%s) = true; want false", table)
		}
	}
}

func TestStamp(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	r := New(s, financeChain(t))

	if err := r.Stamp(ctx, "01B"); err != nil {
		t.Fatalf("Stamp(01B) err = %v; want nil", err)
	}
	if got := current(t, s); got != "01B" {
		t.Fatalf("current = %q; want 01B", got)
	}
	// Stamp never executes scripts.
	if s.DB().Migrator().HasTable("accounts") {
		t.Fatal("HasTable(accounts) = true; want false")
	}

	if err := r.Stamp(ctx, revision.Base); err != nil {
		t.Fatalf("Stamp(base) err = %v; want nil", err)
	}
	if got := current(t, s); got != "" {
		t.Fatalf("current = %q; want base", got)
	}
}

func TestRunRejectsUnknownMarker(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init() err = %v; want nil", err)
	}
	if err := s.SetCurrentRevision(ctx, "01ZZ"); err != nil {
		t.Fatalf("SetCurrentRevision() err = %v; want nil", err)
	}

	if err := New(s, financeChain(t)).Upgrade(ctx, revision.Head); err == nil {
		t.Fatal("Upgrade(head) err = nil; want error for marker outside chain")
	}
}
