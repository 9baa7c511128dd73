package revision

import (
	"strings"
	"testing"
	"time"
)

func TestFormatParseRoundTrip(t *testing.T) {
	created := time.Date(2026, 8, 28, 10, 11, 12, 0, time.UTC)
	tests := []struct {
		name string
		rev  *Revision
	}{
		{
			name: "root",
			rev: &Revision{
				ID:          "01AAAAAAAAAAAAAAAAAAAAAAAA",
				Description: "create users table",
				CreatedAt:   created,
				Up:          []string{`CREATE TABLE "users" ("id" text, PRIMARY KEY ("id"))`},
				Down:        []string{`DROP TABLE "users"`},
			},
		},
		{
			name: "child",
			rev: &Revision{
				ID:          "01BBBBBBBBBBBBBBBBBBBBBBBB",
				Parents:     []string{"01AAAAAAAAAAAAAAAAAAAAAAAA"},
				Description: "add currency column",
				CreatedAt:   created,
				Up:          []string{`ALTER TABLE "users" ADD COLUMN "currency" text`},
				Down:        []string{`ALTER TABLE "users" DROP COLUMN "currency"`},
			},
		},
		{
			name: "merge with empty body",
			rev: &Revision{
				ID:          "01CCCCCCCCCCCCCCCCCCCCCCCC",
				Parents:     []string{"01AAAAAAAAAAAAAAAAAAAAAAAA", "01BBBBBBBBBBBBBBBBBBBBBBBB"},
				Description: "merge heads",
				CreatedAt:   created,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := Format(tt.rev)
			got, err := Parse(tt.rev.Filename(), data)
			if err != nil {
				t.Fatalf("Parse() err = %v; want nil", err)
			}
			if got.ID != tt.rev.ID {
				t.Fatalf("ID = %q; want %q", got.ID, tt.rev.ID)
			}
			if len(got.Parents) != len(tt.rev.Parents) {
				t.Fatalf("Parents = %v; want %v", got.Parents, tt.rev.Parents)
			}
			for i := range got.Parents {
				if got.Parents[i] != tt.rev.Parents[i] {
					t.Fatalf("Parents = %v; want %v", got.Parents, tt.rev.Parents)
				}
			}
			if got.Description != tt.rev.Description {
				t.Fatalf("Description = %q; want %q", got.Description, tt.rev.Description)
			}
			if !got.CreatedAt.Equal(tt.rev.CreatedAt) {
				t.Fatalf("CreatedAt = %v; want %v", got.CreatedAt, tt.rev.CreatedAt)
			}
			if len(got.Up) != len(tt.rev.Up) || len(got.Down) != len(tt.rev.Down) {
				t.Fatalf("Up/Down = %v/%v; want %v/%v", got.Up, got.Down, tt.rev.Up, tt.rev.Down)
			}
			for i := range got.Up {
				if got.Up[i] != tt.rev.Up[i] {
					t.Fatalf("Up[%d] = %q; want %q", i, got.Up[i], tt.rev.Up[i])
				}
			}
		})
	}
}

func TestParseMultiLineStatements(t *testing.T) {
	script := `-- revision: 01AA
-- description: create tables

-- +up
CREATE TABLE users (
	id text,
	PRIMARY KEY (id)
);
CREATE INDEX idx_users_email ON users (email);

-- +down
DROP INDEX idx_users_email;
DROP TABLE users;
`
	rev, err := Parse("01aa_create_tables.sql", []byte(script))
	if err != nil {
		t.Fatalf("Parse() err = %v; want nil", err)
	}
	if len(rev.Up) != 2 {
		t.Fatalf("len(Up) = %d; want 2", len(rev.Up))
	}
	if !strings.Contains(rev.Up[0], "PRIMARY KEY (id)") {
		t.Fatalf("Up[0] = %q; want multi-line create table", rev.Up[0])
	}
	if len(rev.Down) != 2 {
		t.Fatalf("len(Down) = %d; want 2", len(rev.Down))
	}
	if rev.Down[1] != "DROP TABLE users" {
		t.Fatalf("Down[1] = %q; want %q", rev.Down[1], "DROP TABLE users")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"missing id", "-- description: no id\n\n-- +up\nSELECT 1;\n"},
		{"statement outside section", "-- revision: 01AA\nSELECT 1;\n"},
		{"bad timestamp", "-- revision: 01AA\n-- created: yesterday\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse("bad.sql", []byte(tt.script)); err == nil {
				t.Fatal("Parse() err = nil; want error")
			}
		})
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		id, desc string
		want     string
	}{
		{"01AB", "add users table", "01ab_add_users_table.sql"},
		{"01AB", "Drop AI columns!", "01ab_drop_ai_columns.sql"},
		{"01AB", "", "01ab_revision.sql"},
		{"01AB", strings.Repeat("very long description ", 10), "01ab_very_long_description_very_long_descript.sql"},
	}
	for _, tt := range tests {
		r := &Revision{ID: tt.id, Description: tt.desc}
		if got := r.Filename(); got != tt.want {
			t.Fatalf("Filename(%q) = %q; want %q", tt.desc, got, tt.want)
		}
	}
}
