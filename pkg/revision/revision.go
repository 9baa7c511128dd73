// Package revision defines the versioned schema-change scripts managed
// by finmig and the chain formed by their parent links.
//
// A revision is stored as a single .sql file named <id>_<slug>.sql. The
// file starts with a comment header carrying the revision metadata and
// is followed by an up and a down section:
//
//	-- revision: 01HV3Z0GJ0Q2X5Y8R9T0V1W2X3
//	-- parent: 01HV3YZZFJ4A5B6C7D8E9F0G1H
//	-- description: add users table
//	-- created: 2026-08-28T10:11:12Z
//
//	-- +up
//	CREATE TABLE users (...);
//
//	-- +down
//	DROP TABLE users;
//
// Root revisions have no parent line. Merge revisions repeat the parent
// line once per parent. Revisions are immutable once written.
package revision

import (
	"bufio"
	"fmt"
	"strings"
	"time"
)

// Revision is one schema-change script.
type Revision struct {
	ID          string
	Parents     []string
	Description string
	CreatedAt   time.Time

	Up   []string
	Down []string

	// File is the name of the script this revision was loaded from,
	// empty for revisions not yet written.
	File string
}

// IsMerge reports whether the revision joins more than one parent.
func (r *Revision) IsMerge() bool {
	return len(r.Parents) > 1
}

// Filename returns the canonical script name for the revision.
func (r *Revision) Filename() string {
	return fmt.Sprintf("%s_%s.sql", strings.ToLower(r.ID), slug(r.Description))
}

func slug(s string) string {
	var b strings.Builder
	last := '_'
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			last = r
		default:
			if last != '_' {
				b.WriteRune('_')
				last = '_'
			}
		}
		if b.Len() >= 40 {
			break
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "revision"
	}
	return out
}

// Format serializes the revision into its script file representation.
func Format(r *Revision) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "-- revision: %s\n", r.ID)
	for _, p := range r.Parents {
		fmt.Fprintf(&b, "-- parent: %s\n", p)
	}
	fmt.Fprintf(&b, "-- description: %s\n", r.Description)
	fmt.Fprintf(&b, "-- created: %s\n", r.CreatedAt.UTC().Format(time.RFC3339))
	b.WriteString("\n-- +up\n")
	writeStatements(&b, r.Up)
	b.WriteString("\n-- +down\n")
	writeStatements(&b, r.Down)
	return []byte(b.String())
}

func writeStatements(b *strings.Builder, stmts []string) {
	for _, s := range stmts {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
		if s == "" {
			continue
		}
		b.WriteString(s)
		b.WriteString(";\n")
	}
}

// Parse reads a revision from its script file content. The name is the
// script file name, recorded on the revision for reporting.
func Parse(name string, data []byte) (*Revision, error) {
	r := &Revision{File: name}
	section := ""
	var stmt strings.Builder

	flush := func() {
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt.String()), ";"))
		stmt.Reset()
		if s == "" {
			return
		}
		switch section {
		case "up":
			r.Up = append(r.Up, s)
		case "down":
			r.Down = append(r.Down, s)
		}
	}

	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			directive := strings.TrimSpace(strings.TrimPrefix(trimmed, "--"))
			switch {
			case directive == "+up":
				flush()
				section = "up"
			case directive == "+down":
				flush()
				section = "down"
			case strings.HasPrefix(directive, "revision:"):
				r.ID = strings.TrimSpace(strings.TrimPrefix(directive, "revision:"))
			case strings.HasPrefix(directive, "parent:"):
				p := strings.TrimSpace(strings.TrimPrefix(directive, "parent:"))
				if p != "" {
					r.Parents = append(r.Parents, p)
				}
			case strings.HasPrefix(directive, "description:"):
				r.Description = strings.TrimSpace(strings.TrimPrefix(directive, "description:"))
			case strings.HasPrefix(directive, "created:"):
				t, err := time.Parse(time.RFC3339, strings.TrimSpace(strings.TrimPrefix(directive, "created:")))
				if err != nil {
					return nil, fmt.Errorf("revision: invalid created timestamp in %q: %w", name, err)
				}
				r.CreatedAt = t
			}
			continue
		}
		if section == "" {
			if trimmed != "" {
				return nil, fmt.Errorf("revision: statement outside up/down section in %q", name)
			}
			continue
		}
		stmt.WriteString(line)
		stmt.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("revision: couldn't read %q: %w", name, err)
	}
	flush()

	if r.ID == "" {
		return nil, fmt.Errorf("revision: missing revision id in %q", name)
	}
	return r, nil
}
