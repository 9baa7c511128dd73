// Package status implements the read-only reporting commands: current,
// history and heads.
package status

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/finwise/finmig/pkg/revision"
	"github.com/finwise/finmig/pkg/revision/source"
	"github.com/finwise/finmig/pkg/storage"
	"github.com/gocarina/gocsv"
)

type Config struct {
	Debug      bool
	DBType     string
	DBConn     string
	Dir        string
	SourceType string
	SourceConn string
}

// RunCurrent prints the database's current-revision marker.
func RunCurrent(ctx context.Context, cfg *Config) error {
	chain, err := load(ctx, cfg)
	if err != nil {
		return fmt.Errorf("current: %w", err)
	}
	dbType, dbConn, err := storage.Resolve(cfg.DBType, cfg.DBConn)
	if err != nil {
		return fmt.Errorf("current: %w", err)
	}
	store, err := storage.New(dbType, dbConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("current: couldn't create store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("current: couldn't start store: %w", err)
	}
	current, err := store.CurrentRevision(ctx)
	if err != nil {
		return fmt.Errorf("current: %w", err)
	}
	if current == "" {
		fmt.Println(revision.Base)
		return nil
	}
	suffix := ""
	for _, head := range chain.Heads() {
		if head == current {
			suffix = " (head)"
		}
	}
	fmt.Println(current + suffix)
	return nil
}

// historyRow is the flat export shape of one revision.
type historyRow struct {
	ID          string `csv:"id"`
	Parents     string `csv:"parents"`
	Description string `csv:"description"`
	Created     string `csv:"created"`
	File        string `csv:"file"`
}

// RunHistory prints the chain of revisions in parent-to-child order,
// and optionally exports it as csv.
func RunHistory(ctx context.Context, cfg *Config, verbose bool, csvPath string) error {
	chain, err := load(ctx, cfg)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	heads := make(map[string]bool)
	for _, h := range chain.Heads() {
		heads[h] = true
	}

	it := chain.Iter()
	for {
		r, ok := it.Next()
		if !ok {
			break
		}
		parents := revision.Base
		if len(r.Parents) > 0 {
			parents = strings.Join(r.Parents, ", ")
		}
		suffix := ""
		if heads[r.ID] {
			suffix = " (head)"
		}
		fmt.Printf("%s -> %s%s, %s\n", parents, r.ID, suffix, r.Description)
		if verbose {
			fmt.Printf("    file: %s\n", r.File)
			if !r.CreatedAt.IsZero() {
				fmt.Printf("    created: %s\n", r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"))
			}
		}
	}

	if csvPath == "" {
		return nil
	}
	var rows []*historyRow
	it.Reset()
	for {
		r, ok := it.Next()
		if !ok {
			break
		}
		rows = append(rows, &historyRow{
			ID:          r.ID,
			Parents:     strings.Join(r.Parents, " "),
			Description: r.Description,
			Created:     r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			File:        r.File,
		})
	}
	f, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("history: couldn't create csv file: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("history: couldn't write csv file: %w", err)
	}
	return nil
}

// RunHeads lists the heads of the script chain. More than one head
// means the chain has diverged and needs a merge revision.
func RunHeads(ctx context.Context, cfg *Config) error {
	chain, err := load(ctx, cfg)
	if err != nil {
		return fmt.Errorf("heads: %w", err)
	}
	heads := chain.Heads()
	if len(heads) == 0 {
		fmt.Println(revision.Base)
		return nil
	}
	for _, head := range heads {
		r := chain.Get(head)
		fmt.Printf("%s, %s\n", r.ID, r.Description)
	}
	return nil
}

func load(ctx context.Context, cfg *Config) (*revision.Chain, error) {
	typ, conn := cfg.SourceType, cfg.SourceConn
	if typ == "" {
		typ, conn = "local", cfg.Dir
	}
	src, err := source.New(typ, conn)
	if err != nil {
		return nil, err
	}
	return source.Load(ctx, src)
}
