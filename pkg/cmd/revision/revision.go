// Package revision implements the revision and merge commands: they
// author new scripts, they never touch the database schema.
package revision

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/finwise/finmig/pkg/autogen"
	"github.com/finwise/finmig/pkg/model"
	rev "github.com/finwise/finmig/pkg/revision"
	"github.com/finwise/finmig/pkg/revision/source"
	"github.com/finwise/finmig/pkg/storage"
	"github.com/oklog/ulid/v2"
)

type Config struct {
	Debug        bool
	DBType       string
	DBConn       string
	Dir          string
	Message      string
	Autogenerate bool
}

// Run generates a new revision script chained to the current head. With
// Autogenerate the body is derived from the registry/live-schema diff,
// otherwise empty stubs are written.
func Run(ctx context.Context, cfg *Config) error {
	src, err := source.New("local", cfg.Dir)
	if err != nil {
		return fmt.Errorf("revision: %w", err)
	}
	chain, err := source.Load(ctx, src)
	if err != nil {
		return fmt.Errorf("revision: %w", err)
	}
	head, err := chain.HeadID()
	if err != nil {
		return fmt.Errorf("revision: %w", err)
	}
	var parents []string
	if head != "" {
		parents = []string{head}
	}

	var up, down []string
	if cfg.Autogenerate {
		dbType, dbConn, err := storage.Resolve(cfg.DBType, cfg.DBConn)
		if err != nil {
			return fmt.Errorf("revision: %w", err)
		}
		store, err := storage.New(dbType, dbConn, cfg.Debug)
		if err != nil {
			return fmt.Errorf("revision: couldn't create store: %w", err)
		}
		if err := store.Start(ctx); err != nil {
			return fmt.Errorf("revision: couldn't start store: %w", err)
		}
		up, down, err = autogen.Diff(ctx, store.DB(), model.All())
		if err != nil {
			return fmt.Errorf("revision: %w", err)
		}
		if len(up) == 0 {
			log.Println("revision: no schema changes detected, generating an empty revision (is the model registry complete?)")
		}
	}

	return write(ctx, src, &rev.Revision{
		ID:          ulid.Make().String(),
		Parents:     parents,
		Description: cfg.Message,
		CreatedAt:   time.Now().UTC(),
		Up:          up,
		Down:        down,
	})
}

// RunMerge authors an empty revision joining all current heads of a
// diverged chain.
func RunMerge(ctx context.Context, cfg *Config) error {
	src, err := source.New("local", cfg.Dir)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	chain, err := source.Load(ctx, src)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	heads := chain.Heads()
	if len(heads) < 2 {
		return fmt.Errorf("merge: chain has %d head(s), nothing to merge", len(heads))
	}
	message := cfg.Message
	if message == "" {
		message = "merge " + strings.Join(heads, " and ")
	}
	return write(ctx, src, &rev.Revision{
		ID:          ulid.Make().String(),
		Parents:     heads,
		Description: message,
		CreatedAt:   time.Now().UTC(),
	})
}

func write(ctx context.Context, src source.Source, r *rev.Revision) error {
	name := r.Filename()
	if err := src.Write(ctx, name, rev.Format(r)); err != nil {
		return fmt.Errorf("revision: couldn't write script: %w", err)
	}
	log.Printf("revision: generated %s", name)
	return nil
}
