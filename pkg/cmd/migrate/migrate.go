// Package migrate implements the upgrade, downgrade and stamp commands.
package migrate

import (
	"context"
	"fmt"

	"github.com/finwise/finmig/pkg/revision/source"
	"github.com/finwise/finmig/pkg/runner"
	"github.com/finwise/finmig/pkg/storage"
)

type Config struct {
	Debug      bool
	DBType     string
	DBConn     string
	Dir        string
	SourceType string
	SourceConn string
}

// Run applies migrations forward until target.
func Run(ctx context.Context, cfg *Config, target string) error {
	r, err := setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	return r.Upgrade(ctx, target)
}

// RunDown reverts migrations back to target.
func RunDown(ctx context.Context, cfg *Config, target string) error {
	r, err := setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("downgrade: %w", err)
	}
	return r.Downgrade(ctx, target)
}

// RunStamp sets the current-revision marker without running scripts.
func RunStamp(ctx context.Context, cfg *Config, target string) error {
	r, err := setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("stamp: %w", err)
	}
	return r.Stamp(ctx, target)
}

func setup(ctx context.Context, cfg *Config) (*runner.Runner, error) {
	typ, conn := cfg.SourceType, cfg.SourceConn
	if typ == "" {
		typ, conn = "local", cfg.Dir
	}
	src, err := source.New(typ, conn)
	if err != nil {
		return nil, err
	}
	chain, err := source.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	dbType, dbConn, err := storage.Resolve(cfg.DBType, cfg.DBConn)
	if err != nil {
		return nil, err
	}
	store, err := storage.New(dbType, dbConn, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("couldn't create store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return nil, fmt.Errorf("couldn't start store: %w", err)
	}
	return runner.New(store, chain), nil
}
