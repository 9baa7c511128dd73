// Package runner moves the database's current-revision marker along
// the revision chain by applying or reverting scripts.
package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/finwise/finmig/pkg/revision"
	"github.com/finwise/finmig/pkg/storage"
)

// LockTTL bounds how long a crashed run can hold the migration lease.
const LockTTL = 10 * time.Minute

// Runner applies revision scripts from a chain against a store.
type Runner struct {
	store *storage.Store
	chain *revision.Chain
}

func New(store *storage.Store, chain *revision.Chain) *Runner {
	return &Runner{store: store, chain: chain}
}

// Upgrade applies every revision strictly between the current marker
// and target, in chain order. The marker is advanced only after each
// step succeeds: a failing step halts the run and leaves the marker at
// the last applied revision, so a rerun resumes from there.
func (r *Runner) Upgrade(ctx context.Context, target string) error {
	return r.run(ctx, func(current string) error {
		to, err := r.chain.Resolve(target, current)
		if err != nil {
			return err
		}
		steps, err := r.chain.UpPath(current, to)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			log.Println("runner: nothing to upgrade, database is up to date")
			return nil
		}
		for _, step := range steps {
			log.Printf("runner: upgrading %s, %s", step.ID, step.Description)
			if err := r.store.ApplyStep(ctx, step.Up); err != nil {
				return fmt.Errorf("runner: upgrade %s failed: %w", step.ID, err)
			}
			if err := r.store.SetCurrentRevision(ctx, step.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Downgrade reverts every revision from the current marker back to
// target, in reverse chain order. The marker follows each successful
// revert, so a failure is recoverable by rerunning.
func (r *Runner) Downgrade(ctx context.Context, target string) error {
	return r.run(ctx, func(current string) error {
		to, err := r.chain.Resolve(target, current)
		if err != nil {
			return err
		}
		steps, markers, err := r.chain.DownPath(current, to)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			log.Println("runner: nothing to downgrade")
			return nil
		}
		for i, step := range steps {
			log.Printf("runner: downgrading %s, %s", step.ID, step.Description)
			if err := r.store.ApplyStep(ctx, step.Down); err != nil {
				return fmt.Errorf("runner: downgrade %s failed: %w", step.ID, err)
			}
			if err := r.store.SetCurrentRevision(ctx, markers[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stamp sets the marker to target without executing any script, for
// adopting databases migrated by other means.
func (r *Runner) Stamp(ctx context.Context, target string) error {
	return r.run(ctx, func(current string) error {
		to, err := r.chain.Resolve(target, current)
		if err != nil {
			return err
		}
		log.Printf("runner: stamping %s", displayID(to))
		return r.store.SetCurrentRevision(ctx, to)
	})
}

// run wraps an operation with bookkeeping-table setup and the
// migration lease.
func (r *Runner) run(ctx context.Context, fn func(current string) error) error {
	if err := r.store.Init(ctx); err != nil {
		return err
	}
	owner, err := r.store.AcquireLock(ctx, LockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.store.ReleaseLock(ctx, owner); err != nil {
			log.Printf("runner: %v", err)
		}
	}()
	current, err := r.store.CurrentRevision(ctx)
	if err != nil {
		return err
	}
	if current != "" && r.chain.Get(current) == nil {
		return fmt.Errorf("runner: database is at %s which is not in the script chain", current)
	}
	return fn(current)
}

func displayID(id string) string {
	if id == "" {
		return revision.Base
	}
	return id
}
