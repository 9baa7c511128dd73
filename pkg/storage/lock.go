package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// ErrLocked is returned when another migration run holds the lease.
var ErrLocked = errors.New("migration already in progress")

// migrationLock is a lease preventing concurrent migration runs against
// the same database. A single well-known row is taken before applying
// steps; stale leases expire after their TTL so a crashed run doesn't
// wedge the tool.
type migrationLock struct {
	ID        string `gorm:"primarykey"`
	Owner     string
	ExpiresAt int64
}

const lockID = "finmig"

// AcquireLock takes the migration lease and returns an owner token to
// release it with. It fails fast with ErrLocked if a live lease exists.
func (s *Store) AcquireLock(ctx context.Context, ttl time.Duration) (string, error) {
	owner := ulid.Make().String()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lock migrationLock
		err := tx.First(&lock, "id = ?", lockID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case lock.ExpiresAt > time.Now().Unix():
			return fmt.Errorf("%w (lease %s expires at %s)", ErrLocked, lock.Owner, time.Unix(lock.ExpiresAt, 0).UTC().Format(time.RFC3339))
		}
		return tx.Save(&migrationLock{
			ID:        lockID,
			Owner:     owner,
			ExpiresAt: time.Now().Add(ttl).Unix(),
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return "", err
		}
		return "", fmt.Errorf("storage: failed to acquire migration lock: %w", err)
	}
	return owner, nil
}

// ReleaseLock releases the lease if it is still held by owner.
func (s *Store) ReleaseLock(ctx context.Context, owner string) error {
	if err := s.db.WithContext(ctx).Delete(&migrationLock{}, "id = ? AND owner = ?", lockID, owner).Error; err != nil {
		return fmt.Errorf("storage: failed to release migration lock: %w", err)
	}
	return nil
}
