package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// schemaRevision is the single-row table recording the last revision
// successfully applied to the database. No row (or an empty value)
// means the database is at base.
type schemaRevision struct {
	VersionNum string `gorm:"column:version_num;primaryKey"`
}

func (schemaRevision) TableName() string {
	return "schema_revisions"
}

// CurrentRevision returns the current revision marker, or the empty
// string when the database is at base. A database no migration ever
// touched has no marker table yet; that is base too, so status
// commands never have to create tables.
func (s *Store) CurrentRevision(ctx context.Context) (string, error) {
	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(&schemaRevision{}) {
		return "", nil
	}
	var v schemaRevision
	if err := db.First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("storage: failed to get current revision: %w", err)
	}
	return v.VersionNum, nil
}

// SetCurrentRevision records the given revision as current. The empty
// id resets the marker to base.
func (s *Store) SetCurrentRevision(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&schemaRevision{}).Error; err != nil {
			return err
		}
		if id == "" {
			return nil
		}
		return tx.Create(&schemaRevision{VersionNum: id}).Error
	})
	if err != nil {
		return fmt.Errorf("storage: failed to set current revision %s: %w", id, err)
	}
	return nil
}
