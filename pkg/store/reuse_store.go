package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primus-bench/orchestrator/pkg/model"
)

// ReuseRecordStore persists the single process-wide ReuseRecord (spec §3, §4.3) so a
// restarted process recovers the fingerprint-to-release mapping.
type ReuseRecordStore struct {
	db *gorm.DB
}

func NewReuseRecordStore(db *gorm.DB) *ReuseRecordStore {
	return &ReuseRecordStore{db: db}
}

// Get returns the current record, or (nil, nil) if none exists yet.
func (s *ReuseRecordStore) Get(ctx context.Context) (*model.ReuseRecord, error) {
	var rec model.ReuseRecord
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).First(&rec).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Set replaces the singleton record with rec, written after a successful install
// whose input was a values document.
func (s *ReuseRecordStore) Set(ctx context.Context, rec *model.ReuseRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("1 = 1").Delete(&model.ReuseRecord{}).Error; err != nil {
				return err
			}
			return tx.Create(rec).Error
		})
	})
}

// Clear removes the singleton record, called when its release is cleaned up.
func (s *ReuseRecordStore) Clear(ctx context.Context) error {
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Where("1 = 1").Delete(&model.ReuseRecord{}).Error
	})
}
