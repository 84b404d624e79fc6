package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primus-bench/orchestrator/pkg/model"
)

// EngineReleaseStore persists the Controller's view of installed engine releases.
type EngineReleaseStore struct {
	db *gorm.DB
}

func NewEngineReleaseStore(db *gorm.DB) *EngineReleaseStore {
	return &EngineReleaseStore{db: db}
}

func (s *EngineReleaseStore) Insert(ctx context.Context, r *model.EngineRelease) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Create(r).Error
	})
}

func (s *EngineReleaseStore) Get(ctx context.Context, id uuid.UUID) (*model.EngineRelease, error) {
	var r model.EngineRelease
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *EngineReleaseStore) GetByName(ctx context.Context, releaseName string) (*model.EngineRelease, error) {
	var r model.EngineRelease
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Where("release_name = ?", releaseName).First(&r).Error
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *EngineReleaseStore) UpdatePhase(ctx context.Context, id uuid.UUID, phase model.EngineReleasePhase, errMsg string) error {
	return withRetry(ctx, func() error {
		updates := map[string]interface{}{"phase": phase}
		if errMsg != "" {
			updates["error_message"] = errMsg
		}
		return s.db.WithContext(ctx).Model(&model.EngineRelease{}).Where("id = ?", id).Updates(updates).Error
	})
}
