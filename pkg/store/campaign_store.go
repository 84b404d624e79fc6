package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
	"github.com/primus-bench/orchestrator/pkg/model"
)

// CampaignStore persists Campaign rows, indexed by id (unique), status, and
// (priority, created_at), mirroring the teacher's dataplane-install-task facade shape.
type CampaignStore struct {
	db *gorm.DB
}

func NewCampaignStore(db *gorm.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

// Insert is an idempotent upsert on id.
func (s *CampaignStore) Insert(ctx context.Context, c *model.Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).
			Where(model.Campaign{ID: c.ID}).
			Assign(c).
			FirstOrCreate(&model.Campaign{}).Error
	})
}

// Get fetches one campaign by id.
func (s *CampaignStore) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	var c model.Campaign
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByStatus returns all campaigns in the given phase.
func (s *CampaignStore) ListByStatus(ctx context.Context, phase model.Phase) ([]*model.Campaign, error) {
	var out []*model.Campaign
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Where("phase = ?", phase).Find(&out).Error
	})
	return out, err
}

// ListFilter narrows ListAll by optional priority and a case-insensitive substring of
// the engine spec's model identifier, supplementing spec.md's bare "list all" behavior
// with the original's list-filtering feature; zero values mean "no filter".
type ListFilter struct {
	Priority model.Priority
	Model    string
}

// ListAll returns campaigns newest first, optionally filtered.
func (s *CampaignStore) ListAll(ctx context.Context, filter ListFilter) ([]*model.Campaign, error) {
	var out []*model.Campaign
	err := withRetry(ctx, func() error {
		q := s.db.WithContext(ctx).Order("created_at desc")
		if filter.Priority != "" {
			q = q.Where("priority = ?", filter.Priority)
		}
		if filter.Model != "" {
			q = q.Where("engine_spec ->> 'model_identifier' ILIKE ?", "%"+filter.Model+"%")
		}
		return q.Find(&out).Error
	})
	return out, err
}

// PendingOrdered returns pending campaigns sorted by (priority desc, created_at asc),
// the exact pick order the Scheduler Loop requires (spec §4.8). Priority is a text
// column, not an integer, so the ranking happens in Go after the created_at ordering
// is applied by the database — this keeps the SQL portable while the rank table lives
// in one place (model.Priority.Rank).
func (s *CampaignStore) PendingOrdered(ctx context.Context) ([]*model.Campaign, error) {
	var out []*model.Campaign
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).
			Where("phase = ?", model.PhasePending).
			Order("created_at asc").
			Find(&out).Error
	})
	if err != nil {
		return nil, err
	}
	sortByPriorityThenAge(out)
	return out, nil
}

func sortByPriorityThenAge(campaigns []*model.Campaign) {
	// stable insertion sort: created_at asc is already the base order from SQL, so a
	// stable sort on rank alone preserves it as the tiebreaker.
	for i := 1; i < len(campaigns); i++ {
		j := i
		for j > 0 && campaigns[j-1].Priority.Rank() < campaigns[j].Priority.Rank() {
			campaigns[j-1], campaigns[j] = campaigns[j], campaigns[j-1]
			j--
		}
	}
}

// CampaignPatch is a partial update applied by Update.
type CampaignPatch struct {
	Phase           *model.Phase
	CurrentStep     *string
	CompletedSteps  *int
	StartedAt       *time.Time
	CompletedAt     *time.Time
	EngineReleaseID *uuid.UUID
	Jobs            *model.JobListJSON
	ErrorMessage    *string
	CancelRequested *bool
	CleanupAttempted  *bool
	CleanupSuccessful *bool
}

// Update applies patch to the campaign identified by id, enforcing the monotonic
// phase invariant: a Phase change must be a legal DAG edge from the row's current phase.
func (s *CampaignStore) Update(ctx context.Context, id uuid.UUID, patch CampaignPatch) error {
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current model.Campaign
			if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
				return err
			}

			updates := map[string]interface{}{}
			if patch.Phase != nil {
				if !model.CanTransition(current.Phase, *patch.Phase) {
					return apperrors.New().
						WithKind(apperrors.KindUnrecoverableInternal).
						WithCode(apperrors.CodeInternal).
						WithMessagef("illegal phase transition %s -> %s for campaign %s", current.Phase, *patch.Phase, id).
						Err()
				}
				updates["phase"] = *patch.Phase
			}
			if patch.CurrentStep != nil {
				updates["current_step"] = *patch.CurrentStep
			}
			if patch.CompletedSteps != nil {
				updates["completed_steps"] = *patch.CompletedSteps
			}
			if patch.StartedAt != nil {
				updates["started_at"] = *patch.StartedAt
			}
			if patch.CompletedAt != nil {
				updates["completed_at"] = *patch.CompletedAt
			}
			if patch.EngineReleaseID != nil {
				updates["engine_release_id"] = *patch.EngineReleaseID
			}
			if patch.Jobs != nil {
				updates["jobs"] = *patch.Jobs
			}
			if patch.ErrorMessage != nil {
				updates["error_message"] = *patch.ErrorMessage
			}
			if patch.CancelRequested != nil {
				updates["cancel_requested"] = *patch.CancelRequested
			}
			if patch.CleanupAttempted != nil {
				updates["cleanup_attempted"] = *patch.CleanupAttempted
			}
			if patch.CleanupSuccessful != nil {
				updates["cleanup_successful"] = *patch.CleanupSuccessful
			}
			if len(updates) == 0 {
				return nil
			}
			return tx.Model(&model.Campaign{}).Where("id = ?", id).Updates(updates).Error
		})
	})
}

// AppendJob appends a JobRecord to a campaign's job list (append-only during
// processing, per invariant 5), so cleanup can find it even if the process crashes
// immediately after.
func (s *CampaignStore) AppendJob(ctx context.Context, id uuid.UUID, job model.JobRecord) error {
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current model.Campaign
			if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
				return err
			}
			jobs := append(model.JobListJSON{}, current.Jobs...)
			jobs = append(jobs, job)
			return tx.Model(&model.Campaign{}).Where("id = ?", id).Update("jobs", jobs).Error
		})
	})
}

// Delete removes a campaign. Permitted only when phase is terminal-or-pending unless
// force is set; force+processing callers MUST have invoked Cleanup Engine first, which
// this store does not verify (that ordering is the caller's responsibility).
func (s *CampaignStore) Delete(ctx context.Context, id uuid.UUID, force bool) error {
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current model.Campaign
			if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
				return err
			}
			if !force && current.Phase == model.PhaseProcessing {
				return apperrors.New().
					WithKind(apperrors.KindConfigurationError).
					WithCode(apperrors.CodeInvalidArgument).
					WithMessagef("campaign %s is processing; delete requires force", id).
					Err()
			}
			return tx.Where("id = ?", id).Delete(&model.Campaign{}).Error
		})
	})
}

// SetPriority updates a pending campaign's priority; callers enforce the
// pending-only restriction (spec §6) before calling this.
func (s *CampaignStore) SetPriority(ctx context.Context, id uuid.UUID, priority model.Priority) error {
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Model(&model.Campaign{}).
			Where("id = ?", id).Update("priority", priority).Error
	})
}

// StatusCounts aggregates campaign counts by phase for GET /queue/status.
func (s *CampaignStore) StatusCounts(ctx context.Context) (map[model.Phase]int64, error) {
	type row struct {
		Phase model.Phase
		Count int64
	}
	var rows []row
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Model(&model.Campaign{}).
			Select("phase, count(*) as count").
			Group("phase").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make(map[model.Phase]int64, len(rows))
	for _, r := range rows {
		out[r.Phase] = r.Count
	}
	return out, nil
}
