package model

import (
	"time"

	"github.com/google/uuid"
)

// EngineReleasePhase is the lifecycle of an installed engine (spec §3).
type EngineReleasePhase string

const (
	EngineReleaseDeploying  EngineReleasePhase = "deploying"
	EngineReleaseRunning    EngineReleasePhase = "running"
	EngineReleaseFailed     EngineReleasePhase = "failed"
	EngineReleaseStopped    EngineReleasePhase = "stopped"
	EngineReleaseCleanedUp  EngineReleasePhase = "cleaned_up"
)

// EngineRelease is the Controller's view of an installed engine (spec §3).
type EngineRelease struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`

	ReleaseName string             `gorm:"column:release_name;uniqueIndex" json:"release_name"`
	Namespace   string             `gorm:"column:namespace" json:"namespace"`
	Phase       EngineReleasePhase `gorm:"column:phase;index" json:"phase"`

	ValuesFingerprint string `gorm:"column:values_fingerprint;index" json:"values_fingerprint,omitempty"`
	ModelIdentifier   string `gorm:"column:model_identifier" json:"model_identifier,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	ErrorMessage string `gorm:"column:error_message" json:"error_message,omitempty"`

	// OwnedByController is false when SkipEngine resolved to a pre-existing release the
	// Controller did not create (invariant 3); Cleanup Engine MUST NOT tear that down.
	OwnedByController bool `gorm:"column:owned_by_controller" json:"owned_by_controller"`
}

func (EngineRelease) TableName() string { return "engine_releases" }

// ReuseRecord is at most one process-wide record mapping a values fingerprint to the
// release it created (spec §3).
type ReuseRecord struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`

	ValuesFingerprint string    `gorm:"column:values_fingerprint;uniqueIndex" json:"values_fingerprint"`
	ValuesText        string    `gorm:"column:values_text" json:"values_text"`
	ReleaseID         uuid.UUID `gorm:"column:release_id;type:uuid" json:"release_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ReuseRecord) TableName() string { return "reuse_record" }
