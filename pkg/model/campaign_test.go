package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriority_Rank_OrdersUrgentFirst(t *testing.T) {
	assert.Greater(t, PriorityUrgent.Rank(), PriorityHigh.Rank())
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
}

func TestPriority_Valid(t *testing.T) {
	assert.True(t, PriorityUrgent.Valid())
	assert.False(t, Priority("critical").Valid())
	assert.False(t, Priority("").Valid())
}

func TestPhase_Terminal(t *testing.T) {
	assert.True(t, PhaseCompleted.Terminal())
	assert.True(t, PhaseFailed.Terminal())
	assert.True(t, PhaseCancelled.Terminal())
	assert.False(t, PhasePending.Terminal())
	assert.False(t, PhaseProcessing.Terminal())
}

func TestCanTransition_LegalEdges(t *testing.T) {
	assert.True(t, CanTransition(PhasePending, PhaseProcessing))
	assert.True(t, CanTransition(PhaseProcessing, PhaseCompleted))
	assert.True(t, CanTransition(PhaseProcessing, PhaseFailed))
	assert.True(t, CanTransition(PhaseProcessing, PhaseCancelled))
}

func TestCanTransition_IllegalEdges(t *testing.T) {
	assert.False(t, CanTransition(PhasePending, PhaseCompleted))
	assert.False(t, CanTransition(PhaseCompleted, PhaseProcessing))
	assert.False(t, CanTransition(PhasePending, PhasePending))
	assert.False(t, CanTransition(PhaseProcessing, PhasePending))
	assert.False(t, CanTransition(PhaseCancelled, PhaseProcessing))
}

func TestHasValuesDocument(t *testing.T) {
	var nilSpec *EngineSpec
	assert.False(t, nilSpec.HasValuesDocument())

	empty := &EngineSpec{}
	assert.False(t, empty.HasValuesDocument())

	withValues := &EngineSpec{ValuesText: "replicaCount: 1"}
	assert.True(t, withValues.HasValuesDocument())
}

func TestTotalStepsFor(t *testing.T) {
	assert.Equal(t, 3, TotalStepsFor(false, 2))
	assert.Equal(t, 2, TotalStepsFor(true, 2))
	assert.Equal(t, 1, TotalStepsFor(false, 0))
	assert.Equal(t, 0, TotalStepsFor(true, 0))
}

func TestCampaign_TableName(t *testing.T) {
	assert.Equal(t, "campaigns", Campaign{}.TableName())
}
