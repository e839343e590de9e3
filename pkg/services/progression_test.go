package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
)

func TestStartWalksQueueWorkReview(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	task := e.createTask(t, &models.Task{Title: "progression walk"})

	result, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 1, TriggerStart)
	require.NoError(t, err)
	assert.Equal(t, "pending", result.FromStatus)
	assert.Equal(t, "in-progress", result.ToStatus)
	assert.Equal(t, models.RoleQueue, result.FromRole)
	assert.Equal(t, models.RoleWork, result.ToRole)
	assert.True(t, result.RoleChanged)
	assert.Equal(t, 2, result.Version)

	result, err = e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 2, TriggerStart)
	require.NoError(t, err)
	assert.Equal(t, "in-review", result.ToStatus)

	// Review has no further start target.
	_, err = e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 3, TriggerStart)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCompleteAndCancelPreferConventionalStatuses(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	task := e.createTask(t, &models.Task{Title: "done soon"})
	result, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 1, TriggerComplete)
	require.NoError(t, err)
	assert.Equal(t, "completed", result.ToStatus)
	assert.Equal(t, models.RoleTerminal, result.ToRole)

	// Completing an already-terminal entity is rejected.
	_, err = e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 2, TriggerComplete)
	assert.True(t, apperrors.IsValidation(err))

	other := e.createTask(t, &models.Task{Title: "abandoned"})
	result, err = e.progression.ApplyTrigger(ctx, models.EntityTask, other.ID, 1, TriggerCancel)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", result.ToStatus)
}

func TestResumeRestoresPreBlockRole(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	task := e.createTask(t, &models.Task{Title: "interrupted"})

	_, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 1, TriggerStart)
	require.NoError(t, err)
	blocked, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 2, TriggerBlock)
	require.NoError(t, err)
	assert.Equal(t, "blocked", blocked.ToStatus)

	resumed, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 3, TriggerResume)
	require.NoError(t, err)
	assert.Equal(t, "in-progress", resumed.ToStatus, "resume returns to the role held before blocking")

	// Resume is only legal from a blocked status.
	_, err = e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 4, TriggerResume)
	assert.True(t, apperrors.IsValidation(err))
}

func TestResumeWithoutHistoryFallsBackToQueue(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	// Created directly in a blocked status, so no block event exists.
	task := e.createTask(t, &models.Task{Title: "born blocked", Status: "blocked"})

	result, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 1, TriggerResume)
	require.NoError(t, err)
	assert.Equal(t, "pending", result.ToStatus)
}

func TestReopenOnlyFromTerminal(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	task := e.createTask(t, &models.Task{Title: "reopened"})

	_, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 1, TriggerReopen)
	assert.True(t, apperrors.IsValidation(err))

	_, err = e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 1, TriggerComplete)
	require.NoError(t, err)

	result, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 2, TriggerReopen)
	require.NoError(t, err)
	assert.Equal(t, "pending", result.ToStatus)
}

func TestTerminalStatusExitsOnlyViaReopen(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	task := e.createTask(t, &models.Task{Title: "sealed", Status: "completed"})

	// Explicit status writes must not bypass the reopen-only rule, not even
	// between terminal statuses.
	_, err := e.progression.ApplyStatus(ctx, models.EntityTask, task.ID, 1, "in-progress")
	assert.True(t, apperrors.IsValidation(err))
	_, err = e.progression.ApplyStatus(ctx, models.EntityTask, task.ID, 1, "pending")
	assert.True(t, apperrors.IsValidation(err))
	_, err = e.progression.ApplyStatus(ctx, models.EntityTask, task.ID, 1, "cancelled")
	assert.True(t, apperrors.IsValidation(err))

	got, err := e.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 1, got.Version)

	result, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 1, TriggerReopen)
	require.NoError(t, err)
	assert.Equal(t, "pending", result.ToStatus)
}

func TestApplyTriggerStaleVersionConflicts(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	task := e.createTask(t, &models.Task{Title: "contended"})

	_, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 1, TriggerStart)
	require.NoError(t, err)

	_, err = e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 1, TriggerStart)
	assert.True(t, apperrors.IsConflict(err))
}

func TestApplyStatusValidatesTarget(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	task := e.createTask(t, &models.Task{Title: "direct set"})

	_, err := e.progression.ApplyStatus(ctx, models.EntityTask, task.ID, 1, "shipped")
	assert.True(t, apperrors.IsValidation(err))

	result, err := e.progression.ApplyStatus(ctx, models.EntityTask, task.ID, 1, "in-review")
	require.NoError(t, err)
	assert.Equal(t, models.RoleReview, result.ToRole)
}

func TestRoleChangesAreRecorded(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	task := e.createTask(t, &models.Task{Title: "audited"})

	_, err := e.progression.ApplyTrigger(ctx, models.EntityTask, task.ID, 1, TriggerStart)
	require.NoError(t, err)

	// A move within the same role records nothing.
	_, err = e.progression.ApplyStatus(ctx, models.EntityTask, task.ID, 2, "in-progress")
	require.NoError(t, err)

	events, err := e.events.FindByEntityID(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.RoleQueue, events[0].FromRole)
	assert.Equal(t, models.RoleWork, events[0].ToRole)
	assert.Equal(t, "start", events[0].Trigger)
}

func TestNextStatusesFromQueue(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	task := e.createTask(t, &models.Task{Title: "options"})

	current, options, err := e.progression.NextStatuses(ctx, models.EntityTask, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", current)

	byTrigger := make(map[Trigger]string, len(options))
	for _, opt := range options {
		byTrigger[opt.Trigger] = opt.Status
	}
	assert.Equal(t, "in-progress", byTrigger[TriggerStart])
	assert.Equal(t, "completed", byTrigger[TriggerComplete])
	assert.Equal(t, "cancelled", byTrigger[TriggerCancel])
	assert.Equal(t, "blocked", byTrigger[TriggerBlock])
	assert.NotContains(t, byTrigger, TriggerResume)
	assert.NotContains(t, byTrigger, TriggerReopen)
}

func TestFeatureProgressionUsesItsOwnStatuses(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	feature := e.createFeature(t, "checkout")

	result, err := e.progression.ApplyTrigger(ctx, models.EntityFeature, feature.ID, 1, TriggerStart)
	require.NoError(t, err)
	assert.Equal(t, "in-development", result.ToStatus)
}

func TestParseTrigger(t *testing.T) {
	trigger, err := ParseTrigger("resume")
	require.NoError(t, err)
	assert.Equal(t, TriggerResume, trigger)

	_, err = ParseTrigger("launch")
	assert.True(t, apperrors.IsValidation(err))
}
