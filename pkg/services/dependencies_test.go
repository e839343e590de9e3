package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
)

func (e *env) fourTasks(t *testing.T) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 4)
	for i, title := range []string{"a", "b", "c", "d"} {
		ids[i] = e.createTask(t, &models.Task{Title: title}).ID
	}
	return ids
}

func TestDependencyBlocksDefaultsToTerminal(t *testing.T) {
	e := newEnv(t, "")
	ids := e.fourTasks(t)

	created, err := e.dependencies.Create(context.Background(), []DependencySpec{
		{FromTaskID: ids[0], ToTaskID: ids[1], Type: models.DependencyBlocks},
	}, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.NotNil(t, created[0].UnblockAt)
	assert.Equal(t, models.RoleTerminal, *created[0].UnblockAt)
}

func TestDependencyIsBlockedBySwapsEndpoints(t *testing.T) {
	e := newEnv(t, "")
	ids := e.fourTasks(t)

	created, err := e.dependencies.Create(context.Background(), []DependencySpec{
		{FromTaskID: ids[0], ToTaskID: ids[1], Type: models.DependencyIsBlockedBy},
	}, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.DependencyBlocks, created[0].Type)
	assert.Equal(t, ids[1], created[0].FromTaskID)
	assert.Equal(t, ids[0], created[0].ToTaskID)
}

func TestDependencyUnblockAtRejectedOnRelatesTo(t *testing.T) {
	e := newEnv(t, "")
	ids := e.fourTasks(t)
	work := models.RoleWork

	_, err := e.dependencies.Create(context.Background(), []DependencySpec{
		{FromTaskID: ids[0], ToTaskID: ids[1], Type: models.DependencyRelatesTo, UnblockAt: &work},
	}, nil)
	assert.True(t, apperrors.IsValidation(err))

	// The batch default must not leak onto non-BLOCKS edges either.
	_, err = e.dependencies.Create(context.Background(), []DependencySpec{
		{FromTaskID: ids[0], ToTaskID: ids[1], Type: models.DependencyRelatesTo},
	}, &work)
	assert.True(t, apperrors.IsValidation(err))
}

func TestDependencyBatchDefaultAndOverride(t *testing.T) {
	e := newEnv(t, "")
	ids := e.fourTasks(t)
	work, review := models.RoleWork, models.RoleReview

	created, err := e.dependencies.Create(context.Background(), []DependencySpec{
		{FromTaskID: ids[0], ToTaskID: ids[1], Type: models.DependencyBlocks},
		{FromTaskID: ids[0], ToTaskID: ids[2], Type: models.DependencyBlocks, UnblockAt: &review},
	}, &work)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, models.RoleWork, *created[0].UnblockAt)
	assert.Equal(t, models.RoleReview, *created[1].UnblockAt)
}

func TestDependencyCreateLinear(t *testing.T) {
	e := newEnv(t, "")
	ids := e.fourTasks(t)

	created, err := e.dependencies.CreateLinear(context.Background(), ids[:3], nil)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, ids[0], created[0].FromTaskID)
	assert.Equal(t, ids[1], created[0].ToTaskID)
	assert.Equal(t, ids[1], created[1].FromTaskID)
	assert.Equal(t, ids[2], created[1].ToTaskID)

	_, err = e.dependencies.CreateLinear(context.Background(), ids[:1], nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestDependencyFanPatternsRejectDuplicates(t *testing.T) {
	e := newEnv(t, "")
	ids := e.fourTasks(t)
	ctx := context.Background()

	created, err := e.dependencies.CreateFanOut(ctx, ids[0], []uuid.UUID{ids[1], ids[2]}, nil)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	_, err = e.dependencies.CreateFanOut(ctx, ids[3], []uuid.UUID{ids[3]}, nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = e.dependencies.CreateFanIn(ctx, []uuid.UUID{ids[1], ids[1]}, ids[3], nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = e.dependencies.CreateFanIn(ctx, nil, ids[3], nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestDependencyEmptyBatchRejected(t *testing.T) {
	e := newEnv(t, "")

	_, err := e.dependencies.Create(context.Background(), nil, nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestDependencyDeleteBetweenAndList(t *testing.T) {
	e := newEnv(t, "")
	ids := e.fourTasks(t)
	ctx := context.Background()

	_, err := e.dependencies.Create(ctx, []DependencySpec{
		{FromTaskID: ids[0], ToTaskID: ids[1], Type: models.DependencyBlocks},
		{FromTaskID: ids[0], ToTaskID: ids[1], Type: models.DependencyRelatesTo},
	}, nil)
	require.NoError(t, err)

	edges, err := e.dependencies.ListForTask(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	n, err := e.dependencies.DeleteByEndpoints(ctx, ids[0], ids[1], nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
