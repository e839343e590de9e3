package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
)

func newDependencyFixture(t *testing.T) (TaskRepository, DependencyRepository, []*models.Task) {
	t.Helper()
	db, _, _, tasks := newTestRepos(t)
	deps := NewDependencyRepository(db)

	created := make([]*models.Task, 4)
	for i, title := range []string{"a", "b", "c", "d"} {
		created[i] = createTestTask(t, tasks, title, "pending", models.PriorityMedium)
	}
	return tasks, deps, created
}

func blocksEdge(from, to uuid.UUID) *models.Dependency {
	return &models.Dependency{FromTaskID: from, ToTaskID: to, Type: models.DependencyBlocks}
}

func TestDependencyCreateAndRead(t *testing.T) {
	_, deps, tasks := newDependencyFixture(t)
	ctx := context.Background()

	review := models.RoleReview
	dep := &models.Dependency{
		FromTaskID: tasks[0].ID,
		ToTaskID:   tasks[1].ID,
		Type:       models.DependencyBlocks,
		UnblockAt:  &review,
	}
	require.NoError(t, deps.Create(ctx, dep))

	got, err := deps.GetByID(ctx, dep.ID)
	require.NoError(t, err)
	require.NotNil(t, got.UnblockAt)
	assert.Equal(t, models.RoleReview, *got.UnblockAt)

	// Edges without unblock_at read back as nil.
	relate := &models.Dependency{FromTaskID: tasks[0].ID, ToTaskID: tasks[2].ID, Type: models.DependencyRelatesTo}
	require.NoError(t, deps.Create(ctx, relate))
	got, err = deps.GetByID(ctx, relate.ID)
	require.NoError(t, err)
	assert.Nil(t, got.UnblockAt)
}

func TestDependencyRejectsSelfAndMissing(t *testing.T) {
	_, deps, tasks := newDependencyFixture(t)
	ctx := context.Background()

	err := deps.Create(ctx, blocksEdge(tasks[0].ID, tasks[0].ID))
	assert.True(t, apperrors.IsValidation(err))

	err = deps.Create(ctx, blocksEdge(tasks[0].ID, uuid.New()))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDependencyRejectsDuplicates(t *testing.T) {
	_, deps, tasks := newDependencyFixture(t)
	ctx := context.Background()

	require.NoError(t, deps.Create(ctx, blocksEdge(tasks[0].ID, tasks[1].ID)))
	err := deps.Create(ctx, blocksEdge(tasks[0].ID, tasks[1].ID))
	assert.True(t, apperrors.IsValidation(err))

	// Same endpoints with a different type is a distinct edge.
	err = deps.Create(ctx, &models.Dependency{
		FromTaskID: tasks[0].ID, ToTaskID: tasks[1].ID, Type: models.DependencyRelatesTo})
	assert.NoError(t, err)
}

func TestDependencyCycleDetection(t *testing.T) {
	_, deps, tasks := newDependencyFixture(t)
	ctx := context.Background()

	// a -> b -> c
	require.NoError(t, deps.Create(ctx, blocksEdge(tasks[0].ID, tasks[1].ID)))
	require.NoError(t, deps.Create(ctx, blocksEdge(tasks[1].ID, tasks[2].ID)))

	// c -> a closes the loop.
	err := deps.Create(ctx, blocksEdge(tasks[2].ID, tasks[0].ID))
	assert.True(t, apperrors.IsValidation(err))

	// RELATES_TO edges never participate in cycles.
	err = deps.Create(ctx, &models.Dependency{
		FromTaskID: tasks[2].ID, ToTaskID: tasks[0].ID, Type: models.DependencyRelatesTo})
	assert.NoError(t, err)
}

func TestDependencyBatchIsAtomicAndSeesItself(t *testing.T) {
	_, deps, tasks := newDependencyFixture(t)
	ctx := context.Background()

	// The second edge closes a cycle against the first edge of the same
	// batch, so nothing may be inserted.
	err := deps.CreateBatch(ctx, []*models.Dependency{
		blocksEdge(tasks[0].ID, tasks[1].ID),
		blocksEdge(tasks[1].ID, tasks[0].ID),
	})
	assert.True(t, apperrors.IsValidation(err))

	edges, err := deps.FindByTaskID(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestDependencyDeleteByEndpoints(t *testing.T) {
	_, deps, tasks := newDependencyFixture(t)
	ctx := context.Background()

	require.NoError(t, deps.Create(ctx, blocksEdge(tasks[0].ID, tasks[1].ID)))
	require.NoError(t, deps.Create(ctx, &models.Dependency{
		FromTaskID: tasks[0].ID, ToTaskID: tasks[1].ID, Type: models.DependencyRelatesTo}))

	blocks := models.DependencyBlocks
	n, err := deps.DeleteByEndpoints(ctx, tasks[0].ID, tasks[1].ID, &blocks)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = deps.DeleteByEndpoints(ctx, tasks[0].ID, tasks[1].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDependencyDeleteByTaskID(t *testing.T) {
	_, deps, tasks := newDependencyFixture(t)
	ctx := context.Background()

	require.NoError(t, deps.Create(ctx, blocksEdge(tasks[0].ID, tasks[1].ID)))
	require.NoError(t, deps.Create(ctx, blocksEdge(tasks[2].ID, tasks[0].ID)))
	require.NoError(t, deps.Create(ctx, blocksEdge(tasks[2].ID, tasks[3].ID)))

	n, err := deps.DeleteByTaskID(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := deps.FindByTaskID(ctx, tasks[2].ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, tasks[3].ID, remaining[0].ToTaskID)
}
