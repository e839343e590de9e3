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

func TestTaskCreateAndGet(t *testing.T) {
	_, _, _, tasks := newTestRepos(t)
	ctx := context.Background()

	task := &models.Task{
		Title:      "Wire up payment flow",
		Summary:    "Stripe checkout integration",
		Status:     "pending",
		Priority:   models.PriorityHigh,
		Complexity: 7,
		Tags:       []string{"backend", "payments"},
	}
	require.NoError(t, tasks.Create(ctx, task))
	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, 1, task.Version)

	got, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wire up payment flow", got.Title)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"backend", "payments"}, got.Tags)
}

func TestTaskCreateValidation(t *testing.T) {
	_, _, _, tasks := newTestRepos(t)
	ctx := context.Background()

	err := tasks.Create(ctx, &models.Task{Status: "pending", Priority: models.PriorityLow, Complexity: 5})
	assert.True(t, apperrors.IsValidation(err))

	err = tasks.Create(ctx, &models.Task{Title: "x", Status: "pending", Priority: models.PriorityLow, Complexity: 11})
	assert.True(t, apperrors.IsValidation(err))
}

func TestTaskCreateRejectsMissingParents(t *testing.T) {
	_, projects, features, tasks := newTestRepos(t)
	ctx := context.Background()

	missing := uuid.New()
	err := tasks.Create(ctx, &models.Task{
		Title: "orphan", Status: "pending", Priority: models.PriorityLow,
		Complexity: 5, FeatureID: &missing,
	})
	assert.True(t, apperrors.IsNotFound(err))

	// A feature belonging to project A cannot parent a task claiming project B.
	projectA := &models.Project{Name: "A", Status: "planning"}
	require.NoError(t, projects.Create(ctx, projectA))
	projectB := &models.Project{Name: "B", Status: "planning"}
	require.NoError(t, projects.Create(ctx, projectB))
	feature := &models.Feature{Name: "f", Status: "planning", Priority: models.PriorityMedium, ProjectID: &projectA.ID}
	require.NoError(t, features.Create(ctx, feature))

	err = tasks.Create(ctx, &models.Task{
		Title: "mismatched", Status: "pending", Priority: models.PriorityLow, Complexity: 5,
		FeatureID: &feature.ID, ProjectID: &projectB.ID,
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestTaskUpdateOptimisticLocking(t *testing.T) {
	_, _, _, tasks := newTestRepos(t)
	ctx := context.Background()

	task := createTestTask(t, tasks, "original", "pending", models.PriorityMedium)

	task.Title = "updated once"
	require.NoError(t, tasks.Update(ctx, task))
	assert.Equal(t, 2, task.Version)

	// Replay with the stale version.
	stale := *task
	stale.Version = 1
	stale.Title = "stale write"
	err := tasks.Update(ctx, &stale)
	assert.True(t, apperrors.IsConflict(err))

	got, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated once", got.Title)
	assert.Equal(t, 2, got.Version)
}

func TestTaskUpdateStatusIncrementsByOne(t *testing.T) {
	_, _, _, tasks := newTestRepos(t)
	ctx := context.Background()

	task := createTestTask(t, tasks, "status walk", "pending", models.PriorityMedium)

	updated, err := tasks.UpdateStatus(ctx, task.ID, 1, "in-progress")
	require.NoError(t, err)
	assert.Equal(t, "in-progress", updated.Status)
	assert.Equal(t, 2, updated.Version)

	_, err = tasks.UpdateStatus(ctx, task.ID, 1, "in-review")
	assert.True(t, apperrors.IsConflict(err))

	_, err = tasks.UpdateStatus(ctx, uuid.New(), 1, "in-review")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestTaskDeleteTwiceIsNotFound(t *testing.T) {
	_, _, _, tasks := newTestRepos(t)
	ctx := context.Background()

	task := createTestTask(t, tasks, "doomed", "pending", models.PriorityLow)

	require.NoError(t, tasks.Delete(ctx, task.ID))
	err := tasks.Delete(ctx, task.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestTaskSearchRequiresAllTerms(t *testing.T) {
	_, _, _, tasks := newTestRepos(t)
	ctx := context.Background()

	createTestTask(t, tasks, "Fix login redirect", "pending", models.PriorityHigh)
	createTestTask(t, tasks, "Fix logout crash", "pending", models.PriorityHigh)
	createTestTask(t, tasks, "Add login analytics", "pending", models.PriorityLow)

	results, err := tasks.Search(ctx, "fix login", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Fix login redirect", results[0].Title)

	// Whitespace-only queries match nothing.
	results, err = tasks.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTaskSearchMatchesTags(t *testing.T) {
	_, _, _, tasks := newTestRepos(t)
	ctx := context.Background()

	task := &models.Task{
		Title: "Refactor sync loop", Status: "pending",
		Priority: models.PriorityMedium, Complexity: 5,
		Tags: []string{"performance"},
	}
	require.NoError(t, tasks.Create(ctx, task))

	results, err := tasks.Search(ctx, "performance", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, task.ID, results[0].ID)
}

func TestTaskFindByFiltersLimitZeroReturnsEmpty(t *testing.T) {
	_, _, _, tasks := newTestRepos(t)
	ctx := context.Background()

	createTestTask(t, tasks, "anything", "pending", models.PriorityLow)

	results, err := tasks.FindByFilters(ctx, EntityFilters{Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTaskFindByFiltersTagMatch(t *testing.T) {
	_, _, _, tasks := newTestRepos(t)
	ctx := context.Background()

	both := &models.Task{Title: "both", Status: "pending", Priority: models.PriorityLow,
		Complexity: 5, Tags: []string{"frontend", "urgent"}}
	require.NoError(t, tasks.Create(ctx, both))
	one := &models.Task{Title: "one", Status: "pending", Priority: models.PriorityLow,
		Complexity: 5, Tags: []string{"frontend"}}
	require.NoError(t, tasks.Create(ctx, one))

	anyMatch, err := tasks.FindByFilters(ctx, EntityFilters{Tags: []string{"frontend", "urgent"}, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, anyMatch, 2)

	allMatch, err := tasks.FindByFilters(ctx, EntityFilters{
		Tags: []string{"frontend", "urgent"}, MatchAllTags: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, allMatch, 1)
	assert.Equal(t, both.ID, allMatch[0].ID)
}

func TestTaskFindByStatusesOrdersByCreation(t *testing.T) {
	_, _, _, tasks := newTestRepos(t)
	ctx := context.Background()

	first := createTestTask(t, tasks, "first", "pending", models.PriorityLow)
	createTestTask(t, tasks, "elsewhere", "in-progress", models.PriorityLow)
	second := createTestTask(t, tasks, "second", "backlog", models.PriorityLow)

	results, err := tasks.FindByStatuses(ctx, nil, nil, []string{"pending", "backlog"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, first.ID, results[0].ID)
	assert.Equal(t, second.ID, results[1].ID)
}

func TestTaskCountByStatus(t *testing.T) {
	_, projects, _, tasks := newTestRepos(t)
	ctx := context.Background()

	project := &models.Project{Name: "scoped", Status: "planning"}
	require.NoError(t, projects.Create(ctx, project))

	inScope := &models.Task{Title: "a", Status: "pending", Priority: models.PriorityLow,
		Complexity: 5, ProjectID: &project.ID}
	require.NoError(t, tasks.Create(ctx, inScope))
	createTestTask(t, tasks, "outside", "pending", models.PriorityLow)

	counts, err := tasks.CountByStatus(ctx, &project.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"pending": 1}, counts)
}
