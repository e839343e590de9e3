package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/repositories"
)

func briefTitles(rec *Recommendation) []string {
	titles := make([]string, 0, len(rec.Tasks))
	for _, brief := range rec.Tasks {
		titles = append(titles, brief.Title)
	}
	return titles
}

func TestRecommendationDiamondUnblocksInWaves(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	a := e.createTask(t, &models.Task{Title: "a"})
	b := e.createTask(t, &models.Task{Title: "b"})
	c := e.createTask(t, &models.Task{Title: "c"})
	d := e.createTask(t, &models.Task{Title: "d"})

	// a -> b, a -> c, then b and c fan into d.
	_, err := e.dependencies.CreateFanOut(ctx, a.ID, []uuid.UUID{b.ID, c.ID}, nil)
	require.NoError(t, err)
	_, err = e.dependencies.CreateFanIn(ctx, []uuid.UUID{b.ID, c.ID}, d.ID, nil)
	require.NoError(t, err)

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, briefTitles(rec))
	assert.Equal(t, ModeSequential, rec.Mode)
	assert.Equal(t, 4, rec.TotalCandidates)

	// Completing a releases b and c but not d.
	e.setStatus(t, a.ID, 1, "completed")
	rec, err = e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, briefTitles(rec))
	assert.Equal(t, ModeParallelBatch, rec.Mode)

	e.setStatus(t, b.ID, 1, "completed")
	e.setStatus(t, c.ID, 1, "completed")
	rec, err = e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, briefTitles(rec))
}

func TestRecommendationEarlyUnblockAtWork(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	blocker := e.createTask(t, &models.Task{Title: "blocker"})
	blocked := e.createTask(t, &models.Task{Title: "downstream"})

	work := models.RoleWork
	_, err := e.dependencies.Create(ctx, []DependencySpec{{
		FromTaskID: blocker.ID, ToTaskID: blocked.ID,
		Type: models.DependencyBlocks, UnblockAt: &work,
	}}, nil)
	require.NoError(t, err)

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"blocker"}, briefTitles(rec))

	// The blocker merely starting satisfies an unblock-at-work edge.
	e.setStatus(t, blocker.ID, 1, "in-progress")
	rec, err = e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"downstream"}, briefTitles(rec))
	assert.Equal(t, ModeSequential, rec.Mode)
}

func TestRecommendationOrderingAndLimit(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	e.createTask(t, &models.Task{Title: "low easy", Priority: models.PriorityLow, Complexity: 1})
	e.createTask(t, &models.Task{Title: "high hard", Priority: models.PriorityHigh, Complexity: 8})
	e.createTask(t, &models.Task{Title: "high easy", Priority: models.PriorityHigh, Complexity: 2})
	e.createTask(t, &models.Task{Title: "medium", Priority: models.PriorityMedium, Complexity: 5})

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"high easy", "high hard", "medium", "low easy"}, briefTitles(rec))
	assert.Equal(t, ModeParallelBatch, rec.Mode)

	rec, err = e.recommend.GetNextTasks(ctx, RecommendationScope{}, 2, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"high easy", "high hard"}, briefTitles(rec))
	assert.Equal(t, 4, rec.TotalCandidates)
}

func TestRecommendationEmptyScopes(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, ModeComplete, rec.Mode)
	assert.Equal(t, "No tasks exist in this scope", rec.Reason)

	e.createTask(t, &models.Task{Title: "done", Status: "completed"})
	rec, err = e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, ModeComplete, rec.Mode)
	assert.Equal(t, "All tasks are terminal", rec.Reason)

	e.createTask(t, &models.Task{Title: "running", Status: "in-progress"})
	rec, err = e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, ModeWaiting, rec.Mode)
}

func TestRecommendationWaitingWhenBlockedWithWorkInFlight(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	gate := e.createTask(t, &models.Task{Title: "gate", Status: "in-review"})
	stuck := e.createTask(t, &models.Task{Title: "stuck"})
	_, err := e.dependencies.Create(ctx, []DependencySpec{{
		FromTaskID: gate.ID, ToTaskID: stuck.ID, Type: models.DependencyBlocks,
	}}, nil)
	require.NoError(t, err)

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, ModeWaiting, rec.Mode)
	assert.Empty(t, rec.Tasks)
	assert.Equal(t, 1, rec.TotalCandidates)
}

func TestRecommendationBlockedWhenNothingInFlight(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	// The gate itself sits in a blocked status, so nothing is in flight and
	// nothing is startable.
	gate := e.createTask(t, &models.Task{Title: "gate", Status: "blocked"})
	stuck := e.createTask(t, &models.Task{Title: "stuck"})
	_, err := e.dependencies.Create(ctx, []DependencySpec{{
		FromTaskID: gate.ID, ToTaskID: stuck.ID, Type: models.DependencyBlocks,
	}}, nil)
	require.NoError(t, err)

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, ModeBlocked, rec.Mode)
	assert.Empty(t, rec.Tasks)
}

func TestRecommendationIncrementalBatch(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	e.createTask(t, &models.Task{Title: "one"})
	e.createTask(t, &models.Task{Title: "two"})
	e.createTask(t, &models.Task{Title: "busy", Status: "in-progress"})

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, ModeIncrementalBatch, rec.Mode)
	assert.Len(t, rec.Tasks, 2)
}

func TestRecommendationModeReflectsReturnedBatch(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	e.createTask(t, &models.Task{Title: "one"})
	e.createTask(t, &models.Task{Title: "two"})
	e.createTask(t, &models.Task{Title: "three"})

	// Truncating to a single task makes the batch sequential even though
	// more tasks are startable.
	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, 1, false)
	require.NoError(t, err)
	require.Len(t, rec.Tasks, 1)
	assert.Equal(t, ModeSequential, rec.Mode)
	assert.Equal(t, 3, rec.TotalCandidates)

	rec, err = e.recommend.GetNextTasks(ctx, RecommendationScope{}, 2, false)
	require.NoError(t, err)
	require.Len(t, rec.Tasks, 2)
	assert.Equal(t, ModeParallelBatch, rec.Mode)
}

func TestRecommendationSummaryRequiresDetails(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	e.createTask(t, &models.Task{Title: "terse", Summary: "long form context"})

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	require.Len(t, rec.Tasks, 1)
	assert.Empty(t, rec.Tasks[0].Summary)

	rec, err = e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, true)
	require.NoError(t, err)
	require.Len(t, rec.Tasks, 1)
	assert.Equal(t, "long form context", rec.Tasks[0].Summary)
}

func TestRecommendationOversizedLimitIsClamped(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	e.createTask(t, &models.Task{Title: "only"})

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, repositories.MaxListLimit+50, false)
	require.NoError(t, err)
	assert.Len(t, rec.Tasks, 1)
	assert.LessOrEqual(t, len(rec.Tasks), repositories.MaxListLimit)
}

func TestRecommendationNegativeLimitRejected(t *testing.T) {
	e := newEnv(t, "")

	_, err := e.recommend.GetNextTasks(context.Background(), RecommendationScope{}, -1, false)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRecommendationScopedToProject(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	project := &models.Project{Name: "scoped", Status: "planning"}
	require.NoError(t, e.projects.Create(ctx, project))
	e.createTask(t, &models.Task{Title: "inside", ProjectID: &project.ID})
	e.createTask(t, &models.Task{Title: "outside"})

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{ProjectID: &project.ID}, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"inside"}, briefTitles(rec))
}

func TestRecommendationResolvesAgentRole(t *testing.T) {
	e := newEnv(t, `
agent_mapping:
  frontend: ui-engineer
`)
	ctx := context.Background()
	e.createTask(t, &models.Task{Title: "styled", Tags: []string{"frontend"}})

	rec, err := e.recommend.GetNextTasks(ctx, RecommendationScope{}, 0, false)
	require.NoError(t, err)
	require.Len(t, rec.Tasks, 1)
	assert.Equal(t, "ui-engineer", rec.Tasks[0].AgentRole)
}
