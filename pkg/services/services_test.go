package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/database"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/repositories"
	"github.com/taskhive/taskhive/pkg/workflow"
)

// cleanupEnabledYAML turns the completion cascade on while keeping the
// built-in progression and retain tags.
const cleanupEnabledYAML = `
completion_cleanup:
  enabled: true
`

type env struct {
	db       *database.DB
	projects repositories.ProjectRepository
	features repositories.FeatureRepository
	tasks    repositories.TaskRepository
	sections repositories.SectionRepository
	deps     repositories.DependencyRepository
	events   repositories.RoleTransitionRepository
	wf       *workflow.Store

	entities     EntityService
	sectionSvc   SectionService
	dependencies DependencyService
	cascade      CompletionCascadeService
	progression  StatusProgressionService
	recommend    RecommendationService
	query        ContainerQueryService
}

// newEnv wires real repositories against an in-memory database. An empty
// workflowYAML uses the built-in defaults.
func newEnv(t *testing.T, workflowYAML string) *env {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := database.Open(ctx, &database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx, logger))

	var wf *workflow.Store
	if workflowYAML == "" {
		wf = workflow.NewDefaultStore(logger)
	} else {
		path := filepath.Join(t.TempDir(), "workflow.yaml")
		require.NoError(t, os.WriteFile(path, []byte(workflowYAML), 0o644))
		wf, err = workflow.NewStore(path, "", logger)
		require.NoError(t, err)
	}

	tags := repositories.NewTagRepository(db)
	e := &env{
		db:       db,
		projects: repositories.NewProjectRepository(db, tags),
		features: repositories.NewFeatureRepository(db, tags),
		tasks:    repositories.NewTaskRepository(db, tags),
		sections: repositories.NewSectionRepository(db),
		deps:     repositories.NewDependencyRepository(db),
		events:   repositories.NewRoleTransitionRepository(db),
		wf:       wf,
	}

	e.cascade = NewCompletionCascadeService(db, e.tasks, e.sections, e.deps, e.events, wf, logger)
	e.entities = NewEntityService(db, e.projects, e.features, e.tasks, e.sections, e.deps, e.events, wf, logger)
	e.sectionSvc = NewSectionService(e.sections, logger)
	e.dependencies = NewDependencyService(db, e.deps, logger)
	e.progression = NewStatusProgressionService(db, e.projects, e.features, e.tasks, e.events, e.cascade, wf, logger)
	e.recommend = NewRecommendationService(e.tasks, e.deps, wf, logger)
	e.query = NewContainerQueryService(e.projects, e.features, e.tasks, e.sections, wf, logger)
	return e
}

func (e *env) createTask(t *testing.T, task *models.Task) *models.Task {
	t.Helper()
	if task.Status == "" {
		task.Status = "pending"
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.Complexity == 0 {
		task.Complexity = 5
	}
	require.NoError(t, e.tasks.Create(context.Background(), task))
	return task
}

func (e *env) createFeature(t *testing.T, name string) *models.Feature {
	t.Helper()
	feature := &models.Feature{Name: name, Status: "planning", Priority: models.PriorityMedium}
	require.NoError(t, e.features.Create(context.Background(), feature))
	return feature
}

func (e *env) setStatus(t *testing.T, taskID uuid.UUID, version int, status string) {
	t.Helper()
	_, err := e.tasks.UpdateStatus(context.Background(), taskID, version, status)
	require.NoError(t, err)
}
