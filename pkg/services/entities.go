package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/database"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/repositories"
	"github.com/taskhive/taskhive/pkg/workflow"
)

// CreateProjectInput carries the writable project fields.
type CreateProjectInput struct {
	Name        string
	Description string
	Summary     string
	Status      string
	Tags        []string
}

// UpdateProjectInput is a partial update. Nil fields keep their current
// value. Version is the expected stored version.
type UpdateProjectInput struct {
	ID          uuid.UUID
	Version     int
	Name        *string
	Description *string
	Summary     *string
	Tags        []string
	ReplaceTags bool
}

// CreateFeatureInput carries the writable feature fields.
type CreateFeatureInput struct {
	ProjectID *uuid.UUID
	Name      string
	Summary   string
	Status    string
	Priority  string
	Tags      []string
}

// UpdateFeatureInput is a partial update under optimistic locking.
type UpdateFeatureInput struct {
	ID          uuid.UUID
	Version     int
	Name        *string
	Summary     *string
	Priority    *string
	Tags        []string
	ReplaceTags bool
}

// CreateTaskInput carries the writable task fields.
type CreateTaskInput struct {
	FeatureID  *uuid.UUID
	ProjectID  *uuid.UUID
	Title      string
	Summary    string
	Status     string
	Priority   string
	Complexity int
	Tags       []string
}

// UpdateTaskInput is a partial update under optimistic locking.
type UpdateTaskInput struct {
	ID          uuid.UUID
	Version     int
	Title       *string
	Summary     *string
	Priority    *string
	Complexity  *int
	Tags        []string
	ReplaceTags bool
}

// DeleteReport summarizes a hierarchy delete.
type DeleteReport struct {
	ProjectsDeleted     int `json:"projects_deleted,omitempty"`
	FeaturesDeleted     int `json:"features_deleted,omitempty"`
	TasksDeleted        int `json:"tasks_deleted,omitempty"`
	SectionsDeleted     int `json:"sections_deleted,omitempty"`
	DependenciesDeleted int `json:"dependencies_deleted,omitempty"`
}

// EntityService is the write side for projects, features, and tasks.
// Status changes are deliberately absent: they go through the progression
// service so the transition log stays authoritative.
type EntityService interface {
	CreateProject(ctx context.Context, input CreateProjectInput) (*models.Project, error)
	UpdateProject(ctx context.Context, input UpdateProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) (*DeleteReport, error)

	CreateFeature(ctx context.Context, input CreateFeatureInput) (*models.Feature, error)
	UpdateFeature(ctx context.Context, input UpdateFeatureInput) (*models.Feature, error)
	DeleteFeature(ctx context.Context, id uuid.UUID) (*DeleteReport, error)

	CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, input UpdateTaskInput) (*models.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) (*DeleteReport, error)
}

type entityService struct {
	db       *database.DB
	projects repositories.ProjectRepository
	features repositories.FeatureRepository
	tasks    repositories.TaskRepository
	sections repositories.SectionRepository
	deps     repositories.DependencyRepository
	events   repositories.RoleTransitionRepository
	wf       *workflow.Store
	logger   *zap.Logger
}

// NewEntityService creates the entity write service.
func NewEntityService(
	db *database.DB,
	projects repositories.ProjectRepository,
	features repositories.FeatureRepository,
	tasks repositories.TaskRepository,
	sections repositories.SectionRepository,
	deps repositories.DependencyRepository,
	events repositories.RoleTransitionRepository,
	wf *workflow.Store,
	logger *zap.Logger,
) EntityService {
	return &entityService{
		db:       db,
		projects: projects,
		features: features,
		tasks:    tasks,
		sections: sections,
		deps:     deps,
		events:   events,
		wf:       wf,
		logger:   logger.Named("entity-service"),
	}
}

// initialStatus validates an explicit status or falls back to the first
// queue status for the entity type.
func (s *entityService) initialStatus(status string, entityType models.EntityType) (string, error) {
	snap := s.wf.Snapshot()
	if status == "" {
		return snap.DefaultStatus(entityType), nil
	}
	if _, ok := snap.RoleForStatus(status, entityType); !ok {
		return "", apperrors.NewValidation("status %q is not configured for %s entities", status, entityType)
	}
	return status, nil
}

func parsePriorityOrDefault(s string) (models.Priority, error) {
	if s == "" {
		return models.PriorityMedium, nil
	}
	p, err := models.ParsePriority(s)
	if err != nil {
		return "", apperrors.NewValidation("%v", err)
	}
	return p, nil
}

func (s *entityService) CreateProject(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	status, err := s.initialStatus(input.Status, models.EntityProject)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		Name:        input.Name,
		Description: input.Description,
		Summary:     input.Summary,
		Status:      status,
		Tags:        input.Tags,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("Created project", zap.String("project_id", project.ID.String()))
	return project, nil
}

func (s *entityService) UpdateProject(ctx context.Context, input UpdateProjectInput) (*models.Project, error) {
	var updated *models.Project
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		project, err := s.projects.GetByID(ctx, input.ID)
		if err != nil {
			return err
		}
		project.Version = input.Version
		if input.Name != nil {
			project.Name = *input.Name
		}
		if input.Description != nil {
			project.Description = *input.Description
		}
		if input.Summary != nil {
			project.Summary = *input.Summary
		}
		if input.ReplaceTags {
			project.Tags = input.Tags
		}
		if err := s.projects.Update(ctx, project); err != nil {
			return err
		}
		updated = project
		return nil
	})
	return updated, err
}

func (s *entityService) DeleteProject(ctx context.Context, id uuid.UUID) (*DeleteReport, error) {
	report := &DeleteReport{}
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		features, err := s.features.FindByProject(ctx, id)
		if err != nil {
			return err
		}
		for _, feature := range features {
			if err := s.deleteFeatureTree(ctx, feature.ID, report); err != nil {
				return err
			}
		}

		// Tasks attached directly to the project, without a feature.
		tasks, err := s.tasks.FindByProject(ctx, id)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			if err := s.deleteTaskTree(ctx, task.ID, report); err != nil {
				return err
			}
		}

		n, err := s.sections.DeleteForEntity(ctx, models.EntityProject, id)
		if err != nil {
			return err
		}
		report.SectionsDeleted += n
		if _, err := s.events.PurgeByEntityID(ctx, id); err != nil {
			return err
		}
		if err := s.projects.Delete(ctx, id); err != nil {
			return err
		}
		report.ProjectsDeleted++
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Deleted project tree",
		zap.String("project_id", id.String()),
		zap.Int("features", report.FeaturesDeleted),
		zap.Int("tasks", report.TasksDeleted))
	return report, nil
}

func (s *entityService) CreateFeature(ctx context.Context, input CreateFeatureInput) (*models.Feature, error) {
	status, err := s.initialStatus(input.Status, models.EntityFeature)
	if err != nil {
		return nil, err
	}
	priority, err := parsePriorityOrDefault(input.Priority)
	if err != nil {
		return nil, err
	}

	feature := &models.Feature{
		ProjectID: input.ProjectID,
		Name:      input.Name,
		Summary:   input.Summary,
		Status:    status,
		Priority:  priority,
		Tags:      input.Tags,
	}
	if err := s.features.Create(ctx, feature); err != nil {
		return nil, err
	}
	s.logger.Info("Created feature", zap.String("feature_id", feature.ID.String()))
	return feature, nil
}

func (s *entityService) UpdateFeature(ctx context.Context, input UpdateFeatureInput) (*models.Feature, error) {
	var updated *models.Feature
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		feature, err := s.features.GetByID(ctx, input.ID)
		if err != nil {
			return err
		}
		feature.Version = input.Version
		if input.Name != nil {
			feature.Name = *input.Name
		}
		if input.Summary != nil {
			feature.Summary = *input.Summary
		}
		if input.Priority != nil {
			p, err := models.ParsePriority(*input.Priority)
			if err != nil {
				return apperrors.NewValidation("%v", err)
			}
			feature.Priority = p
		}
		if input.ReplaceTags {
			feature.Tags = input.Tags
		}
		if err := s.features.Update(ctx, feature); err != nil {
			return err
		}
		updated = feature
		return nil
	})
	return updated, err
}

func (s *entityService) DeleteFeature(ctx context.Context, id uuid.UUID) (*DeleteReport, error) {
	report := &DeleteReport{}
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		return s.deleteFeatureTree(ctx, id, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *entityService) deleteFeatureTree(ctx context.Context, id uuid.UUID, report *DeleteReport) error {
	tasks, err := s.tasks.FindByFeature(ctx, id)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if err := s.deleteTaskTree(ctx, task.ID, report); err != nil {
			return err
		}
	}

	n, err := s.sections.DeleteForEntity(ctx, models.EntityFeature, id)
	if err != nil {
		return err
	}
	report.SectionsDeleted += n
	if _, err := s.events.PurgeByEntityID(ctx, id); err != nil {
		return err
	}
	if err := s.features.Delete(ctx, id); err != nil {
		return err
	}
	report.FeaturesDeleted++
	return nil
}

func (s *entityService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	status, err := s.initialStatus(input.Status, models.EntityTask)
	if err != nil {
		return nil, err
	}
	priority, err := parsePriorityOrDefault(input.Priority)
	if err != nil {
		return nil, err
	}
	complexity := input.Complexity
	if complexity == 0 {
		complexity = 5
	}

	task := &models.Task{
		FeatureID:  input.FeatureID,
		ProjectID:  input.ProjectID,
		Title:      input.Title,
		Summary:    input.Summary,
		Status:     status,
		Priority:   priority,
		Complexity: complexity,
		Tags:       input.Tags,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("Created task", zap.String("task_id", task.ID.String()))
	return task, nil
}

func (s *entityService) UpdateTask(ctx context.Context, input UpdateTaskInput) (*models.Task, error) {
	var updated *models.Task
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		task, err := s.tasks.GetByID(ctx, input.ID)
		if err != nil {
			return err
		}
		task.Version = input.Version
		if input.Title != nil {
			task.Title = *input.Title
		}
		if input.Summary != nil {
			task.Summary = *input.Summary
		}
		if input.Priority != nil {
			p, err := models.ParsePriority(*input.Priority)
			if err != nil {
				return apperrors.NewValidation("%v", err)
			}
			task.Priority = p
		}
		if input.Complexity != nil {
			task.Complexity = *input.Complexity
		}
		if input.ReplaceTags {
			task.Tags = input.Tags
		}
		if err := s.tasks.Update(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	return updated, err
}

func (s *entityService) DeleteTask(ctx context.Context, id uuid.UUID) (*DeleteReport, error) {
	report := &DeleteReport{}
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		return s.deleteTaskTree(ctx, id, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *entityService) deleteTaskTree(ctx context.Context, id uuid.UUID, report *DeleteReport) error {
	n, err := s.deps.DeleteByTaskID(ctx, id)
	if err != nil {
		return err
	}
	report.DependenciesDeleted += n

	n, err = s.sections.DeleteForEntity(ctx, models.EntityTask, id)
	if err != nil {
		return err
	}
	report.SectionsDeleted += n

	if _, err := s.events.PurgeByEntityID(ctx, id); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	report.TasksDeleted++
	return nil
}

var _ EntityService = (*entityService)(nil)
