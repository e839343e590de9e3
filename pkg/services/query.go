package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/repositories"
	"github.com/taskhive/taskhive/pkg/workflow"
)

// ContainerFilters is the query surface exposed to read tools. A Role
// filter expands to the statuses classified under that role before it
// reaches the repository layer.
type ContainerFilters struct {
	ProjectID    *uuid.UUID
	FeatureID    *uuid.UUID
	StatusIn     []string
	StatusNotIn  []string
	Role         *models.Role
	PriorityIn   []models.Priority
	Tags         []string
	MatchAllTags bool
	TextQuery    string
	Limit        int
}

// ProjectOverview aggregates a project with its features and task counts.
type ProjectOverview struct {
	Project      *models.Project   `json:"project"`
	Features     []*models.Feature `json:"features"`
	TaskCounts   map[string]int    `json:"task_counts"`
	SectionCount int               `json:"section_count"`
}

// FeatureOverview aggregates a feature with its tasks and counts.
type FeatureOverview struct {
	Feature      *models.Feature `json:"feature"`
	Tasks        []*models.Task  `json:"tasks"`
	TaskCounts   map[string]int  `json:"task_counts"`
	SectionCount int             `json:"section_count"`
}

// ContainerQueryService serves the read side: gets, filtered lists, text
// search, and container overviews.
type ContainerQueryService interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetFeature(ctx context.Context, id uuid.UUID) (*models.Feature, error)
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)

	ListProjects(ctx context.Context, filters ContainerFilters) ([]*models.Project, error)
	ListFeatures(ctx context.Context, filters ContainerFilters) ([]*models.Feature, error)
	ListTasks(ctx context.Context, filters ContainerFilters) ([]*models.Task, error)

	SearchProjects(ctx context.Context, query string, limit int) ([]*models.Project, error)
	SearchFeatures(ctx context.Context, query string, limit int) ([]*models.Feature, error)
	SearchTasks(ctx context.Context, query string, limit int) ([]*models.Task, error)

	ProjectOverview(ctx context.Context, id uuid.UUID) (*ProjectOverview, error)
	FeatureOverview(ctx context.Context, id uuid.UUID) (*FeatureOverview, error)
}

type containerQueryService struct {
	projects repositories.ProjectRepository
	features repositories.FeatureRepository
	tasks    repositories.TaskRepository
	sections repositories.SectionRepository
	wf       *workflow.Store
	logger   *zap.Logger
}

// NewContainerQueryService creates the read-side query service.
func NewContainerQueryService(
	projects repositories.ProjectRepository,
	features repositories.FeatureRepository,
	tasks repositories.TaskRepository,
	sections repositories.SectionRepository,
	wf *workflow.Store,
	logger *zap.Logger,
) ContainerQueryService {
	return &containerQueryService{
		projects: projects,
		features: features,
		tasks:    tasks,
		sections: sections,
		wf:       wf,
		logger:   logger.Named("container-query"),
	}
}

func (s *containerQueryService) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.projects.GetByID(ctx, id)
}

func (s *containerQueryService) GetFeature(ctx context.Context, id uuid.UUID) (*models.Feature, error) {
	return s.features.GetByID(ctx, id)
}

func (s *containerQueryService) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// toEntityFilters expands the role filter and maps onto the repository
// filter type.
func (s *containerQueryService) toEntityFilters(filters ContainerFilters, entityType models.EntityType) (repositories.EntityFilters, error) {
	out := repositories.EntityFilters{
		ProjectID:    filters.ProjectID,
		FeatureID:    filters.FeatureID,
		StatusIn:     filters.StatusIn,
		StatusNotIn:  filters.StatusNotIn,
		PriorityIn:   filters.PriorityIn,
		Tags:         filters.Tags,
		MatchAllTags: filters.MatchAllTags,
		TextQuery:    filters.TextQuery,
		Limit:        filters.Limit,
	}

	if filters.Role != nil {
		statuses := s.wf.Snapshot().StatusesForRole(*filters.Role, entityType)
		if len(statuses) == 0 {
			return out, apperrors.NewValidation("no %s statuses configured for %s entities", *filters.Role, entityType)
		}
		out.StatusIn = append(out.StatusIn, statuses...)
	}
	return out, nil
}

func (s *containerQueryService) ListProjects(ctx context.Context, filters ContainerFilters) ([]*models.Project, error) {
	f, err := s.toEntityFilters(filters, models.EntityProject)
	if err != nil {
		return nil, err
	}
	return s.projects.FindByFilters(ctx, f)
}

func (s *containerQueryService) ListFeatures(ctx context.Context, filters ContainerFilters) ([]*models.Feature, error) {
	f, err := s.toEntityFilters(filters, models.EntityFeature)
	if err != nil {
		return nil, err
	}
	return s.features.FindByFilters(ctx, f)
}

func (s *containerQueryService) ListTasks(ctx context.Context, filters ContainerFilters) ([]*models.Task, error) {
	f, err := s.toEntityFilters(filters, models.EntityTask)
	if err != nil {
		return nil, err
	}
	return s.tasks.FindByFilters(ctx, f)
}

func (s *containerQueryService) SearchProjects(ctx context.Context, query string, limit int) ([]*models.Project, error) {
	return s.projects.Search(ctx, query, limit)
}

func (s *containerQueryService) SearchFeatures(ctx context.Context, query string, limit int) ([]*models.Feature, error) {
	return s.features.Search(ctx, query, limit)
}

func (s *containerQueryService) SearchTasks(ctx context.Context, query string, limit int) ([]*models.Task, error) {
	return s.tasks.Search(ctx, query, limit)
}

func (s *containerQueryService) ProjectOverview(ctx context.Context, id uuid.UUID) (*ProjectOverview, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	features, err := s.features.FindByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.tasks.CountByStatus(ctx, &id, nil)
	if err != nil {
		return nil, err
	}
	sections, err := s.sections.ListForEntity(ctx, models.EntityProject, id)
	if err != nil {
		return nil, err
	}
	return &ProjectOverview{
		Project:      project,
		Features:     features,
		TaskCounts:   counts,
		SectionCount: len(sections),
	}, nil
}

func (s *containerQueryService) FeatureOverview(ctx context.Context, id uuid.UUID) (*FeatureOverview, error) {
	feature, err := s.features.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.FindByFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.tasks.CountByStatus(ctx, nil, &id)
	if err != nil {
		return nil, err
	}
	sections, err := s.sections.ListForEntity(ctx, models.EntityFeature, id)
	if err != nil {
		return nil, err
	}
	return &FeatureOverview{
		Feature:      feature,
		Tasks:        tasks,
		TaskCounts:   counts,
		SectionCount: len(sections),
	}, nil
}

var _ ContainerQueryService = (*containerQueryService)(nil)
