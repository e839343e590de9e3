package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/database"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/repositories"
	"github.com/taskhive/taskhive/pkg/workflow"
)

// CascadeReport describes what the completion cascade did (or why it
// declined to run).
type CascadeReport struct {
	Performed           bool        `json:"performed"`
	TasksDeleted        int         `json:"tasks_deleted"`
	TasksRetained       int         `json:"tasks_retained"`
	SectionsDeleted     int         `json:"sections_deleted"`
	DependenciesDeleted int         `json:"dependencies_deleted"`
	RetainedTaskIDs     []uuid.UUID `json:"retained_task_ids,omitempty"`
	Reason              string      `json:"reason,omitempty"`
}

// CompletionCascadeService deletes the child tasks of a container that
// reached a terminal status, keeping tasks whose tags match the configured
// retention list.
type CompletionCascadeService interface {
	Run(ctx context.Context, containerType models.EntityType, containerID uuid.UUID, newStatus string) (*CascadeReport, error)
}

type completionCascadeService struct {
	db       *database.DB
	tasks    repositories.TaskRepository
	sections repositories.SectionRepository
	deps     repositories.DependencyRepository
	events   repositories.RoleTransitionRepository
	wf       *workflow.Store
	logger   *zap.Logger
}

// NewCompletionCascadeService creates a completion cascade service.
func NewCompletionCascadeService(
	db *database.DB,
	tasks repositories.TaskRepository,
	sections repositories.SectionRepository,
	deps repositories.DependencyRepository,
	events repositories.RoleTransitionRepository,
	wf *workflow.Store,
	logger *zap.Logger,
) CompletionCascadeService {
	return &completionCascadeService{
		db:       db,
		tasks:    tasks,
		sections: sections,
		deps:     deps,
		events:   events,
		wf:       wf,
		logger:   logger.Named("completion-cascade"),
	}
}

func (s *completionCascadeService) Run(ctx context.Context, containerType models.EntityType, containerID uuid.UUID, newStatus string) (*CascadeReport, error) {
	snap := s.wf.Snapshot()

	if !snap.CleanupEnabled() {
		return &CascadeReport{Performed: false, Reason: "cleanup disabled"}, nil
	}
	if !snap.IsTerminalStatus(newStatus, containerType) {
		return &CascadeReport{
			Performed: false,
			Reason:    fmt.Sprintf("%s is not a terminal status", newStatus),
		}, nil
	}

	children, err := s.childTasks(ctx, containerType, containerID)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return &CascadeReport{Performed: false, Reason: "No child tasks"}, nil
	}

	report := &CascadeReport{Performed: true}
	for _, task := range children {
		if s.isRetained(snap, task) {
			report.TasksRetained++
			report.RetainedTaskIDs = append(report.RetainedTaskIDs, task.ID)
			continue
		}

		// Each child is its own transaction: one failure must not undo the
		// rest of the cascade.
		err := s.db.WithTx(ctx, func(ctx context.Context) error {
			depsDeleted, err := s.deps.DeleteByTaskID(ctx, task.ID)
			if err != nil {
				return err
			}
			sectionsDeleted, err := s.sections.DeleteForEntity(ctx, models.EntityTask, task.ID)
			if err != nil {
				return err
			}
			if _, err := s.events.PurgeByEntityID(ctx, task.ID); err != nil {
				return err
			}
			if err := s.tasks.Delete(ctx, task.ID); err != nil {
				return err
			}
			report.DependenciesDeleted += depsDeleted
			report.SectionsDeleted += sectionsDeleted
			return nil
		})
		if err != nil {
			s.logger.Warn("Cascade failed to delete task, continuing",
				zap.String("task_id", task.ID.String()),
				zap.Error(err))
			continue
		}
		report.TasksDeleted++
	}

	s.logger.Info("Completion cascade finished",
		zap.String("container_type", string(containerType)),
		zap.String("container_id", containerID.String()),
		zap.Int("deleted", report.TasksDeleted),
		zap.Int("retained", report.TasksRetained))
	return report, nil
}

func (s *completionCascadeService) childTasks(ctx context.Context, containerType models.EntityType, containerID uuid.UUID) ([]*models.Task, error) {
	switch containerType {
	case models.EntityFeature:
		return s.tasks.FindByFeature(ctx, containerID)
	case models.EntityProject:
		return s.tasks.FindByProject(ctx, containerID)
	}
	return nil, fmt.Errorf("cascade does not apply to entity type %q", containerType)
}

// isRetained matches task tags case-insensitively against retain_tags.
func (s *completionCascadeService) isRetained(snap *workflow.Snapshot, task *models.Task) bool {
	for _, tag := range task.Tags {
		if snap.IsRetainedTag(tag) {
			return true
		}
	}
	return false
}

var _ CompletionCascadeService = (*completionCascadeService)(nil)
