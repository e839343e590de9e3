package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/database"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/repositories"
	"github.com/taskhive/taskhive/pkg/retry"
	"github.com/taskhive/taskhive/pkg/workflow"
)

// Trigger is a named workflow action resolved against the current role.
type Trigger string

const (
	TriggerStart    Trigger = "start"
	TriggerComplete Trigger = "complete"
	TriggerCancel   Trigger = "cancel"
	TriggerBlock    Trigger = "block"
	TriggerResume   Trigger = "resume"
	TriggerReopen   Trigger = "reopen"
)

// ParseTrigger validates a wire-level trigger string.
func ParseTrigger(s string) (Trigger, error) {
	switch Trigger(s) {
	case TriggerStart, TriggerComplete, TriggerCancel, TriggerBlock, TriggerResume, TriggerReopen:
		return Trigger(s), nil
	}
	return "", apperrors.NewValidation("unknown trigger %q", s)
}

// TransitionResult describes one applied status change.
type TransitionResult struct {
	EntityType  models.EntityType `json:"entity_type"`
	EntityID    uuid.UUID         `json:"entity_id"`
	FromStatus  string            `json:"from_status"`
	ToStatus    string            `json:"to_status"`
	FromRole    models.Role       `json:"from_role"`
	ToRole      models.Role       `json:"to_role"`
	RoleChanged bool              `json:"role_changed"`
	Version     int               `json:"version"`
	Entity      json.RawMessage   `json:"entity,omitempty"`
	Cascade     *CascadeReport    `json:"cascade,omitempty"`
}

// NextStatusOption is one legal move from the current status.
type NextStatusOption struct {
	Status  string      `json:"status"`
	Role    models.Role `json:"role"`
	Trigger Trigger     `json:"trigger,omitempty"`
}

// StatusProgressionService is the single writer for lifecycle status.
// Every status change goes through it so the transition log and the
// completion cascade stay consistent with the stored rows.
type StatusProgressionService interface {
	// ApplyTrigger resolves the trigger against the entity's current role
	// and applies the resulting status change under optimistic locking.
	ApplyTrigger(ctx context.Context, entityType models.EntityType, id uuid.UUID, version int, trigger Trigger) (*TransitionResult, error)
	// ApplyStatus sets an explicit target status, which must be classified
	// by the workflow configuration for the entity type.
	ApplyStatus(ctx context.Context, entityType models.EntityType, id uuid.UUID, version int, targetStatus string) (*TransitionResult, error)
	// NextStatuses lists the legal moves from the entity's current status.
	NextStatuses(ctx context.Context, entityType models.EntityType, id uuid.UUID) (current string, options []NextStatusOption, err error)
}

type statusProgressionService struct {
	db       *database.DB
	projects repositories.ProjectRepository
	features repositories.FeatureRepository
	tasks    repositories.TaskRepository
	events   repositories.RoleTransitionRepository
	cascade  CompletionCascadeService
	wf       *workflow.Store
	logger   *zap.Logger
}

// NewStatusProgressionService creates the progression service.
func NewStatusProgressionService(
	db *database.DB,
	projects repositories.ProjectRepository,
	features repositories.FeatureRepository,
	tasks repositories.TaskRepository,
	events repositories.RoleTransitionRepository,
	cascade CompletionCascadeService,
	wf *workflow.Store,
	logger *zap.Logger,
) StatusProgressionService {
	return &statusProgressionService{
		db:       db,
		projects: projects,
		features: features,
		tasks:    tasks,
		events:   events,
		cascade:  cascade,
		wf:       wf,
		logger:   logger.Named("status-progression"),
	}
}

func (s *statusProgressionService) ApplyTrigger(ctx context.Context, entityType models.EntityType, id uuid.UUID, version int, trigger Trigger) (*TransitionResult, error) {
	snap := s.wf.Snapshot()

	current, _, err := s.currentStatus(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	target, err := s.resolveTrigger(ctx, snap, entityType, id, current, trigger)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, snap, entityType, id, version, current, target, string(trigger))
}

func (s *statusProgressionService) ApplyStatus(ctx context.Context, entityType models.EntityType, id uuid.UUID, version int, targetStatus string) (*TransitionResult, error) {
	snap := s.wf.Snapshot()

	if _, ok := snap.RoleForStatus(targetStatus, entityType); !ok {
		return nil, apperrors.NewValidation("status %q is not configured for %s entities", targetStatus, entityType)
	}
	current, _, err := s.currentStatus(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, snap, entityType, id, version, current, targetStatus, "set_status")
}

// resolveTrigger maps a trigger to a concrete target status based on the
// entity's current role.
func (s *statusProgressionService) resolveTrigger(ctx context.Context, snap *workflow.Snapshot, entityType models.EntityType, id uuid.UUID, current string, trigger Trigger) (string, error) {
	role, classified := snap.RoleForStatus(current, entityType)
	if !classified {
		return "", apperrors.NewValidation("current status %q is not configured for %s entities", current, entityType)
	}

	switch trigger {
	case TriggerStart:
		switch role {
		case models.RoleQueue:
			return s.firstStatus(snap, entityType, models.RoleWork, trigger)
		case models.RoleWork:
			return s.firstStatus(snap, entityType, models.RoleReview, trigger)
		}
		return "", apperrors.NewValidation("cannot start from %s status %q", role, current)

	case TriggerComplete:
		if role == models.RoleTerminal {
			return "", apperrors.NewValidation("entity is already in terminal status %q", current)
		}
		return s.terminalStatus(snap, entityType, "completed")

	case TriggerCancel:
		if role == models.RoleTerminal {
			return "", apperrors.NewValidation("entity is already in terminal status %q", current)
		}
		return s.terminalStatus(snap, entityType, "cancelled")

	case TriggerBlock:
		if role == models.RoleBlocked || role == models.RoleTerminal {
			return "", apperrors.NewValidation("cannot block from %s status %q", role, current)
		}
		return s.firstStatus(snap, entityType, models.RoleBlocked, trigger)

	case TriggerResume:
		if role != models.RoleBlocked {
			return "", apperrors.NewValidation("cannot resume from %s status %q", role, current)
		}
		return s.resumeTarget(ctx, snap, entityType, id)

	case TriggerReopen:
		if role != models.RoleTerminal {
			return "", apperrors.NewValidation("cannot reopen from %s status %q", role, current)
		}
		return s.firstStatus(snap, entityType, models.RoleQueue, trigger)
	}

	return "", apperrors.NewValidation("unknown trigger %q", trigger)
}

func (s *statusProgressionService) firstStatus(snap *workflow.Snapshot, entityType models.EntityType, role models.Role, trigger Trigger) (string, error) {
	statuses := snap.StatusesForRole(role, entityType)
	if len(statuses) == 0 {
		return "", apperrors.NewValidation("no %s statuses configured for %s entities, cannot %s", role, entityType, trigger)
	}
	return statuses[0], nil
}

// terminalStatus prefers the conventional name when it is configured and
// falls back to the first terminal status otherwise.
func (s *statusProgressionService) terminalStatus(snap *workflow.Snapshot, entityType models.EntityType, preferred string) (string, error) {
	statuses := snap.StatusesForRole(models.RoleTerminal, entityType)
	if len(statuses) == 0 {
		return "", apperrors.NewValidation("no terminal statuses configured for %s entities", entityType)
	}
	for _, status := range statuses {
		if status == preferred {
			return status, nil
		}
	}
	return statuses[0], nil
}

// resumeTarget restores the role the entity held before it was blocked,
// read from the most recent block event. Entities blocked before any event
// was recorded resume into queue.
func (s *statusProgressionService) resumeTarget(ctx context.Context, snap *workflow.Snapshot, entityType models.EntityType, id uuid.UUID) (string, error) {
	events, err := s.events.FindByEntityID(ctx, id)
	if err != nil {
		return "", err
	}

	restore := models.RoleQueue
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].ToRole == models.RoleBlocked {
			if events[i].FromRole.Rank() >= 0 {
				restore = events[i].FromRole
			}
			break
		}
	}
	return s.firstStatus(snap, entityType, restore, TriggerResume)
}

// apply performs the conditional status write, appends the transition
// event when the role changed, and fires the completion cascade when a
// container entity reaches a terminal status. All of it happens in one
// transaction except the cascade's per-task deletions, which manage their
// own transactions.
func (s *statusProgressionService) apply(ctx context.Context, snap *workflow.Snapshot, entityType models.EntityType, id uuid.UUID, version int, current, target, trigger string) (*TransitionResult, error) {
	fromRole, _ := snap.RoleForStatus(current, entityType)
	toRole, ok := snap.RoleForStatus(target, entityType)
	if !ok {
		return nil, apperrors.NewValidation("status %q is not configured for %s entities", target, entityType)
	}

	// Terminal is final: reopen is the only legal exit, explicit status
	// writes included.
	if fromRole == models.RoleTerminal && trigger != string(TriggerReopen) {
		return nil, apperrors.NewValidation(
			"cannot leave terminal status %q except via the reopen trigger", current)
	}

	result := &TransitionResult{
		EntityType:  entityType,
		EntityID:    id,
		FromStatus:  current,
		ToStatus:    target,
		FromRole:    fromRole,
		ToRole:      toRole,
		RoleChanged: fromRole != toRole,
	}

	// Busy-database errors are retried; a version conflict is permanent and
	// surfaces to the caller for a fresh read.
	err := retry.DoIfRetryable(ctx, nil, func() error {
		return s.db.WithTx(ctx, func(ctx context.Context) error {
			entity, newVersion, err := s.writeStatus(ctx, entityType, id, version, target)
			if err != nil {
				return err
			}
			result.Version = newVersion
			result.Entity = entity

			if result.RoleChanged {
				return s.events.Create(ctx, &models.RoleTransition{
					EntityID:   id,
					EntityType: entityType,
					FromRole:   fromRole,
					ToRole:     toRole,
					FromStatus: current,
					ToStatus:   target,
					Trigger:    trigger,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Status transition applied",
		zap.String("entity_type", string(entityType)),
		zap.String("entity_id", id.String()),
		zap.String("from", current),
		zap.String("to", target),
		zap.String("trigger", trigger))

	// Container entities reaching a terminal status trigger the cascade.
	// It runs outside the transition transaction so a cascade failure never
	// rolls back a committed status change.
	if entityType != models.EntityTask && snap.IsTerminalStatus(target, entityType) {
		report, err := s.cascade.Run(ctx, entityType, id, target)
		if err != nil {
			s.logger.Warn("Completion cascade failed",
				zap.String("entity_id", id.String()),
				zap.Error(err))
		} else {
			result.Cascade = report
		}
	}

	return result, nil
}

func (s *statusProgressionService) currentStatus(ctx context.Context, entityType models.EntityType, id uuid.UUID) (string, int, error) {
	switch entityType {
	case models.EntityProject:
		p, err := s.projects.GetByID(ctx, id)
		if err != nil {
			return "", 0, err
		}
		return p.Status, p.Version, nil
	case models.EntityFeature:
		f, err := s.features.GetByID(ctx, id)
		if err != nil {
			return "", 0, err
		}
		return f.Status, f.Version, nil
	case models.EntityTask:
		t, err := s.tasks.GetByID(ctx, id)
		if err != nil {
			return "", 0, err
		}
		return t.Status, t.Version, nil
	}
	return "", 0, apperrors.NewValidation("entity type %q has no lifecycle status", entityType)
}

func (s *statusProgressionService) writeStatus(ctx context.Context, entityType models.EntityType, id uuid.UUID, version int, target string) (json.RawMessage, int, error) {
	switch entityType {
	case models.EntityProject:
		p, err := s.projects.UpdateStatus(ctx, id, version, target)
		if err != nil {
			return nil, 0, err
		}
		raw, err := json.Marshal(p)
		return raw, p.Version, err
	case models.EntityFeature:
		f, err := s.features.UpdateStatus(ctx, id, version, target)
		if err != nil {
			return nil, 0, err
		}
		raw, err := json.Marshal(f)
		return raw, f.Version, err
	case models.EntityTask:
		t, err := s.tasks.UpdateStatus(ctx, id, version, target)
		if err != nil {
			return nil, 0, err
		}
		raw, err := json.Marshal(t)
		return raw, t.Version, err
	}
	return nil, 0, apperrors.NewValidation("entity type %q has no lifecycle status", entityType)
}

func (s *statusProgressionService) NextStatuses(ctx context.Context, entityType models.EntityType, id uuid.UUID) (string, []NextStatusOption, error) {
	snap := s.wf.Snapshot()

	current, _, err := s.currentStatus(ctx, entityType, id)
	if err != nil {
		return "", nil, err
	}

	options := []NextStatusOption{}
	for _, trigger := range []Trigger{TriggerStart, TriggerComplete, TriggerCancel, TriggerBlock, TriggerResume, TriggerReopen} {
		target, err := s.resolveTrigger(ctx, snap, entityType, id, current, trigger)
		if err != nil {
			continue
		}
		role, _ := snap.RoleForStatus(target, entityType)
		options = append(options, NextStatusOption{Status: target, Role: role, Trigger: trigger})
	}
	return current, options, nil
}

var _ StatusProgressionService = (*statusProgressionService)(nil)
