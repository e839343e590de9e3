package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/repositories"
	"github.com/taskhive/taskhive/pkg/workflow"
)

// DefaultRecommendationLimit caps get-next-task batches when the caller
// does not ask for a specific size.
const DefaultRecommendationLimit = 5

// ExecutionMode summarizes how the recommended batch can be worked.
type ExecutionMode string

const (
	// ModeParallelBatch means several independent tasks are startable now.
	ModeParallelBatch ExecutionMode = "PARALLEL_BATCH"
	// ModeIncrementalBatch means startable tasks exist alongside work
	// already in flight.
	ModeIncrementalBatch ExecutionMode = "INCREMENTAL_BATCH"
	// ModeSequential means exactly one task is startable.
	ModeSequential ExecutionMode = "SEQUENTIAL"
	// ModeWaiting means nothing is startable but work is in flight.
	ModeWaiting ExecutionMode = "WAITING"
	// ModeBlocked means pending tasks exist but every one is blocked.
	ModeBlocked ExecutionMode = "BLOCKED"
	// ModeComplete means the scope holds no actionable tasks at all.
	ModeComplete ExecutionMode = "COMPLETE"
)

// RecommendationScope restricts candidates to a project or feature.
type RecommendationScope struct {
	ProjectID *uuid.UUID
	FeatureID *uuid.UUID
}

// TaskBrief is the projection returned per recommended task.
type TaskBrief struct {
	ID         uuid.UUID       `json:"id"`
	Title      string          `json:"title"`
	Summary    string          `json:"summary,omitempty"`
	Status     string          `json:"status"`
	Priority   models.Priority `json:"priority"`
	Complexity int             `json:"complexity"`
	Tags       []string        `json:"tags,omitempty"`
	FeatureID  *uuid.UUID      `json:"feature_id,omitempty"`
	ProjectID  *uuid.UUID      `json:"project_id,omitempty"`
	AgentRole  string          `json:"agent_role,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Recommendation is the get-next-task response.
type Recommendation struct {
	Tasks           []TaskBrief   `json:"tasks"`
	Mode            ExecutionMode `json:"execution_mode"`
	TotalCandidates int           `json:"total_candidates"`
	Reason          string        `json:"reason,omitempty"`
}

// RecommendationService selects the next startable tasks in a scope.
type RecommendationService interface {
	// GetNextTasks returns up to limit startable tasks. includeDetails adds
	// the summary text to each projection; the default keeps briefs small.
	GetNextTasks(ctx context.Context, scope RecommendationScope, limit int, includeDetails bool) (*Recommendation, error)
}

type recommendationService struct {
	tasks    repositories.TaskRepository
	resolver *blockingResolver
	wf       *workflow.Store
	logger   *zap.Logger
}

// NewRecommendationService creates the recommendation service.
func NewRecommendationService(
	tasks repositories.TaskRepository,
	deps repositories.DependencyRepository,
	wf *workflow.Store,
	logger *zap.Logger,
) RecommendationService {
	return &recommendationService{
		tasks:    tasks,
		resolver: &blockingResolver{deps: deps, tasks: tasks},
		wf:       wf,
		logger:   logger.Named("recommendation"),
	}
}

func (s *recommendationService) GetNextTasks(ctx context.Context, scope RecommendationScope, limit int, includeDetails bool) (*Recommendation, error) {
	if limit < 0 {
		return nil, apperrors.NewValidation("limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		limit = DefaultRecommendationLimit
	}
	limit = repositories.ClampLimit(limit)

	snap := s.wf.Snapshot()

	queueStatuses := snap.StatusesForRole(models.RoleQueue, models.EntityTask)
	if len(queueStatuses) == 0 {
		return nil, apperrors.NewValidation("no queue statuses configured for task entities")
	}

	candidates, err := s.tasks.FindByStatuses(ctx, scope.ProjectID, scope.FeatureID, queueStatuses)
	if err != nil {
		return nil, err
	}

	counts, err := s.tasks.CountByStatus(ctx, scope.ProjectID, scope.FeatureID)
	if err != nil {
		return nil, err
	}
	inFlight := s.countInRoles(snap, counts, models.RoleWork, models.RoleReview)
	total := 0
	for _, n := range counts {
		total += n
	}

	if len(candidates) == 0 {
		return s.emptyRecommendation(total, inFlight), nil
	}

	unblocked, err := s.resolver.unblockedSet(ctx, snap, candidates)
	if err != nil {
		return nil, err
	}

	startable := make([]*models.Task, 0, len(candidates))
	for _, task := range candidates {
		if unblocked[task.ID] {
			startable = append(startable, task)
		}
	}

	if len(startable) == 0 {
		mode := ModeBlocked
		reason := "All pending tasks are blocked by incomplete dependencies"
		if inFlight > 0 {
			mode = ModeWaiting
			reason = "All pending tasks are blocked; work already in flight must progress first"
		}
		return &Recommendation{
			Tasks:           []TaskBrief{},
			Mode:            mode,
			TotalCandidates: len(candidates),
			Reason:          reason,
		}, nil
	}

	// Priority first, then simpler tasks, then age. Stable sort keeps the
	// repository's created_at ordering for full ties.
	sort.SliceStable(startable, func(i, j int) bool {
		a, b := startable[i], startable[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.Complexity != b.Complexity {
			return a.Complexity < b.Complexity
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	batch := startable
	if len(batch) > limit {
		batch = batch[:limit]
	}

	briefs := make([]TaskBrief, 0, len(batch))
	for _, task := range batch {
		briefs = append(briefs, s.brief(snap, task, includeDetails))
	}

	// The mode describes the returned batch, so it is computed after the
	// limit truncation: a single returned task is sequential even when more
	// are startable.
	return &Recommendation{
		Tasks:           briefs,
		Mode:            s.classify(len(batch), inFlight),
		TotalCandidates: len(candidates),
	}, nil
}

func (s *recommendationService) emptyRecommendation(total, inFlight int) *Recommendation {
	rec := &Recommendation{Tasks: []TaskBrief{}, TotalCandidates: 0}
	switch {
	case total == 0:
		rec.Mode = ModeComplete
		rec.Reason = "No tasks exist in this scope"
	case inFlight > 0:
		rec.Mode = ModeWaiting
		rec.Reason = "No pending tasks; work is in flight"
	default:
		rec.Mode = ModeComplete
		rec.Reason = "All tasks are terminal"
	}
	return rec
}

func (s *recommendationService) classify(returned, inFlight int) ExecutionMode {
	switch {
	case returned == 1:
		return ModeSequential
	case inFlight > 0:
		return ModeIncrementalBatch
	default:
		return ModeParallelBatch
	}
}

func (s *recommendationService) countInRoles(snap *workflow.Snapshot, counts map[string]int, roles ...models.Role) int {
	total := 0
	for status, n := range counts {
		role, ok := snap.RoleForStatus(status, models.EntityTask)
		if !ok {
			continue
		}
		for _, want := range roles {
			if role == want {
				total += n
				break
			}
		}
	}
	return total
}

// brief projects a task, resolving the advisory agent role from the first
// tag with a configured mapping. The summary rides along only when the
// caller asked for details.
func (s *recommendationService) brief(snap *workflow.Snapshot, task *models.Task, includeDetails bool) TaskBrief {
	brief := TaskBrief{
		ID:         task.ID,
		Title:      task.Title,
		Status:     task.Status,
		Priority:   task.Priority,
		Complexity: task.Complexity,
		Tags:       task.Tags,
		FeatureID:  task.FeatureID,
		ProjectID:  task.ProjectID,
		CreatedAt:  task.CreatedAt,
	}
	if includeDetails {
		brief.Summary = task.Summary
	}
	for _, tag := range task.Tags {
		if agent, ok := snap.AgentForTag(tag); ok {
			brief.AgentRole = agent
			break
		}
	}
	return brief
}

var _ RecommendationService = (*recommendationService)(nil)
