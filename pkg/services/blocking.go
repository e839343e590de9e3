// Package services contains the scheduling and consistency core: status
// progression, the dependency engine, the recommendation engine, and the
// completion cascade.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/repositories"
	"github.com/taskhive/taskhive/pkg/workflow"
)

// legacyUnblockStatuses is the fallback used when a blocker's status is
// not classified by the workflow snapshot: the blocker releases its
// targets only once hard-completed.
var legacyUnblockStatuses = map[string]bool{
	"completed": true,
	"cancelled": true,
}

// blockerState is the minimal view of a blocking task needed to resolve
// an edge.
type blockerState struct {
	Status string
}

// edgeSatisfied reports whether one inbound BLOCKS edge is satisfied: the
// blocker's current role must have reached the edge's required role on the
// ordering queue < work < review < terminal. Unclassified blocker statuses
// fall back to the legacy terminal set.
func edgeSatisfied(snap *workflow.Snapshot, edge *models.Dependency, blocker blockerState) bool {
	if edge.Type != models.DependencyBlocks {
		return true
	}

	role, classified := snap.RoleForStatus(blocker.Status, models.EntityTask)
	if !classified {
		return legacyUnblockStatuses[blocker.Status]
	}
	return role.Rank() >= edge.RequiredRole().Rank()
}

// blockingResolver answers "is this task startable" against the current
// dependency graph.
type blockingResolver struct {
	deps  repositories.DependencyRepository
	tasks repositories.TaskRepository
}

// unblockedSet resolves blocking for a batch of candidate tasks in one
// pass. Blocker statuses are fetched per edge; candidates whose blockers
// are missing are treated as blocked rather than guessed at.
func (r *blockingResolver) unblockedSet(ctx context.Context, snap *workflow.Snapshot, candidates []*models.Task) (map[uuid.UUID]bool, error) {
	statusCache := make(map[uuid.UUID]string)
	result := make(map[uuid.UUID]bool, len(candidates))

	for _, task := range candidates {
		unblocked, err := r.resolveOne(ctx, snap, task.ID, statusCache)
		if err != nil {
			return nil, err
		}
		result[task.ID] = unblocked
	}
	return result, nil
}

func (r *blockingResolver) resolveOne(ctx context.Context, snap *workflow.Snapshot, taskID uuid.UUID, statusCache map[uuid.UUID]string) (bool, error) {
	inbound, err := r.deps.FindByToTaskID(ctx, taskID)
	if err != nil {
		return false, err
	}

	for _, edge := range inbound {
		if edge.Type != models.DependencyBlocks {
			continue
		}
		status, ok := statusCache[edge.FromTaskID]
		if !ok {
			blocker, err := r.tasks.GetByID(ctx, edge.FromTaskID)
			if err != nil {
				return false, fmt.Errorf("failed to load blocker %s: %w", edge.FromTaskID, err)
			}
			status = blocker.Status
			statusCache[edge.FromTaskID] = status
		}
		if !edgeSatisfied(snap, edge, blockerState{Status: status}) {
			return false, nil
		}
	}
	return true, nil
}
