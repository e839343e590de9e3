package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DependencyType classifies an edge between two tasks.
type DependencyType string

const (
	// DependencyBlocks means the target cannot start until the source has
	// reached the edge's unblock role.
	DependencyBlocks DependencyType = "BLOCKS"
	// DependencyRelatesTo is a non-blocking directed annotation.
	DependencyRelatesTo DependencyType = "RELATES_TO"
	// DependencyIsBlockedBy is accepted on the wire and normalized into a
	// BLOCKS edge with the endpoints swapped before storage.
	DependencyIsBlockedBy DependencyType = "IS_BLOCKED_BY"
)

// ParseDependencyType validates a wire-level dependency type string.
func ParseDependencyType(s string) (DependencyType, error) {
	switch DependencyType(strings.ToUpper(s)) {
	case DependencyBlocks:
		return DependencyBlocks, nil
	case DependencyRelatesTo:
		return DependencyRelatesTo, nil
	case DependencyIsBlockedBy:
		return DependencyIsBlockedBy, nil
	}
	return "", fmt.Errorf("unknown dependency type %q", s)
}

// ParseUnblockAt validates an unblockAt role. Only the four roles on the
// unblocking ordering are legal; blocked is not a milestone.
func ParseUnblockAt(s string) (Role, error) {
	switch Role(strings.ToLower(s)) {
	case RoleQueue:
		return RoleQueue, nil
	case RoleWork:
		return RoleWork, nil
	case RoleReview:
		return RoleReview, nil
	case RoleTerminal:
		return RoleTerminal, nil
	}
	return "", fmt.Errorf("invalid unblockAt %q: must be one of queue, work, review, terminal", s)
}

// Dependency is a directed edge between two tasks.
type Dependency struct {
	ID         uuid.UUID      `json:"id"`
	FromTaskID uuid.UUID      `json:"from_task_id"`
	ToTaskID   uuid.UUID      `json:"to_task_id"`
	Type       DependencyType `json:"type"`
	// UnblockAt is the role the blocker must reach before the target is
	// startable. Nil on non-BLOCKS edges; nil on BLOCKS means terminal.
	UnblockAt *Role     `json:"unblock_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RequiredRole returns the role the source task must reach for this edge
// to stop blocking its target. Non-BLOCKS edges never block.
func (d *Dependency) RequiredRole() Role {
	if d.UnblockAt != nil {
		return *d.UnblockAt
	}
	return RoleTerminal
}
