package models

import (
	"time"

	"github.com/google/uuid"
)

// RoleTransition is an immutable event recorded whenever a status change
// moves an entity to a different role. Events are append-only and totally
// ordered per entity by transaction commit order.
type RoleTransition struct {
	ID         uuid.UUID  `json:"id"`
	EntityID   uuid.UUID  `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	FromRole   Role       `json:"from_role"`
	ToRole     Role       `json:"to_role"`
	FromStatus string     `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	Trigger    string     `json:"trigger"`
	CreatedAt  time.Time  `json:"created_at"`
}
