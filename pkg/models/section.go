package models

import (
	"time"

	"github.com/google/uuid"
)

// Section is an ordered content block attached to a project, feature, or
// task. Ordinals are unique within the parent entity.
type Section struct {
	ID               uuid.UUID  `json:"id"`
	EntityType       EntityType `json:"entity_type"`
	EntityID         uuid.UUID  `json:"entity_id"`
	Title            string     `json:"title"`
	UsageDescription string     `json:"usage_description,omitempty"`
	Content          string     `json:"content"`
	ContentFormat    string     `json:"content_format"`
	Ordinal          int        `json:"ordinal"`
	CreatedAt        time.Time  `json:"created_at"`
	ModifiedAt       time.Time  `json:"modified_at"`
	Version          int        `json:"version"`
}
