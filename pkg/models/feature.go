package models

import (
	"time"

	"github.com/google/uuid"
)

// Feature groups tasks under an optional parent project.
type Feature struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  *uuid.UUID `json:"project_id,omitempty"`
	Name       string     `json:"name"`
	Summary    string     `json:"summary,omitempty"`
	Status     string     `json:"status"`
	Priority   Priority   `json:"priority"`
	Tags       []string   `json:"tags,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt time.Time  `json:"modified_at"`
	Version    int        `json:"version"`
}

// SearchVector returns the denormalized search column value.
func (f *Feature) SearchVector() string {
	return BuildSearchVector([]string{f.Name, f.Summary}, f.Tags)
}
