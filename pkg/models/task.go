package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is the schedulable unit of work. A task may belong to a feature
// and/or a project; when both are set the feature must belong to the same
// project.
type Task struct {
	ID         uuid.UUID  `json:"id"`
	FeatureID  *uuid.UUID `json:"feature_id,omitempty"`
	ProjectID  *uuid.UUID `json:"project_id,omitempty"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary,omitempty"`
	Status     string     `json:"status"`
	Priority   Priority   `json:"priority"`
	Complexity int        `json:"complexity"`
	Tags       []string   `json:"tags,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt time.Time  `json:"modified_at"`
	Version    int        `json:"version"`
}

// SearchVector returns the denormalized search column value.
func (t *Task) SearchVector() string {
	return BuildSearchVector([]string{t.Title, t.Summary}, t.Tags)
}
