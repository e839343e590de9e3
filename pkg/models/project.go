package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is the top-level container for features and tasks.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Status      string    `json:"status"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	Version     int       `json:"version"`
}

// SearchVector returns the denormalized search column value.
func (p *Project) SearchVector() string {
	return BuildSearchVector([]string{p.Name, p.Summary, p.Description}, p.Tags)
}
