// Package models contains domain types for taskhive.
package models

import (
	"fmt"
	"sort"
	"strings"
)

// EntityType identifies the kind of entity a row, tag, or section belongs to.
type EntityType string

const (
	EntityProject EntityType = "project"
	EntityFeature EntityType = "feature"
	EntityTask    EntityType = "task"
	EntitySection EntityType = "section"
)

// ParseEntityType validates a wire-level entity type string.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(strings.ToLower(s)) {
	case EntityProject:
		return EntityProject, nil
	case EntityFeature:
		return EntityFeature, nil
	case EntityTask:
		return EntityTask, nil
	case EntitySection:
		return EntitySection, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Priority orders work within the recommendation batch.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority validates a wire-level priority string.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(s)) {
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Rank returns the sort weight: higher means schedule first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Role is the coarse lifecycle classification used for scheduling.
type Role string

const (
	RoleQueue    Role = "queue"
	RoleWork     Role = "work"
	RoleReview   Role = "review"
	RoleBlocked  Role = "blocked"
	RoleTerminal Role = "terminal"
)

// Rank places roles on the unblocking ordering queue < work < review <
// terminal. Blocked and unknown roles rank below queue and therefore
// satisfy no unblockAt requirement.
func (r Role) Rank() int {
	switch r {
	case RoleQueue:
		return 0
	case RoleWork:
		return 1
	case RoleReview:
		return 2
	case RoleTerminal:
		return 3
	}
	return -1
}

// NormalizeTags deduplicates tags preserving exact storage keys, trimming
// whitespace and dropping empties. The result is sorted for determinism.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// BuildSearchVector produces the lowercased denormalized search column:
// the concatenation of the entity's searchable text fields and tags.
func BuildSearchVector(parts []string, tags []string) string {
	fields := make([]string, 0, len(parts)+len(tags))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	fields = append(fields, tags...)
	return strings.ToLower(strings.Join(fields, " "))
}
