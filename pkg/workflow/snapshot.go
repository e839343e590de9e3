package workflow

import (
	"strings"

	"github.com/taskhive/taskhive/pkg/models"
)

// Snapshot is an immutable, fully-resolved view of the workflow
// configuration. All lookups are read-only; a reload builds a fresh
// Snapshot and publishes it with an atomic pointer swap.
type Snapshot struct {
	cleanupEnabled bool
	retainTags     map[string]bool // lowercased
	retainTagList  []string
	perEntity      map[models.EntityType]*entityRules
	agentMapping   map[string]string // lowercased tag -> agent role
}

type entityRules struct {
	roleToStatuses map[models.Role][]string
	statusToRole   map[string]models.Role // normalized status -> role
	terminal       map[string]bool        // normalized status set
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// newSnapshot resolves a parsed document into lookup tables.
func newSnapshot(doc *Document) *Snapshot {
	snap := &Snapshot{
		cleanupEnabled: doc.CompletionCleanup.Enabled != nil && *doc.CompletionCleanup.Enabled,
		retainTags:     make(map[string]bool),
		perEntity:      make(map[models.EntityType]*entityRules),
		agentMapping:   make(map[string]string),
	}

	retain := doc.CompletionCleanup.RetainTags
	if retain == nil {
		retain = DefaultRetainTags
	}
	snap.retainTagList = append([]string(nil), retain...)
	for _, tag := range retain {
		snap.retainTags[strings.ToLower(tag)] = true
	}

	for entityType, prog := range doc.StatusProgression {
		et, err := models.ParseEntityType(entityType)
		if err != nil {
			continue // rejected earlier by parseDocument
		}
		rules := &entityRules{
			roleToStatuses: make(map[models.Role][]string),
			statusToRole:   make(map[string]models.Role),
			terminal:       make(map[string]bool),
		}
		for roleName, statuses := range prog.Roles {
			role := models.Role(strings.ToLower(roleName))
			rules.roleToStatuses[role] = append([]string(nil), statuses...)
			for _, status := range statuses {
				rules.statusToRole[normalizeStatus(status)] = role
			}
		}
		for _, status := range prog.TerminalStatuses {
			rules.terminal[normalizeStatus(status)] = true
		}
		// Statuses classified under the terminal role are terminal even if
		// the terminal_statuses list omits them.
		for _, status := range rules.roleToStatuses[models.RoleTerminal] {
			rules.terminal[normalizeStatus(status)] = true
		}
		snap.perEntity[et] = rules
	}

	for tag, agentRole := range doc.AgentMapping {
		snap.agentMapping[strings.ToLower(tag)] = agentRole
	}

	return snap
}

// StatusesForRole returns the statuses classified under role for the
// entity type. Empty for unknown roles or entity types.
func (s *Snapshot) StatusesForRole(role models.Role, entityType models.EntityType) []string {
	rules, ok := s.perEntity[entityType]
	if !ok {
		return nil
	}
	return rules.roleToStatuses[role]
}

// RoleForStatus classifies a status. The second return is false for
// unclassified statuses.
func (s *Snapshot) RoleForStatus(status string, entityType models.EntityType) (models.Role, bool) {
	rules, ok := s.perEntity[entityType]
	if !ok {
		return "", false
	}
	role, ok := rules.statusToRole[normalizeStatus(status)]
	return role, ok
}

// IsTerminalStatus reports whether status is terminal for the entity type.
func (s *Snapshot) IsTerminalStatus(status string, entityType models.EntityType) bool {
	rules, ok := s.perEntity[entityType]
	if !ok {
		return false
	}
	return rules.terminal[normalizeStatus(status)]
}

// DefaultStatus returns the first queue status for the entity type, used
// when an entity is created without an explicit status.
func (s *Snapshot) DefaultStatus(entityType models.EntityType) string {
	statuses := s.StatusesForRole(models.RoleQueue, entityType)
	if len(statuses) == 0 {
		return "pending"
	}
	return statuses[0]
}

// CleanupEnabled reports whether the completion cascade may delete tasks.
func (s *Snapshot) CleanupEnabled() bool { return s.cleanupEnabled }

// RetainTags returns the configured retention tag list.
func (s *Snapshot) RetainTags() []string { return s.retainTagList }

// IsRetainedTag matches tags case-insensitively against the retention list.
func (s *Snapshot) IsRetainedTag(tag string) bool {
	return s.retainTags[strings.ToLower(tag)]
}

// AgentForTag resolves the advisory tag-to-agent-role mapping.
func (s *Snapshot) AgentForTag(tag string) (string, bool) {
	agent, ok := s.agentMapping[strings.ToLower(tag)]
	return agent, ok
}
