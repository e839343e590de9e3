// Package workflow loads the declarative status-workflow configuration and
// publishes it as an immutable snapshot shared by all requests. Reloads
// swap the snapshot atomically; readers never observe a partial document.
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
)

// Document is the on-disk shape of status-workflow-config.yaml.
type Document struct {
	Version           string                       `yaml:"version"`
	CompletionCleanup CleanupConfig                `yaml:"completion_cleanup"`
	StatusProgression map[string]EntityProgression `yaml:"status_progression"`
	// AgentMapping is the advisory tag-to-agent-role mapping. External
	// tool routing reads it; the scheduling core does not.
	AgentMapping map[string]string `yaml:"agent_mapping"`
}

// EntityProgression maps roles to status names for one entity type.
type EntityProgression struct {
	Roles            map[string][]string `yaml:"roles"`
	TerminalStatuses []string            `yaml:"terminal_statuses"`
}

// CleanupConfig controls the completion cascade.
type CleanupConfig struct {
	Enabled    *bool    `yaml:"enabled"`
	RetainTags []string `yaml:"retain_tags"`
}

// DefaultRetainTags are kept by the completion cascade unless the config
// overrides them.
var DefaultRetainTags = []string{"bug", "bugfix", "fix", "hotfix", "critical"}

// defaultDocument mirrors the built-in workflow used when no config file
// is present.
func defaultDocument() *Document {
	return &Document{
		Version: "2.0.0",
		StatusProgression: map[string]EntityProgression{
			"task": {
				Roles: map[string][]string{
					"queue":    {"pending", "backlog"},
					"work":     {"in-progress"},
					"review":   {"in-review"},
					"blocked":  {"blocked", "on-hold"},
					"terminal": {"completed", "cancelled", "archived"},
				},
				TerminalStatuses: []string{"completed", "cancelled", "archived"},
			},
			"feature": {
				Roles: map[string][]string{
					"queue":    {"planning"},
					"work":     {"in-development"},
					"review":   {"testing", "validating"},
					"blocked":  {"blocked", "on-hold"},
					"terminal": {"completed", "cancelled", "archived"},
				},
				TerminalStatuses: []string{"completed", "cancelled", "archived"},
			},
			"project": {
				Roles: map[string][]string{
					"queue":    {"planning"},
					"work":     {"in-development"},
					"review":   {"validating"},
					"blocked":  {"on-hold"},
					"terminal": {"completed", "cancelled", "archived"},
				},
				TerminalStatuses: []string{"completed", "cancelled", "archived"},
			},
		},
	}
}

// parseDocument decodes and validates a workflow document. Unknown entity
// types are rejected; unknown role names beyond the built-in five are
// allowed but carry no scheduling semantics.
func parseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}

	for entityType, prog := range doc.StatusProgression {
		if _, err := models.ParseEntityType(entityType); err != nil {
			return nil, fmt.Errorf("%w: status_progression: %v", apperrors.ErrConfig, err)
		}
		if len(prog.Roles) == 0 {
			return nil, fmt.Errorf("%w: status_progression.%s has no roles", apperrors.ErrConfig, entityType)
		}
		seen := make(map[string]string)
		for role, statuses := range prog.Roles {
			for _, status := range statuses {
				if prev, dup := seen[normalizeStatus(status)]; dup && prev != role {
					return nil, fmt.Errorf("%w: status %q mapped to both %q and %q for %s",
						apperrors.ErrConfig, status, prev, role, entityType)
				}
				seen[normalizeStatus(status)] = role
			}
		}
	}

	return &doc, nil
}

// parseAgentMapping decodes the standalone agent mapping file. Both the
// wrapped form (agent_mapping: {...}) and a bare map are accepted.
func parseAgentMapping(data []byte) (map[string]string, error) {
	var wrapped struct {
		AgentMapping map[string]string `yaml:"agent_mapping"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.AgentMapping) > 0 {
		return wrapped.AgentMapping, nil
	}

	var bare map[string]string
	if err := yaml.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("%w: agent mapping: %v", apperrors.ErrConfig, err)
	}
	return bare, nil
}
