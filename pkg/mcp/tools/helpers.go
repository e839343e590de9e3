// Package tools provides the MCP tool implementations for taskhive.
package tools

import (
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskhive/taskhive/pkg/apperrors"
)

// args gives typed access to the raw tool arguments. MCP delivers JSON,
// so numbers arrive as float64 and arrays as []any.
type args map[string]any

func requestArgs(req mcp.CallToolRequest) args {
	if m, ok := req.Params.Arguments.(map[string]any); ok {
		return args(m)
	}
	return args{}
}

func (a args) has(key string) bool {
	_, ok := a[key]
	return ok
}

// str returns the trimmed string value, or "" when absent.
func (a args) str(key string) string {
	if v, ok := a[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// strPtr distinguishes "absent" from "set to empty" for partial updates.
func (a args) strPtr(key string) *string {
	v, ok := a[key].(string)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	return &v
}

func (a args) boolVal(key string) bool {
	v, _ := a[key].(bool)
	return v
}

func (a args) intVal(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func (a args) intPtr(key string) *int {
	switch v := a[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		return &v
	}
	return nil
}

// requireInt enforces presence, used for the version argument on
// optimistic writes.
func (a args) requireInt(key string) (int, error) {
	switch v := a[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	}
	return 0, apperrors.NewValidation("%s is required and must be a number", key)
}

// strings coerces a JSON array of strings, skipping non-string elements.
func (a args) stringList(key string) []string {
	raw, ok := a[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// requireID parses a mandatory UUID argument.
func (a args) requireID(key string) (uuid.UUID, error) {
	raw := a.str(key)
	if raw == "" {
		return uuid.Nil, apperrors.NewValidation("%s is required", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NewValidation("%s is not a valid UUID: %s", key, raw)
	}
	return id, nil
}

// idPtr parses an optional UUID argument, nil when absent.
func (a args) idPtr(key string) (*uuid.UUID, error) {
	raw := a.str(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.NewValidation("%s is not a valid UUID: %s", key, raw)
	}
	return &id, nil
}

// idList parses a JSON array of UUID strings.
func (a args) idList(key string) ([]uuid.UUID, error) {
	raw := a.stringList(key)
	if raw == nil {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, apperrors.NewValidation("%s contains an invalid UUID: %s", key, s)
		}
		out = append(out, id)
	}
	return out, nil
}
