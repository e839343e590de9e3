package tools

import (
	"context"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/services"
)

// SectionToolDeps contains dependencies for the section tools.
type SectionToolDeps struct {
	Sections services.SectionService
	Logger   *zap.Logger
}

// RegisterSectionTools registers manage_sections.
func RegisterSectionTools(s *server.MCPServer, deps *SectionToolDeps) {
	registerManageSectionsTool(s, deps)
}

func registerManageSectionsTool(s *server.MCPServer, deps *SectionToolDeps) {
	tool := mcp.NewTool(
		"manage_sections",
		mcp.WithDescription(
			"Manage the ordered document sections attached to a project, feature, or task. "+
				"Actions: create, get, update, delete, list, reorder. "+
				"Each section holds an ordinal that is unique within its entity; "+
				"reorder takes the complete permutation of section ids and assigns ordinals 0..n-1. "+
				"Omitting ordinal on create appends after the last section.",
		),
		mcp.WithString("action", mcp.Required(),
			mcp.Description("One of: create, get, update, delete, list, reorder"),
			mcp.Enum("create", "get", "update", "delete", "list", "reorder")),
		mcp.WithString("id", mcp.Description("Section UUID (get, update, delete)")),
		mcp.WithNumber("version", mcp.Description("Expected current version (update)")),
		mcp.WithString("entity_type", mcp.Description("Owning entity type: project, feature, or task"),
			mcp.Enum("project", "feature", "task")),
		mcp.WithString("entity_id", mcp.Description("Owning entity UUID")),
		mcp.WithString("title", mcp.Description("Section title")),
		mcp.WithString("usage_description", mcp.Description("Hint describing what belongs in this section")),
		mcp.WithString("content", mcp.Description("Section content")),
		mcp.WithString("content_format", mcp.Description("Content format, default markdown")),
		mcp.WithNumber("ordinal", mcp.Description("Position on create; omit to append")),
		mcp.WithArray("ordered_ids", mcp.Description("Complete permutation of section UUIDs (reorder)"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithDestructiveHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		action, err := req.RequireString("action")
		if err != nil {
			return NewErrorResult(CodeValidation, err.Error(), nil), nil
		}
		a := requestArgs(req)

		switch action {
		case "create":
			entityType, entityID, err := sectionOwner(a)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			section, err := deps.Sections.Create(ctx, services.CreateSectionInput{
				EntityType:       entityType,
				EntityID:         entityID,
				Title:            a.str("title"),
				UsageDescription: a.str("usage_description"),
				Content:          a.str("content"),
				ContentFormat:    a.str("content_format"),
				Ordinal:          a.intVal("ordinal", -1),
			})
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Section created", section, nil), nil

		case "get":
			id, err := a.requireID("id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			section, err := deps.Sections.Get(ctx, id)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("", section, nil), nil

		case "update":
			id, err := a.requireID("id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			version, err := a.requireInt("version")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			section, err := deps.Sections.Update(ctx, services.UpdateSectionInput{
				ID:               id,
				Version:          version,
				Title:            a.strPtr("title"),
				UsageDescription: a.strPtr("usage_description"),
				Content:          a.strPtr("content"),
				ContentFormat:    a.strPtr("content_format"),
			})
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Section updated", section, nil), nil

		case "delete":
			id, err := a.requireID("id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			if err := deps.Sections.Delete(ctx, id); err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Section deleted", nil, nil), nil

		case "list":
			entityType, entityID, err := sectionOwner(a)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			sections, err := deps.Sections.List(ctx, entityType, entityID)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("", sections, map[string]any{"count": len(sections)}), nil

		case "reorder":
			entityType, entityID, err := sectionOwner(a)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			orderedIDs, err := a.idList("ordered_ids")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			sections, err := deps.Sections.Reorder(ctx, entityType, entityID, orderedIDs)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			deps.Logger.Debug("Reordered sections",
				zap.String("entity_id", entityID.String()),
				zap.Int("count", len(sections)))
			return NewSuccessResult("Sections reordered", sections, nil), nil
		}

		return NewErrorResultFromErr(
			apperrors.NewValidation("unknown action %q", action)), nil
	})
}

func sectionOwner(a args) (models.EntityType, uuid.UUID, error) {
	entityType, err := models.ParseEntityType(a.str("entity_type"))
	if err != nil {
		return "", uuid.Nil, apperrors.NewValidation("%v", err)
	}
	if entityType == models.EntitySection {
		return "", uuid.Nil, apperrors.NewValidation("sections cannot own sections")
	}
	entityID, err := a.requireID("entity_id")
	if err != nil {
		return "", uuid.Nil, err
	}
	return entityType, entityID, nil
}
