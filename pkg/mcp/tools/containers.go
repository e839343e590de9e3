package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/services"
)

// EntityToolDeps contains dependencies for the entity write tools.
type EntityToolDeps struct {
	Entities services.EntityService
	Logger   *zap.Logger
}

// RegisterEntityTools registers manage_project, manage_feature, and
// manage_task.
func RegisterEntityTools(s *server.MCPServer, deps *EntityToolDeps) {
	registerManageProjectTool(s, deps)
	registerManageFeatureTool(s, deps)
	registerManageTaskTool(s, deps)
}

func registerManageProjectTool(s *server.MCPServer, deps *EntityToolDeps) {
	tool := mcp.NewTool(
		"manage_project",
		mcp.WithDescription(
			"Create, update, or delete a project. "+
				"Updates are partial and require the current version; a stale version is rejected with CONFLICT. "+
				"Deleting a project removes its features, tasks, sections, and dependencies. "+
				"Status changes go through request_transition, not this tool.",
		),
		mcp.WithString("action", mcp.Required(),
			mcp.Description("One of: create, update, delete"),
			mcp.Enum("create", "update", "delete")),
		mcp.WithString("id", mcp.Description("Project UUID (update and delete)")),
		mcp.WithNumber("version", mcp.Description("Expected current version (update)")),
		mcp.WithString("name", mcp.Description("Project name")),
		mcp.WithString("description", mcp.Description("Long-form description")),
		mcp.WithString("summary", mcp.Description("Short summary")),
		mcp.WithString("status", mcp.Description("Initial status (create only); defaults to the first queue status")),
		mcp.WithArray("tags", mcp.Description("Tags, replacing the existing set when provided on update"),
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
			project, err := deps.Entities.CreateProject(ctx, services.CreateProjectInput{
				Name:        a.str("name"),
				Description: a.str("description"),
				Summary:     a.str("summary"),
				Status:      a.str("status"),
				Tags:        a.stringList("tags"),
			})
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Project created", project, nil), nil

		case "update":
			id, err := a.requireID("id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			version, err := a.requireInt("version")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			project, err := deps.Entities.UpdateProject(ctx, services.UpdateProjectInput{
				ID:          id,
				Version:     version,
				Name:        a.strPtr("name"),
				Description: a.strPtr("description"),
				Summary:     a.strPtr("summary"),
				Tags:        a.stringList("tags"),
				ReplaceTags: a.has("tags"),
			})
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Project updated", project, nil), nil

		case "delete":
			id, err := a.requireID("id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			report, err := deps.Entities.DeleteProject(ctx, id)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			deps.Logger.Info("Deleted project via tool", zap.String("project_id", id.String()))
			return NewSuccessResult("Project deleted", report, nil), nil
		}

		return NewErrorResultFromErr(
			apperrors.NewValidation("unknown action %q, expected create, update, or delete", action)), nil
	})
}

func registerManageFeatureTool(s *server.MCPServer, deps *EntityToolDeps) {
	tool := mcp.NewTool(
		"manage_feature",
		mcp.WithDescription(
			"Create, update, or delete a feature. "+
				"Updates are partial and require the current version. "+
				"Deleting a feature removes its tasks and their sections and dependencies.",
		),
		mcp.WithString("action", mcp.Required(),
			mcp.Description("One of: create, update, delete"),
			mcp.Enum("create", "update", "delete")),
		mcp.WithString("id", mcp.Description("Feature UUID (update and delete)")),
		mcp.WithNumber("version", mcp.Description("Expected current version (update)")),
		mcp.WithString("project_id", mcp.Description("Parent project UUID (create)")),
		mcp.WithString("name", mcp.Description("Feature name")),
		mcp.WithString("summary", mcp.Description("Short summary")),
		mcp.WithString("status", mcp.Description("Initial status (create only)")),
		mcp.WithString("priority", mcp.Description("Priority: high, medium, or low"),
			mcp.Enum("high", "medium", "low")),
		mcp.WithArray("tags", mcp.Description("Tags, replacing the existing set when provided on update"),
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
			projectID, err := a.idPtr("project_id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			feature, err := deps.Entities.CreateFeature(ctx, services.CreateFeatureInput{
				ProjectID: projectID,
				Name:      a.str("name"),
				Summary:   a.str("summary"),
				Status:    a.str("status"),
				Priority:  a.str("priority"),
				Tags:      a.stringList("tags"),
			})
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Feature created", feature, nil), nil

		case "update":
			id, err := a.requireID("id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			version, err := a.requireInt("version")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			feature, err := deps.Entities.UpdateFeature(ctx, services.UpdateFeatureInput{
				ID:          id,
				Version:     version,
				Name:        a.strPtr("name"),
				Summary:     a.strPtr("summary"),
				Priority:    a.strPtr("priority"),
				Tags:        a.stringList("tags"),
				ReplaceTags: a.has("tags"),
			})
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Feature updated", feature, nil), nil

		case "delete":
			id, err := a.requireID("id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			report, err := deps.Entities.DeleteFeature(ctx, id)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Feature deleted", report, nil), nil
		}

		return NewErrorResultFromErr(
			apperrors.NewValidation("unknown action %q, expected create, update, or delete", action)), nil
	})
}

func registerManageTaskTool(s *server.MCPServer, deps *EntityToolDeps) {
	tool := mcp.NewTool(
		"manage_task",
		mcp.WithDescription(
			"Create, update, or delete a task. "+
				"A task may belong to a feature, directly to a project, or to neither. "+
				"Updates are partial and require the current version. "+
				"Deleting a task removes its sections, dependencies, and transition history.",
		),
		mcp.WithString("action", mcp.Required(),
			mcp.Description("One of: create, update, delete"),
			mcp.Enum("create", "update", "delete")),
		mcp.WithString("id", mcp.Description("Task UUID (update and delete)")),
		mcp.WithNumber("version", mcp.Description("Expected current version (update)")),
		mcp.WithString("feature_id", mcp.Description("Parent feature UUID (create)")),
		mcp.WithString("project_id", mcp.Description("Parent project UUID (create)")),
		mcp.WithString("title", mcp.Description("Task title")),
		mcp.WithString("summary", mcp.Description("Short summary")),
		mcp.WithString("status", mcp.Description("Initial status (create only)")),
		mcp.WithString("priority", mcp.Description("Priority: high, medium, or low"),
			mcp.Enum("high", "medium", "low")),
		mcp.WithNumber("complexity", mcp.Description("Complexity estimate from 1 to 10, default 5")),
		mcp.WithArray("tags", mcp.Description("Tags, replacing the existing set when provided on update"),
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
			featureID, err := a.idPtr("feature_id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			projectID, err := a.idPtr("project_id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			task, err := deps.Entities.CreateTask(ctx, services.CreateTaskInput{
				FeatureID:  featureID,
				ProjectID:  projectID,
				Title:      a.str("title"),
				Summary:    a.str("summary"),
				Status:     a.str("status"),
				Priority:   a.str("priority"),
				Complexity: a.intVal("complexity", 0),
				Tags:       a.stringList("tags"),
			})
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Task created", task, nil), nil

		case "update":
			id, err := a.requireID("id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			version, err := a.requireInt("version")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			task, err := deps.Entities.UpdateTask(ctx, services.UpdateTaskInput{
				ID:          id,
				Version:     version,
				Title:       a.strPtr("title"),
				Summary:     a.strPtr("summary"),
				Priority:    a.strPtr("priority"),
				Complexity:  a.intPtr("complexity"),
				Tags:        a.stringList("tags"),
				ReplaceTags: a.has("tags"),
			})
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Task updated", task, nil), nil

		case "delete":
			id, err := a.requireID("id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			report, err := deps.Entities.DeleteTask(ctx, id)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Task deleted", report, nil), nil
		}

		return NewErrorResultFromErr(
			apperrors.NewValidation("unknown action %q, expected create, update, or delete", action)), nil
	})
}
