package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/services"
)

// TransitionToolDeps contains dependencies for the lifecycle tools.
type TransitionToolDeps struct {
	Progression services.StatusProgressionService
	Logger      *zap.Logger
}

// RegisterTransitionTools registers request_transition and next_statuses.
func RegisterTransitionTools(s *server.MCPServer, deps *TransitionToolDeps) {
	registerRequestTransitionTool(s, deps)
	registerNextStatusesTool(s, deps)
}

func registerRequestTransitionTool(s *server.MCPServer, deps *TransitionToolDeps) {
	tool := mcp.NewTool(
		"request_transition",
		mcp.WithDescription(
			"Change an entity's lifecycle status, either by trigger or by explicit target status. "+
				"Triggers: start (queue to work, or work to review), complete, cancel, block, "+
				"resume (returns to the role held before blocking), reopen (exits a terminal status). "+
				"The version argument must match the stored version; a stale version is rejected with CONFLICT. "+
				"When a project or feature reaches a terminal status the completion cascade may delete its "+
				"child tasks, keeping tasks whose tags are on the configured retain list.",
		),
		mcp.WithString("entity_type", mcp.Required(),
			mcp.Description("One of: project, feature, task"),
			mcp.Enum("project", "feature", "task")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity UUID")),
		mcp.WithNumber("version", mcp.Required(), mcp.Description("Expected current version")),
		mcp.WithString("trigger", mcp.Description("Workflow trigger to apply"),
			mcp.Enum("start", "complete", "cancel", "block", "resume", "reopen")),
		mcp.WithString("target_status", mcp.Description("Explicit target status, alternative to trigger")),
		mcp.WithDestructiveHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entityTypeRaw, err := req.RequireString("entity_type")
		if err != nil {
			return NewErrorResult(CodeValidation, err.Error(), nil), nil
		}
		entityType, err := models.ParseEntityType(entityTypeRaw)
		if err != nil {
			return NewErrorResult(CodeValidation, err.Error(), nil), nil
		}
		a := requestArgs(req)

		id, err := a.requireID("id")
		if err != nil {
			return NewErrorResultFromErr(err), nil
		}
		version, err := a.requireInt("version")
		if err != nil {
			return NewErrorResultFromErr(err), nil
		}

		triggerRaw := a.str("trigger")
		targetStatus := a.str("target_status")
		if (triggerRaw == "") == (targetStatus == "") {
			return NewErrorResultFromErr(
				apperrors.NewValidation("exactly one of trigger or target_status is required")), nil
		}

		var result *services.TransitionResult
		if triggerRaw != "" {
			trigger, err := services.ParseTrigger(triggerRaw)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			result, err = deps.Progression.ApplyTrigger(ctx, entityType, id, version, trigger)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
		} else {
			result, err = deps.Progression.ApplyStatus(ctx, entityType, id, version, targetStatus)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
		}

		deps.Logger.Debug("Transition applied via tool",
			zap.String("entity_id", id.String()),
			zap.String("to_status", result.ToStatus))

		metadata := map[string]any{
			"from_status":  result.FromStatus,
			"to_status":    result.ToStatus,
			"role_changed": result.RoleChanged,
		}
		return NewSuccessResult("Transition applied", result, metadata), nil
	})
}

func registerNextStatusesTool(s *server.MCPServer, deps *TransitionToolDeps) {
	tool := mcp.NewTool(
		"next_statuses",
		mcp.WithDescription(
			"List the legal lifecycle moves from an entity's current status, "+
				"with the trigger that performs each one.",
		),
		mcp.WithString("entity_type", mcp.Required(),
			mcp.Description("One of: project, feature, task"),
			mcp.Enum("project", "feature", "task")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity UUID")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entityTypeRaw, err := req.RequireString("entity_type")
		if err != nil {
			return NewErrorResult(CodeValidation, err.Error(), nil), nil
		}
		entityType, err := models.ParseEntityType(entityTypeRaw)
		if err != nil {
			return NewErrorResult(CodeValidation, err.Error(), nil), nil
		}
		a := requestArgs(req)

		id, err := a.requireID("id")
		if err != nil {
			return NewErrorResultFromErr(err), nil
		}

		current, options, err := deps.Progression.NextStatuses(ctx, entityType, id)
		if err != nil {
			return NewErrorResultFromErr(err), nil
		}
		return NewSuccessResult("", options, map[string]any{
			"current_status": current,
			"count":          len(options),
		}), nil
	})
}
