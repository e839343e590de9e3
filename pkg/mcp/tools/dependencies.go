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

// DependencyToolDeps contains dependencies for the dependency tools.
type DependencyToolDeps struct {
	Dependencies services.DependencyService
	Logger       *zap.Logger
}

// RegisterDependencyTools registers manage_dependencies.
func RegisterDependencyTools(s *server.MCPServer, deps *DependencyToolDeps) {
	registerManageDependenciesTool(s, deps)
}

func registerManageDependenciesTool(s *server.MCPServer, deps *DependencyToolDeps) {
	tool := mcp.NewTool(
		"manage_dependencies",
		mcp.WithDescription(
			"Manage inter-task dependencies. "+
				"Actions: create (single edge or a batch via the dependencies array), "+
				"create_linear (chain task_ids in order), create_fan_out (source blocks every target), "+
				"create_fan_in (every source blocks the target), delete, delete_between, delete_all, list. "+
				"BLOCKS edges carry unblock_at (queue, work, review, or terminal, default terminal), "+
				"the lifecycle role the blocking task must reach before the blocked task may start. "+
				"IS_BLOCKED_BY is stored as the reversed BLOCKS edge. "+
				"Batches are atomic, and any edge that would create a BLOCKS cycle rejects the whole batch.",
		),
		mcp.WithString("action", mcp.Required(),
			mcp.Description("One of: create, create_linear, create_fan_out, create_fan_in, delete, delete_between, delete_all, list"),
			mcp.Enum("create", "create_linear", "create_fan_out", "create_fan_in", "delete", "delete_between", "delete_all", "list")),
		mcp.WithString("id", mcp.Description("Dependency UUID (delete)")),
		mcp.WithString("from_task_id", mcp.Description("Blocking task UUID (create, delete_between)")),
		mcp.WithString("to_task_id", mcp.Description("Blocked task UUID (create, delete_between)")),
		mcp.WithString("type", mcp.Description("Dependency type, default BLOCKS"),
			mcp.Enum("BLOCKS", "RELATES_TO", "IS_BLOCKED_BY")),
		mcp.WithString("unblock_at", mcp.Description("Role the blocker must reach, default terminal"),
			mcp.Enum("queue", "work", "review", "terminal")),
		mcp.WithArray("dependencies", mcp.Description(
			"Batch of edges for create: objects with from_task_id, to_task_id, and optional type and unblock_at"),
			mcp.Items(map[string]any{"type": "object"})),
		mcp.WithArray("task_ids", mcp.Description("Ordered chain of task UUIDs (create_linear)"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("source_task_id", mcp.Description("Source task UUID (create_fan_out)")),
		mcp.WithArray("target_task_ids", mcp.Description("Target task UUIDs (create_fan_out)"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("source_task_ids", mcp.Description("Source task UUIDs (create_fan_in)"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("target_task_id", mcp.Description("Target task UUID (create_fan_in)")),
		mcp.WithString("task_id", mcp.Description("Task UUID (delete_all, list)")),
		mcp.WithDestructiveHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		action, err := req.RequireString("action")
		if err != nil {
			return NewErrorResult(CodeValidation, err.Error(), nil), nil
		}
		a := requestArgs(req)

		unblockAt, err := parseUnblockAtArg(a, "unblock_at")
		if err != nil {
			return NewErrorResultFromErr(err), nil
		}

		switch action {
		case "create":
			return handleCreateDependencies(ctx, deps, a, unblockAt)

		case "create_linear":
			taskIDs, err := a.idList("task_ids")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			created, err := deps.Dependencies.CreateLinear(ctx, taskIDs, unblockAt)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Linear dependency chain created", created,
				map[string]any{"count": len(created)}), nil

		case "create_fan_out":
			source, err := a.requireID("source_task_id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			targets, err := a.idList("target_task_ids")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			created, err := deps.Dependencies.CreateFanOut(ctx, source, targets, unblockAt)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Fan-out dependencies created", created,
				map[string]any{"count": len(created)}), nil

		case "create_fan_in":
			sources, err := a.idList("source_task_ids")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			target, err := a.requireID("target_task_id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			created, err := deps.Dependencies.CreateFanIn(ctx, sources, target, unblockAt)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Fan-in dependencies created", created,
				map[string]any{"count": len(created)}), nil

		case "delete":
			id, err := a.requireID("id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			if err := deps.Dependencies.Delete(ctx, id); err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Dependency deleted", nil, nil), nil

		case "delete_between":
			from, err := a.requireID("from_task_id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			to, err := a.requireID("to_task_id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			var depType *models.DependencyType
			if raw := a.str("type"); raw != "" {
				parsed, err := models.ParseDependencyType(raw)
				if err != nil {
					return NewErrorResultFromErr(apperrors.NewValidation("%v", err)), nil
				}
				depType = &parsed
			}
			n, err := deps.Dependencies.DeleteByEndpoints(ctx, from, to, depType)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Dependencies deleted", nil, map[string]any{"deleted": n}), nil

		case "delete_all":
			taskID, err := a.requireID("task_id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			n, err := deps.Dependencies.DeleteAllForTask(ctx, taskID)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("Dependencies deleted", nil, map[string]any{"deleted": n}), nil

		case "list":
			taskID, err := a.requireID("task_id")
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			edges, err := deps.Dependencies.ListForTask(ctx, taskID)
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			return NewSuccessResult("", edges, map[string]any{"count": len(edges)}), nil
		}

		return NewErrorResultFromErr(
			apperrors.NewValidation("unknown action %q", action)), nil
	})
}

// handleCreateDependencies accepts either the single-edge arguments or a
// dependencies batch; single-edge is kept for callers predating batches.
func handleCreateDependencies(ctx context.Context, deps *DependencyToolDeps, a args, defaultUnblockAt *models.Role) (*mcp.CallToolResult, error) {
	var specs []services.DependencySpec

	if raw, ok := a["dependencies"].([]any); ok && len(raw) > 0 {
		for _, item := range raw {
			edge, ok := item.(map[string]any)
			if !ok {
				return NewErrorResultFromErr(
					apperrors.NewValidation("dependencies entries must be objects")), nil
			}
			spec, err := specFromArgs(args(edge))
			if err != nil {
				return NewErrorResultFromErr(err), nil
			}
			specs = append(specs, spec)
		}
	} else {
		spec, err := specFromArgs(a)
		if err != nil {
			return NewErrorResultFromErr(err), nil
		}
		specs = append(specs, spec)
	}

	created, err := deps.Dependencies.Create(ctx, specs, defaultUnblockAt)
	if err != nil {
		return NewErrorResultFromErr(err), nil
	}
	deps.Logger.Debug("Created dependencies via tool", zap.Int("count", len(created)))
	return NewSuccessResult("Dependencies created", created,
		map[string]any{"count": len(created)}), nil
}

func specFromArgs(a args) (services.DependencySpec, error) {
	from, err := a.requireID("from_task_id")
	if err != nil {
		return services.DependencySpec{}, err
	}
	to, err := a.requireID("to_task_id")
	if err != nil {
		return services.DependencySpec{}, err
	}

	spec := services.DependencySpec{FromTaskID: from, ToTaskID: to}
	if raw := a.str("type"); raw != "" {
		depType, err := models.ParseDependencyType(raw)
		if err != nil {
			return services.DependencySpec{}, apperrors.NewValidation("%v", err)
		}
		spec.Type = depType
	}
	unblockAt, err := parseUnblockAtArg(a, "unblock_at")
	if err != nil {
		return services.DependencySpec{}, err
	}
	spec.UnblockAt = unblockAt
	return spec, nil
}

func parseUnblockAtArg(a args, key string) (*models.Role, error) {
	raw := a.str(key)
	if raw == "" {
		return nil, nil
	}
	role, err := models.ParseUnblockAt(raw)
	if err != nil {
		return nil, apperrors.NewValidation("%v", err)
	}
	return &role, nil
}
