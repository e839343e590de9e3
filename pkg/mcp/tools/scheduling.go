package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/services"
)

// SchedulingToolDeps contains dependencies for the recommendation tool.
type SchedulingToolDeps struct {
	Recommendation services.RecommendationService
	Logger         *zap.Logger
}

// RegisterSchedulingTools registers get_next_task.
func RegisterSchedulingTools(s *server.MCPServer, deps *SchedulingToolDeps) {
	registerGetNextTaskTool(s, deps)
}

func registerGetNextTaskTool(s *server.MCPServer, deps *SchedulingToolDeps) {
	tool := mcp.NewTool(
		"get_next_task",
		mcp.WithDescription(
			"Recommend the next startable tasks, optionally scoped to a project or feature. "+
				"A task is startable when its status sits in a queue role and every BLOCKS dependency "+
				"has reached its unblock_at role. Results are ordered by priority, then lower complexity, "+
				"then age. The execution_mode in the response says whether the batch can run in parallel, "+
				"must run sequentially, or whether everything is blocked, in flight, or complete.",
		),
		mcp.WithString("project_id", mcp.Description("Restrict to this project")),
		mcp.WithString("feature_id", mcp.Description("Restrict to this feature")),
		mcp.WithNumber("limit", mcp.Description("Maximum recommendations, default 5")),
		mcp.WithBoolean("include_details", mcp.Description("Include the summary text per task, default false")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a := requestArgs(req)

		projectID, err := a.idPtr("project_id")
		if err != nil {
			return NewErrorResultFromErr(err), nil
		}
		featureID, err := a.idPtr("feature_id")
		if err != nil {
			return NewErrorResultFromErr(err), nil
		}

		rec, err := deps.Recommendation.GetNextTasks(ctx, services.RecommendationScope{
			ProjectID: projectID,
			FeatureID: featureID,
		}, a.intVal("limit", 0), a.boolVal("include_details"))
		if err != nil {
			return NewErrorResultFromErr(err), nil
		}

		deps.Logger.Debug("Recommendation served",
			zap.String("mode", string(rec.Mode)),
			zap.Int("tasks", len(rec.Tasks)))

		metadata := map[string]any{
			"execution_mode":   rec.Mode,
			"total_candidates": rec.TotalCandidates,
		}
		if rec.Reason != "" {
			metadata["reason"] = rec.Reason
		}
		return NewSuccessResult("", rec.Tasks, metadata), nil
	})
}
