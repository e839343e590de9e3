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

// QueryToolDeps contains dependencies for the read-side tools.
type QueryToolDeps struct {
	Query  services.ContainerQueryService
	Logger *zap.Logger
}

// RegisterQueryTools registers query_container.
func RegisterQueryTools(s *server.MCPServer, deps *QueryToolDeps) {
	registerQueryContainerTool(s, deps)
}

func registerQueryContainerTool(s *server.MCPServer, deps *QueryToolDeps) {
	tool := mcp.NewTool(
		"query_container",
		mcp.WithDescription(
			"Read projects, features, and tasks. "+
				"Actions: get (by id), list (filtered), search (text query over titles, summaries, and tags), "+
				"overview (a project or feature with its children and task counts). "+
				"List filters combine with AND; the role filter expands to the statuses configured under that role. "+
				"Results are capped at 100.",
		),
		mcp.WithString("entity_type", mcp.Required(),
			mcp.Description("One of: project, feature, task"),
			mcp.Enum("project", "feature", "task")),
		mcp.WithString("action", mcp.Required(),
			mcp.Description("One of: get, list, search, overview"),
			mcp.Enum("get", "list", "search", "overview")),
		mcp.WithString("id", mcp.Description("Entity UUID (get and overview)")),
		mcp.WithString("project_id", mcp.Description("Scope filter: parent project UUID")),
		mcp.WithString("feature_id", mcp.Description("Scope filter: parent feature UUID (tasks only)")),
		mcp.WithArray("status_in", mcp.Description("Match any of these statuses"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("status_not_in", mcp.Description("Exclude these statuses"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("role", mcp.Description("Match statuses classified under this role"),
			mcp.Enum("queue", "work", "review", "blocked", "terminal")),
		mcp.WithArray("priority_in", mcp.Description("Match any of these priorities"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("tags", mcp.Description("Match entities carrying these tags"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithBoolean("match_all_tags", mcp.Description("Require every tag instead of any")),
		mcp.WithString("query", mcp.Description("Text query (search action); all terms must match")),
		mcp.WithNumber("limit", mcp.Description("Maximum results, capped at 100")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entityTypeRaw, err := req.RequireString("entity_type")
		if err != nil {
			return NewErrorResult(CodeValidation, err.Error(), nil), nil
		}
		action, err := req.RequireString("action")
		if err != nil {
			return NewErrorResult(CodeValidation, err.Error(), nil), nil
		}
		entityType, err := models.ParseEntityType(entityTypeRaw)
		if err != nil {
			return NewErrorResult(CodeValidation, err.Error(), nil), nil
		}
		a := requestArgs(req)

		switch action {
		case "get":
			return handleGet(ctx, deps, entityType, a)
		case "list":
			return handleList(ctx, deps, entityType, a)
		case "search":
			return handleSearch(ctx, deps, entityType, a)
		case "overview":
			return handleOverview(ctx, deps, entityType, a)
		}
		return NewErrorResultFromErr(
			apperrors.NewValidation("unknown action %q, expected get, list, search, or overview", action)), nil
	})
}

func handleGet(ctx context.Context, deps *QueryToolDeps, entityType models.EntityType, a args) (*mcp.CallToolResult, error) {
	id, err := a.requireID("id")
	if err != nil {
		return NewErrorResultFromErr(err), nil
	}

	var data any
	switch entityType {
	case models.EntityProject:
		data, err = deps.Query.GetProject(ctx, id)
	case models.EntityFeature:
		data, err = deps.Query.GetFeature(ctx, id)
	case models.EntityTask:
		data, err = deps.Query.GetTask(ctx, id)
	default:
		err = apperrors.NewValidation("cannot get entity type %q", entityType)
	}
	if err != nil {
		return NewErrorResultFromErr(err), nil
	}
	return NewSuccessResult("", data, nil), nil
}

func buildFilters(a args) (services.ContainerFilters, error) {
	projectID, err := a.idPtr("project_id")
	if err != nil {
		return services.ContainerFilters{}, err
	}
	featureID, err := a.idPtr("feature_id")
	if err != nil {
		return services.ContainerFilters{}, err
	}

	filters := services.ContainerFilters{
		ProjectID:    projectID,
		FeatureID:    featureID,
		StatusIn:     a.stringList("status_in"),
		StatusNotIn:  a.stringList("status_not_in"),
		Tags:         a.stringList("tags"),
		MatchAllTags: a.boolVal("match_all_tags"),
		TextQuery:    a.str("query"),
		Limit:        a.intVal("limit", 50),
	}

	if roleRaw := a.str("role"); roleRaw != "" {
		role := models.Role(roleRaw)
		filters.Role = &role
	}
	for _, p := range a.stringList("priority_in") {
		priority, err := models.ParsePriority(p)
		if err != nil {
			return services.ContainerFilters{}, apperrors.NewValidation("%v", err)
		}
		filters.PriorityIn = append(filters.PriorityIn, priority)
	}
	return filters, nil
}

func handleList(ctx context.Context, deps *QueryToolDeps, entityType models.EntityType, a args) (*mcp.CallToolResult, error) {
	filters, err := buildFilters(a)
	if err != nil {
		return NewErrorResultFromErr(err), nil
	}

	var data any
	var count int
	switch entityType {
	case models.EntityProject:
		items, listErr := deps.Query.ListProjects(ctx, filters)
		data, count, err = items, len(items), listErr
	case models.EntityFeature:
		items, listErr := deps.Query.ListFeatures(ctx, filters)
		data, count, err = items, len(items), listErr
	case models.EntityTask:
		items, listErr := deps.Query.ListTasks(ctx, filters)
		data, count, err = items, len(items), listErr
	default:
		err = apperrors.NewValidation("cannot list entity type %q", entityType)
	}
	if err != nil {
		return NewErrorResultFromErr(err), nil
	}
	return NewSuccessResult("", data, map[string]any{"count": count}), nil
}

func handleSearch(ctx context.Context, deps *QueryToolDeps, entityType models.EntityType, a args) (*mcp.CallToolResult, error) {
	query := a.str("query")
	limit := a.intVal("limit", 50)

	var data any
	var count int
	var err error
	switch entityType {
	case models.EntityProject:
		items, searchErr := deps.Query.SearchProjects(ctx, query, limit)
		data, count, err = items, len(items), searchErr
	case models.EntityFeature:
		items, searchErr := deps.Query.SearchFeatures(ctx, query, limit)
		data, count, err = items, len(items), searchErr
	case models.EntityTask:
		items, searchErr := deps.Query.SearchTasks(ctx, query, limit)
		data, count, err = items, len(items), searchErr
	default:
		err = apperrors.NewValidation("cannot search entity type %q", entityType)
	}
	if err != nil {
		return NewErrorResultFromErr(err), nil
	}
	return NewSuccessResult("", data, map[string]any{"count": count, "query": query}), nil
}

func handleOverview(ctx context.Context, deps *QueryToolDeps, entityType models.EntityType, a args) (*mcp.CallToolResult, error) {
	id, err := a.requireID("id")
	if err != nil {
		return NewErrorResultFromErr(err), nil
	}

	var data any
	switch entityType {
	case models.EntityProject:
		data, err = deps.Query.ProjectOverview(ctx, id)
	case models.EntityFeature:
		data, err = deps.Query.FeatureOverview(ctx, id)
	default:
		err = apperrors.NewValidation("overview is only available for projects and features")
	}
	if err != nil {
		return NewErrorResultFromErr(err), nil
	}
	return NewSuccessResult("", data, nil), nil
}
