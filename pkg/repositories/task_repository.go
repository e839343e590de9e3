package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/database"
	"github.com/taskhive/taskhive/pkg/models"
)

// TaskRepository defines data access for tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	// Update performs an optimistic-lock conditional write: the stored row
	// must still carry task.Version. On success the task's version is
	// incremented by exactly one.
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByFilters(ctx context.Context, filters EntityFilters) ([]*models.Task, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Task, error)
	// FindByStatuses returns tasks in scope whose status is in statusIn,
	// ordered by created_at ascending for deterministic scheduling.
	FindByStatuses(ctx context.Context, projectID, featureID *uuid.UUID, statusIn []string) ([]*models.Task, error)
	// CountByStatus aggregates tasks in scope grouped by status.
	CountByStatus(ctx context.Context, projectID, featureID *uuid.UUID) (map[string]int, error)
	FindByFeature(ctx context.Context, featureID uuid.UUID) ([]*models.Task, error)
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Task, error)
	// UpdateStatus performs the optimistic status write used by the
	// progression service, bypassing full-entity updates.
	UpdateStatus(ctx context.Context, id uuid.UUID, version int, newStatus string) (*models.Task, error)
}

type taskRepository struct {
	db   *database.DB
	tags TagRepository
}

// NewTaskRepository creates a task repository.
func NewTaskRepository(db *database.DB, tags TagRepository) TaskRepository {
	return &taskRepository{db: db, tags: tags}
}

const taskColumns = `id, feature_id, project_id, title, summary, status, priority, complexity, created_at, modified_at, version`

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.Title == "" {
		return apperrors.NewValidation("task title is required")
	}
	if task.Complexity < 1 || task.Complexity > 10 {
		return apperrors.NewValidation("task complexity must be between 1 and 10, got %d", task.Complexity)
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if err := r.validateParents(ctx, task); err != nil {
			return err
		}

		if task.ID == uuid.Nil {
			task.ID = uuid.New()
		}
		now := time.Now().UTC()
		task.CreatedAt = now
		task.ModifiedAt = now
		task.Version = 1
		task.Tags = models.NormalizeTags(task.Tags)

		q := r.db.QuerierFrom(ctx)
		_, err := q.ExecContext(ctx, `
			INSERT INTO tasks (`+taskColumns+`, search_vector)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID.String(), nullableID(task.FeatureID), nullableID(task.ProjectID),
			task.Title, task.Summary, task.Status, string(task.Priority), task.Complexity,
			task.CreatedAt, task.ModifiedAt, task.Version, task.SearchVector())
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		return r.tags.Replace(ctx, models.EntityTask, task.ID, task.Tags)
	})
}

// validateParents enforces the referential invariant: referenced parents
// must exist, and when both feature and project are set the feature must
// belong to that project.
func (r *taskRepository) validateParents(ctx context.Context, task *models.Task) error {
	q := r.db.QuerierFrom(ctx)

	var featureProject sql.NullString
	if task.FeatureID != nil {
		err := q.QueryRowContext(ctx,
			`SELECT project_id FROM features WHERE id = ?`, task.FeatureID.String()).
			Scan(&featureProject)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("feature", task.FeatureID.String())
		}
		if err != nil {
			return fmt.Errorf("failed to check feature: %w", err)
		}
	}

	if task.ProjectID != nil {
		var exists int
		err := q.QueryRowContext(ctx,
			`SELECT 1 FROM projects WHERE id = ?`, task.ProjectID.String()).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("project", task.ProjectID.String())
		}
		if err != nil {
			return fmt.Errorf("failed to check project: %w", err)
		}
	}

	if task.FeatureID != nil && task.ProjectID != nil {
		if !featureProject.Valid || featureProject.String != task.ProjectID.String() {
			return apperrors.NewValidation(
				"feature %s does not belong to project %s", task.FeatureID, task.ProjectID)
		}
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	q := r.db.QuerierFrom(ctx)
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id.String())

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("task", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	task.Tags, err = r.tags.Get(ctx, models.EntityTask, task.ID)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	if task.Title == "" {
		return apperrors.NewValidation("task title is required")
	}
	if task.Complexity < 1 || task.Complexity > 10 {
		return apperrors.NewValidation("task complexity must be between 1 and 10, got %d", task.Complexity)
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if err := r.validateParents(ctx, task); err != nil {
			return err
		}

		now := time.Now().UTC()
		task.Tags = models.NormalizeTags(task.Tags)

		q := r.db.QuerierFrom(ctx)
		res, err := q.ExecContext(ctx, `
			UPDATE tasks
			SET feature_id = ?, project_id = ?, title = ?, summary = ?, status = ?,
			    priority = ?, complexity = ?, search_vector = ?, modified_at = ?,
			    version = version + 1
			WHERE id = ? AND version = ?`,
			nullableID(task.FeatureID), nullableID(task.ProjectID), task.Title, task.Summary,
			task.Status, string(task.Priority), task.Complexity, task.SearchVector(), now,
			task.ID.String(), task.Version)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		if err := checkVersionedWrite(ctx, q, "tasks", "task", task.ID, task.Version, res); err != nil {
			return err
		}

		if err := r.tags.Replace(ctx, models.EntityTask, task.ID, task.Tags); err != nil {
			return err
		}

		task.Version++
		task.ModifiedAt = now
		return nil
	})
}

func (r *taskRepository) UpdateStatus(ctx context.Context, id uuid.UUID, version int, newStatus string) (*models.Task, error) {
	var updated *models.Task
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.QuerierFrom(ctx)
		now := time.Now().UTC()
		res, err := q.ExecContext(ctx, `
			UPDATE tasks SET status = ?, modified_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			newStatus, now, id.String(), version)
		if err != nil {
			return fmt.Errorf("failed to update task status: %w", err)
		}
		if err := checkVersionedWrite(ctx, q, "tasks", "task", id, version, res); err != nil {
			return err
		}
		updated, err = r.GetByID(ctx, id)
		return err
	})
	return updated, err
}

func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if err := r.tags.DeleteForEntity(ctx, models.EntityTask, id); err != nil {
			return err
		}
		q := r.db.QuerierFrom(ctx)
		res, err := q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.NewNotFound("task", id.String())
		}
		return nil
	})
}

func (r *taskRepository) FindByFilters(ctx context.Context, filters EntityFilters) ([]*models.Task, error) {
	limit := ClampLimit(filters.Limit)
	if limit <= 0 {
		return []*models.Task{}, nil
	}

	b := &filterBuilder{}
	if filters.ProjectID != nil {
		b.add("project_id = ?", filters.ProjectID.String())
	}
	if filters.FeatureID != nil {
		b.add("feature_id = ?", filters.FeatureID.String())
	}
	b.addIn("status", filters.StatusIn, false)
	b.addIn("status", filters.StatusNotIn, true)
	b.addIn("priority", prioritiesToStrings(filters.PriorityIn), false)
	b.addIn("priority", prioritiesToStrings(filters.PriorityNotIn), true)
	b.addTagMatch(models.EntityTask, "tasks.id", filters.Tags, filters.MatchAllTags)
	if filters.TextQuery != "" && !b.addTextSearch("search_vector", filters.TextQuery) {
		return []*models.Task{}, nil
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + b.where() +
		` ORDER BY modified_at DESC LIMIT ?`
	args := append(b.args, limit)

	return r.queryTasks(ctx, query, args...)
}

func (r *taskRepository) Search(ctx context.Context, query string, limit int) ([]*models.Task, error) {
	return r.FindByFilters(ctx, EntityFilters{TextQuery: query, Limit: limit})
}

func (r *taskRepository) FindByStatuses(ctx context.Context, projectID, featureID *uuid.UUID, statusIn []string) ([]*models.Task, error) {
	if len(statusIn) == 0 {
		return []*models.Task{}, nil
	}
	b := &filterBuilder{}
	if projectID != nil {
		b.add("project_id = ?", projectID.String())
	}
	if featureID != nil {
		b.add("feature_id = ?", featureID.String())
	}
	b.addIn("status", statusIn, false)

	query := `SELECT ` + taskColumns + ` FROM tasks` + b.where() + ` ORDER BY created_at ASC`
	return r.queryTasks(ctx, query, b.args...)
}

func (r *taskRepository) CountByStatus(ctx context.Context, projectID, featureID *uuid.UUID) (map[string]int, error) {
	b := &filterBuilder{}
	if projectID != nil {
		b.add("project_id = ?", projectID.String())
	}
	if featureID != nil {
		b.add("feature_id = ?", featureID.String())
	}

	q := r.db.QuerierFrom(ctx)
	rows, err := q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks`+b.where()+` GROUP BY status`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *taskRepository) FindByFeature(ctx context.Context, featureID uuid.UUID) ([]*models.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE feature_id = ? ORDER BY created_at ASC`,
		featureID.String())
}

func (r *taskRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY created_at ASC`,
		projectID.String())
}

func (r *taskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	q := r.db.QuerierFrom(ctx)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	ids := []uuid.UUID{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
		ids = append(ids, task.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagsByID, err := r.tags.GetForEntities(ctx, models.EntityTask, ids)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		task.Tags = tagsByID[task.ID]
	}
	return tasks, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task                 models.Task
		rawID                string
		featureID, projectID sql.NullString
		priority             string
	)
	err := row.Scan(&rawID, &featureID, &projectID, &task.Title, &task.Summary,
		&task.Status, &priority, &task.Complexity, &task.CreatedAt, &task.ModifiedAt,
		&task.Version)
	if err != nil {
		return nil, err
	}

	task.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid task id: %w", err)
	}
	task.Priority = models.Priority(priority)
	if task.FeatureID, err = parseNullableID(featureID); err != nil {
		return nil, err
	}
	if task.ProjectID, err = parseNullableID(projectID); err != nil {
		return nil, err
	}
	return &task, nil
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func parseNullableID(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, fmt.Errorf("invalid id reference: %w", err)
	}
	return &id, nil
}

// checkVersionedWrite distinguishes the two reasons a conditional update
// can touch zero rows: the entity is gone (NotFound) or someone else
// committed first (Conflict).
func checkVersionedWrite(ctx context.Context, q database.Querier, table, entityType string, id uuid.UUID, version int, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var current int
	err = q.QueryRowContext(ctx, `SELECT version FROM `+table+` WHERE id = ?`, id.String()).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFound(entityType, id.String())
	}
	if err != nil {
		return fmt.Errorf("failed to check %s version: %w", entityType, err)
	}
	return apperrors.NewConflict(
		"%s %s was modified concurrently: expected version %d, found %d",
		entityType, id, version, current)
}

var _ TaskRepository = (*taskRepository)(nil)
