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

// ProjectRepository defines data access for projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByFilters(ctx context.Context, filters EntityFilters) ([]*models.Project, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Project, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, version int, newStatus string) (*models.Project, error)
}

type projectRepository struct {
	db   *database.DB
	tags TagRepository
}

// NewProjectRepository creates a project repository.
func NewProjectRepository(db *database.DB, tags TagRepository) ProjectRepository {
	return &projectRepository{db: db, tags: tags}
}

const projectColumns = `id, name, description, summary, status, created_at, modified_at, version`

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.Name == "" {
		return apperrors.NewValidation("project name is required")
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if project.ID == uuid.Nil {
			project.ID = uuid.New()
		}
		now := time.Now().UTC()
		project.CreatedAt = now
		project.ModifiedAt = now
		project.Version = 1
		project.Tags = models.NormalizeTags(project.Tags)

		q := r.db.QuerierFrom(ctx)
		_, err := q.ExecContext(ctx, `
			INSERT INTO projects (`+projectColumns+`, search_vector)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			project.ID.String(), project.Name, project.Description, project.Summary,
			project.Status, project.CreatedAt, project.ModifiedAt, project.Version,
			project.SearchVector())
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		return r.tags.Replace(ctx, models.EntityProject, project.ID, project.Tags)
	})
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	q := r.db.QuerierFrom(ctx)
	row := q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id.String())

	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("project", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	project.Tags, err = r.tags.Get(ctx, models.EntityProject, project.ID)
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	if project.Name == "" {
		return apperrors.NewValidation("project name is required")
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		project.Tags = models.NormalizeTags(project.Tags)

		q := r.db.QuerierFrom(ctx)
		res, err := q.ExecContext(ctx, `
			UPDATE projects
			SET name = ?, description = ?, summary = ?, status = ?, search_vector = ?,
			    modified_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			project.Name, project.Description, project.Summary, project.Status,
			project.SearchVector(), now, project.ID.String(), project.Version)
		if err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		if err := checkVersionedWrite(ctx, q, "projects", "project", project.ID, project.Version, res); err != nil {
			return err
		}

		if err := r.tags.Replace(ctx, models.EntityProject, project.ID, project.Tags); err != nil {
			return err
		}

		project.Version++
		project.ModifiedAt = now
		return nil
	})
}

func (r *projectRepository) UpdateStatus(ctx context.Context, id uuid.UUID, version int, newStatus string) (*models.Project, error) {
	var updated *models.Project
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.QuerierFrom(ctx)
		now := time.Now().UTC()
		res, err := q.ExecContext(ctx, `
			UPDATE projects SET status = ?, modified_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			newStatus, now, id.String(), version)
		if err != nil {
			return fmt.Errorf("failed to update project status: %w", err)
		}
		if err := checkVersionedWrite(ctx, q, "projects", "project", id, version, res); err != nil {
			return err
		}
		updated, err = r.GetByID(ctx, id)
		return err
	})
	return updated, err
}

func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if err := r.tags.DeleteForEntity(ctx, models.EntityProject, id); err != nil {
			return err
		}
		q := r.db.QuerierFrom(ctx)
		res, err := q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.NewNotFound("project", id.String())
		}
		return nil
	})
}

func (r *projectRepository) FindByFilters(ctx context.Context, filters EntityFilters) ([]*models.Project, error) {
	limit := ClampLimit(filters.Limit)
	if limit <= 0 {
		return []*models.Project{}, nil
	}

	b := &filterBuilder{}
	b.addIn("status", filters.StatusIn, false)
	b.addIn("status", filters.StatusNotIn, true)
	b.addTagMatch(models.EntityProject, "projects.id", filters.Tags, filters.MatchAllTags)
	if filters.TextQuery != "" && !b.addTextSearch("search_vector", filters.TextQuery) {
		return []*models.Project{}, nil
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + b.where() +
		` ORDER BY modified_at DESC LIMIT ?`
	args := append(b.args, limit)

	return r.queryProjects(ctx, query, args...)
}

func (r *projectRepository) Search(ctx context.Context, query string, limit int) ([]*models.Project, error) {
	return r.FindByFilters(ctx, EntityFilters{TextQuery: query, Limit: limit})
}

func (r *projectRepository) queryProjects(ctx context.Context, query string, args ...any) ([]*models.Project, error) {
	q := r.db.QuerierFrom(ctx)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := []*models.Project{}
	ids := []uuid.UUID{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
		ids = append(ids, project.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagsByID, err := r.tags.GetForEntities(ctx, models.EntityProject, ids)
	if err != nil {
		return nil, err
	}
	for _, project := range projects {
		project.Tags = tagsByID[project.ID]
	}
	return projects, nil
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		project models.Project
		rawID   string
	)
	err := row.Scan(&rawID, &project.Name, &project.Description, &project.Summary,
		&project.Status, &project.CreatedAt, &project.ModifiedAt, &project.Version)
	if err != nil {
		return nil, err
	}
	project.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid project id: %w", err)
	}
	return &project, nil
}

var _ ProjectRepository = (*projectRepository)(nil)
