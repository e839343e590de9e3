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

// FeatureRepository defines data access for features.
type FeatureRepository interface {
	Create(ctx context.Context, feature *models.Feature) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Feature, error)
	Update(ctx context.Context, feature *models.Feature) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByFilters(ctx context.Context, filters EntityFilters) ([]*models.Feature, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Feature, error)
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Feature, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, version int, newStatus string) (*models.Feature, error)
}

type featureRepository struct {
	db   *database.DB
	tags TagRepository
}

// NewFeatureRepository creates a feature repository.
func NewFeatureRepository(db *database.DB, tags TagRepository) FeatureRepository {
	return &featureRepository{db: db, tags: tags}
}

const featureColumns = `id, project_id, name, summary, status, priority, created_at, modified_at, version`

func (r *featureRepository) Create(ctx context.Context, feature *models.Feature) error {
	if feature.Name == "" {
		return apperrors.NewValidation("feature name is required")
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if err := r.validateParent(ctx, feature); err != nil {
			return err
		}

		if feature.ID == uuid.Nil {
			feature.ID = uuid.New()
		}
		now := time.Now().UTC()
		feature.CreatedAt = now
		feature.ModifiedAt = now
		feature.Version = 1
		feature.Tags = models.NormalizeTags(feature.Tags)

		q := r.db.QuerierFrom(ctx)
		_, err := q.ExecContext(ctx, `
			INSERT INTO features (`+featureColumns+`, search_vector)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			feature.ID.String(), nullableID(feature.ProjectID), feature.Name,
			feature.Summary, feature.Status, string(feature.Priority),
			feature.CreatedAt, feature.ModifiedAt, feature.Version, feature.SearchVector())
		if err != nil {
			return fmt.Errorf("failed to create feature: %w", err)
		}

		return r.tags.Replace(ctx, models.EntityFeature, feature.ID, feature.Tags)
	})
}

func (r *featureRepository) validateParent(ctx context.Context, feature *models.Feature) error {
	if feature.ProjectID == nil {
		return nil
	}
	q := r.db.QuerierFrom(ctx)
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM projects WHERE id = ?`, feature.ProjectID.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFound("project", feature.ProjectID.String())
	}
	if err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}
	return nil
}

func (r *featureRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Feature, error) {
	q := r.db.QuerierFrom(ctx)
	row := q.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE id = ?`, id.String())

	feature, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("feature", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature: %w", err)
	}

	feature.Tags, err = r.tags.Get(ctx, models.EntityFeature, feature.ID)
	if err != nil {
		return nil, err
	}
	return feature, nil
}

func (r *featureRepository) Update(ctx context.Context, feature *models.Feature) error {
	if feature.Name == "" {
		return apperrors.NewValidation("feature name is required")
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if err := r.validateParent(ctx, feature); err != nil {
			return err
		}

		now := time.Now().UTC()
		feature.Tags = models.NormalizeTags(feature.Tags)

		q := r.db.QuerierFrom(ctx)
		res, err := q.ExecContext(ctx, `
			UPDATE features
			SET project_id = ?, name = ?, summary = ?, status = ?, priority = ?,
			    search_vector = ?, modified_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			nullableID(feature.ProjectID), feature.Name, feature.Summary, feature.Status,
			string(feature.Priority), feature.SearchVector(), now,
			feature.ID.String(), feature.Version)
		if err != nil {
			return fmt.Errorf("failed to update feature: %w", err)
		}

		if err := checkVersionedWrite(ctx, q, "features", "feature", feature.ID, feature.Version, res); err != nil {
			return err
		}

		if err := r.tags.Replace(ctx, models.EntityFeature, feature.ID, feature.Tags); err != nil {
			return err
		}

		feature.Version++
		feature.ModifiedAt = now
		return nil
	})
}

func (r *featureRepository) UpdateStatus(ctx context.Context, id uuid.UUID, version int, newStatus string) (*models.Feature, error) {
	var updated *models.Feature
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.QuerierFrom(ctx)
		now := time.Now().UTC()
		res, err := q.ExecContext(ctx, `
			UPDATE features SET status = ?, modified_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			newStatus, now, id.String(), version)
		if err != nil {
			return fmt.Errorf("failed to update feature status: %w", err)
		}
		if err := checkVersionedWrite(ctx, q, "features", "feature", id, version, res); err != nil {
			return err
		}
		updated, err = r.GetByID(ctx, id)
		return err
	})
	return updated, err
}

func (r *featureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if err := r.tags.DeleteForEntity(ctx, models.EntityFeature, id); err != nil {
			return err
		}
		q := r.db.QuerierFrom(ctx)
		res, err := q.ExecContext(ctx, `DELETE FROM features WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("failed to delete feature: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperrors.NewNotFound("feature", id.String())
		}
		return nil
	})
}

func (r *featureRepository) FindByFilters(ctx context.Context, filters EntityFilters) ([]*models.Feature, error) {
	limit := ClampLimit(filters.Limit)
	if limit <= 0 {
		return []*models.Feature{}, nil
	}

	b := &filterBuilder{}
	if filters.ProjectID != nil {
		b.add("project_id = ?", filters.ProjectID.String())
	}
	b.addIn("status", filters.StatusIn, false)
	b.addIn("status", filters.StatusNotIn, true)
	b.addIn("priority", prioritiesToStrings(filters.PriorityIn), false)
	b.addIn("priority", prioritiesToStrings(filters.PriorityNotIn), true)
	b.addTagMatch(models.EntityFeature, "features.id", filters.Tags, filters.MatchAllTags)
	if filters.TextQuery != "" && !b.addTextSearch("search_vector", filters.TextQuery) {
		return []*models.Feature{}, nil
	}

	query := `SELECT ` + featureColumns + ` FROM features` + b.where() +
		` ORDER BY modified_at DESC LIMIT ?`
	args := append(b.args, limit)

	return r.queryFeatures(ctx, query, args...)
}

func (r *featureRepository) Search(ctx context.Context, query string, limit int) ([]*models.Feature, error) {
	return r.FindByFilters(ctx, EntityFilters{TextQuery: query, Limit: limit})
}

func (r *featureRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Feature, error) {
	return r.queryFeatures(ctx,
		`SELECT `+featureColumns+` FROM features WHERE project_id = ? ORDER BY created_at ASC`,
		projectID.String())
}

func (r *featureRepository) queryFeatures(ctx context.Context, query string, args ...any) ([]*models.Feature, error) {
	q := r.db.QuerierFrom(ctx)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	features := []*models.Feature{}
	ids := []uuid.UUID{}
	for rows.Next() {
		feature, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		features = append(features, feature)
		ids = append(ids, feature.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagsByID, err := r.tags.GetForEntities(ctx, models.EntityFeature, ids)
	if err != nil {
		return nil, err
	}
	for _, feature := range features {
		feature.Tags = tagsByID[feature.ID]
	}
	return features, nil
}

func scanFeature(row rowScanner) (*models.Feature, error) {
	var (
		feature   models.Feature
		rawID     string
		projectID sql.NullString
		priority  string
	)
	err := row.Scan(&rawID, &projectID, &feature.Name, &feature.Summary, &feature.Status,
		&priority, &feature.CreatedAt, &feature.ModifiedAt, &feature.Version)
	if err != nil {
		return nil, err
	}
	feature.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid feature id: %w", err)
	}
	feature.Priority = models.Priority(priority)
	if feature.ProjectID, err = parseNullableID(projectID); err != nil {
		return nil, err
	}
	return &feature, nil
}

var _ FeatureRepository = (*featureRepository)(nil)
