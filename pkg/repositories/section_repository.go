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

// SectionRepository defines data access for ordered content sections.
type SectionRepository interface {
	Create(ctx context.Context, section *models.Section) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Section, error)
	Update(ctx context.Context, section *models.Section) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListForEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) ([]*models.Section, error)
	DeleteForEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) (int, error)
	// Reorder assigns ordinals 0..n-1 following orderedIDs, which must be a
	// permutation of the entity's current section ids.
	Reorder(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, orderedIDs []uuid.UUID) error
}

type sectionRepository struct {
	db *database.DB
}

// NewSectionRepository creates a section repository.
func NewSectionRepository(db *database.DB) SectionRepository {
	return &sectionRepository{db: db}
}

const sectionColumns = `id, entity_type, entity_id, title, usage_description, content, content_format, ordinal, created_at, modified_at, version`

func (r *sectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.Title == "" {
		return apperrors.NewValidation("section title is required")
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.QuerierFrom(ctx)

		if section.Ordinal < 0 {
			// Append: next ordinal after the current maximum.
			var next int
			err := q.QueryRowContext(ctx, `
				SELECT COALESCE(MAX(ordinal), -1) + 1 FROM sections
				WHERE entity_type = ? AND entity_id = ?`,
				string(section.EntityType), section.EntityID.String()).Scan(&next)
			if err != nil {
				return fmt.Errorf("failed to compute next ordinal: %w", err)
			}
			section.Ordinal = next
		} else {
			var taken int
			err := q.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM sections
				WHERE entity_type = ? AND entity_id = ? AND ordinal = ?`,
				string(section.EntityType), section.EntityID.String(), section.Ordinal).Scan(&taken)
			if err != nil {
				return fmt.Errorf("failed to check ordinal: %w", err)
			}
			if taken > 0 {
				return apperrors.NewConflict("ordinal %d already in use for %s %s",
					section.Ordinal, section.EntityType, section.EntityID)
			}
		}

		if section.ID == uuid.Nil {
			section.ID = uuid.New()
		}
		if section.ContentFormat == "" {
			section.ContentFormat = "markdown"
		}
		now := time.Now().UTC()
		section.CreatedAt = now
		section.ModifiedAt = now
		section.Version = 1

		_, err := q.ExecContext(ctx, `
			INSERT INTO sections (`+sectionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			section.ID.String(), string(section.EntityType), section.EntityID.String(),
			section.Title, section.UsageDescription, section.Content, section.ContentFormat,
			section.Ordinal, section.CreatedAt, section.ModifiedAt, section.Version)
		if err != nil {
			return fmt.Errorf("failed to create section: %w", err)
		}
		return nil
	})
}

func (r *sectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Section, error) {
	q := r.db.QuerierFrom(ctx)
	row := q.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id = ?`, id.String())

	section, err := scanSection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("section", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	return section, nil
}

func (r *sectionRepository) Update(ctx context.Context, section *models.Section) error {
	if section.Title == "" {
		return apperrors.NewValidation("section title is required")
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.QuerierFrom(ctx)
		now := time.Now().UTC()

		res, err := q.ExecContext(ctx, `
			UPDATE sections
			SET title = ?, usage_description = ?, content = ?, content_format = ?,
			    modified_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			section.Title, section.UsageDescription, section.Content, section.ContentFormat,
			now, section.ID.String(), section.Version)
		if err != nil {
			return fmt.Errorf("failed to update section: %w", err)
		}

		if err := checkVersionedWrite(ctx, q, "sections", "section", section.ID, section.Version, res); err != nil {
			return err
		}

		section.Version++
		section.ModifiedAt = now
		return nil
	})
}

func (r *sectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q := r.db.QuerierFrom(ctx)
	res, err := q.ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete section: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NewNotFound("section", id.String())
	}
	return nil
}

func (r *sectionRepository) ListForEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) ([]*models.Section, error) {
	q := r.db.QuerierFrom(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT `+sectionColumns+` FROM sections
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY ordinal ASC`,
		string(entityType), entityID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	sections := []*models.Section{}
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, section)
	}
	return sections, rows.Err()
}

func (r *sectionRepository) DeleteForEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) (int, error) {
	q := r.db.QuerierFrom(ctx)
	res, err := q.ExecContext(ctx,
		`DELETE FROM sections WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to delete sections: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}

// Reorder runs in two phases to respect the ordinal uniqueness constraint:
// first every section moves to a distinct negative ordinal, then each gets
// its final position. A single-phase swap would collide mid-flight.
func (r *sectionRepository) Reorder(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, orderedIDs []uuid.UUID) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		existing, err := r.ListForEntity(ctx, entityType, entityID)
		if err != nil {
			return err
		}
		if len(orderedIDs) != len(existing) {
			return apperrors.NewValidation(
				"reorder requires all %d section ids, got %d", len(existing), len(orderedIDs))
		}
		known := make(map[uuid.UUID]bool, len(existing))
		for _, s := range existing {
			known[s.ID] = true
		}
		seen := make(map[uuid.UUID]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			if !known[id] {
				return apperrors.NewValidation("section %s does not belong to %s %s", id, entityType, entityID)
			}
			if seen[id] {
				return apperrors.NewValidation("duplicate section id %s in reorder", id)
			}
			seen[id] = true
		}

		q := r.db.QuerierFrom(ctx)
		now := time.Now().UTC()

		for i, id := range orderedIDs {
			if _, err := q.ExecContext(ctx,
				`UPDATE sections SET ordinal = ? WHERE id = ?`,
				-(i + 1), id.String()); err != nil {
				return fmt.Errorf("failed to stage section order: %w", err)
			}
		}
		for i, id := range orderedIDs {
			if _, err := q.ExecContext(ctx,
				`UPDATE sections SET ordinal = ?, modified_at = ?, version = version + 1 WHERE id = ?`,
				i, now, id.String()); err != nil {
				return fmt.Errorf("failed to apply section order: %w", err)
			}
		}
		return nil
	})
}

func scanSection(row rowScanner) (*models.Section, error) {
	var (
		section          models.Section
		rawID, rawEntity string
		entityType       string
	)
	err := row.Scan(&rawID, &entityType, &rawEntity, &section.Title, &section.UsageDescription,
		&section.Content, &section.ContentFormat, &section.Ordinal,
		&section.CreatedAt, &section.ModifiedAt, &section.Version)
	if err != nil {
		return nil, err
	}
	section.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid section id: %w", err)
	}
	section.EntityID, err = uuid.Parse(rawEntity)
	if err != nil {
		return nil, fmt.Errorf("invalid section entity id: %w", err)
	}
	section.EntityType = models.EntityType(entityType)
	return &section, nil
}

var _ SectionRepository = (*sectionRepository)(nil)
