package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive/pkg/database"
	"github.com/taskhive/taskhive/pkg/models"
)

// TagRepository manages the (entityType, entityId, tag) relation. Tags are
// set-semantic per entity: writes deduplicate input and replace the stored
// set atomically within the caller's transaction.
type TagRepository interface {
	Replace(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, tags []string) error
	Get(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) ([]string, error)
	GetForEntities(ctx context.Context, entityType models.EntityType, ids []uuid.UUID) (map[uuid.UUID][]string, error)
	DeleteForEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) error
	FindEntityIDsByTag(ctx context.Context, entityType models.EntityType, tag string) ([]uuid.UUID, error)
	FindEntityIDsByTags(ctx context.Context, entityType models.EntityType, tags []string, matchAll bool) ([]uuid.UUID, error)
	GetAllTags(ctx context.Context, entityType models.EntityType) ([]string, error)
	CountByTag(ctx context.Context, entityType models.EntityType) (map[string]int, error)
}

type tagRepository struct {
	db *database.DB
}

// NewTagRepository creates a tag repository.
func NewTagRepository(db *database.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) Replace(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, tags []string) error {
	q := r.db.QuerierFrom(ctx)

	if _, err := q.ExecContext(ctx,
		`DELETE FROM entity_tags WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID.String()); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}

	for _, tag := range models.NormalizeTags(tags) {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO entity_tags (entity_type, entity_id, tag) VALUES (?, ?, ?)`,
			string(entityType), entityID.String(), tag); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", tag, err)
		}
	}
	return nil
}

func (r *tagRepository) Get(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) ([]string, error) {
	q := r.db.QuerierFrom(ctx)
	rows, err := q.QueryContext(ctx,
		`SELECT tag FROM entity_tags WHERE entity_type = ? AND entity_id = ? ORDER BY tag`,
		string(entityType), entityID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *tagRepository) GetForEntities(ctx context.Context, entityType models.EntityType, ids []uuid.UUID) (map[uuid.UUID][]string, error) {
	result := make(map[uuid.UUID][]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	q := r.db.QuerierFrom(ctx)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{string(entityType)}
	for _, id := range ids {
		args = append(args, id.String())
	}

	rows, err := q.QueryContext(ctx,
		`SELECT entity_id, tag FROM entity_tags WHERE entity_type = ? AND entity_id IN (`+placeholders+`) ORDER BY tag`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rawID, tag string
		if err := rows.Scan(&rawID, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid entity id in entity_tags: %w", err)
		}
		result[id] = append(result[id], tag)
	}
	return result, rows.Err()
}

func (r *tagRepository) DeleteForEntity(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) error {
	q := r.db.QuerierFrom(ctx)
	if _, err := q.ExecContext(ctx,
		`DELETE FROM entity_tags WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID.String()); err != nil {
		return fmt.Errorf("failed to delete tags: %w", err)
	}
	return nil
}

func (r *tagRepository) FindEntityIDsByTag(ctx context.Context, entityType models.EntityType, tag string) ([]uuid.UUID, error) {
	return r.FindEntityIDsByTags(ctx, entityType, []string{tag}, false)
}

func (r *tagRepository) FindEntityIDsByTags(ctx context.Context, entityType models.EntityType, tags []string, matchAll bool) ([]uuid.UUID, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	q := r.db.QuerierFrom(ctx)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
	args := []any{string(entityType)}
	for _, tag := range tags {
		args = append(args, strings.ToLower(tag))
	}

	query := `SELECT entity_id FROM entity_tags
		WHERE entity_type = ? AND LOWER(tag) IN (` + placeholders + `)
		GROUP BY entity_id`
	if matchAll {
		query += ` HAVING COUNT(DISTINCT LOWER(tag)) = ?`
		args = append(args, len(tags))
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find entities by tags: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan entity id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid entity id in entity_tags: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *tagRepository) GetAllTags(ctx context.Context, entityType models.EntityType) ([]string, error) {
	q := r.db.QuerierFrom(ctx)
	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT tag FROM entity_tags WHERE entity_type = ? ORDER BY tag`,
		string(entityType))
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *tagRepository) CountByTag(ctx context.Context, entityType models.EntityType) (map[string]int, error) {
	q := r.db.QuerierFrom(ctx)
	rows, err := q.QueryContext(ctx,
		`SELECT tag, COUNT(*) FROM entity_tags WHERE entity_type = ? GROUP BY tag`,
		string(entityType))
	if err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tag count: %w", err)
		}
		counts[tag] = n
	}
	return counts, rows.Err()
}

var _ TagRepository = (*tagRepository)(nil)
