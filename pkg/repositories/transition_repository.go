package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive/pkg/database"
	"github.com/taskhive/taskhive/pkg/models"
)

// RoleTransitionRepository records the append-only role-transition log.
// Events are never updated; purge removes whole entity histories only.
type RoleTransitionRepository interface {
	Create(ctx context.Context, event *models.RoleTransition) error
	FindByEntityID(ctx context.Context, entityID uuid.UUID) ([]*models.RoleTransition, error)
	// Latest returns the most recent event for the entity, or nil.
	Latest(ctx context.Context, entityID uuid.UUID) (*models.RoleTransition, error)
	PurgeByEntityID(ctx context.Context, entityID uuid.UUID) (int, error)
}

type roleTransitionRepository struct {
	db *database.DB
}

// NewRoleTransitionRepository creates a role-transition repository.
func NewRoleTransitionRepository(db *database.DB) RoleTransitionRepository {
	return &roleTransitionRepository{db: db}
}

const transitionColumns = `id, entity_id, entity_type, from_role, to_role, from_status, to_status, "trigger", created_at`

func (r *roleTransitionRepository) Create(ctx context.Context, event *models.RoleTransition) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	q := r.db.QuerierFrom(ctx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO role_transitions (`+transitionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID.String(), event.EntityID.String(), string(event.EntityType),
		string(event.FromRole), string(event.ToRole), event.FromStatus, event.ToStatus,
		event.Trigger, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record role transition: %w", err)
	}
	return nil
}

func (r *roleTransitionRepository) FindByEntityID(ctx context.Context, entityID uuid.UUID) ([]*models.RoleTransition, error) {
	q := r.db.QuerierFrom(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT `+transitionColumns+` FROM role_transitions
		WHERE entity_id = ? ORDER BY created_at ASC, rowid ASC`,
		entityID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query role transitions: %w", err)
	}
	defer rows.Close()

	events := []*models.RoleTransition{}
	for rows.Next() {
		event, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role transition: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *roleTransitionRepository) Latest(ctx context.Context, entityID uuid.UUID) (*models.RoleTransition, error) {
	events, err := r.FindByEntityID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[len(events)-1], nil
}

func (r *roleTransitionRepository) PurgeByEntityID(ctx context.Context, entityID uuid.UUID) (int, error) {
	q := r.db.QuerierFrom(ctx)
	res, err := q.ExecContext(ctx,
		`DELETE FROM role_transitions WHERE entity_id = ?`, entityID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to purge role transitions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}

func scanTransition(row rowScanner) (*models.RoleTransition, error) {
	var (
		event                models.RoleTransition
		rawID, rawEntity     string
		entityType, from, to string
	)
	err := row.Scan(&rawID, &rawEntity, &entityType, &from, &to,
		&event.FromStatus, &event.ToStatus, &event.Trigger, &event.CreatedAt)
	if err != nil {
		return nil, err
	}
	if event.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("invalid transition id: %w", err)
	}
	if event.EntityID, err = uuid.Parse(rawEntity); err != nil {
		return nil, fmt.Errorf("invalid transition entity id: %w", err)
	}
	event.EntityType = models.EntityType(entityType)
	event.FromRole = models.Role(from)
	event.ToRole = models.Role(to)
	return &event, nil
}

var _ RoleTransitionRepository = (*roleTransitionRepository)(nil)
