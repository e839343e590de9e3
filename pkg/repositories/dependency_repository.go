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

// DependencyRepository maintains the directed dependency graph between
// tasks. The BLOCKS subgraph is kept acyclic: every insert of a BLOCKS
// edge runs a reachability check first, inside the same transaction as the
// insert so concurrent writers cannot race a cycle in.
type DependencyRepository interface {
	Create(ctx context.Context, dep *models.Dependency) error
	// CreateBatch inserts all edges or none. Edges accepted earlier in the
	// batch participate in the cycle checks of later ones.
	CreateBatch(ctx context.Context, deps []*models.Dependency) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dependency, error)
	FindByToTaskID(ctx context.Context, taskID uuid.UUID) ([]*models.Dependency, error)
	FindByFromTaskID(ctx context.Context, taskID uuid.UUID) ([]*models.Dependency, error)
	FindByTaskID(ctx context.Context, taskID uuid.UUID) ([]*models.Dependency, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByEndpoints removes edges between two tasks, optionally
	// restricted to one type. Returns the number removed.
	DeleteByEndpoints(ctx context.Context, fromTaskID, toTaskID uuid.UUID, depType *models.DependencyType) (int, error)
	DeleteByTaskID(ctx context.Context, taskID uuid.UUID) (int, error)
	// HasCyclicDependency reports whether inserting from -> to would close
	// a BLOCKS cycle, i.e. whether from is reachable from to.
	HasCyclicDependency(ctx context.Context, fromTaskID, toTaskID uuid.UUID) (bool, error)
}

type dependencyRepository struct {
	db *database.DB
}

// NewDependencyRepository creates a dependency repository.
func NewDependencyRepository(db *database.DB) DependencyRepository {
	return &dependencyRepository{db: db}
}

const dependencyColumns = `id, from_task_id, to_task_id, type, unblock_at, created_at`

func (r *dependencyRepository) Create(ctx context.Context, dep *models.Dependency) error {
	return r.CreateBatch(ctx, []*models.Dependency{dep})
}

func (r *dependencyRepository) CreateBatch(ctx context.Context, deps []*models.Dependency) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		for _, dep := range deps {
			if err := r.createOne(ctx, dep); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *dependencyRepository) createOne(ctx context.Context, dep *models.Dependency) error {
	if dep.FromTaskID == dep.ToTaskID {
		return apperrors.NewValidation("task %s cannot depend on itself", dep.FromTaskID)
	}

	q := r.db.QuerierFrom(ctx)

	for _, taskID := range []uuid.UUID{dep.FromTaskID, dep.ToTaskID} {
		var exists int
		err := q.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, taskID.String()).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("task", taskID.String())
		}
		if err != nil {
			return fmt.Errorf("failed to check task: %w", err)
		}
	}

	var dup int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM dependencies
		WHERE from_task_id = ? AND to_task_id = ? AND type = ?`,
		dep.FromTaskID.String(), dep.ToTaskID.String(), string(dep.Type)).Scan(&dup)
	if err != nil {
		return fmt.Errorf("failed to check duplicate dependency: %w", err)
	}
	if dup > 0 {
		return apperrors.NewValidation("dependency %s -> %s (%s) already exists",
			dep.FromTaskID, dep.ToTaskID, dep.Type)
	}

	if dep.Type == models.DependencyBlocks {
		cyclic, err := r.HasCyclicDependency(ctx, dep.FromTaskID, dep.ToTaskID)
		if err != nil {
			return err
		}
		if cyclic {
			return apperrors.NewValidation(
				"dependency %s -> %s would create a cycle in the blocking graph",
				dep.FromTaskID, dep.ToTaskID)
		}
	}

	if dep.ID == uuid.Nil {
		dep.ID = uuid.New()
	}
	dep.CreatedAt = time.Now().UTC()

	var unblockAt any
	if dep.UnblockAt != nil {
		unblockAt = string(*dep.UnblockAt)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO dependencies (`+dependencyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		dep.ID.String(), dep.FromTaskID.String(), dep.ToTaskID.String(),
		string(dep.Type), unblockAt, dep.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create dependency: %w", err)
	}
	return nil
}

// HasCyclicDependency walks outgoing BLOCKS edges from toTaskID with a
// recursive CTE; the candidate edge closes a cycle exactly when fromTaskID
// is reachable. Depth is bounded to guard against pathological graphs.
func (r *dependencyRepository) HasCyclicDependency(ctx context.Context, fromTaskID, toTaskID uuid.UUID) (bool, error) {
	q := r.db.QuerierFrom(ctx)

	var found int
	err := q.QueryRowContext(ctx, `
		WITH RECURSIVE reachable(task_id, depth) AS (
			SELECT to_task_id, 1 FROM dependencies
			WHERE from_task_id = ? AND type = 'BLOCKS'
			UNION
			SELECT d.to_task_id, r.depth + 1
			FROM dependencies d
			JOIN reachable r ON d.from_task_id = r.task_id
			WHERE d.type = 'BLOCKS' AND r.depth < 1000
		)
		SELECT COUNT(*) FROM reachable WHERE task_id = ?`,
		toTaskID.String(), fromTaskID.String()).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to run cycle check: %w", err)
	}
	return found > 0, nil
}

func (r *dependencyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dependency, error) {
	q := r.db.QuerierFrom(ctx)
	row := q.QueryRowContext(ctx,
		`SELECT `+dependencyColumns+` FROM dependencies WHERE id = ?`, id.String())

	dep, err := scanDependency(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("dependency", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dependency: %w", err)
	}
	return dep, nil
}

func (r *dependencyRepository) FindByToTaskID(ctx context.Context, taskID uuid.UUID) ([]*models.Dependency, error) {
	return r.queryDeps(ctx,
		`SELECT `+dependencyColumns+` FROM dependencies WHERE to_task_id = ? ORDER BY created_at ASC`,
		taskID.String())
}

func (r *dependencyRepository) FindByFromTaskID(ctx context.Context, taskID uuid.UUID) ([]*models.Dependency, error) {
	return r.queryDeps(ctx,
		`SELECT `+dependencyColumns+` FROM dependencies WHERE from_task_id = ? ORDER BY created_at ASC`,
		taskID.String())
}

func (r *dependencyRepository) FindByTaskID(ctx context.Context, taskID uuid.UUID) ([]*models.Dependency, error) {
	return r.queryDeps(ctx,
		`SELECT `+dependencyColumns+` FROM dependencies
		 WHERE from_task_id = ? OR to_task_id = ? ORDER BY created_at ASC`,
		taskID.String(), taskID.String())
}

func (r *dependencyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q := r.db.QuerierFrom(ctx)
	res, err := q.ExecContext(ctx, `DELETE FROM dependencies WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete dependency: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NewNotFound("dependency", id.String())
	}
	return nil
}

func (r *dependencyRepository) DeleteByEndpoints(ctx context.Context, fromTaskID, toTaskID uuid.UUID, depType *models.DependencyType) (int, error) {
	q := r.db.QuerierFrom(ctx)

	query := `DELETE FROM dependencies WHERE from_task_id = ? AND to_task_id = ?`
	args := []any{fromTaskID.String(), toTaskID.String()}
	if depType != nil {
		query += ` AND type = ?`
		args = append(args, string(*depType))
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete dependencies: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}

func (r *dependencyRepository) DeleteByTaskID(ctx context.Context, taskID uuid.UUID) (int, error) {
	q := r.db.QuerierFrom(ctx)
	res, err := q.ExecContext(ctx,
		`DELETE FROM dependencies WHERE from_task_id = ? OR to_task_id = ?`,
		taskID.String(), taskID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to delete task dependencies: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}

func (r *dependencyRepository) queryDeps(ctx context.Context, query string, args ...any) ([]*models.Dependency, error) {
	q := r.db.QuerierFrom(ctx)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	deps := []*models.Dependency{}
	for rows.Next() {
		dep, err := scanDependency(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

func scanDependency(row rowScanner) (*models.Dependency, error) {
	var (
		dep             models.Dependency
		rawID, from, to string
		depType         string
		unblockAt       sql.NullString
	)
	err := row.Scan(&rawID, &from, &to, &depType, &unblockAt, &dep.CreatedAt)
	if err != nil {
		return nil, err
	}

	if dep.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("invalid dependency id: %w", err)
	}
	if dep.FromTaskID, err = uuid.Parse(from); err != nil {
		return nil, fmt.Errorf("invalid from_task_id: %w", err)
	}
	if dep.ToTaskID, err = uuid.Parse(to); err != nil {
		return nil, fmt.Errorf("invalid to_task_id: %w", err)
	}
	dep.Type = models.DependencyType(depType)
	if unblockAt.Valid {
		role := models.Role(unblockAt.String)
		dep.UnblockAt = &role
	}
	return &dep, nil
}

var _ DependencyRepository = (*dependencyRepository)(nil)
