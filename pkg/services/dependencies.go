package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/database"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/repositories"
	"github.com/taskhive/taskhive/pkg/retry"
)

// DependencySpec is one requested edge before normalization.
type DependencySpec struct {
	FromTaskID uuid.UUID
	ToTaskID   uuid.UUID
	Type       models.DependencyType
	// UnblockAt overrides the batch-level default for this edge.
	UnblockAt *models.Role
}

// DependencyService maintains the dependency graph and expands the batch
// creation patterns into candidate edges.
type DependencyService interface {
	// Create normalizes and inserts the given edges atomically. defaultUnblockAt,
	// when non-nil, applies to every BLOCKS edge without its own override.
	Create(ctx context.Context, specs []DependencySpec, defaultUnblockAt *models.Role) ([]*models.Dependency, error)
	// CreateLinear chains taskIDs[0] -> taskIDs[1] -> ... as BLOCKS edges.
	CreateLinear(ctx context.Context, taskIDs []uuid.UUID, unblockAt *models.Role) ([]*models.Dependency, error)
	// CreateFanOut creates source -> target for every target.
	CreateFanOut(ctx context.Context, source uuid.UUID, targets []uuid.UUID, unblockAt *models.Role) ([]*models.Dependency, error)
	// CreateFanIn creates source -> target for every source.
	CreateFanIn(ctx context.Context, sources []uuid.UUID, target uuid.UUID, unblockAt *models.Role) ([]*models.Dependency, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByEndpoints(ctx context.Context, fromTaskID, toTaskID uuid.UUID, depType *models.DependencyType) (int, error)
	DeleteAllForTask(ctx context.Context, taskID uuid.UUID) (int, error)
	ListForTask(ctx context.Context, taskID uuid.UUID) ([]*models.Dependency, error)
}

type dependencyService struct {
	db     *database.DB
	repo   repositories.DependencyRepository
	logger *zap.Logger
}

// NewDependencyService creates a dependency service.
func NewDependencyService(db *database.DB, repo repositories.DependencyRepository, logger *zap.Logger) DependencyService {
	return &dependencyService{
		db:     db,
		repo:   repo,
		logger: logger.Named("dependency-service"),
	}
}

func (s *dependencyService) Create(ctx context.Context, specs []DependencySpec, defaultUnblockAt *models.Role) ([]*models.Dependency, error) {
	if len(specs) == 0 {
		return nil, apperrors.NewValidation("at least one dependency is required")
	}

	deps := make([]*models.Dependency, 0, len(specs))
	for _, spec := range specs {
		dep, err := normalizeSpec(spec, defaultUnblockAt)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}

	// Cycle and duplicate rejections are permanent; only lock contention
	// is retried.
	if err := retry.DoIfRetryable(ctx, nil, func() error {
		return s.repo.CreateBatch(ctx, deps)
	}); err != nil {
		return nil, err
	}
	s.logger.Debug("Created dependencies", zap.Int("count", len(deps)))
	return deps, nil
}

// normalizeSpec applies the wire-level rules: IS_BLOCKED_BY swaps its
// endpoints into a BLOCKS edge, unblockAt is only legal on BLOCKS and
// defaults to terminal there.
func normalizeSpec(spec DependencySpec, defaultUnblockAt *models.Role) (*models.Dependency, error) {
	depType := spec.Type
	if depType == "" {
		depType = models.DependencyBlocks
	}

	from, to := spec.FromTaskID, spec.ToTaskID
	if depType == models.DependencyIsBlockedBy {
		from, to = to, from
		depType = models.DependencyBlocks
	}

	unblockAt := spec.UnblockAt
	if unblockAt == nil {
		unblockAt = defaultUnblockAt
	}

	if depType != models.DependencyBlocks {
		if unblockAt != nil {
			return nil, apperrors.NewValidation("unblockAt is only valid on BLOCKS dependencies")
		}
		return &models.Dependency{FromTaskID: from, ToTaskID: to, Type: depType}, nil
	}

	if unblockAt == nil {
		terminal := models.RoleTerminal
		unblockAt = &terminal
	}
	if unblockAt.Rank() < 0 {
		return nil, apperrors.NewValidation("invalid unblockAt %q", *unblockAt)
	}

	return &models.Dependency{FromTaskID: from, ToTaskID: to, Type: depType, UnblockAt: unblockAt}, nil
}

func (s *dependencyService) CreateLinear(ctx context.Context, taskIDs []uuid.UUID, unblockAt *models.Role) ([]*models.Dependency, error) {
	if len(taskIDs) < 2 {
		return nil, apperrors.NewValidation("linear pattern requires at least 2 task ids, got %d", len(taskIDs))
	}
	if err := checkDistinct(taskIDs); err != nil {
		return nil, err
	}

	specs := make([]DependencySpec, 0, len(taskIDs)-1)
	for i := 0; i < len(taskIDs)-1; i++ {
		specs = append(specs, DependencySpec{
			FromTaskID: taskIDs[i],
			ToTaskID:   taskIDs[i+1],
			Type:       models.DependencyBlocks,
		})
	}
	return s.Create(ctx, specs, unblockAt)
}

func (s *dependencyService) CreateFanOut(ctx context.Context, source uuid.UUID, targets []uuid.UUID, unblockAt *models.Role) ([]*models.Dependency, error) {
	if len(targets) == 0 {
		return nil, apperrors.NewValidation("fan-out pattern requires at least 1 target")
	}
	if err := checkDistinct(append([]uuid.UUID{source}, targets...)); err != nil {
		return nil, err
	}

	specs := make([]DependencySpec, 0, len(targets))
	for _, target := range targets {
		specs = append(specs, DependencySpec{
			FromTaskID: source,
			ToTaskID:   target,
			Type:       models.DependencyBlocks,
		})
	}
	return s.Create(ctx, specs, unblockAt)
}

func (s *dependencyService) CreateFanIn(ctx context.Context, sources []uuid.UUID, target uuid.UUID, unblockAt *models.Role) ([]*models.Dependency, error) {
	if len(sources) == 0 {
		return nil, apperrors.NewValidation("fan-in pattern requires at least 1 source")
	}
	if err := checkDistinct(append([]uuid.UUID{target}, sources...)); err != nil {
		return nil, err
	}

	specs := make([]DependencySpec, 0, len(sources))
	for _, source := range sources {
		specs = append(specs, DependencySpec{
			FromTaskID: source,
			ToTaskID:   target,
			Type:       models.DependencyBlocks,
		})
	}
	return s.Create(ctx, specs, unblockAt)
}

func checkDistinct(ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return apperrors.NewValidation("duplicate task id %s in pattern", id)
		}
		seen[id] = true
	}
	return nil
}

func (s *dependencyService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *dependencyService) DeleteByEndpoints(ctx context.Context, fromTaskID, toTaskID uuid.UUID, depType *models.DependencyType) (int, error) {
	return s.repo.DeleteByEndpoints(ctx, fromTaskID, toTaskID, depType)
}

func (s *dependencyService) DeleteAllForTask(ctx context.Context, taskID uuid.UUID) (int, error) {
	return s.repo.DeleteByTaskID(ctx, taskID)
}

func (s *dependencyService) ListForTask(ctx context.Context, taskID uuid.UUID) ([]*models.Dependency, error) {
	return s.repo.FindByTaskID(ctx, taskID)
}

var _ DependencyService = (*dependencyService)(nil)
