package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
	"github.com/taskhive/taskhive/pkg/repositories"
)

// CreateSectionInput carries the writable section fields. Ordinal -1
// appends after the entity's current last section.
type CreateSectionInput struct {
	EntityType       models.EntityType
	EntityID         uuid.UUID
	Title            string
	UsageDescription string
	Content          string
	ContentFormat    string
	Ordinal          int
}

// UpdateSectionInput is a partial update under optimistic locking. The
// ordinal is not updatable here; use Reorder.
type UpdateSectionInput struct {
	ID               uuid.UUID
	Version          int
	Title            *string
	UsageDescription *string
	Content          *string
	ContentFormat    *string
}

// SectionService manages the ordered document sections attached to an
// entity.
type SectionService interface {
	Create(ctx context.Context, input CreateSectionInput) (*models.Section, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Section, error)
	Update(ctx context.Context, input UpdateSectionInput) (*models.Section, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) ([]*models.Section, error)
	// Reorder assigns ordinals 0..n-1 following orderedIDs, which must be
	// a permutation of the entity's current section ids.
	Reorder(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, orderedIDs []uuid.UUID) ([]*models.Section, error)
}

type sectionService struct {
	repo   repositories.SectionRepository
	logger *zap.Logger
}

// NewSectionService creates the section service.
func NewSectionService(repo repositories.SectionRepository, logger *zap.Logger) SectionService {
	return &sectionService{repo: repo, logger: logger.Named("section-service")}
}

func (s *sectionService) Create(ctx context.Context, input CreateSectionInput) (*models.Section, error) {
	if input.Title == "" {
		return nil, apperrors.NewValidation("section title is required")
	}
	format := input.ContentFormat
	if format == "" {
		format = "markdown"
	}

	section := &models.Section{
		EntityType:       input.EntityType,
		EntityID:         input.EntityID,
		Title:            input.Title,
		UsageDescription: input.UsageDescription,
		Content:          input.Content,
		ContentFormat:    format,
		Ordinal:          input.Ordinal,
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, err
	}
	s.logger.Debug("Created section",
		zap.String("section_id", section.ID.String()),
		zap.Int("ordinal", section.Ordinal))
	return section, nil
}

func (s *sectionService) Get(ctx context.Context, id uuid.UUID) (*models.Section, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *sectionService) Update(ctx context.Context, input UpdateSectionInput) (*models.Section, error) {
	section, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	section.Version = input.Version
	if input.Title != nil {
		section.Title = *input.Title
	}
	if input.UsageDescription != nil {
		section.UsageDescription = *input.UsageDescription
	}
	if input.Content != nil {
		section.Content = *input.Content
	}
	if input.ContentFormat != nil {
		section.ContentFormat = *input.ContentFormat
	}
	if err := s.repo.Update(ctx, section); err != nil {
		return nil, err
	}
	return section, nil
}

func (s *sectionService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *sectionService) List(ctx context.Context, entityType models.EntityType, entityID uuid.UUID) ([]*models.Section, error) {
	return s.repo.ListForEntity(ctx, entityType, entityID)
}

func (s *sectionService) Reorder(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, orderedIDs []uuid.UUID) ([]*models.Section, error) {
	if err := s.repo.Reorder(ctx, entityType, entityID, orderedIDs); err != nil {
		return nil, err
	}
	return s.repo.ListForEntity(ctx, entityType, entityID)
}

var _ SectionService = (*sectionService)(nil)
