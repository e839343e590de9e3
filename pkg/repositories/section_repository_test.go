package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/apperrors"
	"github.com/taskhive/taskhive/pkg/models"
)

func createTestSection(t *testing.T, repo SectionRepository, entityID uuid.UUID, title string, ordinal int) *models.Section {
	t.Helper()
	section := &models.Section{
		EntityType: models.EntityTask,
		EntityID:   entityID,
		Title:      title,
		Ordinal:    ordinal,
	}
	require.NoError(t, repo.Create(context.Background(), section))
	return section
}

func TestSectionCreateAppendsOrdinals(t *testing.T) {
	db := newTestDB(t)
	repo := NewSectionRepository(db)
	entityID := uuid.New()

	a := createTestSection(t, repo, entityID, "overview", -1)
	b := createTestSection(t, repo, entityID, "details", -1)
	c := createTestSection(t, repo, entityID, "notes", -1)

	assert.Equal(t, 0, a.Ordinal)
	assert.Equal(t, 1, b.Ordinal)
	assert.Equal(t, 2, c.Ordinal)

	// Ordinals are scoped per entity.
	other := createTestSection(t, repo, uuid.New(), "unrelated", -1)
	assert.Equal(t, 0, other.Ordinal)
}

func TestSectionCreateExplicitOrdinalConflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewSectionRepository(db)
	entityID := uuid.New()

	createTestSection(t, repo, entityID, "first", 0)

	err := repo.Create(context.Background(), &models.Section{
		EntityType: models.EntityTask,
		EntityID:   entityID,
		Title:      "usurper",
		Ordinal:    0,
	})
	assert.True(t, apperrors.IsConflict(err))
}

func TestSectionUpdateOptimisticLocking(t *testing.T) {
	db := newTestDB(t)
	repo := NewSectionRepository(db)
	ctx := context.Background()

	section := createTestSection(t, repo, uuid.New(), "draft", -1)

	section.Content = "filled in"
	require.NoError(t, repo.Update(ctx, section))
	assert.Equal(t, 2, section.Version)

	stale := *section
	stale.Version = 1
	err := repo.Update(ctx, &stale)
	assert.True(t, apperrors.IsConflict(err))
}

func TestSectionReorder(t *testing.T) {
	db := newTestDB(t)
	repo := NewSectionRepository(db)
	ctx := context.Background()
	entityID := uuid.New()

	a := createTestSection(t, repo, entityID, "a", -1)
	b := createTestSection(t, repo, entityID, "b", -1)
	c := createTestSection(t, repo, entityID, "c", -1)

	require.NoError(t, repo.Reorder(ctx, models.EntityTask, entityID, []uuid.UUID{c.ID, a.ID, b.ID}))

	sections, err := repo.ListForEntity(ctx, models.EntityTask, entityID)
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, "c", sections[0].Title)
	assert.Equal(t, "a", sections[1].Title)
	assert.Equal(t, "b", sections[2].Title)
	assert.Equal(t, []int{0, 1, 2}, []int{sections[0].Ordinal, sections[1].Ordinal, sections[2].Ordinal})
}

func TestSectionReorderRejectsBadPermutations(t *testing.T) {
	db := newTestDB(t)
	repo := NewSectionRepository(db)
	ctx := context.Background()
	entityID := uuid.New()

	a := createTestSection(t, repo, entityID, "a", -1)
	b := createTestSection(t, repo, entityID, "b", -1)

	// Incomplete list.
	err := repo.Reorder(ctx, models.EntityTask, entityID, []uuid.UUID{a.ID})
	assert.True(t, apperrors.IsValidation(err))

	// Duplicate id.
	err = repo.Reorder(ctx, models.EntityTask, entityID, []uuid.UUID{a.ID, a.ID})
	assert.True(t, apperrors.IsValidation(err))

	// Foreign id.
	err = repo.Reorder(ctx, models.EntityTask, entityID, []uuid.UUID{a.ID, uuid.New()})
	assert.True(t, apperrors.IsValidation(err))

	// Nothing moved.
	sections, err := repo.ListForEntity(ctx, models.EntityTask, entityID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, sections[0].ID)
	assert.Equal(t, b.ID, sections[1].ID)
}

func TestSectionDeleteForEntity(t *testing.T) {
	db := newTestDB(t)
	repo := NewSectionRepository(db)
	ctx := context.Background()
	entityID := uuid.New()

	createTestSection(t, repo, entityID, "a", -1)
	createTestSection(t, repo, entityID, "b", -1)
	keep := createTestSection(t, repo, uuid.New(), "other", -1)

	n, err := repo.DeleteForEntity(ctx, models.EntityTask, entityID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.GetByID(ctx, keep.ID)
	assert.NoError(t, err)
}
