package tools

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/apperrors"
)

func TestArgsStringHandling(t *testing.T) {
	a := args{"title": "  padded  ", "empty": "", "number": 3.0}

	assert.Equal(t, "padded", a.str("title"))
	assert.Equal(t, "", a.str("absent"))
	assert.Equal(t, "", a.str("number"), "non-strings read as empty")

	// strPtr distinguishes absent from explicitly empty.
	assert.Nil(t, a.strPtr("absent"))
	require.NotNil(t, a.strPtr("empty"))
	assert.Equal(t, "", *a.strPtr("empty"))
}

func TestArgsNumericCoercion(t *testing.T) {
	a := args{"limit": 7.0, "version": float64(2)}

	assert.Equal(t, 7, a.intVal("limit", 50))
	assert.Equal(t, 50, a.intVal("absent", 50))

	v, err := a.requireInt("version")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = a.requireInt("absent")
	assert.True(t, apperrors.IsValidation(err))

	require.NotNil(t, a.intPtr("limit"))
	assert.Nil(t, a.intPtr("absent"))
}

func TestArgsStringList(t *testing.T) {
	a := args{"tags": []any{"backend", 42, "api"}}

	assert.Equal(t, []string{"backend", "api"}, a.stringList("tags"))
	assert.Nil(t, a.stringList("absent"))
}

func TestArgsUUIDParsing(t *testing.T) {
	id := uuid.New()
	a := args{
		"entity_id": id.String(),
		"bogus":     "not-a-uuid",
		"task_ids":  []any{id.String(), uuid.Nil.String()},
		"bad_ids":   []any{"nope"},
	}

	got, err := a.requireID("entity_id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = a.requireID("absent")
	assert.True(t, apperrors.IsValidation(err))
	_, err = a.requireID("bogus")
	assert.True(t, apperrors.IsValidation(err))

	ptr, err := a.idPtr("absent")
	require.NoError(t, err)
	assert.Nil(t, ptr)

	ids, err := a.idList("task_ids")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	_, err = a.idList("bad_ids")
	assert.True(t, apperrors.IsValidation(err))
}
