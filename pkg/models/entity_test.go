package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleRankOrdering(t *testing.T) {
	assert.Less(t, RoleQueue.Rank(), RoleWork.Rank())
	assert.Less(t, RoleWork.Rank(), RoleReview.Rank())
	assert.Less(t, RoleReview.Rank(), RoleTerminal.Rank())

	// Blocked and unknown roles satisfy no unblock requirement.
	assert.Equal(t, -1, RoleBlocked.Rank())
	assert.Equal(t, -1, Role("mystery").Rank())
}

func TestPriorityRank(t *testing.T) {
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, 0, Priority("").Rank())
}

func TestParseEntityType(t *testing.T) {
	et, err := ParseEntityType("Task")
	require.NoError(t, err)
	assert.Equal(t, EntityTask, et)

	_, err = ParseEntityType("epic")
	assert.Error(t, err)
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("HIGH")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" backend ", "backend", "", "api", "  "})
	assert.Equal(t, []string{"api", "backend"}, got)

	assert.Empty(t, NormalizeTags(nil))
}

func TestBuildSearchVector(t *testing.T) {
	got := BuildSearchVector([]string{"Fix Login", "", "  OAuth redirect  "}, []string{"auth"})
	assert.Equal(t, "fix login oauth redirect auth", got)
}
