package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDependencyTypeCaseInsensitive(t *testing.T) {
	dt, err := ParseDependencyType("blocks")
	require.NoError(t, err)
	assert.Equal(t, DependencyBlocks, dt)

	dt, err = ParseDependencyType("is_blocked_by")
	require.NoError(t, err)
	assert.Equal(t, DependencyIsBlockedBy, dt)

	_, err = ParseDependencyType("DEPENDS_ON")
	assert.Error(t, err)
}

func TestParseUnblockAtRejectsBlocked(t *testing.T) {
	role, err := ParseUnblockAt("Work")
	require.NoError(t, err)
	assert.Equal(t, RoleWork, role)

	_, err = ParseUnblockAt("blocked")
	assert.Error(t, err)
}

func TestDependencyRequiredRoleDefaultsToTerminal(t *testing.T) {
	dep := &Dependency{Type: DependencyBlocks}
	assert.Equal(t, RoleTerminal, dep.RequiredRole())

	work := RoleWork
	dep.UnblockAt = &work
	assert.Equal(t, RoleWork, dep.RequiredRole())
}
