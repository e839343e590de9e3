package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/apperrors"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	wantErr := errors.New("still locked")
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return wantErr
	})
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 4, attempts, "initial attempt plus MaxRetries")
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), func() error {
		return errors.New("database is locked")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoIfRetryableStopsOnPermanentErrors(t *testing.T) {
	attempts := 0
	err := DoIfRetryable(context.Background(), fastConfig(), func() error {
		attempts++
		return apperrors.NewConflict("version mismatch")
	})
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, 1, attempts, "conflicts need a fresh read, not a replay")
}

func TestDoIfRetryableRetriesLockContention(t *testing.T) {
	attempts := 0
	err := DoIfRetryable(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts == 1 {
			return errors.New("database table is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("database is locked")))
	assert.True(t, IsRetryable(errors.New("operation timed out")))
	assert.False(t, IsRetryable(apperrors.NewValidation("bad input")))
	assert.False(t, IsRetryable(apperrors.NewNotFound("task", "x")))
}

func TestApplyJitterStaysWithinBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		jittered := applyJitter(base, 0.1)
		assert.GreaterOrEqual(t, jittered, 90*time.Millisecond)
		assert.LessOrEqual(t, jittered, 110*time.Millisecond)
	}
	assert.Equal(t, base, applyJitter(base, 0))
}
