package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/models"
)

func TestHistoryFilter_Empty(t *testing.T) {
	where, args := historyFilter(models.RequestFilters{})
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestHistoryFilter_SingleClause(t *testing.T) {
	where, args := historyFilter(models.RequestFilters{Principal: "alice"})
	assert.Equal(t, " WHERE principal = $1", where)
	assert.Equal(t, []any{"alice"}, args)
}

func TestHistoryFilter_NumbersClausesInOrder(t *testing.T) {
	after := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	where, args := historyFilter(models.RequestFilters{
		Principal:    "alice",
		Mode:         config.ModeFast,
		Status:       models.StatusCompleted,
		PromptLike:   "cache",
		CreatedAfter: &after,
	})

	assert.Equal(t,
		" WHERE principal = $1 AND mode = $2 AND status = $3 AND prompt ILIKE $4 AND created_at >= $5",
		where)
	require.Len(t, args, 5)
	assert.Equal(t, "%cache%", args[3])
	assert.Equal(t, after, args[4])
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("prompt", "too long")
	require.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "prompt")
	assert.Contains(t, err.Error(), "too long")

	assert.False(t, IsValidationError(ErrNotFound))
}
