package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neexbeast/geoplaces/internal/apperr"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("deleting place 7: %w", apperr.NotFound("place not found"))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "place not found", apperr.MessageOf(err))
}

func TestKindOf_Foreign(t *testing.T) {
	err := errors.New("connection reset")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "internal server error", apperr.MessageOf(err))
	assert.False(t, apperr.Is(nil, apperr.KindInternal))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("23503")
	err := apperr.Wrap(apperr.KindNotFound, "place not found", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestValidation_Formats(t *testing.T) {
	err := apperr.Validation("limit must be at most %d", 500)
	assert.Equal(t, "limit must be at most 500", err.Message)
	assert.Equal(t, apperr.KindValidation, err.Kind)
}
