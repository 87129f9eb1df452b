package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("order %s not found", "x"), KindNotFound},
		{"forbidden", Forbidden("nope"), KindForbidden},
		{"conflict wrapped", fmt.Errorf("close: %w", Conflict("Order is already closed.")), KindConflict},
		{"validation", Validation("quantity", "must be greater than zero"), KindValidation},
		{"plain error", errors.New("connection refused"), KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSentinelsMatchByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Conflict("Order is already closed."))

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrForbidden)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "note: must not exceed 500 characters",
		Validation("note", "must not exceed %d characters", 500).Error())
	assert.Equal(t, "Order is already closed.", Conflict("Order is already closed.").Error())
	assert.Equal(t, "forbidden", ErrForbidden.Error())
}
