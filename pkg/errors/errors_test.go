package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NotFound("slot", nil), http.StatusNotFound},
		{TenantViolation("cross-tenant read"), http.StatusNotFound},
		{BadRequest("bad", nil), http.StatusBadRequest},
		{InvalidTransition("completed", "pending"), http.StatusBadRequest},
		{SlotConflict("abc"), http.StatusConflict},
		{Conflict("state changed"), http.StatusConflict},
		{GuardFailed("too early"), http.StatusConflict},
		{InvalidState("not held"), http.StatusConflict},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), "code %d", tt.err.Code)
	}
}

func TestCodeUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("reserving: %w", SlotConflict("abc"))
	assert.Equal(t, ErrConflict, Code(wrapped))
	assert.True(t, IsCode(wrapped, ErrConflict))
	assert.False(t, IsCode(wrapped, ErrNotFound))
}

func TestCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, ErrInternal, Code(errors.New("plain")))
}

func TestErrorIncludesCause(t *testing.T) {
	cause := errors.New("row not found")
	err := NotFound("slot", cause)
	assert.Contains(t, err.Error(), "row not found")
	assert.ErrorIs(t, err, cause)
}
