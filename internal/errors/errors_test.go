package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pscheid92/accounthub/internal/domain"
)

func TestError_Error(t *testing.T) {
	err := ValidationError("bad input")
	assert.Equal(t, "validation: bad input", err.Error())

	cause := errors.New("boom")
	err = InternalError("something failed", cause)
	assert.Equal(t, "internal: something failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestError_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ValidationError("x").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFoundError("x").HTTPStatus())
	assert.Equal(t, http.StatusConflict, ConflictError("x").HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, InternalError("x", nil).HTTPStatus())
}

func TestError_WithContext(t *testing.T) {
	err := NotFoundError("account not found").
		WithContext("user_id", "u1").
		WithContext("product", "mail")

	assert.Equal(t, "u1", err.Context["user_id"])
	assert.Equal(t, "mail", err.Context["product"])

	resp := err.ToResponse()
	assert.Equal(t, "account not found", resp.Error)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Equal(t, "u1", resp.Context["user_id"])
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	// Already structured errors pass through unchanged.
	structured := ConflictError("taken")
	assert.Same(t, structured, AsStructuredError(structured))

	// Domain sentinels map to their HTTP category, also when wrapped.
	assert.Equal(t, TypeNotFound, AsStructuredError(domain.ErrAccountNotFound).Type)
	assert.Equal(t, TypeNotFound, AsStructuredError(domain.ErrSessionNotFound).Type)
	assert.Equal(t, TypeNotFound, AsStructuredError(domain.ErrNoPrimaryAccount).Type)
	assert.Equal(t, TypeValidation, AsStructuredError(domain.ErrInvalidSession).Type)
	assert.Equal(t, TypeConflict, AsStructuredError(domain.ErrAccountNotReady).Type)

	wrapped := fmt.Errorf("update failed: %w", domain.ErrAccountNotReady)
	assert.Equal(t, TypeConflict, AsStructuredError(wrapped).Type)

	// Everything else is internal.
	assert.Equal(t, TypeInternal, AsStructuredError(errors.New("boom")).Type)
}
