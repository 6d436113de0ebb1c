package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		Validation:   http.StatusBadRequest,
		Conflict:     http.StatusConflict,
		Unauthorized: http.StatusUnauthorized,
		Forbidden:    http.StatusForbidden,
		NotFound:     http.StatusNotFound,
		Internal:     http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, k.Status(), k.String())
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(Conflict, "email already used"))
	assert.Equal(t, Conflict, KindOf(err))
	assert.True(t, Is(err, Conflict))
	assert.False(t, Is(err, NotFound))

	assert.Equal(t, Internal, KindOf(errors.New("boom")))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := InternalError("could not load user", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, "could not load user", err.Message)
}

func TestValidationf(t *testing.T) {
	err := Validationf("field %q is required", "email")
	assert.Equal(t, Validation, err.Kind)
	assert.Equal(t, `field "email" is required`, err.Message)
}
