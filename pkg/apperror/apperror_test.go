package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("load request: %w", NotFound("request %d not found", 7))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.Equal(t, "request 7 not found", Message(err))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestUnclassifiedIsInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal error", Message(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("failed to store attachment", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to store attachment: disk full", err.Error())
	assert.Equal(t, "failed to store attachment", Message(err))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		Unauthenticated("x"): http.StatusUnauthorized,
		Forbidden("x"):       http.StatusForbidden,
		Conflict("x"):        http.StatusConflict,
		BadRequest("x"):      http.StatusBadRequest,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
