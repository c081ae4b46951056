package response

import (
	"errors"
	"net/http"
	"testing"

	"expensecontrol/pkg/apperror"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorConflict(t *testing.T) {
	status, body := FromError(apperror.Conflict("request is not pending"))

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, http.StatusConflict, body.StatusCode)
	assert.Equal(t, "request is not pending", body.Error)
}

func TestFromErrorHidesInternalCause(t *testing.T) {
	status, body := FromError(errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body.Error)
}
