package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *APIError
		code   ErrorCode
		status int
	}{
		{"not found", NotFound("user"), ErrNotFound, http.StatusNotFound},
		{"unauthorized", Unauthorized("missing token"), ErrUnauthorized, http.StatusUnauthorized},
		{"validation", ValidationError("display_name", "too long"), ErrValidation, http.StatusUnprocessableEntity},
		{"bad request", BadRequest("no fields"), ErrBadRequest, http.StatusBadRequest},
		{"internal", InternalError("boom"), ErrInternalError, http.StatusInternalServerError},
		{"unavailable", ServiceUnavailable("database"), ErrServiceUnavail, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.status, tt.code.StatusCode())
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: user not found", NotFound("user").Error())
	assert.Equal(t, "VALIDATION_ERROR: too long (field: display_name)", ValidationError("display_name", "too long").Error())
	assert.Equal(t, "extra", BadRequest("x").WithDetails("extra").Details)
	assert.Equal(t, http.StatusInternalServerError, ErrorCode("UNKNOWN").StatusCode())
}

func TestKindOf(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(KindUploadTransfer, "put object", cause)

	assert.Equal(t, KindUploadTransfer, KindOf(err))
	assert.Equal(t, KindUploadTransfer, KindOf(fmt.Errorf("upload: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindNone, KindOf(cause))
	assert.Equal(t, KindNone, KindOf(nil))
	assert.NoError(t, Wrap(KindTimeout, "noop", nil))
}

func TestKindMessage(t *testing.T) {
	for _, k := range []Kind{KindPick, KindUploadTransfer, KindReferenceResolution, KindProfileCommit, KindTimeout} {
		assert.NotEqual(t, KindNone.Message(), k.Message(), "kind %s should have its own message", k)
	}
}
