package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, New(http.StatusForbidden, "nope"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"error": "nope"}, body)
}

func TestInstallMapsValidationTo400(t *testing.T) {
	Install()
	err := huma.NewErrorWithContext(nil, http.StatusUnprocessableEntity, "validation failed", errors.New("body.status: expected string"))
	assert.Equal(t, http.StatusBadRequest, err.GetStatus())
	assert.Equal(t, "validation failed: body.status: expected string", err.Error())

	err = huma.NewError(http.StatusNotFound, "missing")
	assert.Equal(t, http.StatusNotFound, err.GetStatus())
}
