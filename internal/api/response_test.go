package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wallet-sentinel/sentinel/internal/apperr"
)

func TestStatusForMapsValidationTo400(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(apperr.CodeValidation))
	assert.Equal(t, http.StatusNotFound, statusFor(apperr.CodeNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(apperr.CodeNotConfigured))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(apperr.CodeRateLimit))
}

func TestWriteErrorRendersEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, "req-1", apperr.Validation("bad wallet"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "req-1", body["requestId"])
}

func TestWriteSuccessRendersEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSuccess(rec, "req-2", map[string]string{"ok": "yes"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
}
