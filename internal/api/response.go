package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wallet-sentinel/sentinel/internal/apperr"
)

// errorData is the nested {code, message, details?} object inside the
// error envelope, per spec §6.
type errorData struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Details string      `json:"details,omitempty"`
}

// successEnvelope wraps a successful response.
type successEnvelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"requestId"`
	Timestamp int64       `json:"timestamp"`
}

// errorEnvelope wraps a failed response, per spec §6's error envelope.
type errorEnvelope struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Data      errorData `json:"data"`
	RequestID string    `json:"requestId"`
	Timestamp int64     `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, requestID string, data interface{}) {
	writeJSON(w, http.StatusOK, successEnvelope{
		Success: true, Data: data, RequestID: requestID, Timestamp: time.Now().UnixMilli(),
	})
}

// writeError renders err as the error envelope, choosing an HTTP status
// from its apperr.Code when possible.
func writeError(w http.ResponseWriter, requestID string, err error) {
	appErr, ok := err.(*apperr.Error)
	if !ok {
		appErr = apperr.Wrap(apperr.CodeInternal, "unexpected error", err)
	}

	writeJSON(w, statusFor(appErr.Code), errorEnvelope{
		Success: false,
		Error:   appErr.Message,
		Data:    errorData{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	})
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeNotConfigured:
		return http.StatusServiceUnavailable
	case apperr.CodeRateLimit:
		return http.StatusTooManyRequests
	case apperr.CodeChainIO, apperr.CodeContract, apperr.CodeScoring, apperr.CodeBroadcast, apperr.CodeSubscribe:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
