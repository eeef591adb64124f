package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Envelope is the canonical response shape for every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONOK renders a success envelope with the given payload.
func JSONOK(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// JSONError renders an error envelope with the canonical shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, Envelope{Success: false, Error: message, Code: code, Details: details})
}

// WriteError maps an error to the envelope, using the AppError status and
// code when available and 500/INTERNAL otherwise.
func WriteError(w http.ResponseWriter, err error) {
	var ae *AppError
	if errors.As(err, &ae) {
		msg := ae.Message
		if msg == "" {
			msg = ae.Error()
		}
		JSONError(w, ae.HTTPStatus, ae.Code, msg, ae.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, CodeInternal, "internal error", nil)
}
