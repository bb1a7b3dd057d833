package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/attendance/internal/attendance"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

const errSessionNotFound = "session not found"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps session errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, attendance.ErrInvalidCourse),
		errors.Is(err, attendance.ErrNoFrames):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrUnknownCourse):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrInvalidTransition),
		errors.Is(err, attendance.ErrCaptureInProgress),
		errors.Is(err, attendance.ErrCaptureAbandoned),
		errors.Is(err, attendance.ErrFinalizeInProgress):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, attendance.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
