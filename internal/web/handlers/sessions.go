package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance/internal/attendance"
	"github.com/kozaktomas/attendance/internal/constants"
)

// SessionsHandler handles the attendance session endpoints.
type SessionsHandler struct {
	registry *SessionRegistry
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(registry *SessionRegistry) *SessionsHandler {
	return &SessionsHandler{registry: registry}
}

// CreateSessionRequest starts a session for a course.
type CreateSessionRequest struct {
	CourseID    string `json:"course_id"`
	CameraReady bool   `json:"camera_ready"`
}

// SessionResponse is a session snapshot with its registry metadata.
type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	attendance.Snapshot
}

// FinalizeResponse reports the submitted record.
type FinalizeResponse struct {
	Record  *attendance.FinalizationRecord  `json:"record"`
	Receipt *attendance.FinalizationReceipt `json:"receipt,omitempty"`
	Error   string                          `json:"error,omitempty"`
}

func sessionResponse(ls *LiveSession) SessionResponse {
	return SessionResponse{
		ID:        ls.ID,
		CreatedAt: ls.CreatedAt,
		Snapshot:  ls.Session.Snapshot(),
	}
}

// lookup writes a 404 and returns nil when the session does not exist.
func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) *LiveSession {
	ls := h.registry.Get(chi.URLParam(r, "id"))
	if ls == nil {
		respondError(w, http.StatusNotFound, errSessionNotFound)
	}
	return ls
}

// Create starts a new session: the roster is loaded and the camera acquired.
// A session that fails to start is discarded.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if strings.TrimSpace(req.CourseID) == "" {
		respondError(w, http.StatusBadRequest, "course_id is required")
		return
	}

	ls := h.registry.Create(req.CameraReady)
	if err := ls.Session.Start(r.Context(), req.CourseID); err != nil {
		h.registry.Delete(ls.ID)
		log.Printf("WARNING: failed to start session for course %s: %v", sanitizeForLog(req.CourseID), err)
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, sessionResponse(ls))
}

// List returns all sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.List()
	out := make([]SessionResponse, 0, len(sessions))
	for _, ls := range sessions {
		out = append(out, sessionResponse(ls))
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns one session.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ls := h.lookup(w, r)
	if ls == nil {
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(ls))
}

// Capture takes one burst and returns the outcome awaiting confirmation.
// Browser-held cameras send the burst as multipart "frames" parts.
func (h *SessionsHandler) Capture(w http.ResponseWriter, r *http.Request) {
	ls := h.lookup(w, r)
	if ls == nil {
		return
	}

	outcome, err := h.capture(w, r, ls)
	if err != nil {
		var badRequest *uploadError
		if errors.As(err, &badRequest) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// uploadError marks a malformed frame upload.
type uploadError struct{ err error }

func (e *uploadError) Error() string { return e.err.Error() }
func (e *uploadError) Unwrap() error { return e.err }

// capture runs one capture. Uploaded frames are passed to the session with
// the capture itself so a rejected request cannot leave frames behind.
func (h *SessionsHandler) capture(w http.ResponseWriter, r *http.Request, ls *LiveSession) (*attendance.CaptureOutcome, error) {
	if ls.Remote == nil || !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return ls.Session.BeginCapture(r.Context())
	}
	uploaded, err := readFrames(w, r)
	if err != nil {
		return nil, &uploadError{err}
	}
	frames, err := ls.Remote.Prepare(uploaded)
	if err != nil {
		return nil, &uploadError{err}
	}
	return ls.Session.BeginCaptureFrames(r.Context(), frames)
}

func readFrames(w http.ResponseWriter, r *http.Request) ([][]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["frames"]
	if len(files) == 0 {
		return nil, errors.New("no frames provided")
	}
	if len(files) > constants.MaxFramesPerCapture {
		return nil, fmt.Errorf("too many frames: %d (max %d)", len(files), constants.MaxFramesPerCapture)
	}

	frames := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		frames = append(frames, data)
	}
	return frames, nil
}

// Confirm accepts the pending outcome.
func (h *SessionsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ls := h.lookup(w, r)
	if ls == nil {
		return
	}
	conf, err := ls.Session.ConfirmNext()
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, conf)
}

// Stop ends capturing and submits the record. When submission fails the
// session stays finalizing and the record is returned with a 502 so the
// client can retry through Finalize.
func (h *SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	ls := h.lookup(w, r)
	if ls == nil {
		return
	}
	record, err := ls.Session.Stop()
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	h.finalize(w, r, ls, &record)
}

// Finalize retries the submission of a stopped session.
func (h *SessionsHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	ls := h.lookup(w, r)
	if ls == nil {
		return
	}
	h.finalize(w, r, ls, ls.Session.Snapshot().Record)
}

func (h *SessionsHandler) finalize(w http.ResponseWriter, r *http.Request, ls *LiveSession, record *attendance.FinalizationRecord) {
	receipt, err := ls.Session.Finalize(r.Context())
	if err != nil {
		log.Printf("WARNING: finalize session %s failed: %v", ls.ID, err)
		respondJSON(w, statusForError(err), FinalizeResponse{Record: record, Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, FinalizeResponse{Record: record, Receipt: receipt})
}

// Reset returns a closed session to idle.
func (h *SessionsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ls := h.lookup(w, r)
	if ls == nil {
		return
	}
	if err := ls.Session.Reset(); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(ls))
}

// Delete stops a live session without submitting and removes it.
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ls := h.lookup(w, r)
	if ls == nil {
		return
	}
	if ls.Session.State().Live() {
		if _, err := ls.Session.Stop(); err != nil {
			log.Printf("WARNING: stop session %s: %v", ls.ID, err)
		}
	}
	h.registry.Delete(ls.ID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Events streams session transitions via SSE.
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSESource {
			if ls := h.registry.Get(id); ls != nil {
				return ls
			}
			return nil
		},
		func(src SSESource) any {
			return sessionResponse(src.(*LiveSession))
		},
	)
}
