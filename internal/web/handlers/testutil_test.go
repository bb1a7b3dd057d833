package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance/internal/attendance"
	"github.com/kozaktomas/attendance/internal/camera"
)

// testRoster serves a fixed roster for every course except "UNKNOWN",
// whose backend is down, and "MISSING", which does not exist.
type testRoster struct{}

func (testRoster) LoadRoster(_ context.Context, courseID string) (*attendance.Roster, error) {
	switch courseID {
	case "UNKNOWN":
		return nil, attendance.ErrNetwork
	case "MISSING":
		return nil, attendance.ErrUnknownCourse
	}
	return attendance.NewRoster([]attendance.Student{
		{ID: "S1", Name: "Ana"},
		{ID: "S2", Name: "Ben"},
		{ID: "S3", Name: "Chloé"},
	})
}

// testRecognizer returns queued results in order and no match once drained.
// When gate is set each call signals started and waits for the gate.
type testRecognizer struct {
	mu      sync.Mutex
	results []attendance.RecognitionResult
	frames  int
	calls   []int
	started chan struct{}
	gate    chan struct{}
}

func (r *testRecognizer) SubmitBurst(_ context.Context, frames []attendance.Frame) (attendance.RecognitionResult, error) {
	r.mu.Lock()
	r.frames = len(frames)
	r.calls = append(r.calls, len(frames))
	gate, started := r.gate, r.started
	r.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return attendance.RecognitionResult{TotalFrames: len(frames)}, nil
	}
	res := r.results[0]
	r.results = r.results[1:]
	return res, nil
}

func recognized(id string) attendance.RecognitionResult {
	raw := attendance.NewRawID(id)
	return attendance.RecognitionResult{Recognized: true, RawID: &raw, Detections: 3, TotalFrames: 3}
}

// testPersister fails the first `failures` submissions.
type testPersister struct {
	mu       sync.Mutex
	failures int
	records  []attendance.FinalizationRecord
}

func (p *testPersister) SubmitAttendance(_ context.Context, rec attendance.FinalizationRecord) (*attendance.FinalizationReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return nil, attendance.ErrNetwork
	}
	p.records = append(p.records, rec)
	return &attendance.FinalizationReceipt{RecordID: "42", EmailSent: true, EmailRecipient: "prof@example.org"}, nil
}

// readyDevice is a server-side camera that always yields one frame.
type readyDevice struct{}

func (readyDevice) Acquire(context.Context) error { return nil }
func (readyDevice) Burst(context.Context) ([]attendance.Frame, error) {
	return []attendance.Frame{[]byte{0xFF, 0xD8, 0xFF}}, nil
}
func (readyDevice) Release() {}

type testEnv struct {
	registry   *SessionRegistry
	handler    *SessionsHandler
	recognizer *testRecognizer
	persister  *testPersister
}

func newTestEnv(newDevice DeviceFactory) *testEnv {
	env := &testEnv{
		recognizer: &testRecognizer{},
		persister:  &testPersister{},
	}
	env.registry = NewSessionRegistry(RegistryDeps{
		Roster:     testRoster{},
		Recognizer: env.recognizer,
		Persister:  env.persister,
		NewDevice:  newDevice,
	}, time.Hour)
	env.handler = NewSessionsHandler(env.registry)
	return env
}

func serverDevices() DeviceFactory {
	return func(bool) (attendance.Device, *camera.Remote) {
		return readyDevice{}, nil
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
