package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/attendance/internal/attendance"
	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/web/handlers"
)

type stubRoster struct{}

func (stubRoster) LoadRoster(context.Context, string) (*attendance.Roster, error) {
	return attendance.NewRoster([]attendance.Student{{ID: "S1", Name: "Ana"}})
}

type stubRecognizer struct{}

func (stubRecognizer) SubmitBurst(context.Context, []attendance.Frame) (attendance.RecognitionResult, error) {
	return attendance.RecognitionResult{}, nil
}

type stubPersister struct {
	mu      sync.Mutex
	fail    bool
	records []attendance.FinalizationRecord
}

func (p *stubPersister) SubmitAttendance(_ context.Context, rec attendance.FinalizationRecord) (*attendance.FinalizationReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return nil, errors.New("connection refused")
	}
	p.records = append(p.records, rec)
	return &attendance.FinalizationReceipt{}, nil
}

func testServer(token string) *Server {
	return testServerWith(token, &stubPersister{})
}

func testServerWith(token string, persister *stubPersister) *Server {
	cfg := &config.Config{
		Web: config.WebConfig{
			Port:       0,
			Host:       "127.0.0.1",
			APIToken:   token,
			SessionTTL: time.Hour,
		},
	}
	return NewServer(cfg, handlers.RegistryDeps{
		Roster:     stubRoster{},
		Recognizer: stubRecognizer{},
		Persister:  persister,
		NewDevice:  handlers.RemoteDevices(64),
	})
}

func TestServer_HealthIsPublic(t *testing.T) {
	s := testServer("s3cret")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestServer_SessionRoutes(t *testing.T) {
	s := testServer("s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"course_id": "INF101", "camera_ready": true}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created handlers.SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+created.ID+"/stop", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from stop, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := s.Registry().Get(created.ID).Session.State(); got != attendance.StateClosed {
		t.Errorf("expected closed, got %s", got)
	}
}

func TestServer_ShutdownSubmitsLiveSessions(t *testing.T) {
	persister := &stubPersister{}
	s := testServerWith("", persister)
	ls := s.Registry().Create(true)
	if err := ls.Session.Start(context.Background(), "INF101"); err != nil {
		t.Fatal(err)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if ls.Session.State() != attendance.StateClosed {
		t.Errorf("expected live session to be submitted, got %s", ls.Session.State())
	}
	if len(persister.records) != 1 || persister.records[0].CourseID != "INF101" {
		t.Errorf("expected one submission for INF101, got %+v", persister.records)
	}
}

func TestServer_ShutdownKeepsRecordWhenSubmitFails(t *testing.T) {
	s := testServerWith("", &stubPersister{fail: true})
	ls := s.Registry().Create(true)
	if err := ls.Session.Start(context.Background(), "INF101"); err != nil {
		t.Fatal(err)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	snap := ls.Session.Snapshot()
	if snap.State != attendance.StateFinalizing || snap.Record == nil {
		t.Errorf("expected a stopped session holding its record, got %+v", snap)
	}
}
