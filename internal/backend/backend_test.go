package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/kozaktomas/attendance/internal/attendance"
)

func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	path := filepath.Join("testdata", filename)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load test data %s: %v", filename, err)
	}
	return data
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c, err := New(server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	tests := []string{"", "localhost:5000", "://broken"}
	for _, raw := range tests {
		if _, err := New(raw, time.Second); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestLoadRoster(t *testing.T) {
	studentsData := loadTestData(t, "api_etudiants_20251014_091502.json")

	var gotCourse string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/etudiants" {
			http.NotFound(w, r)
			return
		}
		gotCourse = r.URL.Query().Get("code_cours")
		w.Header().Set("Content-Type", "application/json")
		w.Write(studentsData)
	}))
	defer server.Close()

	roster, err := newTestClient(t, server).LoadRoster(context.Background(), "INF 101")
	if err != nil {
		t.Fatalf("LoadRoster failed: %v", err)
	}

	if gotCourse != "INF 101" {
		t.Errorf("expected course query 'INF 101', got '%s'", gotCourse)
	}
	want := []attendance.CanonicalID{"20250001", "20250002", "20250003"}
	if !slices.Equal(roster.IDs(), want) {
		t.Errorf("roster ids = %v, want %v", roster.IDs(), want)
	}
	if st, _ := roster.Lookup("20250002"); st.Name != "MARTIN Ben" {
		t.Errorf("expected numeric id to load as text, got %+v", st)
	}
}

func TestLoadRoster_DataFallbackAndDuplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"numero_etudiant":"7","nom":"A"},{"numero_etudiant":7,"nom":"A again"},{"nom":"no id"}]}`))
	}))
	defer server.Close()

	roster, err := newTestClient(t, server).LoadRoster(context.Background(), "C1")
	if err != nil {
		t.Fatalf("LoadRoster failed: %v", err)
	}
	if roster.Len() != 1 {
		t.Errorf("expected 1 student, got %d", roster.Len())
	}
}

func TestLoadRoster_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"success":false,"error":"db down"}`, http.StatusInternalServerError)
		}},
		{"success false", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"error":"db down"}`))
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			if _, err := newTestClient(t, server).LoadRoster(context.Background(), "C1"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRoster_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := newTestClient(t, server).LoadRoster(context.Background(), "C1")
	if !IsNotFoundError(err) {
		t.Errorf("expected not found error, got %v", err)
	}
	if !errors.Is(err, attendance.ErrUnknownCourse) {
		t.Errorf("expected ErrUnknownCourse, got %v", err)
	}
}

func TestSubmitAttendance(t *testing.T) {
	finalizeData := loadTestData(t, "api_presences_interactive_finalize_20251014_093318.json")

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/presences/interactive/finalize" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "expected JSON", http.StatusUnsupportedMediaType)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write(finalizeData)
	}))
	defer server.Close()

	record := attendance.FinalizationRecord{
		CourseID:   "INF101",
		PresentIDs: []attendance.CanonicalID{"20250001", "20250002"},
		AbsentIDs:  []attendance.CanonicalID{"20250003"},
	}
	receipt, err := newTestClient(t, server).SubmitAttendance(context.Background(), record)
	if err != nil {
		t.Fatalf("SubmitAttendance failed: %v", err)
	}

	if got["code_cours"] != "INF101" {
		t.Errorf("code_cours = %v", got["code_cours"])
	}
	if presents, _ := got["presents"].([]any); len(presents) != 2 {
		t.Errorf("presents = %v", got["presents"])
	}
	if absents, _ := got["absents"].([]any); len(absents) != 1 {
		t.Errorf("absents = %v", got["absents"])
	}
	if _, ok := got["non_identifies"]; ok {
		t.Error("non_identifies should be omitted when empty")
	}

	if receipt.RecordID != "670ca41f8b1f4a2c9d3e0b7c" {
		t.Errorf("record id = %s", receipt.RecordID)
	}
	if !receipt.EmailSent || receipt.EmailRecipient != "prof.leroy@example.org" {
		t.Errorf("receipt = %+v", receipt)
	}
}

func TestSubmitAttendance_EmptyPartitionEncodesArrays(t *testing.T) {
	var raw map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).SubmitAttendance(context.Background(), attendance.FinalizationRecord{CourseID: "C1"})
	if err != nil {
		t.Fatalf("SubmitAttendance failed: %v", err)
	}
	if string(raw["presents"]) != "[]" || string(raw["absents"]) != "[]" {
		t.Errorf("expected empty arrays, got presents=%s absents=%s", raw["presents"], raw["absents"])
	}
}

func TestSubmitAttendance_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"course not found", http.StatusNotFound, `{"erreur":"Cours non trouvé"}`, ""},
		{"success false", http.StatusOK, `{"success":false,"erreur":"quota"}`, "submit attendance: quota"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server).SubmitAttendance(context.Background(), attendance.FinalizationRecord{CourseID: "C1"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("error = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestSubmitAttendance_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(t, server).SubmitAttendance(ctx, attendance.FinalizationRecord{CourseID: "C1"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCaptureResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"etudiants":[]}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	c, err := NewWithCapture(server.URL, time.Second, dir)
	if err != nil {
		t.Fatalf("NewWithCapture failed: %v", err)
	}
	if _, err := c.ListStudents(context.Background(), "C1"); err != nil {
		t.Fatalf("ListStudents failed: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "api_etudiants_*.json"))
	if len(matches) != 1 {
		t.Errorf("expected 1 captured response, got %v", matches)
	}
}
