package taskapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sandeepkv93/taskremind/internal/model"
)

const testToken = "secret-token"

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	tasks := []map[string]any{
		{"id": 1, "title": "Install router", "status": "new", "start_date": "2026-03-04T09:00:00Z", "due_date": ""},
		{"id": 2, "title": "Replace cable", "status": "completed", "startDate": "2026-03-01T10:00:00+03:00", "dueDate": "2026-03-01T18:00:00+03:00"},
		{"id": 3, "title": "Survey", "status": "new"},
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	api := r.NewRoute().Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer "+testToken {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	api.HandleFunc("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(tasks)
	}).Methods(http.MethodGet)
	api.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "database is down", http.StatusInternalServerError)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	c, err := New(baseURL, Options{Token: token, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestTasksDecodesBothDateStyles(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL, testToken)

	tasks, err := c.Tasks(testContext(t))
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}

	first := tasks[0]
	if first.Status != model.TaskStatusNew || first.StartDate == nil || first.DueDate != nil {
		t.Fatalf("unexpected first task: %+v", first)
	}
	if !first.StartDate.Equal(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start: %v", first.StartDate)
	}

	second := tasks[1]
	if second.StartDate == nil || second.DueDate == nil {
		t.Fatalf("camelCase dates were not decoded: %+v", second)
	}
	if !second.StartDate.Equal(time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start: %v", second.StartDate)
	}

	if tasks[2].HasSchedule() {
		t.Fatalf("task without dates must have no schedule: %+v", tasks[2])
	}
}

func TestErrorsMapToSentinels(t *testing.T) {
	srv := newBackend(t)

	if _, err := newClient(t, srv.URL, "wrong").Tasks(testContext(t)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	c := newClient(t, srv.URL, testToken)
	if err := c.get(testContext(t), "/broken", nil); !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
	if err := c.get(testContext(t), "/missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := newBackend(t)
	if !newClient(t, srv.URL, "").Health(testContext(t)) {
		t.Fatal("expected healthy backend")
	}

	srv.Close()
	if newClient(t, srv.URL, "").Health(testContext(t)) {
		t.Fatal("expected closed backend to be unhealthy")
	}
}

func TestBadRowsDoNotFailTheList(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":1,"title":"Install router","status":"new","start_date":"2030-01-02T10:00:00Z"},
			{"id":2,"title":"Replace cable","status":"new","start_date":"02.01.2030","due_date":"2030-01-03T18:00:00Z"},
			{"id":0,"title":"orphan","status":"new"},
			{"id":4,"title":"Survey","status":"archived"}
		]`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	tasks, err := newClient(t, srv.URL, "").Tasks(testContext(t))
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d: %+v", len(tasks), tasks)
	}
	if tasks[0].ID != 1 || tasks[0].StartDate == nil {
		t.Fatalf("good row lost its start date: %+v", tasks[0])
	}
	if tasks[1].ID != 2 || tasks[1].StartDate != nil || tasks[1].DueDate == nil {
		t.Fatalf("expected bad start dropped and due kept: %+v", tasks[1])
	}
	if tasks[2].ID != 4 || tasks[2].Eligible() {
		t.Fatalf("unknown status must be kept as ineligible: %+v", tasks[2])
	}
}

func TestParseDateRejectsUnknownFormat(t *testing.T) {
	if _, err := parseDate("tomorrow"); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if got, err := parseDate("  "); err != nil || got != nil {
		t.Fatalf("expected empty date to be nil, got %v %v", got, err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("ftp://example.com", Options{}); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
