package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/journal"
)

// fakeStream is an in-memory hub event stream: one pending source
// event, claimed through enroll and resolved through event patches.
type fakeStream struct {
	mu       sync.Mutex
	source   *ayon.Event
	claimed  bool
	statuses []string
}

func (f *fakeStream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.URL.Path == "/api/enroll":
			if f.source == nil || f.claimed {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			f.claimed = true
			json.NewEncoder(w).Encode(map[string]string{
				"id":        "job-1",
				"dependsOn": f.source.ID,
			})
		case strings.HasPrefix(r.URL.Path, "/api/events/") && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(f.source)
		case strings.HasPrefix(r.URL.Path, "/api/events/") && r.Method == http.MethodPatch:
			var patch map[string]any
			json.NewDecoder(r.Body).Decode(&patch)
			if status, ok := patch["status"].(string); ok {
				f.statuses = append(f.statuses, status)
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (f *fakeStream) jobStatuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses...)
}

func testWorker(t *testing.T, stream *fakeStream, j *journal.Journal, handler Handler) *Worker {
	t.Helper()
	srv := httptest.NewServer(stream.handler())
	t.Cleanup(srv.Close)
	client, err := ayon.NewClient(ayon.Config{ServerURL: srv.URL, APIKey: "key"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	w, err := New(Config{
		Client:      client,
		Journal:     j,
		SourceTopic: "ftrack.leech",
		TargetTopic: "ftrack.sync",
		Sender:      "test",
		Handler:     handler,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestNewValidation(t *testing.T) {
	client := &ayon.Client{}
	noop := func(ctx context.Context, e *ayon.Event) error { return nil }

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing client", cfg: Config{SourceTopic: "a", TargetTopic: "b", Handler: noop}},
		{name: "missing topics", cfg: Config{Client: client, Handler: noop}},
		{name: "missing handler", cfg: Config{Client: client, SourceTopic: "a", TargetTopic: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() err = nil, want error")
			}
		})
	}
}

func TestPollOnceProcesses(t *testing.T) {
	stream := &fakeStream{source: &ayon.Event{
		ID:    "src-1",
		Hash:  "hash-1",
		Topic: "ftrack.leech",
	}}
	var handled *ayon.Event
	w := testWorker(t, stream, nil, func(ctx context.Context, e *ayon.Event) error {
		handled = e
		return nil
	})

	processed, err := w.pollOnce(context.Background())
	if err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	if !processed {
		t.Fatal("pollOnce = false, want processed")
	}
	if handled == nil || handled.ID != "src-1" {
		t.Errorf("handler received %+v, want src-1", handled)
	}
	want := []string{ayon.EventInProgress, ayon.EventFinished}
	got := stream.jobStatuses()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("job statuses = %v, want %v", got, want)
	}
}

func TestPollOnceDrained(t *testing.T) {
	w := testWorker(t, &fakeStream{}, nil, func(ctx context.Context, e *ayon.Event) error {
		t.Error("handler called on a drained stream")
		return nil
	})
	processed, err := w.pollOnce(context.Background())
	if err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	if processed {
		t.Error("pollOnce = true on a drained stream")
	}
}

func TestPollOnceHandlerFailure(t *testing.T) {
	stream := &fakeStream{source: &ayon.Event{ID: "src-1", Topic: "ftrack.leech"}}
	w := testWorker(t, stream, nil, func(ctx context.Context, e *ayon.Event) error {
		return errors.New("boom")
	})

	processed, err := w.pollOnce(context.Background())
	if err != nil || !processed {
		t.Fatalf("pollOnce = %v, %v; want processed without loop error", processed, err)
	}
	got := stream.jobStatuses()
	if len(got) != 2 || got[1] != ayon.EventFailed {
		t.Errorf("job statuses = %v, want failure reported", got)
	}
}

func TestPollOnceDuplicateDelivery(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer j.Close()
	if _, err := j.MarkProcessed(context.Background(), "hash-1", "ftrack.leech"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	stream := &fakeStream{source: &ayon.Event{
		ID:    "src-1",
		Hash:  "hash-1",
		Topic: "ftrack.leech",
	}}
	w := testWorker(t, stream, j, func(ctx context.Context, e *ayon.Event) error {
		t.Error("handler called for a duplicate delivery")
		return nil
	})

	processed, err := w.pollOnce(context.Background())
	if err != nil || !processed {
		t.Fatalf("pollOnce = %v, %v", processed, err)
	}
	// The duplicate job still finishes so the stream advances.
	got := stream.jobStatuses()
	if len(got) != 2 || got[1] != ayon.EventFinished {
		t.Errorf("job statuses = %v, want duplicate acknowledged as finished", got)
	}
}

func TestSchedulerRunsAndRearms(t *testing.T) {
	s := NewScheduler(nil)
	runs := make(chan time.Time, 16)
	err := s.Add(Task{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			select {
			case runs <- time.Now():
			default:
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}

	// Rearming to a long interval quiets the task.
	s.Rearm("tick", time.Hour)
	time.Sleep(50 * time.Millisecond)
	drain(runs)
	select {
	case <-runs:
		t.Error("task ran after rearm to a long interval")
	case <-time.After(100 * time.Millisecond):
	}
}

func drain(ch chan time.Time) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestSchedulerAddValidation(t *testing.T) {
	s := NewScheduler(nil)
	noop := func(ctx context.Context) error { return nil }

	if err := s.Add(Task{Name: "", Interval: time.Second, Run: noop}); err == nil {
		t.Error("Add without name err = nil")
	}
	if err := s.Add(Task{Name: "a", Interval: 0, Run: noop}); err == nil {
		t.Error("Add without interval err = nil")
	}
	if err := s.Add(Task{Name: "a", Interval: time.Second, Run: noop}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(Task{Name: "a", Interval: time.Second, Run: noop}); err == nil {
		t.Error("duplicate Add err = nil")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	if err := s.Add(Task{Name: "b", Interval: time.Second, Run: noop}); err == nil {
		t.Error("Add after Start err = nil")
	}
}
