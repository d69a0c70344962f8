package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"scenario-quiz-service/internal/app"
	"scenario-quiz-service/internal/domain"
	"scenario-quiz-service/internal/infra/memory"
	transport "scenario-quiz-service/internal/transport/http"
)

func newServer(t *testing.T) (*Client, *memory.Backend) {
	t.Helper()
	backend := memory.NewBackend(domain.Settings{
		DefaultSeconds: 20,
		QuizTimers:     map[string]int{"cms-testing": 0},
		GuideURLs:      map[string]string{"cms-testing": "https://example.org/cms"},
	})
	api := transport.NewAPIHandler(transport.APIDeps{
		Progress: backend,
		Scores:   backend,
		Settings: backend,
		Namer:    app.NewQuizNamer(nil),
	})
	server := httptest.NewServer(transport.NewRouter(api, nil, nil))
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, InitialDelay: time.Millisecond}), backend
}

func TestClientProgressRoundTrip(t *testing.T) {
	client, _ := newServer(t)
	ctx := context.Background()

	if _, err := client.GetQuizProgress(ctx, "alice", "cms-testing"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected ErrProgressNotFound, got %v", err)
	}

	snap := domain.ProgressSnapshot{
		Experience: 25,
		Tools:      []string{"checklist"},
		QuestionHistory: []domain.HistoryEntry{
			{Scenario: domain.Scenario{ID: 1}, IsCorrect: true},
			{Scenario: domain.Scenario{ID: 2}},
		},
	}
	if err := client.SaveQuizProgress(ctx, "alice", "cms-testing", snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := client.GetQuizProgress(ctx, "alice", "cms-testing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Experience != 25 || len(got.QuestionHistory) != 2 || got.CurrentScenario != 2 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestClientScoreAndSettings(t *testing.T) {
	client, backend := newServer(t)
	ctx := context.Background()

	report := domain.ScoreReport{Username: "alice", QuizName: "cms-testing", ScorePercentage: 73, QuestionsAnswered: 15}
	if err := client.UpdateQuizScore(ctx, report); err != nil {
		t.Fatalf("update score: %v", err)
	}
	if got, ok := backend.Score("alice", "cms-testing"); !ok || got.ScorePercentage != 73 {
		t.Fatalf("unexpected stored score %+v ok=%v", got, ok)
	}

	settings, err := client.GetQuizTimerSettings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.DefaultSeconds != 20 || settings.GuideURLs["cms-testing"] != "https://example.org/cms" {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if secs, ok := settings.QuizTimers["cms-testing"]; !ok || secs != 0 {
		t.Fatalf("expected explicit zero timer, got %d ok=%v", secs, ok)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"defaultSeconds":15,"quizTimers":{}}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, InitialDelay: time.Millisecond})
	settings, err := client.GetQuizTimerSettings(context.Background())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if settings.DefaultSeconds != 15 || calls.Load() != 3 {
		t.Fatalf("unexpected result %+v after %d calls", settings, calls.Load())
	}
}

func TestClientDoesNotRetryScoreUpdates(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, InitialDelay: time.Millisecond})
	err := client.UpdateQuizScore(context.Background(), domain.ScoreReport{Username: "alice", QuizName: "cms"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClientFeedsProgressStoreFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, InitialDelay: time.Millisecond})
	local := memory.NewLocalCache()
	store := app.NewProgressStore(client, local, nil)
	ctx := context.Background()

	rules := app.ScoreRules{TotalQuestions: 15, PassPercentage: 70}
	if _, err := store.Save(ctx, "alice", "cms-testing", domain.ProgressSnapshot{Experience: 10}, rules); err != nil {
		t.Fatalf("save should survive remote failure: %v", err)
	}
	snap, err := store.Load(ctx, "alice", "cms-testing")
	if err != nil {
		t.Fatalf("load from local fallback: %v", err)
	}
	if snap.Experience != 10 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestClientWritesFailOnNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, InitialDelay: time.Millisecond})
	ctx := context.Background()

	var se *StatusError
	err := client.SaveQuizProgress(ctx, "alice", "cms-testing", domain.ProgressSnapshot{Experience: 10})
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || se.Method != http.MethodPut {
		t.Fatalf("expected PUT 404 status error, got %v", err)
	}
	err = client.UpdateQuizScore(ctx, domain.ScoreReport{Username: "alice", QuizName: "cms-testing"})
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || se.Method != http.MethodPost {
		t.Fatalf("expected POST 404 status error, got %v", err)
	}
	if _, err := client.GetQuizProgress(ctx, "alice", "cms-testing"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("a missing snapshot is still ErrProgressNotFound, got %v", err)
	}

	store := app.NewProgressStore(client, memory.NewLocalCache(), nil)
	if store.SaveRemote(ctx, "alice", "cms-testing", domain.ProgressSnapshot{}) {
		t.Fatalf("remote save against a missing route must report failure")
	}
}
