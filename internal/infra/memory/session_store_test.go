package memory

import (
	"context"
	"errors"
	"testing"

	"scenario-quiz-service/internal/app"
	"scenario-quiz-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	first := newQuiz(t)
	store.Activate("u1", first)
	if got, ok := store.Get("u1"); !ok || got != first {
		t.Fatalf("expected first quiz active")
	}

	second := newQuiz(t)
	store.Activate("u1", second)
	if got, _ := store.Get("u1"); got != second {
		t.Fatalf("expected second quiz to replace the first")
	}
	if err := first.DisplayScenario(context.Background()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected replaced quiz to be disposed, got %v", err)
	}

	store.Release("u1", first)
	if _, ok := store.Get("u1"); !ok {
		t.Fatalf("releasing a stale quiz must not drop the active one")
	}

	store.Release("u1", second)
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestLocalCacheMiss(t *testing.T) {
	ctx := context.Background()
	cache := NewLocalCache()
	if _, err := cache.Get(ctx, "missing"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
	_ = cache.Set(ctx, "k", "v")
	if v, err := cache.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("expected v, got %q %v", v, err)
	}
	_ = cache.Delete(ctx, "k")
	if _, err := cache.Get(ctx, "k"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestBackendProgressRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewBackend(domain.Settings{DefaultSeconds: 30})

	if _, err := backend.GetQuizProgress(ctx, "u1", "quiz-1"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := backend.SaveQuizProgress(ctx, "u1", "quiz-1", domain.ProgressSnapshot{Experience: 40, Status: domain.StatusInProgress}); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, err := backend.GetQuizProgress(ctx, "u1", "quiz-1")
	if err != nil || snap.Experience != 40 {
		t.Fatalf("expected saved snapshot, got %+v %v", snap, err)
	}

	settings, _ := backend.GetQuizTimerSettings(ctx)
	if settings.DefaultSeconds != 30 {
		t.Fatalf("expected default seconds 30, got %d", settings.DefaultSeconds)
	}
}

type nopRenderer struct{}

func (nopRenderer) ShowQuestion(app.QuestionView) {}
func (nopRenderer) ShowOutcome(app.OutcomeView)   {}
func (nopRenderer) ShowSummary(app.SummaryView)   {}
func (nopRenderer) ShowTimer(int)                 {}
func (nopRenderer) ShowNotice(string)             {}
func (nopRenderer) RedirectToLogin()              {}

func newQuiz(t *testing.T) *app.Quiz {
	t.Helper()
	quiz, err := app.NewQuiz(sampleDefinition(), app.QuizDeps{
		Identity: app.StaticIdentity("u1"),
		Renderer: nopRenderer{},
	})
	if err != nil {
		t.Fatalf("new quiz: %v", err)
	}
	return quiz
}
