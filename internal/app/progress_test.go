package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"scenario-quiz-service/internal/domain"
)

func TestNormalizeQuizName(t *testing.T) {
	cases := map[string]string{
		"TesterMindset":         "tester-mindset",
		"tester_mindset_quiz":   "tester-mindset",
		"  CMS Testing Quiz ":   "cms-testing",
		"Risk--Assessment":      "risk-analysis",
		"nonFunctional":         "non-functional",
		"script.metrics":        "script-metrics-troubleshooting",
		"communication-skills":  "communication",
		"sanity-smoke":          "sanity-smoke",
		"automation-interviews": "automation-interview",
	}
	for in, want := range cases {
		if got := NormalizeQuizName(in); got != want {
			t.Fatalf("NormalizeQuizName(%q) = %q, want %q", in, got, want)
		}
	}

	namer := NewQuizNamer(map[string]string{"Legacy CMS": "cms-testing"})
	if got := namer.Normalize("legacy_cms"); got != "cms-testing" {
		t.Fatalf("expected configured alias, got %q", got)
	}
}

func TestProgressLoadPrefersRemote(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	cache := newMapCache()
	store := NewProgressStore(remote, cache, nil)

	remote.progress["alice/tester-mindset"] = domain.ProgressSnapshot{Experience: 30, QuestionHistory: historyOf(7, true)}
	cached, _ := json.Marshal(domain.ProgressSnapshot{Experience: 5, QuestionHistory: historyOf(1, true)})
	cache.data[store.CacheKey("alice", "tester-mindset")] = string(cached)

	snap, err := store.Load(ctx, "alice", "Tester Mindset")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Experience != 30 || snap.CurrentScenario != 2 || snap.Status != domain.StatusInProgress || snap.QuestionsAnswered != 7 {
		t.Fatalf("expected normalized remote snapshot, got %+v", snap)
	}
}

func TestProgressLoadFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.getErr = errors.New("connection refused")
	cache := newMapCache()
	store := NewProgressStore(remote, cache, nil)

	cache.data[store.CacheKey("alice", "cms-testing")] = `{"xp":12,"history":[{"scenario":{"id":1},"isCorrect":true}],"score":100}`

	snap, err := store.Load(ctx, "alice", "cms-testing-quiz")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Experience != 12 || len(snap.QuestionHistory) != 1 || snap.ScorePercentage != 100 || snap.Tools == nil {
		t.Fatalf("expected legacy cache entry mapped, got %+v", snap)
	}
}

func TestProgressLoadTreatsCorruptCacheAsAbsent(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	store := NewProgressStore(nil, cache, nil)
	cache.data[store.CacheKey("alice", "cms-testing")] = "{not json"

	if _, err := store.Load(ctx, "alice", "cms-testing"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected ErrProgressNotFound, got %v", err)
	}
	if _, err := NewProgressStore(nil, nil, nil).Load(ctx, "alice", "cms-testing"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected ErrProgressNotFound without stores, got %v", err)
	}
}

func TestProgressSaveKeepsLocalWhenRemoteFails(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.saveErr = errors.New("503")
	cache := newMapCache()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewProgressStore(remote, cache, nil, WithClock(func() time.Time { return fixed }))
	rules := ScoreRules{TotalQuestions: 15, PassPercentage: 70}

	saved, err := store.Save(ctx, "alice", "cms-testing", domain.ProgressSnapshot{QuestionHistory: historyOf(3, true)}, rules)
	if err != nil {
		t.Fatalf("remote failure must not fail the save: %v", err)
	}
	if saved.QuestionsAnswered != 3 || saved.ScorePercentage != 100 || !saved.LastUpdated.Equal(fixed) {
		t.Fatalf("unexpected prepared snapshot %+v", saved)
	}
	if _, ok := remote.stored("alice", "cms-testing"); ok {
		t.Fatalf("remote should not hold the snapshot")
	}

	remote.getErr = errors.New("still down")
	snap, err := store.Load(ctx, "alice", "cms-testing")
	if err != nil || snap.QuestionsAnswered != 3 {
		t.Fatalf("expected local copy, got %+v err=%v", snap, err)
	}
}

func TestProgressPrepareStatus(t *testing.T) {
	store := NewProgressStore(nil, nil, nil)
	rules := ScoreRules{TotalQuestions: 15, PassPercentage: 70}

	if got := store.Prepare(domain.ProgressSnapshot{QuestionHistory: historyOf(15, true)}, rules); got.Status != domain.StatusPassed {
		t.Fatalf("expected passed, got %s", got.Status)
	}
	forced := domain.ProgressSnapshot{QuestionHistory: historyOf(4, true), Status: domain.StatusFailed}
	if got := store.Prepare(forced, rules); got.Status != domain.StatusFailed {
		t.Fatalf("failed status must stick, got %s", got.Status)
	}
	if got := store.Prepare(domain.ProgressSnapshot{}, rules); got.Status != domain.StatusInProgress || got.Tools == nil {
		t.Fatalf("unexpected empty prepare %+v", got)
	}
}

func TestProgressClear(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	store := NewProgressStore(nil, cache, nil)
	if err := store.SaveLocal(ctx, "alice", "CMS Testing", domain.ProgressSnapshot{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := cache.data["quiz_progress_alice_cms-testing"]; !ok {
		t.Fatalf("expected canonical cache key, got %v", cache.data)
	}
	store.Clear(ctx, "alice", "cms_testing")
	if len(cache.data) != 0 {
		t.Fatalf("expected cache cleared, got %v", cache.data)
	}
}
