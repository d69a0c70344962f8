package memory

import (
	"context"
	"slices"
	"sync"

	"scenario-quiz-service/internal/domain"
)

// Backend is an in-memory remote store: progress, scores and timer settings.
// The server falls back to it when no Postgres URL is configured.
type Backend struct {
	mu       sync.RWMutex
	progress map[string]domain.ProgressSnapshot
	scores   map[string]domain.ScoreReport
	settings domain.Settings
}

func NewBackend(settings domain.Settings) *Backend {
	return &Backend{
		progress: make(map[string]domain.ProgressSnapshot),
		scores:   make(map[string]domain.ScoreReport),
		settings: settings,
	}
}

func backendKey(username, quizName string) string {
	return username + "/" + quizName
}

func (b *Backend) GetQuizProgress(_ context.Context, username, quizName string) (*domain.ProgressSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap, ok := b.progress[backendKey(username, quizName)]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	snap.Tools = slices.Clone(snap.Tools)
	snap.QuestionHistory = slices.Clone(snap.QuestionHistory)
	return &snap, nil
}

func (b *Backend) SaveQuizProgress(_ context.Context, username, quizName string, snap domain.ProgressSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress[backendKey(username, quizName)] = snap
	return nil
}

func (b *Backend) UpdateQuizScore(_ context.Context, report domain.ScoreReport) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scores[backendKey(report.Username, report.QuizName)] = report
	return nil
}

// Score returns the last score report for a user and quiz.
func (b *Backend) Score(username, quizName string) (domain.ScoreReport, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.scores[backendKey(username, quizName)]
	return r, ok
}

func (b *Backend) GetQuizTimerSettings(_ context.Context) (domain.Settings, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := b.settings
	out.QuizTimers = make(map[string]int, len(b.settings.QuizTimers))
	for k, v := range b.settings.QuizTimers {
		out.QuizTimers[k] = v
	}
	out.GuideURLs = make(map[string]string, len(b.settings.GuideURLs))
	for k, v := range b.settings.GuideURLs {
		out.GuideURLs[k] = v
	}
	return out, nil
}
