package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"scenario-quiz-service/internal/domain"
)

type recordingRenderer struct {
	mu        sync.Mutex
	questions []QuestionView
	outcomes  []OutcomeView
	summaries []SummaryView
	ticks     []int
	notices   []string
	redirects int
	outcomeCh chan OutcomeView
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{outcomeCh: make(chan OutcomeView, 64)}
}

func (r *recordingRenderer) ShowQuestion(v QuestionView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = append(r.questions, v)
}

func (r *recordingRenderer) ShowOutcome(v OutcomeView) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, v)
	r.mu.Unlock()
	r.outcomeCh <- v
}

func (r *recordingRenderer) ShowSummary(v SummaryView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, v)
}

func (r *recordingRenderer) ShowTimer(left int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, left)
}

func (r *recordingRenderer) ShowNotice(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, msg)
}

func (r *recordingRenderer) RedirectToLogin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects++
}

func (r *recordingRenderer) counts() (questions, outcomes, summaries, notices int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.questions), len(r.outcomes), len(r.summaries), len(r.notices)
}

func (r *recordingRenderer) lastQuestion() QuestionView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.questions[len(r.questions)-1]
}

func (r *recordingRenderer) lastSummary() SummaryView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaries[len(r.summaries)-1]
}

// mapCache is a LocalCache with switchable failures.
type mapCache struct {
	mu      sync.Mutex
	data    map[string]string
	failSet bool
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return errors.New("quota exceeded")
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// fakeRemote implements ProgressAPI, ScoreAPI and SettingsAPI.
type fakeRemote struct {
	mu          sync.Mutex
	progress    map[string]domain.ProgressSnapshot
	reports     []domain.ScoreReport
	settings    domain.Settings
	getErr      error
	saveErr     error
	settingsErr error
	settingsHit int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{progress: make(map[string]domain.ProgressSnapshot)}
}

func (f *fakeRemote) GetQuizProgress(_ context.Context, username, quizName string) (*domain.ProgressSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	snap, ok := f.progress[username+"/"+quizName]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	return &snap, nil
}

func (f *fakeRemote) SaveQuizProgress(_ context.Context, username, quizName string, snap domain.ProgressSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.progress[username+"/"+quizName] = snap
	return nil
}

func (f *fakeRemote) UpdateQuizScore(_ context.Context, report domain.ScoreReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeRemote) GetQuizTimerSettings(_ context.Context) (domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settingsHit++
	if f.settingsErr != nil {
		return domain.Settings{}, f.settingsErr
	}
	return f.settings, nil
}

func (f *fakeRemote) stored(username, quizName string) (domain.ProgressSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.progress[username+"/"+quizName]
	return snap, ok
}

func (f *fakeRemote) lastReport() (domain.ScoreReport, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reports) == 0 {
		return domain.ScoreReport{}, 0
	}
	return f.reports[len(f.reports)-1], len(f.reports)
}

// testDefinition builds a quiz with perTier scenarios in each tier.
// Option 0 grants good XP, option 1 grants bad XP.
func testDefinition(name string, perTier, good, bad int) domain.QuizDefinition {
	scenarios := make(map[domain.Level][]domain.Scenario)
	id := 1
	for _, level := range domain.Levels {
		for i := 0; i < perTier; i++ {
			scenarios[level] = append(scenarios[level], domain.Scenario{
				ID:    id,
				Title: fmt.Sprintf("%s %d", level, i),
				Options: []domain.Option{
					{Text: "good", Outcome: "well done", Experience: good, Tool: fmt.Sprintf("tool-%d", id)},
					{Text: "bad", Outcome: "oops", Experience: bad},
				},
			})
			id++
		}
	}
	return domain.QuizDefinition{Name: name, Scenarios: scenarios}
}

func historyOf(n int, correct bool) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, n)
	for i := range out {
		out[i] = domain.HistoryEntry{
			Scenario:  domain.Scenario{ID: i + 1},
			IsCorrect: correct,
		}
	}
	return out
}
