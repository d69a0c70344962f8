package domain

import (
	"slices"
	"strings"
	"time"
)

// Level is a difficulty tier.
type Level string

const (
	LevelBasic        Level = "basic"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Levels lists the tiers in play order.
var Levels = []Level{LevelBasic, LevelIntermediate, LevelAdvanced}

// Status is the lifecycle state of a persisted attempt.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusPassed     Status = "passed"
	StatusFailed     Status = "failed"
)

// ParseStatus folds case and maps anything unrecognised to StatusInProgress.
func ParseStatus(raw string) Status {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPassed, StatusFailed:
		return s
	default:
		return StatusInProgress
	}
}

// Terminal reports whether the status ends the quiz.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed
}

// Option is one possible answer for a scenario. Experience may be negative.
type Option struct {
	Text       string `json:"text" yaml:"text"`
	Outcome    string `json:"outcome" yaml:"outcome"`
	Experience int    `json:"experience" yaml:"experience"`
	Tool       string `json:"tool,omitempty" yaml:"tool,omitempty"`
	Correct    bool   `json:"isCorrect,omitempty" yaml:"is_correct,omitempty"`
	TimedOut   bool   `json:"timedOut,omitempty" yaml:"-"`
}

// Scenario models a multiple-choice question within a tier.
type Scenario struct {
	ID          int      `json:"id" yaml:"id"`
	Level       Level    `json:"level" yaml:"level"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Options     []Option `json:"options" yaml:"options"`
}

// MaxExperience returns the highest experience any option grants.
func (s Scenario) MaxExperience() int {
	if len(s.Options) == 0 {
		return 0
	}
	best := s.Options[0].Experience
	for _, opt := range s.Options[1:] {
		if opt.Experience > best {
			best = opt.Experience
		}
	}
	return best
}

// CorrectIndex returns the index of the max-experience option; ties keep the first seen.
func (s Scenario) CorrectIndex() int {
	if len(s.Options) == 0 {
		return -1
	}
	idx := 0
	for i, opt := range s.Options {
		if opt.Experience > s.Options[idx].Experience {
			idx = i
		}
	}
	return idx
}

// HistoryEntry records one answered (or timed out) question.
type HistoryEntry struct {
	Scenario       Scenario `json:"scenario"`
	SelectedAnswer Option   `json:"selectedAnswer"`
	IsCorrect      bool     `json:"isCorrect"`
	TimeSpent      *int64   `json:"timeSpent"` // milliseconds, nil when unknown
	TimedOut       bool     `json:"timedOut"`
}

// Player is the mutable state of one quiz attempt.
type Player struct {
	Name            string         `json:"name"`
	Experience      int            `json:"experience"`
	Tools           []string       `json:"tools"`
	CurrentScenario int            `json:"currentScenario"`
	QuestionHistory []HistoryEntry `json:"questionHistory"`
}

// NewPlayer returns a fresh player.
func NewPlayer(name string) Player {
	return Player{
		Name:            name,
		Tools:           []string{},
		QuestionHistory: []HistoryEntry{},
	}
}

// AddTool unlocks a tool once, keeping insertion order.
func (p *Player) AddTool(tool string) {
	if tool == "" || slices.Contains(p.Tools, tool) {
		return
	}
	p.Tools = append(p.Tools, tool)
}

// ProgressSnapshot is the persisted unit of progress for one user and quiz.
type ProgressSnapshot struct {
	Experience          int                   `json:"experience"`
	Tools               []string              `json:"tools"`
	CurrentScenario     int                   `json:"currentScenario"`
	QuestionHistory     []HistoryEntry        `json:"questionHistory"`
	Status              Status                `json:"status"`
	ScorePercentage     int                   `json:"scorePercentage"`
	QuestionsAnswered   int                   `json:"questionsAnswered"`
	LastUpdated         time.Time             `json:"lastUpdated"`
	RandomizedScenarios map[string][]Scenario `json:"randomizedScenarios,omitempty"`
}

// ScoreReport is pushed to the score/result API after each answer and at quiz end.
type ScoreReport struct {
	Username          string         `json:"username"`
	QuizName          string         `json:"quizName"`
	ScorePercentage   int            `json:"scorePercentage"`
	Experience        int            `json:"experience"`
	Tools             []string       `json:"tools"`
	QuestionHistory   []HistoryEntry `json:"questionHistory"`
	QuestionsAnswered int            `json:"questionsAnswered"`
	Status            Status         `json:"status,omitempty"`
}

// Settings carries user-facing quiz configuration: timer durations and guide links.
type Settings struct {
	DefaultSeconds int               `json:"defaultSeconds"`
	QuizTimers     map[string]int    `json:"quizTimers"`
	GuideURLs      map[string]string `json:"guideUrls,omitempty"`
	FetchedAt      time.Time         `json:"fetchedAt,omitempty"`
}

// QuizSummary is a listing view of a quiz definition.
type QuizSummary struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}
