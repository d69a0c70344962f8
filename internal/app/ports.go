package app

import (
	"context"

	"scenario-quiz-service/internal/domain"
)

// IdentityProvider reports the current user; an empty name means nobody is signed in.
type IdentityProvider interface {
	CurrentUser() string
}

// StaticIdentity is an IdentityProvider for a known user name.
type StaticIdentity string

func (s StaticIdentity) CurrentUser() string { return string(s) }

// ProgressAPI is the authoritative remote progress store.
type ProgressAPI interface {
	// GetQuizProgress returns domain.ErrProgressNotFound when the user has no progress.
	GetQuizProgress(ctx context.Context, username, quizName string) (*domain.ProgressSnapshot, error)
	SaveQuizProgress(ctx context.Context, username, quizName string, snap domain.ProgressSnapshot) error
}

// ScoreAPI receives score updates after each answer and at quiz end.
type ScoreAPI interface {
	UpdateQuizScore(ctx context.Context, report domain.ScoreReport) error
}

// SettingsAPI serves timer and guide configuration.
type SettingsAPI interface {
	GetQuizTimerSettings(ctx context.Context) (domain.Settings, error)
}

// LocalCache is the fast key/value cache used for resume and offline fallback.
type LocalCache interface {
	// Get returns domain.ErrCacheMiss for absent keys.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// DefinitionRepository loads quiz definitions (from cache/backing store).
type DefinitionRepository interface {
	GetDefinition(ctx context.Context, quizName string) (domain.QuizDefinition, error)
}

// Surface is one of the mutually exclusive display areas.
type Surface string

const (
	SurfaceNone    Surface = ""
	SurfaceGame    Surface = "game"
	SurfaceOutcome Surface = "outcome"
	SurfaceEnd     Surface = "end"
)

// Renderer draws the quiz. Calls may arrive from the timer goroutine.
type Renderer interface {
	ShowQuestion(view QuestionView)
	ShowOutcome(view OutcomeView)
	ShowSummary(view SummaryView)
	ShowTimer(secondsLeft int)
	ShowNotice(message string)
	RedirectToLogin()
}

// QuestionView is what the game surface displays.
type QuestionView struct {
	QuizName     string       `json:"quizName"`
	Level        domain.Level `json:"level"`
	Index        int          `json:"index"`
	Number       int          `json:"number"`
	Total        int          `json:"total"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Options      []string     `json:"options"`
	Experience   int          `json:"experience"`
	MaxXP        int          `json:"maxXp"`
	XPPercent    int          `json:"xpPercent"`
	TimerSeconds int          `json:"timerSeconds"`
	GuideURL     string       `json:"guideUrl,omitempty"`
}

// OutcomeView is shown after an answer or timeout.
type OutcomeView struct {
	Title      string   `json:"title"`
	Outcome    string   `json:"outcome"`
	Correct    bool     `json:"correct"`
	TimedOut   bool     `json:"timedOut"`
	Awarded    int      `json:"awarded"`
	Experience int      `json:"experience"`
	XPPercent  int      `json:"xpPercent"`
	Tool       string   `json:"tool,omitempty"`
	Tools      []string `json:"tools"`
	Answered   int      `json:"answered"`
	Total      int      `json:"total"`
}

// SummaryView is the end-of-quiz screen.
type SummaryView struct {
	QuizName          string                `json:"quizName"`
	Status            domain.Status         `json:"status"`
	ScorePercentage   int                   `json:"scorePercentage"`
	PassPercentage    int                   `json:"passPercentage"`
	Experience        int                   `json:"experience"`
	Tools             []string              `json:"tools"`
	QuestionsAnswered int                   `json:"questionsAnswered"`
	History           []domain.HistoryEntry `json:"history"`
}
