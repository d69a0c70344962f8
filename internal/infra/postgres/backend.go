package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"scenario-quiz-service/internal/domain"
)

// Backend stores progress, scores and timer settings in Postgres.
type Backend struct {
	pool           *pgxpool.Pool
	defaultSeconds int
}

func NewBackend(pool *pgxpool.Pool, defaultSeconds int) *Backend {
	return &Backend{pool: pool, defaultSeconds: defaultSeconds}
}

func (b *Backend) GetQuizProgress(ctx context.Context, username, quizName string) (*domain.ProgressSnapshot, error) {
	var raw []byte
	err := b.pool.QueryRow(ctx,
		`SELECT data FROM quiz_progress WHERE username=$1 AND quiz_name=$2`,
		username, quizName).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	snap, err := domain.DecodeSnapshot(raw, domain.DefaultQuestionsPerTier)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (b *Backend) SaveQuizProgress(ctx context.Context, username, quizName string, snap domain.ProgressSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	_, err = b.pool.Exec(ctx, `
INSERT INTO quiz_progress (username, quiz_name, data) VALUES ($1, $2, $3)
ON CONFLICT (username, quiz_name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		username, quizName, data)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (b *Backend) UpdateQuizScore(ctx context.Context, report domain.ScoreReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	_, err = b.pool.Exec(ctx, `
INSERT INTO quiz_scores (username, quiz_name, score_percentage, experience, questions_answered, status, report)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (username, quiz_name) DO UPDATE SET
    score_percentage = EXCLUDED.score_percentage,
    experience = EXCLUDED.experience,
    questions_answered = EXCLUDED.questions_answered,
    status = EXCLUDED.status,
    report = EXCLUDED.report,
    updated_at = now()`,
		report.Username, report.QuizName, report.ScorePercentage, report.Experience,
		report.QuestionsAnswered, string(report.Status), data)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	return nil
}

func (b *Backend) GetQuizTimerSettings(ctx context.Context) (domain.Settings, error) {
	rows, err := b.pool.Query(ctx, `SELECT quiz_name, timer_seconds, guide_url FROM quiz_settings`)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load timer settings: %w", err)
	}
	defer rows.Close()

	out := domain.Settings{
		DefaultSeconds: b.defaultSeconds,
		QuizTimers:     make(map[string]int),
		GuideURLs:      make(map[string]string),
	}
	for rows.Next() {
		var (
			name    string
			seconds *int
			guide   string
		)
		if err := rows.Scan(&name, &seconds, &guide); err != nil {
			return domain.Settings{}, fmt.Errorf("scan timer setting: %w", err)
		}
		if seconds != nil {
			out.QuizTimers[name] = *seconds
		}
		if guide != "" {
			out.GuideURLs[name] = guide
		}
	}
	return out, rows.Err()
}

// SetQuizSettings upserts the timer and guide link for one quiz.
func (b *Backend) SetQuizSettings(ctx context.Context, quizName string, seconds int, guideURL string) error {
	_, err := b.pool.Exec(ctx, `
INSERT INTO quiz_settings (quiz_name, timer_seconds, guide_url) VALUES ($1, $2, $3)
ON CONFLICT (quiz_name) DO UPDATE SET timer_seconds = EXCLUDED.timer_seconds, guide_url = EXCLUDED.guide_url`,
		quizName, seconds, guideURL)
	if err != nil {
		return fmt.Errorf("save timer setting: %w", err)
	}
	return nil
}
