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

// DefinitionLoader loads quiz definition JSONB from Postgres.
type DefinitionLoader struct {
	pool *pgxpool.Pool
}

func NewDefinitionLoader(pool *pgxpool.Pool) *DefinitionLoader {
	return &DefinitionLoader{pool: pool}
}

func (l *DefinitionLoader) LoadDefinition(ctx context.Context, quizName string) (domain.QuizDefinition, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE name=$1`, quizName).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizDefinition{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizDefinition{}, fmt.Errorf("load quiz definition: %w", err)
	}
	var def domain.QuizDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return domain.QuizDefinition{}, fmt.Errorf("unmarshal quiz definition: %w", err)
	}
	if def.Name == "" {
		def.Name = quizName
	}
	return def, nil
}

// SaveDefinition upserts a definition; used to seed Postgres from embedded content.
func (l *DefinitionLoader) SaveDefinition(ctx context.Context, def domain.QuizDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal quiz definition: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
INSERT INTO quizzes (name, title, data) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET title = EXCLUDED.title, data = EXCLUDED.data, updated_at = now()`,
		def.Name, def.Title, data)
	if err != nil {
		return fmt.Errorf("save quiz definition: %w", err)
	}
	return nil
}

// ListQuizzes returns every stored quiz ordered by name.
func (l *DefinitionLoader) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	rows, err := l.pool.Query(ctx, `SELECT name, title FROM quizzes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizSummary
	for rows.Next() {
		var s domain.QuizSummary
		if err := rows.Scan(&s.Name, &s.Title); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		if s.Title == "" {
			s.Title = s.Name
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
