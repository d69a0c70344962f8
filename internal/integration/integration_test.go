package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"scenario-quiz-service/internal/app"
	"scenario-quiz-service/internal/content"
	"scenario-quiz-service/internal/domain"
	pgstore "scenario-quiz-service/internal/infra/postgres"
	pgmigrations "scenario-quiz-service/internal/infra/postgres/migrations"
	infraredis "scenario-quiz-service/internal/infra/redis"
)

type recordingRenderer struct {
	mu        sync.Mutex
	questions []app.QuestionView
	summaries []app.SummaryView
}

func (r *recordingRenderer) ShowQuestion(v app.QuestionView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = append(r.questions, v)
}

func (r *recordingRenderer) ShowSummary(v app.SummaryView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, v)
}

func (r *recordingRenderer) ShowOutcome(app.OutcomeView) {}
func (r *recordingRenderer) ShowTimer(int)               {}
func (r *recordingRenderer) ShowNotice(string)           {}
func (r *recordingRenderer) RedirectToLogin()            {}

func TestPlayQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL := startPostgres(t, ctx)
	redisURL := startRedis(t, ctx)

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgstore.NewDefinitionLoader(pool)
	defs, err := content.NewLoader().All()
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	for _, def := range defs {
		if err := loader.SaveDefinition(ctx, def); err != nil {
			t.Fatalf("seed %s: %v", def.Name, err)
		}
	}

	backend := pgstore.NewBackend(pool, 0)
	if err := backend.SetQuizSettings(ctx, "tester-mindset", 0, "https://example.org/mindset"); err != nil {
		t.Fatalf("settings: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	cache := infraredis.NewLocalCache(redisClient, time.Hour)
	service := app.NewQuizService(
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		infraredis.NewDefinitionRepository(redisClient, loader, 5*time.Minute),
		app.ServiceDeps{
			Progress: app.NewProgressStore(backend, cache, nil),
			Scores:   backend,
			Settings: app.NewSettingsLoader(backend, cache, app.SettingsLoaderConfig{TTL: time.Minute}),
		},
	)

	renderer := &recordingRenderer{}
	quiz, err := service.Begin(ctx, "alice", "TesterMindset", renderer)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if renderer.questions[0].GuideURL != "https://example.org/mindset" || renderer.questions[0].TimerSeconds != 0 {
		t.Fatalf("unexpected first question %+v", renderer.questions[0])
	}

	for i := 0; i < 15; i++ {
		scenario, _, ok := quiz.Current()
		if !ok {
			t.Fatalf("no current scenario at %d", i)
		}
		if err := service.Answer(ctx, "alice", scenario.CorrectIndex()); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if err := service.Next(ctx, "alice"); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}
	if err := quiz.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(renderer.summaries) != 1 || renderer.summaries[0].Status != domain.StatusPassed {
		t.Fatalf("expected passed summary, got %+v", renderer.summaries)
	}

	snap, err := backend.GetQuizProgress(ctx, "alice", "tester-mindset")
	if err != nil {
		t.Fatalf("load stored progress: %v", err)
	}
	if snap.Status != domain.StatusPassed || snap.QuestionsAnswered != 15 || snap.ScorePercentage != 100 {
		t.Fatalf("unexpected stored snapshot status=%s answered=%d score=%d", snap.Status, snap.QuestionsAnswered, snap.ScorePercentage)
	}

	var score int
	if err := pool.QueryRow(ctx, `SELECT score_percentage FROM quiz_scores WHERE username=$1 AND quiz_name=$2`,
		"alice", "tester-mindset").Scan(&score); err != nil {
		t.Fatalf("load score: %v", err)
	}
	if score != 100 {
		t.Fatalf("expected stored score 100, got %d", score)
	}

	service.Leave("alice", quiz)
	again := &recordingRenderer{}
	if _, err := service.Begin(ctx, "alice", "tester-mindset", again); err != nil {
		t.Fatalf("begin again: %v", err)
	}
	if len(again.questions) != 0 || len(again.summaries) != 1 {
		t.Fatalf("expected completed quiz to resume at the summary, got %d questions %d summaries",
			len(again.questions), len(again.summaries))
	}
}

type containerSpec struct {
	image string
	port  nat.Port
	env   map[string]string
	wait  time.Duration
}

// startContainer runs spec and returns host:port of its exposed port.
func startContainer(t *testing.T, ctx context.Context, spec containerSpec) string {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        spec.image,
			Env:          spec.env,
			ExposedPorts: []string{string(spec.port)},
			WaitingFor:   wait.ForListeningPort(spec.port).WithStartupTimeout(spec.wait),
		},
		Started: true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", spec.image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", spec.image, err)
	}
	mapped, err := container.MappedPort(ctx, spec.port)
	if err != nil {
		t.Fatalf("%s port: %v", spec.image, err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func startPostgres(t *testing.T, ctx context.Context) string {
	addr := startContainer(t, ctx, containerSpec{
		image: "postgres:15-alpine",
		port:  "5432/tcp",
		env:   map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		wait:  time.Minute,
	})
	return fmt.Sprintf("postgres://quiz:quizpass@%s/quizdb?sslmode=disable", addr)
}

func startRedis(t *testing.T, ctx context.Context) string {
	return "redis://" + startContainer(t, ctx, containerSpec{
		image: "redis:7-alpine",
		port:  "6379/tcp",
		wait:  30 * time.Second,
	})
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
