package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"scenario-quiz-service/internal/app"
	"scenario-quiz-service/internal/config"
	"scenario-quiz-service/internal/content"
	"scenario-quiz-service/internal/domain"
	"scenario-quiz-service/internal/infra/events"
	"scenario-quiz-service/internal/infra/memory"
	pgstore "scenario-quiz-service/internal/infra/postgres"
	rediscache "scenario-quiz-service/internal/infra/redis"
	transport "scenario-quiz-service/internal/transport/http"
)

var logOutput io.Writer = os.Stderr

// remoteStore is what the server persists progress, scores and settings to.
type remoteStore interface {
	app.ProgressAPI
	app.ScoreAPI
	app.SettingsAPI
}

// definitionSource loads and lists quiz definitions.
type definitionSource interface {
	memory.DefinitionLoader
	transport.QuizLister
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg, logOutput)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	embedded := content.NewLoader()
	var (
		loader  definitionSource = embedded
		backend remoteStore      = memory.NewBackend(defaultSettings(cfg))
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pgLoader := pgstore.NewDefinitionLoader(pool)
		if err := seedDefinitions(ctx, embedded, pgLoader); err != nil {
			return err
		}
		loader = pgLoader
		backend = pgstore.NewBackend(pool, cfg.Quiz.TimerDefaultSeconds)
	}

	var scores app.ScoreAPI = backend
	if cfg.AMQP.URL != "" {
		exchange := cfg.AMQP.Exchange
		if exchange == "" {
			exchange = "quiz.events"
		}
		publisher, err := events.Dial(cfg.AMQP.URL, exchange, backend, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		scores = publisher
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		defs     app.DefinitionRepository
		cache    app.LocalCache
		sessions app.SessionRepository
	)
	if redisClient != nil {
		defs = rediscache.NewDefinitionRepository(redisClient, loader, quizTTL)
		cache = rediscache.NewLocalCache(redisClient, redisTTL)
		sessions = rediscache.NewSessionStore(redisClient, redisTTL)
	} else {
		defs = memory.NewDefinitionRepository(loader, quizTTL)
		cache = memory.NewLocalCache()
		sessions = memory.NewSessionStore()
	}

	namer := app.NewQuizNamer(cfg.Quiz.Aliases)
	progress := app.NewProgressStore(backend, cache, logger, app.WithNamer(namer))
	settings := app.NewSettingsLoader(backend, cache, app.SettingsLoaderConfig{
		Defaults:      defaultSettings(cfg),
		TTL:           config.TTLDuration(cfg.Quiz.SettingsTTL, 5*time.Minute),
		TimerDisabled: cfg.Quiz.TimerDisabled,
		Namer:         namer,
		Logger:        logger,
	})
	service := app.NewQuizService(sessions, defs, app.ServiceDeps{
		Progress:    progress,
		Scores:      scores,
		Settings:    settings,
		Logger:      logger,
		MaxPerLevel: cfg.Quiz.MaxScenariosPerLevel,
	})

	api := transport.NewAPIHandler(transport.APIDeps{
		Progress: backend,
		Scores:   scores,
		Settings: backend,
		Quizzes:  loader,
		Namer:    namer,
		Logger:   logger,
	})
	wsHandler := transport.NewWSHandler(service, logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(api, wsHandler, cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func defaultSettings(cfg config.Config) domain.Settings {
	return domain.Settings{
		DefaultSeconds: cfg.Quiz.TimerDefaultSeconds,
		QuizTimers:     cfg.Quiz.QuizTimers,
		GuideURLs:      cfg.Quiz.GuideURLs,
	}
}

// seedDefinitions copies the embedded quizzes into Postgres so a fresh database is playable.
func seedDefinitions(ctx context.Context, from *content.Loader, to *pgstore.DefinitionLoader) error {
	defs, err := from.All()
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := to.SaveDefinition(ctx, def); err != nil {
			return err
		}
	}
	return nil
}
