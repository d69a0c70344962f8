package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"scenario-quiz-service/internal/app"
	"scenario-quiz-service/internal/config"
	"scenario-quiz-service/internal/content"
	"scenario-quiz-service/internal/domain"
	"scenario-quiz-service/internal/infra/memory"
	"scenario-quiz-service/internal/infra/remote"
	"scenario-quiz-service/internal/infra/sqlite"
	"scenario-quiz-service/internal/transport/console"
)

type playOptions struct {
	quiz      string
	user      string
	remoteURL string
	cachePath string
}

// NewPlayCmd plays a quiz in the terminal, syncing progress with the server when one is configured.
func NewPlayCmd(configPath *string) *cobra.Command {
	opts := playOptions{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz in the terminal",
		Long: `Play a quiz in the terminal.

Answer with an option number, press Enter to move on from an outcome.
r restarts the quiz, e gives up and records the attempt as failed,
q leaves the quiz; saved progress resumes on the next play.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if opts.remoteURL == "" {
				opts.remoteURL = cfg.Remote.BaseURL
			}
			if opts.cachePath == "" {
				opts.cachePath = cfg.Cache.SQLitePath
			}
			if opts.cachePath == "" {
				opts.cachePath = "quiz-cache.db"
			}
			return runPlay(cmd.Context(), cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.quiz, "quiz", "", "quiz to play; lists quizzes when empty")
	cmd.Flags().StringVar(&opts.user, "user", os.Getenv("QUIZ_USER"), "player name")
	cmd.Flags().StringVar(&opts.remoteURL, "remote", "", "quiz API base url (overrides config)")
	cmd.Flags().StringVar(&opts.cachePath, "cache", "", "local progress cache file (overrides config)")
	return cmd
}

func runPlay(ctx context.Context, cfg config.Config, opts playOptions, in io.Reader, out io.Writer) error {
	logger := config.NewLogger(cfg, logOutput)
	loader := content.NewLoader()

	if opts.quiz == "" {
		quizzes, err := loader.ListQuizzes(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Available quizzes:")
		for _, q := range quizzes {
			fmt.Fprintf(out, "  %-20s %s\n", q.Name, q.Title)
		}
		return nil
	}

	cache, err := sqlite.Open(ctx, opts.cachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	var (
		progressAPI app.ProgressAPI
		scoreAPI    app.ScoreAPI
		settingsAPI app.SettingsAPI
	)
	if opts.remoteURL != "" {
		client := remote.NewClient(remote.Config{
			BaseURL: opts.remoteURL,
			Timeout: config.TTLDuration(cfg.Remote.Timeout, 10*time.Second),
			Logger:  logger,
		})
		progressAPI, scoreAPI, settingsAPI = client, client, client
	}

	namer := app.NewQuizNamer(cfg.Quiz.Aliases)
	progress := app.NewProgressStore(progressAPI, cache, logger, app.WithNamer(namer))
	defs := memory.NewDefinitionRepository(loader, 0)
	def, err := defs.GetDefinition(ctx, progress.QuizKey(opts.quiz))
	if err != nil {
		return fmt.Errorf("quiz %q: %w", opts.quiz, err)
	}

	settings := app.NewSettingsLoader(settingsAPI, cache, app.SettingsLoaderConfig{
		Defaults:      defaultSettings(cfg),
		TTL:           config.TTLDuration(cfg.Quiz.SettingsTTL, 5*time.Minute),
		TimerDisabled: cfg.Quiz.TimerDisabled,
		Namer:         namer,
		Logger:        logger,
	})
	quiz, err := app.NewQuiz(def, app.QuizDeps{
		Identity:   app.StaticIdentity(opts.user),
		Progress:   progress,
		Scores:     scoreAPI,
		Settings:   settings,
		Randomizer: app.NewScenarioRandomizer(cfg.Quiz.MaxScenariosPerLevel),
		Renderer:   console.NewRenderer(out),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		quiz.Dispose()
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := quiz.Flush(flushCtx); err != nil {
			logger.Warn("pending saves not flushed", "error", err)
		}
	}()

	if err := quiz.Start(ctx); err != nil {
		return err
	}
	return playLoop(ctx, quiz, in, out)
}

// playLoop feeds terminal input to the quiz until the player quits or input ends.
func playLoop(ctx context.Context, quiz *app.Quiz, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.ToLower(scanner.Text()))
		var err error
		switch {
		case line == "q":
			// progress is saved after every answer; leaving only stops the timer
			quiz.Dispose()
			return nil
		case line == "e":
			if quiz.State() != app.StateEnded {
				err = quiz.EndGame(ctx, true)
			}
		case line == "r":
			err = quiz.Restart(ctx)
		case quiz.State() == app.StateAwaitingAnswer:
			n, convErr := strconv.Atoi(line)
			if convErr != nil {
				fmt.Fprint(out, "Enter an option number.\n> ")
				continue
			}
			err = quiz.HandleAnswer(ctx, n-1)
		case quiz.State() == app.StateShowingOutcome:
			err = quiz.NextScenario(ctx)
		}
		switch {
		case errors.Is(err, domain.ErrOptionNotFound):
			fmt.Fprint(out, "No such option.\n> ")
		case errors.Is(err, domain.ErrNotAwaitingAnswer):
			// the timer expired while typing; the outcome is already on screen
		case err != nil:
			return err
		}
	}
	return scanner.Err()
}
