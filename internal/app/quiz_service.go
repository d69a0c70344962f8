package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scenario-quiz-service/internal/domain"
)

// SessionRepository tracks the single active quiz controller per user (in-memory, Redis, etc).
type SessionRepository interface {
	// Activate makes quiz the user's active controller and disposes the previous one.
	Activate(userID string, quiz *Quiz)
	Get(userID string) (*Quiz, bool)
	// Release disposes quiz and forgets it if it is still the active controller.
	Release(userID string, quiz *Quiz)
}

// ServiceDeps are the shared collaborators handed to every quiz the service builds.
type ServiceDeps struct {
	Progress    *ProgressStore
	Scores      ScoreAPI
	Settings    *SettingsLoader
	Logger      *slog.Logger
	TimerTick   time.Duration
	MaxPerLevel int
}

// QuizService contains the networked play use cases.
type QuizService struct {
	sessions SessionRepository
	quizzes  DefinitionRepository
	deps     ServiceDeps

	mu          sync.Mutex
	randomizers map[string]*ScenarioRandomizer
}

func NewQuizService(store SessionRepository, quizzes DefinitionRepository, deps ServiceDeps) *QuizService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Progress == nil {
		deps.Progress = NewProgressStore(nil, nil, deps.Logger)
	}
	return &QuizService{
		sessions:    store,
		quizzes:     quizzes,
		deps:        deps,
		randomizers: make(map[string]*ScenarioRandomizer),
	}
}

// Begin builds and starts a quiz for the user, replacing any quiz they had open.
func (s *QuizService) Begin(ctx context.Context, userID, quizName string, renderer Renderer) (*Quiz, error) {
	if userID == "" {
		if renderer != nil {
			renderer.RedirectToLogin()
		}
		return nil, domain.ErrIdentityMissing
	}
	def, err := s.quizzes.GetDefinition(ctx, s.deps.Progress.QuizKey(quizName))
	if err != nil {
		return nil, err
	}

	quiz, err := NewQuiz(def, QuizDeps{
		Identity:   StaticIdentity(userID),
		Progress:   s.deps.Progress,
		Scores:     s.deps.Scores,
		Settings:   s.deps.Settings,
		Randomizer: s.randomizerFor(userID),
		Renderer:   renderer,
		Logger:     s.deps.Logger,
		TimerTick:  s.deps.TimerTick,
	})
	if err != nil {
		return nil, err
	}

	s.sessions.Activate(userID, quiz)
	if err := quiz.Start(ctx); err != nil {
		s.sessions.Release(userID, quiz)
		return nil, err
	}
	return quiz, nil
}

// Answer submits an option for the user's active quiz.
func (s *QuizService) Answer(ctx context.Context, userID string, optionIndex int) error {
	quiz, ok := s.sessions.Get(userID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return quiz.HandleAnswer(ctx, optionIndex)
}

// Timeout forces the current question of the user's quiz to time out.
func (s *QuizService) Timeout(ctx context.Context, userID string) error {
	quiz, ok := s.sessions.Get(userID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return quiz.HandleTimeout(ctx)
}

// Next advances from the outcome screen.
func (s *QuizService) Next(ctx context.Context, userID string) error {
	quiz, ok := s.sessions.Get(userID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return quiz.NextScenario(ctx)
}

// Restart resets the user's active quiz.
func (s *QuizService) Restart(ctx context.Context, userID string) error {
	quiz, ok := s.sessions.Get(userID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return quiz.Restart(ctx)
}

// End finishes the user's active quiz.
func (s *QuizService) End(ctx context.Context, userID string, failed bool) error {
	quiz, ok := s.sessions.Get(userID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return quiz.EndGame(ctx, failed)
}

// Leave releases the quiz; the user's randomizer is dropped once nothing is active.
func (s *QuizService) Leave(userID string, quiz *Quiz) {
	s.sessions.Release(userID, quiz)
	if _, ok := s.sessions.Get(userID); ok {
		return
	}
	s.mu.Lock()
	delete(s.randomizers, userID)
	s.mu.Unlock()
}

// Active returns the user's active quiz.
func (s *QuizService) Active(userID string) (*Quiz, bool) {
	return s.sessions.Get(userID)
}

func (s *QuizService) randomizerFor(userID string) *ScenarioRandomizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.randomizers[userID]
	if !ok {
		r = NewScenarioRandomizer(s.deps.MaxPerLevel)
		s.randomizers[userID] = r
	}
	return r
}
