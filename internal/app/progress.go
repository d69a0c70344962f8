package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"scenario-quiz-service/internal/domain"
)

// defaultAliases maps known misspellings and legacy names to canonical quiz names.
var defaultAliases = map[string]string{
	"tester-mindset-quiz":   "tester-mindset",
	"testers-mindset":       "tester-mindset",
	"mindset":               "tester-mindset",
	"communication-skills":  "communication",
	"comms":                 "communication",
	"risk-analysis-quiz":    "risk-analysis",
	"risk-assessment":       "risk-analysis",
	"non-functional-tests":  "non-functional",
	"nonfunctional":         "non-functional",
	"script-metrics":        "script-metrics-troubleshooting",
	"cms-testing-quiz":      "cms-testing",
	"automation-interviews": "automation-interview",
}

var hyphenRuns = regexp.MustCompile(`-+`)

// QuizNamer canonicalizes quiz identifiers before they are used as storage keys.
type QuizNamer struct {
	aliases map[string]string
}

// NewQuizNamer merges extra aliases over the built-in table.
func NewQuizNamer(extra map[string]string) QuizNamer {
	aliases := make(map[string]string, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	n := QuizNamer{aliases: aliases}
	for k, v := range extra {
		aliases[n.fold(k)] = n.fold(v)
	}
	return n
}

// Normalize returns the canonical quiz name.
func (n QuizNamer) Normalize(name string) string {
	folded := n.fold(name)
	if alias, ok := n.aliases[folded]; ok {
		return alias
	}
	if trimmed := strings.TrimSuffix(folded, "-quiz"); trimmed != folded && trimmed != "" {
		if alias, ok := n.aliases[trimmed]; ok {
			return alias
		}
		return trimmed
	}
	return folded
}

func (n QuizNamer) fold(name string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(name))
	for i, r := range runes {
		switch {
		case r == ' ' || r == '_' || r == '.' || r == '/':
			b.WriteRune('-')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteRune('-')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return strings.Trim(hyphenRuns.ReplaceAllString(b.String(), "-"), "-")
}

// NormalizeQuizName canonicalizes with the built-in aliases only.
func NormalizeQuizName(name string) string {
	return NewQuizNamer(nil).Normalize(name)
}

// ProgressStore reconciles progress between the local cache and the remote store.
type ProgressStore struct {
	remote           ProgressAPI
	local            LocalCache
	namer            QuizNamer
	questionsPerTier int
	logger           *slog.Logger
	now              func() time.Time
}

// ProgressStoreOption customizes a ProgressStore.
type ProgressStoreOption func(*ProgressStore)

// WithNamer sets the quiz-name canonicalizer.
func WithNamer(n QuizNamer) ProgressStoreOption {
	return func(s *ProgressStore) { s.namer = n }
}

// WithQuestionsPerTier sets the tier size used when normalizing loaded snapshots.
func WithQuestionsPerTier(n int) ProgressStoreOption {
	return func(s *ProgressStore) { s.questionsPerTier = n }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) ProgressStoreOption {
	return func(s *ProgressStore) { s.now = now }
}

// NewProgressStore builds a store. remote may be nil for local-only operation.
func NewProgressStore(remote ProgressAPI, local LocalCache, logger *slog.Logger, opts ...ProgressStoreOption) *ProgressStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ProgressStore{
		remote:           remote,
		local:            local,
		namer:            NewQuizNamer(nil),
		questionsPerTier: domain.DefaultQuestionsPerTier,
		logger:           logger,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QuizKey returns the canonical name used for storage.
func (s *ProgressStore) QuizKey(quizName string) string {
	return s.namer.Normalize(quizName)
}

// CacheKey is the local-cache key for a user's progress on a quiz.
func (s *ProgressStore) CacheKey(username, quizName string) string {
	return "quiz_progress_" + username + "_" + s.QuizKey(quizName)
}

// Load returns the remote snapshot if usable, else the cached one, else domain.ErrProgressNotFound.
func (s *ProgressStore) Load(ctx context.Context, username, quizName string) (domain.ProgressSnapshot, error) {
	quiz := s.QuizKey(quizName)

	if s.remote != nil {
		snap, err := s.remote.GetQuizProgress(ctx, username, quiz)
		switch {
		case err == nil && snap != nil:
			return snap.Normalize(s.questionsPerTier), nil
		case err != nil && !errors.Is(err, domain.ErrProgressNotFound):
			s.logger.Warn("remote progress load failed, using local cache",
				"user", username, "quiz", quiz, "error", err)
		}
	}

	if s.local == nil {
		return domain.ProgressSnapshot{}, domain.ErrProgressNotFound
	}
	raw, err := s.local.Get(ctx, s.CacheKey(username, quiz))
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("local progress load failed", "user", username, "quiz", quiz, "error", err)
		}
		return domain.ProgressSnapshot{}, domain.ErrProgressNotFound
	}
	snap, err := domain.DecodeSnapshot([]byte(raw), s.questionsPerTier)
	if err != nil {
		s.logger.Warn("discarding unreadable cached progress", "user", username, "quiz", quiz, "error", err)
		return domain.ProgressSnapshot{}, domain.ErrProgressNotFound
	}
	return snap, nil
}

// Prepare stamps derived fields and folds status computation into the snapshot.
// A snapshot already marked failed keeps that status.
func (s *ProgressStore) Prepare(snap domain.ProgressSnapshot, rules ScoreRules) domain.ProgressSnapshot {
	snap.QuestionsAnswered = len(snap.QuestionHistory)
	snap.ScorePercentage = ScorePercentage(snap.QuestionHistory, rules.TotalQuestions)
	if snap.Status != domain.StatusFailed {
		snap.Status = StatusFor(snap.QuestionHistory, rules)
	}
	snap.LastUpdated = s.now().UTC()
	if snap.Tools == nil {
		snap.Tools = []string{}
	}
	if snap.QuestionHistory == nil {
		snap.QuestionHistory = []domain.HistoryEntry{}
	}
	return snap
}

// Save writes the local cache, then the remote store. Only a local failure is returned.
func (s *ProgressStore) Save(ctx context.Context, username, quizName string, snap domain.ProgressSnapshot, rules ScoreRules) (domain.ProgressSnapshot, error) {
	snap = s.Prepare(snap, rules)
	if err := s.SaveLocal(ctx, username, quizName, snap); err != nil {
		return snap, err
	}
	s.SaveRemote(ctx, username, quizName, snap)
	return snap, nil
}

// SaveLocal writes a prepared snapshot to the local cache.
func (s *ProgressStore) SaveLocal(ctx context.Context, username, quizName string, snap domain.ProgressSnapshot) error {
	if s.local == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.local.Set(ctx, s.CacheKey(username, quizName), string(data)); err != nil {
		return fmt.Errorf("cache progress: %w", err)
	}
	return nil
}

// SaveRemote attempts the remote write; failures are logged and reported as false.
func (s *ProgressStore) SaveRemote(ctx context.Context, username, quizName string, snap domain.ProgressSnapshot) bool {
	if s.remote == nil {
		return false
	}
	quiz := s.QuizKey(quizName)
	if err := s.remote.SaveQuizProgress(ctx, username, quiz, snap); err != nil {
		s.logger.Warn("remote progress save failed, kept in local cache",
			"user", username, "quiz", quiz, "error", err)
		return false
	}
	return true
}

// Clear removes the cached copy for a user and quiz.
func (s *ProgressStore) Clear(ctx context.Context, username, quizName string) {
	if s.local == nil {
		return
	}
	if err := s.local.Delete(ctx, s.CacheKey(username, quizName)); err != nil && !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("clear cached progress failed", "user", username, "quiz", s.QuizKey(quizName), "error", err)
	}
}
