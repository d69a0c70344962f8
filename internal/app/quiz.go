package app

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"scenario-quiz-service/internal/domain"
)

// State is the quiz lifecycle position.
type State string

const (
	StateNotStarted     State = "not-started"
	StateAwaitingAnswer State = "awaiting-answer"
	StateShowingOutcome State = "showing-outcome"
	StateEnded          State = "ended"
)

const saveFailedNotice = "Failed to save your answer, please retry."

// TierOf maps the number of answered questions to the active tier.
// ok is false once every tier is exhausted and the quiz must end.
func TierOf(answered, questionsPerTier int) (level domain.Level, ok bool) {
	if questionsPerTier <= 0 {
		questionsPerTier = domain.DefaultQuestionsPerTier
	}
	i := answered / questionsPerTier
	if answered < 0 || i >= len(domain.Levels) {
		return "", false
	}
	return domain.Levels[i], true
}

func tierStart(level domain.Level, questionsPerTier int) int {
	return slices.Index(domain.Levels, level) * questionsPerTier
}

// QuizDeps are the collaborators of a Quiz.
type QuizDeps struct {
	Identity   IdentityProvider
	Progress   *ProgressStore
	Scores     ScoreAPI
	Settings   *SettingsLoader
	Randomizer *ScenarioRandomizer
	Renderer   Renderer
	Logger     *slog.Logger
	// TimerTick is the countdown resolution; one second when zero.
	TimerTick time.Duration
	Clock     func() time.Time
}

// Quiz drives one user through the tiers of a quiz definition.
// Renderer calls happen while the quiz lock is held, so renderers must not call back into the Quiz.
type Quiz struct {
	def        domain.QuizDefinition
	name       string
	rules      ScoreRules
	identity   IdentityProvider
	progress   *ProgressStore
	scores     ScoreAPI
	settings   *SettingsLoader
	randomizer *ScenarioRandomizer
	renderer   Renderer
	logger     *slog.Logger
	clock      func() time.Time
	timer      *QuestionTimer
	jobs       *dispatcher

	mu           sync.Mutex
	state        State
	surface      Surface
	user         string
	player       domain.Player
	current      *domain.Scenario
	currentLevel domain.Level
	shownAt      time.Time
	questionSeq  uint64
	timerSeconds int
	guideURL     string
	forcedFail   bool
	final        *domain.ProgressSnapshot
	disposed     bool
}

// NewQuiz validates the definition and collaborators. A missing renderer is fatal.
func NewQuiz(def domain.QuizDefinition, deps QuizDeps) (*Quiz, error) {
	if def.Name == "" {
		return nil, domain.ErrQuizNameRequired
	}
	if deps.Renderer == nil {
		return nil, domain.ErrRenderTargetMissing
	}
	def = def.WithDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Progress == nil {
		deps.Progress = NewProgressStore(nil, nil, deps.Logger)
	}
	if deps.Randomizer == nil {
		deps.Randomizer = NewScenarioRandomizer(def.MaxScenariosPerLevel)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Identity == nil {
		deps.Identity = StaticIdentity("")
	}

	name := deps.Progress.QuizKey(def.Name)
	return &Quiz{
		def:        def,
		name:       name,
		rules:      RulesFor(def),
		identity:   deps.Identity,
		progress:   deps.Progress,
		scores:     deps.Scores,
		settings:   deps.Settings,
		randomizer: deps.Randomizer,
		renderer:   deps.Renderer,
		logger:     deps.Logger.With("quiz", name),
		clock:      deps.Clock,
		timer:      NewQuestionTimer(deps.TimerTick),
		jobs:       newDispatcher(),
		state:      StateNotStarted,
	}, nil
}

// Name is the canonical quiz name.
func (q *Quiz) Name() string { return q.name }

// Definition returns the quiz definition with defaults applied.
func (q *Quiz) Definition() domain.QuizDefinition { return q.def }

// Start resumes saved progress or begins a fresh attempt.
func (q *Quiz) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return domain.ErrSessionNotFound
	}

	user := q.identity.CurrentUser()
	if user == "" {
		q.renderer.RedirectToLogin()
		return domain.ErrIdentityMissing
	}
	q.user = user
	q.player = domain.NewPlayer(user)
	q.forcedFail = false
	q.final = nil

	if q.settings != nil {
		q.timerSeconds = q.settings.TimerSeconds(ctx, q.name)
		q.guideURL = q.settings.GuideURL(ctx, q.name)
	}

	snap, err := q.progress.Load(ctx, user, q.name)
	if err == nil {
		q.restoreLocked(snap)
		if snap.Status.Terminal() {
			q.logger.Info("quiz already completed", "user", user, "status", snap.Status)
			q.final = &snap
			q.state = StateEnded
			q.surface = SurfaceEnd
			q.renderer.ShowSummary(q.summaryLocked(snap))
			return nil
		}
		q.logger.Info("resuming quiz", "user", user, "answered", len(snap.QuestionHistory))
	}

	q.displayLocked(ctx)
	return nil
}

func (q *Quiz) restoreLocked(snap domain.ProgressSnapshot) {
	history := snap.QuestionHistory
	if total := q.rules.TotalQuestions; len(history) > total {
		history = history[:total]
	}
	q.player.Experience = ClampExperience(snap.Experience, q.def.MaxXP)
	q.player.Tools = slices.Clone(snap.Tools)
	q.player.QuestionHistory = slices.Clone(history)
	q.player.CurrentScenario = len(history) % q.def.QuestionsPerTier
	q.forcedFail = snap.Status == domain.StatusFailed
	q.randomizer.Restore(q.name, snap.RandomizedScenarios)
}

// DisplayScenario shows the next question, or ends the quiz when none can be shown.
func (q *Quiz) DisplayScenario(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return domain.ErrSessionNotFound
	}
	if q.state == StateEnded {
		return nil
	}
	q.displayLocked(ctx)
	return nil
}

func (q *Quiz) displayLocked(ctx context.Context) {
	answered := len(q.player.QuestionHistory)
	level, ok := TierOf(answered, q.def.QuestionsPerTier)
	if !ok || answered >= q.rules.TotalQuestions {
		q.endLocked(ctx, false)
		return
	}
	idx := answered - tierStart(level, q.def.QuestionsPerTier)

	if required, gated := q.def.TierThresholds[level]; gated && idx == 0 && q.player.Experience < required {
		q.logger.Info("experience below tier threshold, ending quiz",
			"user", q.user, "level", level, "experience", q.player.Experience, "required", required)
		q.endLocked(ctx, true)
		return
	}

	set := q.randomizer.ScenariosLimit(q.name, level, q.def.Scenarios[level], q.def.MaxScenariosPerLevel)
	if idx >= len(set) {
		q.logger.Error("no scenario found, ending quiz",
			"user", q.user, "level", level, "index", idx, "available", len(set))
		q.endLocked(ctx, true)
		return
	}

	scenario := set[idx]
	q.current = &scenario
	q.currentLevel = level
	q.player.CurrentScenario = idx
	q.state = StateAwaitingAnswer
	q.surface = SurfaceGame
	q.shownAt = q.clock()
	q.questionSeq++

	q.renderer.ShowQuestion(q.questionViewLocked(level, idx))

	if q.timerSeconds > 0 {
		seq := q.questionSeq
		q.timer.Start(q.timerSeconds,
			func(left int) { q.onTick(seq, left) },
			func() { q.onExpire(seq) },
		)
	}
}

func (q *Quiz) onTick(seq uint64, left int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if seq != q.questionSeq || q.state != StateAwaitingAnswer || q.disposed {
		return
	}
	q.renderer.ShowTimer(left)
}

func (q *Quiz) onExpire(seq uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	// an answer in the same tick already moved the quiz on
	if seq != q.questionSeq || q.state != StateAwaitingAnswer || q.disposed {
		return
	}
	q.timeoutLocked(context.Background())
}

// HandleAnswer records the chosen option and shows its outcome.
func (q *Quiz) HandleAnswer(ctx context.Context, optionIndex int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return domain.ErrSessionNotFound
	}
	if q.state != StateAwaitingAnswer || q.current == nil {
		return domain.ErrNotAwaitingAnswer
	}
	if optionIndex < 0 || optionIndex >= len(q.current.Options) {
		return domain.ErrOptionNotFound
	}

	q.timer.Cancel()
	opt := q.current.Options[optionIndex]
	correct := opt.Correct || opt.Experience == q.current.MaxExperience()
	opt.Correct = correct
	q.recordLocked(ctx, opt, correct, false)
	return nil
}

// HandleTimeout records a zero-reward timed-out answer for the current question.
func (q *Quiz) HandleTimeout(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return domain.ErrSessionNotFound
	}
	if q.state != StateAwaitingAnswer || q.current == nil {
		return domain.ErrNotAwaitingAnswer
	}
	q.timeoutLocked(ctx)
	return nil
}

func (q *Quiz) timeoutLocked(ctx context.Context) {
	q.timer.Cancel()
	q.recordLocked(ctx, domain.Option{
		Text:     "Time expired",
		Outcome:  "You ran out of time for this question.",
		TimedOut: true,
	}, false, true)
}

func (q *Quiz) recordLocked(ctx context.Context, opt domain.Option, correct, timedOut bool) {
	spent := q.clock().Sub(q.shownAt).Milliseconds()
	if spent < 0 {
		spent = 0
	}

	q.player.Experience = ClampExperience(q.player.Experience+opt.Experience, q.def.MaxXP)
	if !timedOut {
		q.player.AddTool(opt.Tool)
	}
	q.player.QuestionHistory = append(q.player.QuestionHistory, domain.HistoryEntry{
		Scenario:       *q.current,
		SelectedAnswer: opt,
		IsCorrect:      correct,
		TimeSpent:      &spent,
		TimedOut:       timedOut,
	})
	q.player.CurrentScenario++
	q.state = StateShowingOutcome

	q.persistLocked(ctx, true)

	q.surface = SurfaceOutcome
	q.renderer.ShowOutcome(OutcomeView{
		Title:      q.current.Title,
		Outcome:    opt.Outcome,
		Correct:    correct,
		TimedOut:   timedOut,
		Awarded:    opt.Experience,
		Experience: q.player.Experience,
		XPPercent:  XPPercentage(q.player.Experience, q.def.MaxXP),
		Tool:       opt.Tool,
		Tools:      slices.Clone(q.player.Tools),
		Answered:   len(q.player.QuestionHistory),
		Total:      q.rules.TotalQuestions,
	})
}

// persistLocked writes the local cache now and queues the remote save (and score report).
func (q *Quiz) persistLocked(ctx context.Context, report bool) domain.ProgressSnapshot {
	snap := domain.ProgressSnapshot{
		Experience:          q.player.Experience,
		Tools:               slices.Clone(q.player.Tools),
		CurrentScenario:     q.player.CurrentScenario,
		QuestionHistory:     slices.Clone(q.player.QuestionHistory),
		RandomizedScenarios: q.randomizer.Export(q.name),
	}
	if q.forcedFail {
		snap.Status = domain.StatusFailed
	}
	snap = q.progress.Prepare(snap, q.rules)

	if err := q.progress.SaveLocal(ctx, q.user, q.name, snap); err != nil {
		q.logger.Error("save progress failed", "user", q.user, "error", err)
		q.renderer.ShowNotice(saveFailedNotice)
	}

	user, name, scores := q.user, q.name, q.scores
	scoreReport := domain.ScoreReport{
		Username:          user,
		QuizName:          name,
		ScorePercentage:   snap.ScorePercentage,
		Experience:        snap.Experience,
		Tools:             snap.Tools,
		QuestionHistory:   snap.QuestionHistory,
		QuestionsAnswered: snap.QuestionsAnswered,
		Status:            snap.Status,
	}
	q.jobs.submit(func(ctx context.Context) {
		q.progress.SaveRemote(ctx, user, name, snap)
		if !report || scores == nil {
			return
		}
		if err := scores.UpdateQuizScore(ctx, scoreReport); err != nil {
			q.logger.Warn("score update failed", "user", user, "error", err)
		}
	})
	return snap
}

// NextScenario leaves the outcome screen for the next question.
func (q *Quiz) NextScenario(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return domain.ErrSessionNotFound
	}
	if q.state != StateShowingOutcome {
		return domain.ErrNotShowingOutcome
	}
	q.displayLocked(ctx)
	return nil
}

// EndGame finalizes the attempt. failed forces a failed status regardless of score.
func (q *Quiz) EndGame(ctx context.Context, failed bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return domain.ErrSessionNotFound
	}
	if q.state == StateNotStarted {
		return domain.ErrNotAwaitingAnswer
	}
	q.endLocked(ctx, failed)
	return nil
}

func (q *Quiz) endLocked(ctx context.Context, failed bool) {
	if q.state == StateEnded {
		return
	}
	q.timer.Cancel()
	// ending before the last question can only fail
	if failed || len(q.player.QuestionHistory) < q.rules.TotalQuestions {
		q.forcedFail = true
	}
	snap := q.persistLocked(ctx, true)
	q.final = &snap
	q.current = nil
	q.state = StateEnded
	q.surface = SurfaceEnd
	q.logger.Info("quiz ended", "user", q.user, "status", snap.Status, "score", snap.ScorePercentage)
	q.renderer.ShowSummary(q.summaryLocked(snap))
}

// Restart discards the attempt and begins again at the first basic question.
func (q *Quiz) Restart(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return domain.ErrSessionNotFound
	}
	if q.user == "" {
		if q.user = q.identity.CurrentUser(); q.user == "" {
			q.renderer.RedirectToLogin()
			return domain.ErrIdentityMissing
		}
	}

	q.timer.Cancel()
	q.randomizer.Reset(q.name)
	q.progress.Clear(ctx, q.user, q.name)
	q.player = domain.NewPlayer(q.user)
	q.forcedFail = false
	q.final = nil
	q.current = nil
	q.state = StateNotStarted
	q.logger.Info("quiz restarted", "user", q.user)

	q.persistLocked(ctx, false)
	q.displayLocked(ctx)
	return nil
}

// Dispose cancels the timer and detaches the quiz; later calls fail with ErrSessionNotFound.
func (q *Quiz) Dispose() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.timer.Cancel()
	q.disposed = true
}

// Flush waits for queued remote saves and score reports.
func (q *Quiz) Flush(ctx context.Context) error {
	return q.jobs.flush(ctx)
}

// State returns the lifecycle state.
func (q *Quiz) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Surface returns the visible display surface.
func (q *Quiz) Surface() Surface {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.surface
}

// Player returns a copy of the player state.
func (q *Quiz) Player() domain.Player {
	q.mu.Lock()
	defer q.mu.Unlock()
	p := q.player
	p.Tools = slices.Clone(p.Tools)
	p.QuestionHistory = slices.Clone(p.QuestionHistory)
	return p
}

// Current returns the displayed scenario and its tier.
func (q *Quiz) Current() (domain.Scenario, domain.Level, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return domain.Scenario{}, "", false
	}
	return *q.current, q.currentLevel, true
}

// Result returns the final snapshot once the quiz has ended.
func (q *Quiz) Result() (domain.ProgressSnapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.final == nil {
		return domain.ProgressSnapshot{}, false
	}
	return *q.final, true
}

// TimerActive reports whether a countdown is running.
func (q *Quiz) TimerActive() bool {
	return q.timer.Active()
}

func (q *Quiz) questionViewLocked(level domain.Level, idx int) QuestionView {
	options := make([]string, len(q.current.Options))
	for i, opt := range q.current.Options {
		options[i] = opt.Text
	}
	return QuestionView{
		QuizName:     q.name,
		Level:        level,
		Index:        idx,
		Number:       len(q.player.QuestionHistory) + 1,
		Total:        q.rules.TotalQuestions,
		Title:        q.current.Title,
		Description:  q.current.Description,
		Options:      options,
		Experience:   q.player.Experience,
		MaxXP:        q.def.MaxXP,
		XPPercent:    XPPercentage(q.player.Experience, q.def.MaxXP),
		TimerSeconds: q.timerSeconds,
		GuideURL:     q.guideURL,
	}
}

func (q *Quiz) summaryLocked(snap domain.ProgressSnapshot) SummaryView {
	return SummaryView{
		QuizName:          q.name,
		Status:            snap.Status,
		ScorePercentage:   snap.ScorePercentage,
		PassPercentage:    q.def.PassPercentage,
		Experience:        snap.Experience,
		Tools:             slices.Clone(snap.Tools),
		QuestionsAnswered: snap.QuestionsAnswered,
		History:           slices.Clone(snap.QuestionHistory),
	}
}
