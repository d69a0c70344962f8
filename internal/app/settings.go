package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"scenario-quiz-service/internal/domain"
)

const settingsCacheKey = "quiz_timer_settings"

// SettingsLoader merges timer and guide settings from the cache and the remote API.
type SettingsLoader struct {
	remote   SettingsAPI
	cache    LocalCache
	defaults domain.Settings
	ttl      time.Duration
	disabled bool
	namer    QuizNamer
	logger   *slog.Logger
	clock    func() time.Time
	sf       singleflight.Group
}

// SettingsLoaderConfig configures a SettingsLoader.
type SettingsLoaderConfig struct {
	Defaults      domain.Settings
	TTL           time.Duration
	TimerDisabled bool
	Namer         QuizNamer
	Logger        *slog.Logger
	Clock         func() time.Time
}

func NewSettingsLoader(remote SettingsAPI, cache LocalCache, cfg SettingsLoaderConfig) *SettingsLoader {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Namer.aliases == nil {
		cfg.Namer = NewQuizNamer(nil)
	}
	return &SettingsLoader{
		remote:   remote,
		cache:    cache,
		defaults: cfg.Defaults,
		ttl:      cfg.TTL,
		disabled: cfg.TimerDisabled,
		namer:    cfg.Namer,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
	}
}

// Load returns the merged settings: remote over cache over defaults.
func (l *SettingsLoader) Load(ctx context.Context) domain.Settings {
	cached, fresh := l.cached(ctx)
	if fresh || l.remote == nil {
		return merge(l.defaults, cached)
	}

	// the fetch is shared by every waiter, so one caller's cancellation must not end it
	fetchCtx := context.WithoutCancel(ctx)
	result, _, _ := l.sf.Do(settingsCacheKey, func() (interface{}, error) {
		remote, err := l.remote.GetQuizTimerSettings(fetchCtx)
		if err != nil {
			l.logger.Warn("timer settings fetch failed, using cached values", "error", err)
			return merge(l.defaults, cached), nil
		}
		remote.FetchedAt = l.clock().UTC()
		merged := merge(merge(l.defaults, cached), &remote)
		l.store(fetchCtx, merged)
		return merged, nil
	})
	return result.(domain.Settings)
}

// TimerSeconds returns the countdown for a quiz; 0 means no timer.
func (l *SettingsLoader) TimerSeconds(ctx context.Context, quizName string) int {
	if l.disabled {
		return 0
	}
	s := l.Load(ctx)
	if secs, ok := lookup(s.QuizTimers, l.namer, quizName); ok {
		if secs < 0 {
			return 0
		}
		return secs
	}
	if s.DefaultSeconds < 0 {
		return 0
	}
	return s.DefaultSeconds
}

// GuideURL returns the guide link configured for a quiz, if any.
func (l *SettingsLoader) GuideURL(ctx context.Context, quizName string) string {
	url, _ := lookup(l.Load(ctx).GuideURLs, l.namer, quizName)
	return url
}

// lookup matches keys after canonicalization, since remote tables are not always normalized.
func lookup[V any](m map[string]V, namer QuizNamer, quizName string) (V, bool) {
	want := namer.Normalize(quizName)
	if v, ok := m[want]; ok {
		return v, true
	}
	for k, v := range m {
		if namer.Normalize(k) == want {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func (l *SettingsLoader) cached(ctx context.Context) (*domain.Settings, bool) {
	if l.cache == nil {
		return nil, false
	}
	raw, err := l.cache.Get(ctx, settingsCacheKey)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			l.logger.Warn("timer settings cache read failed", "error", err)
		}
		return nil, false
	}
	var s domain.Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		l.logger.Warn("discarding unreadable timer settings cache", "error", err)
		return nil, false
	}
	fresh := l.ttl > 0 && !s.FetchedAt.IsZero() && l.clock().Sub(s.FetchedAt) < l.ttl
	return &s, fresh
}

func (l *SettingsLoader) store(ctx context.Context, s domain.Settings) {
	if l.cache == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := l.cache.Set(ctx, settingsCacheKey, string(data)); err != nil {
		l.logger.Warn("timer settings cache write failed", "error", err)
	}
}

func merge(base domain.Settings, over *domain.Settings) domain.Settings {
	out := domain.Settings{
		DefaultSeconds: base.DefaultSeconds,
		QuizTimers:     make(map[string]int, len(base.QuizTimers)),
		GuideURLs:      make(map[string]string, len(base.GuideURLs)),
		FetchedAt:      base.FetchedAt,
	}
	for k, v := range base.QuizTimers {
		out.QuizTimers[k] = v
	}
	for k, v := range base.GuideURLs {
		out.GuideURLs[k] = v
	}
	if over == nil {
		return out
	}
	if over.DefaultSeconds != 0 || over.QuizTimers != nil {
		out.DefaultSeconds = over.DefaultSeconds
	}
	for k, v := range over.QuizTimers {
		out.QuizTimers[k] = v
	}
	for k, v := range over.GuideURLs {
		out.GuideURLs[k] = v
	}
	if !over.FetchedAt.IsZero() {
		out.FetchedAt = over.FetchedAt
	}
	return out
}
