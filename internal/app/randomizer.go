package app

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"scenario-quiz-service/internal/domain"
)

// ScenarioRandomizer picks a stable per-session subset of each tier's pool.
// Sets are keyed by quiz name and level so quizzes sharing a session never see each other's picks.
type ScenarioRandomizer struct {
	max int

	mu   sync.Mutex
	rnd  *rand.Rand
	sets map[string][]domain.Scenario
}

func NewScenarioRandomizer(maxPerLevel int) *ScenarioRandomizer {
	return NewScenarioRandomizerWithSource(maxPerLevel, rand.NewSource(time.Now().UnixNano()))
}

// NewScenarioRandomizerWithSource allows deterministic draws in tests.
func NewScenarioRandomizerWithSource(maxPerLevel int, src rand.Source) *ScenarioRandomizer {
	if maxPerLevel <= 0 {
		maxPerLevel = domain.DefaultMaxScenariosPerLevel
	}
	return &ScenarioRandomizer{
		max:  maxPerLevel,
		rnd:  rand.New(src),
		sets: make(map[string][]domain.Scenario),
	}
}

// SetKey names the cached set for a quiz tier.
func SetKey(quizName string, level domain.Level) string {
	return quizName + "_" + string(level)
}

// Scenarios returns the session's set for the quiz tier, drawing it on first access.
func (r *ScenarioRandomizer) Scenarios(quizName string, level domain.Level, pool []domain.Scenario) []domain.Scenario {
	return r.ScenariosLimit(quizName, level, pool, r.max)
}

// ScenariosLimit is Scenarios with a per-quiz cap.
func (r *ScenarioRandomizer) ScenariosLimit(quizName string, level domain.Level, pool []domain.Scenario, limit int) []domain.Scenario {
	if limit <= 0 {
		limit = r.max
	}
	key := SetKey(quizName, level)

	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.sets[key]; ok {
		return set
	}

	var set []domain.Scenario
	switch {
	case len(pool) == 0:
		set = []domain.Scenario{}
	case len(pool) <= limit:
		set = append([]domain.Scenario(nil), pool...)
	default:
		remaining := append([]domain.Scenario(nil), pool...)
		set = make([]domain.Scenario, 0, limit)
		for len(set) < limit {
			i := r.rnd.Intn(len(remaining))
			set = append(set, remaining[i])
			remaining = append(remaining[:i], remaining[i+1:]...)
		}
	}
	r.sets[key] = set
	return set
}

// Reset drops every cached set for the quiz.
func (r *ScenarioRandomizer) Reset(quizName string) {
	prefix := quizName + "_"
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.sets {
		if strings.HasPrefix(key, prefix) && isLevelSuffix(key[len(prefix):]) {
			delete(r.sets, key)
		}
	}
}

// Export copies the quiz's cached sets for persistence.
func (r *ScenarioRandomizer) Export(quizName string) map[string][]domain.Scenario {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]domain.Scenario)
	for _, level := range domain.Levels {
		if set, ok := r.sets[SetKey(quizName, level)]; ok {
			out[SetKey(quizName, level)] = append([]domain.Scenario(nil), set...)
		}
	}
	return out
}

// Restore seeds the quiz's sets from a persisted snapshot. Keys for other quizzes are ignored.
func (r *ScenarioRandomizer) Restore(quizName string, sets map[string][]domain.Scenario) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, level := range domain.Levels {
		key := SetKey(quizName, level)
		if set, ok := sets[key]; ok && len(set) > 0 {
			r.sets[key] = append([]domain.Scenario(nil), set...)
		}
	}
}

func isLevelSuffix(s string) bool {
	for _, level := range domain.Levels {
		if s == string(level) {
			return true
		}
	}
	return false
}
