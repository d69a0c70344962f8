package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"scenario-quiz-service/internal/domain"
)

// DefinitionLoader fetches quiz definitions from a backing store (embedded content, Postgres).
type DefinitionLoader interface {
	LoadDefinition(ctx context.Context, quizName string) (domain.QuizDefinition, error)
}

// DefinitionRepository caches definitions with TTL to avoid repeated loads.
type DefinitionRepository struct {
	loader DefinitionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedDefinition
}

type cachedDefinition struct {
	def       domain.QuizDefinition
	expiresAt time.Time
}

func NewDefinitionRepository(loader DefinitionLoader, ttl time.Duration) *DefinitionRepository {
	return &DefinitionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDefinition),
	}
}

func (r *DefinitionRepository) GetDefinition(ctx context.Context, quizName string) (domain.QuizDefinition, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizName]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.def, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizName, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizName]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.def, nil
		}
		r.mu.RUnlock()

		def, err := r.loader.LoadDefinition(ctx, quizName)
		if err != nil {
			return domain.QuizDefinition{}, err
		}
		def = def.WithDefaults()
		expiresAt := now.Add(r.ttlWithJitter())

		r.mu.Lock()
		r.cache[quizName] = cachedDefinition{
			def:       def,
			expiresAt: expiresAt,
		}
		r.mu.Unlock()
		return def, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

func (r *DefinitionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticDefinitionLoader is a loader backed by an in-memory map (useful for tests/demos).
type StaticDefinitionLoader struct {
	defs map[string]domain.QuizDefinition
}

func NewStaticDefinitionLoader(defs map[string]domain.QuizDefinition) *StaticDefinitionLoader {
	return &StaticDefinitionLoader{defs: defs}
}

func (l *StaticDefinitionLoader) LoadDefinition(_ context.Context, quizName string) (domain.QuizDefinition, error) {
	if def, ok := l.defs[quizName]; ok {
		return def, nil
	}
	return domain.QuizDefinition{}, domain.ErrQuizNotFound
}

// ListQuizzes returns the loaded quizzes ordered by name.
func (l *StaticDefinitionLoader) ListQuizzes(_ context.Context) ([]domain.QuizSummary, error) {
	out := make([]domain.QuizSummary, 0, len(l.defs))
	for _, def := range l.defs {
		def = def.WithDefaults()
		out = append(out, domain.QuizSummary{Name: def.Name, Title: def.Title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
