package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"scenario-quiz-service/internal/domain"
)

// DefinitionLoader fetches quiz definitions from a backing store (embedded content, Postgres).
type DefinitionLoader interface {
	LoadDefinition(ctx context.Context, quizName string) (domain.QuizDefinition, error)
}

// DefinitionRepository caches quiz definitions in Redis and falls back to a loader on cache miss.
// Definitions are stored as JSON: SET quiz:{quizName}:definition {json}
type DefinitionRepository struct {
	client *redis.Client
	loader DefinitionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewDefinitionRepository(client *redis.Client, loader DefinitionLoader, ttl time.Duration) *DefinitionRepository {
	return &DefinitionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *DefinitionRepository) GetDefinition(ctx context.Context, quizName string) (domain.QuizDefinition, error) {
	key := r.definitionKey(quizName)

	if def, ok := r.fromCache(ctx, key); ok {
		return def, nil
	}

	result, err, _ := r.sf.Do(quizName, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if def, ok := r.fromCache(ctx, key); ok {
			return def, nil
		}

		def, err := r.loader.LoadDefinition(ctx, quizName)
		if err != nil {
			return domain.QuizDefinition{}, err
		}
		def = def.WithDefaults()

		if data, err := json.Marshal(def); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return def, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

func (r *DefinitionRepository) fromCache(ctx context.Context, key string) (domain.QuizDefinition, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return domain.QuizDefinition{}, false
	}
	var def domain.QuizDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		// unreadable entries are refilled from the loader
		return domain.QuizDefinition{}, false
	}
	return def, true
}

func (r *DefinitionRepository) definitionKey(quizName string) string {
	return "quiz:" + quizName + ":definition"
}

func (r *DefinitionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
