package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"scenario-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Quiz controllers hold timers and goroutines, so they stay in a local map.
//   - Redis records which quiz each user is playing (quiz:session:{user} -> quiz name)
//     so other instances and operators can see live sessions.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Quiz
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Quiz),
	}
}

func (s *SessionStore) Activate(userID string, quiz *app.Quiz) {
	s.mu.Lock()
	previous, ok := s.sessions[userID]
	s.sessions[userID] = quiz
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(userID), quiz.Name(), s.ttl).Err()
	s.mu.Unlock()

	if ok && previous != quiz {
		previous.Dispose()
	}
}

func (s *SessionStore) Get(userID string) (*app.Quiz, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.sessions[userID]
	return quiz, ok
}

func (s *SessionStore) Release(userID string, quiz *app.Quiz) {
	s.mu.Lock()
	if current, ok := s.sessions[userID]; ok && current == quiz {
		delete(s.sessions, userID)
		_ = s.client.Del(context.Background(), s.key(userID)).Err()
	}
	s.mu.Unlock()
	quiz.Dispose()
}

// ActiveQuiz reports which quiz Redis records for the user.
func (s *SessionStore) ActiveQuiz(ctx context.Context, userID string) (string, bool) {
	name, err := s.client.Get(ctx, s.key(userID)).Result()
	if err != nil {
		return "", false
	}
	return name, true
}

func (s *SessionStore) key(userID string) string {
	return "quiz:session:" + userID
}
