package memory

import (
	"sync"

	"scenario-quiz-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Quiz
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Quiz),
	}
}

func (s *SessionStore) Activate(userID string, quiz *app.Quiz) {
	s.mu.Lock()
	previous, ok := s.sessions[userID]
	s.sessions[userID] = quiz
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
	}
	s.mu.Unlock()
	quiz.Dispose()
}
