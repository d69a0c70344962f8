package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizNameRequired is returned when a quiz is constructed without an explicit name.
	ErrQuizNameRequired = errors.New("quiz name required")
	// ErrRenderTargetMissing is a fatal initialization error: the quiz has nowhere to draw.
	ErrRenderTargetMissing = errors.New("render target missing")
	// ErrIdentityMissing means no current user is known and the caller must redirect to login.
	ErrIdentityMissing = errors.New("user identity missing")
	// ErrProgressNotFound is returned when neither the remote store nor the local cache hold progress.
	ErrProgressNotFound = errors.New("no progress found")
	// ErrMalformedSnapshot marks a persisted snapshot that could not be decoded.
	ErrMalformedSnapshot = errors.New("malformed progress snapshot")
	// ErrCacheMiss is returned by local caches for absent keys.
	ErrCacheMiss = errors.New("cache miss")
	// ErrOptionNotFound indicates a submitted option index is out of range.
	ErrOptionNotFound = errors.New("option not found")
	// ErrNotAwaitingAnswer is returned when an answer arrives while no question is displayed.
	ErrNotAwaitingAnswer = errors.New("quiz is not awaiting an answer")
	// ErrNotShowingOutcome is returned when advancing while no outcome is displayed.
	ErrNotShowingOutcome = errors.New("quiz is not showing an outcome")
	// ErrSessionNotFound is returned when a user has no active quiz.
	ErrSessionNotFound = errors.New("quiz session not found")
)
