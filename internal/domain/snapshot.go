package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// legacySnapshot accepts the field spellings older clients wrote.
type legacySnapshot struct {
	ProgressSnapshot
	Score   *int           `json:"score"`
	XP      *int           `json:"xp"`
	History []HistoryEntry `json:"history"`
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// DecodeSnapshot parses a persisted snapshot, unwrapping a {success,data} envelope and
// mapping legacy field names. The result is normalized.
func DecodeSnapshot(raw []byte, questionsPerTier int) (ProgressSnapshot, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ProgressSnapshot{}, ErrMalformedSnapshot
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ProgressSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if env.Success != nil {
		if !*env.Success || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
			return ProgressSnapshot{}, ErrProgressNotFound
		}
		raw = env.Data
	}

	var legacy legacySnapshot
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return ProgressSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	snap := legacy.ProgressSnapshot
	if snap.QuestionHistory == nil && legacy.History != nil {
		snap.QuestionHistory = legacy.History
	}
	if snap.ScorePercentage == 0 && legacy.Score != nil {
		snap.ScorePercentage = *legacy.Score
	}
	if snap.Experience == 0 && legacy.XP != nil {
		snap.Experience = *legacy.XP
	}
	return snap.Normalize(questionsPerTier), nil
}

// Normalize fills defaults for fields older or partial payloads omit.
func (s ProgressSnapshot) Normalize(questionsPerTier int) ProgressSnapshot {
	if s.Tools == nil {
		s.Tools = []string{}
	}
	if s.QuestionHistory == nil {
		s.QuestionHistory = []HistoryEntry{}
	}
	s.Status = ParseStatus(string(s.Status))
	if s.QuestionsAnswered == 0 {
		s.QuestionsAnswered = len(s.QuestionHistory)
	}
	if s.Experience < 0 {
		s.Experience = 0
	}
	if questionsPerTier <= 0 {
		questionsPerTier = DefaultQuestionsPerTier
	}
	s.CurrentScenario = len(s.QuestionHistory) % questionsPerTier
	return s
}
