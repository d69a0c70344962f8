package app

import (
	"math"

	"scenario-quiz-service/internal/domain"
)

// ScoreRules are the per-quiz inputs to status computation.
type ScoreRules struct {
	TotalQuestions int
	PassPercentage int
}

// RulesFor derives score rules from a definition.
func RulesFor(def domain.QuizDefinition) ScoreRules {
	return ScoreRules{TotalQuestions: def.TotalQuestions(), PassPercentage: def.PassPercentage}
}

// EntryCorrect honors both the correctness flag and the max-experience rule.
func EntryCorrect(entry domain.HistoryEntry) bool {
	if entry.TimedOut {
		return false
	}
	if entry.IsCorrect || entry.SelectedAnswer.Correct {
		return true
	}
	return len(entry.Scenario.Options) > 0 && entry.SelectedAnswer.Experience == entry.Scenario.MaxExperience()
}

// ScorePercentage is the correct-answer ratio over the answered questions, 0..100.
func ScorePercentage(history []domain.HistoryEntry, totalQuestions int) int {
	answered := len(history)
	if totalQuestions > 0 && answered > totalQuestions {
		answered = totalQuestions
	}
	if answered == 0 {
		return 0
	}
	correct := 0
	for _, entry := range history[:answered] {
		if EntryCorrect(entry) {
			correct++
		}
	}
	return int(math.Round(float64(correct) / float64(answered) * 100))
}

// XPPercentage is the live progress display; it never decides pass/fail.
func XPPercentage(experience, maxXP int) int {
	if maxXP <= 0 || experience <= 0 {
		return 0
	}
	pct := int(math.Round(float64(experience) / float64(maxXP) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// Passed reports whether a score meets the pass threshold.
func Passed(score, passPercentage int) bool {
	return score >= passPercentage
}

// StatusFor computes the attempt status from the answered history.
func StatusFor(history []domain.HistoryEntry, rules ScoreRules) domain.Status {
	if len(history) < rules.TotalQuestions {
		return domain.StatusInProgress
	}
	if Passed(ScorePercentage(history, rules.TotalQuestions), rules.PassPercentage) {
		return domain.StatusPassed
	}
	return domain.StatusFailed
}

// ClampExperience keeps experience within [0, maxXP].
func ClampExperience(xp, maxXP int) int {
	if xp < 0 {
		return 0
	}
	if maxXP > 0 && xp > maxXP {
		return maxXP
	}
	return xp
}
