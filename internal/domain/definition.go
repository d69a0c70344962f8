package domain

import (
	"fmt"
	"sort"
)

const (
	DefaultPassPercentage       = 70
	DefaultQuestionsPerTier     = 5
	DefaultMaxScenariosPerLevel = 5
)

// QuizDefinition is a topic quiz expressed as data: its scenario banks and scoring rules.
type QuizDefinition struct {
	Name                 string `json:"name" yaml:"name"`
	Title                string `json:"title" yaml:"title"`
	MaxXP                int    `json:"maxXp" yaml:"max_xp"`
	PassPercentage       int    `json:"passPercentage" yaml:"pass_percentage"`
	QuestionsPerTier     int    `json:"questionsPerTier" yaml:"questions_per_tier"`
	MaxScenariosPerLevel int    `json:"maxScenariosPerLevel" yaml:"max_scenarios_per_level"`
	// TierThresholds is the minimum cumulative experience needed to enter a tier.
	TierThresholds map[Level]int        `json:"tierThresholds,omitempty" yaml:"tier_thresholds,omitempty"`
	Scenarios      map[Level][]Scenario `json:"scenarios" yaml:"scenarios"`
}

// WithDefaults fills zero-valued rules and stamps each scenario with its tier.
func (d QuizDefinition) WithDefaults() QuizDefinition {
	if d.PassPercentage <= 0 {
		d.PassPercentage = DefaultPassPercentage
	}
	if d.QuestionsPerTier <= 0 {
		d.QuestionsPerTier = DefaultQuestionsPerTier
	}
	if d.MaxScenariosPerLevel <= 0 {
		d.MaxScenariosPerLevel = DefaultMaxScenariosPerLevel
	}
	if d.Title == "" {
		d.Title = d.Name
	}
	if len(d.Scenarios) > 0 {
		stamped := make(map[Level][]Scenario, len(d.Scenarios))
		for level, pool := range d.Scenarios {
			out := make([]Scenario, len(pool))
			for i, s := range pool {
				s.Level = level
				out[i] = s
			}
			stamped[level] = out
		}
		d.Scenarios = stamped
	}
	if d.MaxXP <= 0 {
		d.MaxXP = d.attainableXP()
	}
	return d
}

// TotalQuestions is the number of answers that completes the quiz.
func (d QuizDefinition) TotalQuestions() int {
	per := d.QuestionsPerTier
	if per <= 0 {
		per = DefaultQuestionsPerTier
	}
	return per * len(Levels)
}

// Validate checks the definition is playable.
func (d QuizDefinition) Validate() error {
	if d.Name == "" {
		return ErrQuizNameRequired
	}
	for level, pool := range d.Scenarios {
		for _, s := range pool {
			if len(s.Options) == 0 {
				return fmt.Errorf("quiz %s: %s scenario %d has no options", d.Name, level, s.ID)
			}
		}
	}
	return nil
}

// attainableXP sums the best option of the highest-value scenarios a player can see per tier.
func (d QuizDefinition) attainableXP() int {
	total := 0
	for _, level := range Levels {
		pool := d.Scenarios[level]
		best := make([]int, 0, len(pool))
		for _, s := range pool {
			best = append(best, s.MaxExperience())
		}
		sort.Sort(sort.Reverse(sort.IntSlice(best)))
		limit := d.QuestionsPerTier
		if limit <= 0 || limit > len(best) {
			limit = len(best)
		}
		for _, xp := range best[:limit] {
			if xp > 0 {
				total += xp
			}
		}
	}
	return total
}
