// Package console renders a quiz on a terminal.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"scenario-quiz-service/internal/app"
)

// Renderer writes quiz screens as plain text.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (r *Renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *Renderer) ShowQuestion(v app.QuestionView) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s] Question %d/%d  XP %d/%d (%d%%)\n", strings.ToUpper(string(v.Level)), v.Number, v.Total, v.Experience, v.MaxXP, v.XPPercent)
	fmt.Fprintf(&b, "%s\n", v.Title)
	if v.Description != "" {
		fmt.Fprintf(&b, "%s\n", v.Description)
	}
	for i, opt := range v.Options {
		fmt.Fprintf(&b, "  %d) %s\n", i+1, opt)
	}
	if v.TimerSeconds > 0 {
		fmt.Fprintf(&b, "You have %d seconds.\n", v.TimerSeconds)
	}
	if v.GuideURL != "" {
		fmt.Fprintf(&b, "Guide: %s\n", v.GuideURL)
	}
	b.WriteString("> ")
	r.printf("%s", b.String())
}

func (r *Renderer) ShowOutcome(v app.OutcomeView) {
	verdict := "Not quite."
	switch {
	case v.TimedOut:
		verdict = "Time's up!"
	case v.Correct:
		verdict = "Correct!"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s\n", verdict, v.Outcome)
	fmt.Fprintf(&b, "XP %+d, now %d (%d%%). Answered %d/%d.\n", v.Awarded, v.Experience, v.XPPercent, v.Answered, v.Total)
	if v.Tool != "" && !v.TimedOut {
		fmt.Fprintf(&b, "Tool unlocked: %s\n", v.Tool)
	}
	b.WriteString("Press Enter to continue, r to restart, e to give up, q to leave and resume later.\n")
	r.printf("%s", b.String())
}

func (r *Renderer) ShowSummary(v app.SummaryView) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== %s: %s ===\n", v.QuizName, strings.ToUpper(string(v.Status)))
	fmt.Fprintf(&b, "Score %d%% (pass mark %d%%), %d questions answered, %d XP.\n",
		v.ScorePercentage, v.PassPercentage, v.QuestionsAnswered, v.Experience)
	if len(v.Tools) > 0 {
		fmt.Fprintf(&b, "Tools: %s\n", strings.Join(v.Tools, ", "))
	}
	b.WriteString("Type r to restart or q to quit.\n")
	r.printf("%s", b.String())
}

// ShowTimer prints only the last few seconds to keep the terminal readable.
func (r *Renderer) ShowTimer(left int) {
	if left == 10 || (left <= 3 && left > 0) {
		r.printf("\n%ds left\n> ", left)
	}
}

func (r *Renderer) ShowNotice(msg string) {
	r.printf("\n! %s\n", msg)
}

func (r *Renderer) RedirectToLogin() {
	r.printf("Please sign in first: pass --user or set QUIZ_USER.\n")
}
