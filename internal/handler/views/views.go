// Package views holds the HTML pages. Pages are templ components; the
// *_templ.go files are generated from the .templ sources with `templ generate`.
package views

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/quizmaster/quizmaster/internal/model"
)

//go:generate templ generate

// FlashKind selects the styling of a flash message.
type FlashKind string

const (
	FlashInfo    FlashKind = "info"
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot message carried across a redirect.
type Flash struct {
	Kind    FlashKind
	Message string
}

type flashCtxKey struct{}

// WithFlash stores a flash message for the page being rendered.
func WithFlash(ctx context.Context, f Flash) context.Context {
	return context.WithValue(ctx, flashCtxKey{}, f)
}

func flashFromContext(ctx context.Context) (Flash, bool) {
	f, ok := ctx.Value(flashCtxKey{}).(Flash)
	return f, ok
}

// SignupForm keeps the non-secret signup fields for re-display.
type SignupForm struct {
	Username string
	Email    string
	Role     string
}

// QuizForm holds the quiz creation form across generate and create round trips.
type QuizForm struct {
	Title           string
	Difficulty      string
	DurationMinutes string
	QuestionsJSON   string
	Generate        GenerateForm
}

// GenerateForm holds the question generation inputs.
type GenerateForm struct {
	Topic string
	Type  string
	Count int
	Marks int
}

// link prefixes an application path with the base path from ctx.
func link(ctx context.Context, p string) templ.SafeURL {
	return templ.URL(pathFor(ctx, p))
}

func pathFor(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func formatTime(tm time.Time) string { return tm.Local().Format("2006-01-02 15:04") }

func formatTimePtr(tm *time.Time) string {
	if tm == nil {
		return "-"
	}
	return formatTime(*tm)
}

func scoreText(s model.Submission) string {
	return fmt.Sprintf("%.1f / %.0f (%.0f%%)", s.Score, s.Total, s.Percentage)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var optionLabels = []string{"A", "B", "C", "D"}

// optionValue makes sure an option is submitted as "<label>. <text>".
func optionValue(i int, option string) string {
	if i >= len(optionLabels) {
		return option
	}
	label := optionLabels[i]
	if strings.HasPrefix(option, label+". ") {
		return option
	}
	return label + ". " + option
}

// correctOption returns the full text of the correct MCQ option.
func correctOption(b model.MCQ) string {
	for i, opt := range b.Options {
		if i < len(optionLabels) && optionLabels[i] == b.CorrectLabel {
			return optionValue(i, opt)
		}
	}
	return ""
}

// deadline is the quiz end in Unix milliseconds, or 0 for untimed quizzes.
func deadline(quiz model.Quiz, sub model.Submission) int64 {
	if quiz.DurationMinutes == nil {
		return 0
	}
	return sub.StartedAt.Add(time.Duration(*quiz.DurationMinutes) * time.Minute).UnixMilli()
}

// visibleTests encodes the test cases a student may run from the page.
func visibleTests(b model.Coding) string {
	data, err := json.Marshal(b.VisibleTestCases())
	if err != nil {
		return "[]"
	}
	return string(data)
}

func starterCode(b model.Coding) string {
	if len(b.AllowedLanguages) == 0 {
		return ""
	}
	return b.StarterCode[b.AllowedLanguages[0]]
}

// answerOf returns the stored answer, or a blank one for unanswered questions.
func answerOf(r model.QuestionResult) model.Answer {
	if r.Answer == nil {
		return model.Answer{}
	}
	return *r.Answer
}

func percent(v float64) string { return fmt.Sprintf("%.0f%%", v*100) }
