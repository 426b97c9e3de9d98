package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	appI18n "github.com/quizmaster/quizmaster/internal/i18n"
	"github.com/quizmaster/quizmaster/internal/model"
)

func renderPage(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

const hostile = `<script>alert("x")</script>`

func takeFixture() (model.Quiz, []model.Question, model.Submission) {
	minutes := 30
	quiz := model.Quiz{ID: 1, Title: "Go " + hostile, Code: "ABC123", DurationMinutes: &minutes}
	questions := []model.Question{
		{ID: 11, Text: "Pick " + hostile, Marks: 2, Body: model.MCQ{
			Options:      []string{"one", "two", "three", "four"},
			CorrectLabel: "C",
		}},
		{ID: 12, Text: "Explain goroutines", Marks: 5, Body: model.Subjective{ModelAnswer: "SECRET_MODEL_ANSWER"}},
		{ID: 13, Text: "Echo input", Marks: 3, Body: model.Coding{
			AllowedLanguages: []string{"python"},
			StarterCode:      map[string]string{"python": "print(input())"},
			TestCases: []model.TestCase{
				{Input: "visible-in", ExpectedOutput: "visible-in"},
				{Input: "HIDDEN_INPUT", ExpectedOutput: "HIDDEN_INPUT", IsHidden: true},
			},
		}},
	}
	sub := model.Submission{ID: 7, QuizID: 1, StartedAt: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)}
	return quiz, questions, sub
}

func TestTakePageEscapesAndHidesAnswers(t *testing.T) {
	ctx := model.ContextWithCSRFToken(context.Background(), "tok123")
	ctx = model.ContextWithBasePath(ctx, "/app")
	quiz, questions, sub := takeFixture()

	page := renderPage(t, ctx, TakePage(quiz, questions, sub))

	if strings.Contains(page, hostile) {
		t.Error("question text rendered unescaped")
	}
	for _, want := range []string{
		"&lt;script&gt;",
		`name="csrf_token" value="tok123"`,
		`action="/app/quiz/submit/ABC123"`,
		`data-base="/app"`,
		`name="q_11" value="C. three"`,
		`name="code_13"`,
		`name="language_13"`,
		"visible-in",
		`id="run_13"`,
		`id="timer"`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("take page missing %q", want)
		}
	}
	for _, leak := range []string{"SECRET_MODEL_ANSWER", "HIDDEN_INPUT", "correct_label"} {
		if strings.Contains(page, leak) {
			t.Errorf("take page leaks %q", leak)
		}
	}
}

func TestTakePageUntimedHasNoTimer(t *testing.T) {
	quiz, questions, sub := takeFixture()
	quiz.DurationMinutes = nil

	page := renderPage(t, context.Background(), TakePage(quiz, questions, sub))

	if strings.Contains(page, `id="timer"`) {
		t.Error("untimed quiz rendered a timer")
	}
	if !strings.Contains(page, `data-deadline="0"`) {
		t.Error("untimed quiz should carry a zero deadline")
	}
}

func TestResultPageEscapesAnswers(t *testing.T) {
	correct, wrong := true, false
	aiScore := 0.8
	view := model.SubmissionView{
		Quiz:       model.Quiz{Title: "Results quiz", Code: "ABC123"},
		Submission: model.Submission{Completed: true, Score: 4, Total: 10, Percentage: 40, AnsweredCount: 3, QuestionCount: 4},
		Results: []model.QuestionResult{
			{
				Question: model.Question{ID: 1, Text: "Pick one", Marks: 2, Body: model.MCQ{Options: []string{"a", "b", "c", "d"}, CorrectLabel: "B"}},
				Answer:   &model.Answer{UserAnswer: "A. a", IsCorrect: &wrong},
			},
			{
				Question: model.Question{ID: 2, Text: "Explain", Marks: 5, Body: model.Subjective{ModelAnswer: "model text"}},
				Answer:   &model.Answer{UserAnswer: hostile, AIScore: &aiScore, ScoredMarks: 4, IsCorrect: &correct},
			},
			{
				Question: model.Question{ID: 3, Text: "Code it", Marks: 3, Body: model.Coding{AllowedLanguages: []string{"go"}}},
				Answer: &model.Answer{CodeLanguage: "go", UserAnswer: "package main", TestResults: []model.TestCaseResult{
					{Input: "1", ExpectedOutput: "1", ActualOutput: "1", IsCorrect: true},
					{Input: "SECRET_CASE", ExpectedOutput: "x", ActualOutput: "y", IsHidden: true},
				}, PassedTestCases: 1, TotalTestCases: 2},
			},
			{Question: model.Question{ID: 4, Text: "Skipped", Marks: 1, Body: model.Subjective{}}},
		},
	}

	page := renderPage(t, context.Background(), ResultPage(view))

	if strings.Contains(page, hostile) {
		t.Error("student answer rendered unescaped")
	}
	for _, want := range []string{
		"&lt;script&gt;",
		"B. b",
		"model text",
		"80%",
		"package main",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("result page missing %q", want)
		}
	}
	if strings.Contains(page, "SECRET_CASE") {
		t.Error("hidden test case input shown on result page")
	}
}

func TestLayoutRendersFlashAndUserNav(t *testing.T) {
	ctx := model.ContextWithUser(context.Background(), &model.User{ID: 1, Username: "stu", DisplayName: "Stu <b>", Role: model.UserRoleStudent})
	ctx = WithFlash(ctx, Flash{Kind: FlashError, Message: "Bad <thing>"})

	page := renderPage(t, ctx, JoinPage(""))

	for _, want := range []string{
		`class="alert alert-error"`,
		"Bad &lt;thing&gt;",
		"Stu &lt;b&gt;",
		`href="/quiz/join"`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, `href="/admin/users"`) {
		t.Error("student sees the admin link")
	}
}

func TestOptionValue(t *testing.T) {
	tests := []struct {
		i      int
		option string
		want   string
	}{
		{0, "one", "A. one"},
		{1, "B. two", "B. two"},
		{3, "D.four", "D. D.four"},
		{4, "extra", "extra"},
	}
	for _, tt := range tests {
		if got := optionValue(tt.i, tt.option); got != tt.want {
			t.Errorf("optionValue(%d, %q) = %q, want %q", tt.i, tt.option, got, tt.want)
		}
	}
}
