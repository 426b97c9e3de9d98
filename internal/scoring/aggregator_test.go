package scoring

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/quizmaster/quizmaster/internal/model"
	"github.com/quizmaster/quizmaster/internal/store"
)

type fixture struct {
	store   *store.Store
	agg     *Aggregator
	grader  *fakeGrader
	runner  *fakeRunner
	now     time.Time
	teacher int64
	student int64
	quiz    model.Quiz
	qs      []model.Question
}

// newFixture builds a quiz with one 10-mark question of each type.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureAt(t, ":memory:")
}

func newFixtureAt(t *testing.T, dsn string) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store:  st,
		grader: &fakeGrader{score: 0.5},
		runner: &fakeRunner{passed: 1},
		now:    time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}
	f.agg = NewAggregator(st, NewScorer(f.grader, f.runner), WithClock(func() time.Time { return f.now }))

	for _, u := range []struct {
		name string
		role model.UserRole
		id   *int64
	}{
		{"teacher", model.UserRoleTeacher, &f.teacher},
		{"student", model.UserRoleStudent, &f.student},
	} {
		id, err := st.CreateUser(ctx, model.User{Username: u.name, Email: u.name + "@example.com", PasswordHash: "x", Role: u.role, Active: true})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		*u.id = id
	}

	questions := []model.Question{
		{Text: "Pick", Marks: 10, Body: model.MCQ{Options: []string{"A. yes", "B. no", "C. maybe", "D. never"}, CorrectLabel: "A"}},
		{Text: "Explain", Marks: 10, Body: model.Subjective{ModelAnswer: "because"}},
		{Text: "Code", Marks: 10, Body: model.Coding{TestCases: []model.TestCase{
			{Input: "1", ExpectedOutput: "1"},
			{Input: "2", ExpectedOutput: "2", IsHidden: true},
		}}.WithDefaults()},
	}
	f.quiz, err = st.CreateQuiz(ctx, model.Quiz{Title: "Mixed", CreatedBy: f.teacher}, questions)
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	f.qs, err = st.ListQuestions(ctx, f.quiz.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	return f
}

func (f *fixture) fullResponses() Responses {
	return Responses{
		AnswerKey(f.qs[0].ID):   "A. yes",
		AnswerKey(f.qs[1].ID):   "an explanation",
		CodeKey(f.qs[2].ID):     "print(input())",
		LanguageKey(f.qs[2].ID): "python",
	}
}

func TestSubmitAggregatesMixedQuiz(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, _, err := f.agg.Start(ctx, f.quiz.Code, f.student); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sub, err := f.agg.Submit(ctx, f.quiz.Code, f.student, f.fullResponses(), false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if sub.Total != 30 || sub.Score != 20 {
		t.Errorf("expected 20/30, got %v/%v", sub.Score, sub.Total)
	}
	if math.Abs(sub.Percentage-200.0/3) > 1e-9 {
		t.Errorf("expected ~66.7%%, got %v", sub.Percentage)
	}
	if !sub.Passed || !sub.Completed {
		t.Errorf("expected passed and completed, got %+v", sub)
	}
	if sub.AnsweredCount != 3 || sub.QuestionCount != 3 || !sub.FullCompletion {
		t.Errorf("unexpected completion fields: %+v", sub)
	}
	if !sub.ReviewUnlockedAt.Equal(f.now.Add(ReviewDelay)) {
		t.Errorf("expected unlock at %v, got %v", f.now.Add(ReviewDelay), sub.ReviewUnlockedAt)
	}

	stored, err := f.store.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if stored.Score != 20 || !stored.Completed {
		t.Errorf("stored submission differs: %+v", stored)
	}
	answers, err := f.store.ListAnswers(ctx, sub.ID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(answers))
	}
	coding := answers[2]
	if coding.PassedTestCases != 1 || coding.TotalTestCases != 2 || coding.CodeLanguage != "python" {
		t.Errorf("unexpected coding answer: %+v", coding)
	}
}

// execSQL runs statements against the fixture database on a separate connection.
func execSQL(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer db.Close()
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

func TestSubmitRollsBackOnPersistFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.db")
	f := newFixtureAt(t, path)
	ctx := context.Background()

	if _, _, _, err := f.agg.Start(ctx, f.quiz.Code, f.student); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Answers are written first, so the failure lands after they are inserted.
	execSQL(t, path, `CREATE TRIGGER fail_complete BEFORE UPDATE OF completed ON submissions
		WHEN NEW.completed = 1 BEGIN SELECT RAISE(ABORT, 'disk full'); END`)

	_, err := f.agg.Submit(ctx, f.quiz.Code, f.student, f.fullResponses(), false)
	if err == nil || errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected a save error, got %v", err)
	}

	sub, err := f.store.FindSubmission(ctx, f.quiz.ID, f.student)
	if err != nil || sub == nil {
		t.Fatalf("FindSubmission: %v %v", sub, err)
	}
	if sub.Completed || sub.SubmittedAt != nil || sub.Score != 0 {
		t.Errorf("failed submit left the submission changed: %+v", sub)
	}
	answers, err := f.store.ListAnswers(ctx, sub.ID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 0 {
		t.Errorf("expected answers rolled back, got %d", len(answers))
	}

	// Once storage recovers the student can still submit.
	execSQL(t, path, `DROP TRIGGER fail_complete`)
	got, err := f.agg.Submit(ctx, f.quiz.Code, f.student, f.fullResponses(), false)
	if err != nil {
		t.Fatalf("Submit after recovery: %v", err)
	}
	if !got.Completed || got.ID != sub.ID {
		t.Errorf("unexpected submission after recovery: %+v", got)
	}
	if answers, _ := f.store.ListAnswers(ctx, sub.ID); len(answers) != 3 {
		t.Errorf("expected 3 answers after recovery, got %d", len(answers))
	}
}

func TestSubmitWithoutStart(t *testing.T) {
	f := newFixture(t)
	sub, err := f.agg.Submit(context.Background(), f.quiz.Code, f.student, Responses{}, false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Score != 0 || sub.Passed || sub.AnsweredCount != 0 || sub.FullCompletion {
		t.Errorf("unexpected empty submission: %+v", sub)
	}
}

func TestSubmitFullscreenExitBlocksFullCompletion(t *testing.T) {
	f := newFixture(t)
	sub, err := f.agg.Submit(context.Background(), f.quiz.Code, f.student, f.fullResponses(), true)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !sub.FullscreenExit || sub.FullCompletion {
		t.Errorf("expected fullscreen exit without full completion, got %+v", sub)
	}
}

func TestSubmitOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.agg.Submit(ctx, f.quiz.Code, f.student, f.fullResponses(), false)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	gradesBefore, runsBefore := f.grader.calls, f.runner.calls

	_, err = f.agg.Submit(ctx, f.quiz.Code, f.student, Responses{AnswerKey(f.qs[0].ID): "B. no"}, false)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if f.grader.calls != gradesBefore || f.runner.calls != runsBefore {
		t.Error("expected no scoring for a rejected attempt")
	}

	_, err = f.agg.AutoSubmit(ctx, f.quiz.Code, f.student, Responses{})
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("expected ErrAlreadyCompleted from AutoSubmit, got %v", err)
	}
	if _, _, _, err := f.agg.Start(ctx, f.quiz.Code, f.student); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("expected ErrAlreadyCompleted from Start, got %v", err)
	}

	stored, _ := f.store.GetSubmission(ctx, first.ID)
	if stored.Score != first.Score {
		t.Errorf("score changed from %v to %v", first.Score, stored.Score)
	}
	answers, _ := f.store.ListAnswers(ctx, first.ID)
	if answers[0].UserAnswer != "A. yes" {
		t.Errorf("answer overwritten: %q", answers[0].UserAnswer)
	}
}

func TestSubmitUnknownQuiz(t *testing.T) {
	f := newFixture(t)
	if _, err := f.agg.Submit(context.Background(), "NOPE00", f.student, Responses{}, false); !errors.Is(err, ErrQuizNotFound) {
		t.Errorf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestAutoSubmitSkipsCoding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Answers saved earlier are replaced by the auto-submitted ones.
	_, _, sub, err := f.agg.Start(ctx, f.quiz.Code, f.student)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.store.UpsertAnswer(ctx, model.Answer{SubmissionID: sub.ID, QuestionID: f.qs[0].ID, UserAnswer: "B. no"}); err != nil {
		t.Fatalf("UpsertAnswer: %v", err)
	}

	got, err := f.agg.AutoSubmit(ctx, f.quiz.Code, f.student, Responses{
		AnswerKey(f.qs[0].ID): "A. yes",
		AnswerKey(f.qs[1].ID): "partial",
		AnswerKey(f.qs[2].ID): "print(1)",
	})
	if err != nil {
		t.Fatalf("AutoSubmit: %v", err)
	}
	if got.ID != sub.ID {
		t.Errorf("expected the in-progress submission to be completed, got %d want %d", got.ID, sub.ID)
	}
	if f.runner.calls != 0 {
		t.Errorf("expected no code execution, got %d runs", f.runner.calls)
	}
	if got.Total != 30 || got.Score != 15 {
		t.Errorf("expected 15/30, got %v/%v", got.Score, got.Total)
	}
	if got.Passed || !got.FullscreenExit || got.FullCompletion {
		t.Errorf("unexpected flags: %+v", got)
	}

	answers, _ := f.store.ListAnswers(ctx, sub.ID)
	if len(answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(answers))
	}
	byQ := map[int64]model.Answer{}
	for _, a := range answers {
		byQ[a.QuestionID] = a
	}
	if byQ[f.qs[0].ID].UserAnswer != "A. yes" || !byQ[f.qs[0].ID].Correct() {
		t.Errorf("mcq answer not upserted: %+v", byQ[f.qs[0].ID])
	}
	coding := byQ[f.qs[2].ID]
	if coding.IsCorrect != nil || coding.ScoredMarks != 0 || coding.UserAnswer != "print(1)" {
		t.Errorf("coding answer should be recorded unscored: %+v", coding)
	}
}

func TestResultReviewDelay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.agg.Submit(ctx, f.quiz.Code, f.student, f.fullResponses(), false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := f.agg.Result(ctx, sub.ID, f.student); !errors.Is(err, ErrReviewLocked) {
		t.Fatalf("expected ErrReviewLocked right after submit, got %v", err)
	}
	f.now = f.now.Add(ReviewDelay - time.Second)
	if _, err := f.agg.Result(ctx, sub.ID, f.student); !errors.Is(err, ErrReviewLocked) {
		t.Fatalf("expected ErrReviewLocked before the delay, got %v", err)
	}

	f.now = f.now.Add(time.Second)
	view, err := f.agg.Result(ctx, sub.ID, f.student)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if view.Submission.Score != sub.Score || view.Submission.Percentage != sub.Percentage || view.Submission.Passed != sub.Passed {
		t.Errorf("result differs from submit: %+v vs %+v", view.Submission, sub)
	}
	if view.Quiz.ID != f.quiz.ID || len(view.Results) != 3 {
		t.Errorf("unexpected view: quiz %d, %d results", view.Quiz.ID, len(view.Results))
	}
	for i, r := range view.Results {
		if r.Answer == nil {
			t.Errorf("result %d has no answer", i)
		}
	}
}

func TestResultGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, sub, err := f.agg.Start(ctx, f.quiz.Code, f.student)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.agg.Result(ctx, sub.ID, f.student); !errors.Is(err, ErrNotSubmitted) {
		t.Errorf("expected ErrNotSubmitted, got %v", err)
	}
	if _, err := f.agg.Result(ctx, sub.ID, f.teacher); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if _, err := f.agg.Result(ctx, 9999, f.student); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("expected ErrSubmissionNotFound, got %v", err)
	}
}

func TestAllowRetake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.agg.Submit(ctx, f.quiz.Code, f.student, f.fullResponses(), false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.agg.AllowRetake(ctx, sub.ID, f.student); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for non-owner, got %v", err)
	}
	if err := f.agg.AllowRetake(ctx, sub.ID, f.teacher); err != nil {
		t.Fatalf("AllowRetake: %v", err)
	}

	if _, err := f.store.GetSubmission(ctx, sub.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected submission deleted, got %v", err)
	}
	answers, _ := f.store.ListAnswers(ctx, sub.ID)
	if len(answers) != 0 {
		t.Errorf("expected answers deleted, got %d", len(answers))
	}

	_, _, fresh, err := f.agg.Start(ctx, f.quiz.Code, f.student)
	if err != nil {
		t.Fatalf("Start after retake: %v", err)
	}
	if fresh.Completed || fresh.ID == sub.ID {
		t.Errorf("expected a new in-progress submission, got %+v", fresh)
	}
	if err := f.agg.AllowRetake(ctx, 9999, f.teacher); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("expected ErrSubmissionNotFound, got %v", err)
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(5, 0); got != 0 {
		t.Errorf("Percentage(5, 0) = %v, want 0", got)
	}
	if got := Percentage(3, 4); got != 75 {
		t.Errorf("Percentage(3, 4) = %v, want 75", got)
	}
}
