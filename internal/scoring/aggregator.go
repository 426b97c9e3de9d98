package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/quizmaster/quizmaster/internal/metrics"
	"github.com/quizmaster/quizmaster/internal/model"
	"github.com/quizmaster/quizmaster/internal/store"
)

const (
	// ReviewDelay is how long after submission detailed results stay hidden.
	ReviewDelay = 15 * time.Minute
	// PassPercentage is the lowest percentage that passes a quiz.
	PassPercentage = 60.0
)

var (
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadyCompleted   = errors.New("quiz already attempted")
	ErrNotSubmitted       = errors.New("submission not completed")
	ErrReviewLocked       = errors.New("results not yet available")
	ErrNotOwner           = errors.New("not the owner")
)

// AnswerKey is the response key holding the answer to an mcq or subjective question.
func AnswerKey(questionID int64) string { return "q_" + strconv.FormatInt(questionID, 10) }

// CodeKey is the response key holding the code for a coding question.
func CodeKey(questionID int64) string { return "code_" + strconv.FormatInt(questionID, 10) }

// LanguageKey is the response key holding the language for a coding question.
func LanguageKey(questionID int64) string { return "language_" + strconv.FormatInt(questionID, 10) }

// Responses holds a student's raw answers keyed by AnswerKey, CodeKey and LanguageKey.
type Responses map[string]string

// Input extracts the fields relevant to q.
func (r Responses) Input(q model.Question) Input {
	return Input{
		Answer:   r[AnswerKey(q.ID)],
		Code:     r[CodeKey(q.ID)],
		Language: r[LanguageKey(q.ID)],
	}
}

// Aggregator scores whole submissions and enforces the attempt and review rules.
type Aggregator struct {
	store  *store.Store
	scorer *Scorer
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an Aggregator.
func NewAggregator(st *store.Store, scorer *Scorer, opts ...Option) *Aggregator {
	a := &Aggregator{store: st, scorer: scorer, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) loadQuiz(ctx context.Context, code string) (model.Quiz, []model.Question, error) {
	quiz, err := a.store.GetQuizByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return model.Quiz{}, nil, ErrQuizNotFound
	}
	if err != nil {
		return model.Quiz{}, nil, fmt.Errorf("get quiz: %w", err)
	}
	questions, err := a.store.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return model.Quiz{}, nil, fmt.Errorf("list questions: %w", err)
	}
	return quiz, questions, nil
}

// open returns the student's in-progress submission, creating it if needed.
func (a *Aggregator) open(ctx context.Context, quizID, studentID int64, questionCount int) (model.Submission, error) {
	sub, err := a.store.StartSubmission(ctx, quizID, studentID, questionCount, a.now())
	if err != nil {
		return model.Submission{}, fmt.Errorf("start submission: %w", err)
	}
	if sub.Completed {
		return model.Submission{}, ErrAlreadyCompleted
	}
	return sub, nil
}

// Start opens a quiz for a student: it refuses a completed attempt and
// otherwise ensures an in-progress submission exists.
func (a *Aggregator) Start(ctx context.Context, code string, studentID int64) (model.Quiz, []model.Question, model.Submission, error) {
	quiz, questions, err := a.loadQuiz(ctx, code)
	if err != nil {
		return model.Quiz{}, nil, model.Submission{}, err
	}
	sub, err := a.open(ctx, quiz.ID, studentID, len(questions))
	if err != nil {
		return model.Quiz{}, nil, model.Submission{}, err
	}
	return quiz, questions, sub, nil
}

// Submit scores every question of the quiz from responses and completes
// the student's submission. Nothing is written if the attempt was already
// completed or if persisting fails.
func (a *Aggregator) Submit(ctx context.Context, code string, studentID int64, responses Responses, fullscreenExit bool) (model.Submission, error) {
	sub, err := a.submit(ctx, code, studentID, func(ctx context.Context, q model.Question) model.Answer {
		return a.scorer.Score(ctx, q, responses.Input(q))
	}, fullscreenExit)
	record("submit", err)
	return sub, err
}

// AutoSubmit completes the submission with whatever answers the client had
// when the student left fullscreen or closed the tab. Coding questions are
// recorded but not executed, so they earn no marks.
func (a *Aggregator) AutoSubmit(ctx context.Context, code string, studentID int64, responses Responses) (model.Submission, error) {
	sub, err := a.submit(ctx, code, studentID, func(ctx context.Context, q model.Question) model.Answer {
		if q.Type() == model.QuestionCoding {
			code := responses[CodeKey(q.ID)]
			if code == "" {
				code = responses[AnswerKey(q.ID)]
			}
			return model.Answer{
				QuestionID:   q.ID,
				UserAnswer:   strings.TrimSpace(code),
				CodeLanguage: responses[LanguageKey(q.ID)],
			}
		}
		return a.scorer.Score(ctx, q, Input{Answer: responses[AnswerKey(q.ID)]})
	}, true)
	record("auto", err)
	return sub, err
}

func record(mode string, err error) {
	outcome := "completed"
	switch {
	case errors.Is(err, ErrAlreadyCompleted):
		outcome = "duplicate"
	case errors.Is(err, ErrQuizNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "failed"
	}
	metrics.Submissions.WithLabelValues(mode, outcome).Inc()
}

func (a *Aggregator) submit(ctx context.Context, code string, studentID int64, score func(context.Context, model.Question) model.Answer, fullscreenExit bool) (model.Submission, error) {
	quiz, questions, err := a.loadQuiz(ctx, code)
	if err != nil {
		return model.Submission{}, err
	}
	sub, err := a.open(ctx, quiz.ID, studentID, len(questions))
	if err != nil {
		return model.Submission{}, err
	}

	var total, scored float64
	answered := 0
	answers := make([]model.Answer, 0, len(questions))
	for _, q := range questions {
		ans := score(ctx, q)
		ans.SubmissionID = sub.ID
		total += float64(q.Marks)
		scored += ans.ScoredMarks
		if ans.UserAnswer != "" {
			answered++
		}
		answers = append(answers, ans)
	}

	now := a.now()
	unlock := now.Add(ReviewDelay)
	sub.SubmittedAt = &now
	sub.ReviewUnlockedAt = &unlock
	sub.Completed = true
	sub.Score = scored
	sub.Total = total
	sub.Percentage = Percentage(scored, total)
	sub.Passed = sub.Percentage >= PassPercentage
	sub.FullscreenExit = fullscreenExit
	sub.AnsweredCount = answered
	sub.QuestionCount = len(questions)
	sub.FullCompletion = answered == len(questions) && !fullscreenExit

	err = a.store.InTx(ctx, func(tx *store.Tx) error {
		for _, ans := range answers {
			if err := tx.UpsertAnswer(ctx, ans); err != nil {
				return err
			}
		}
		ok, err := tx.CompleteSubmission(ctx, sub)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyCompleted
		}
		return nil
	})
	if errors.Is(err, ErrAlreadyCompleted) {
		return model.Submission{}, err
	}
	if err != nil {
		slog.Error("failed to persist submission", "submission", sub.ID, "error", err)
		return model.Submission{}, fmt.Errorf("save submission: %w", err)
	}
	slog.Info("submission completed",
		"submission", sub.ID, "quiz", quiz.Code, "student", studentID,
		"score", sub.Score, "total", sub.Total, "fullscreen_exit", fullscreenExit)
	return sub, nil
}

// Percentage returns scored/total as a percentage, or 0 when total is 0.
func Percentage(scored, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return scored / total * 100
}

// Result returns the detailed results of a student's own completed
// submission once its review delay has passed.
func (a *Aggregator) Result(ctx context.Context, submissionID, studentID int64) (model.SubmissionView, error) {
	sub, err := a.store.GetSubmission(ctx, submissionID)
	if errors.Is(err, store.ErrNotFound) {
		return model.SubmissionView{}, ErrSubmissionNotFound
	}
	if err != nil {
		return model.SubmissionView{}, fmt.Errorf("get submission: %w", err)
	}
	if sub.StudentID != studentID {
		return model.SubmissionView{}, ErrNotOwner
	}
	if !sub.Completed {
		return model.SubmissionView{}, ErrNotSubmitted
	}
	if !sub.ReviewUnlocked(a.now()) {
		return model.SubmissionView{}, ErrReviewLocked
	}
	return a.view(ctx, sub)
}

func (a *Aggregator) view(ctx context.Context, sub model.Submission) (model.SubmissionView, error) {
	quiz, err := a.store.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return model.SubmissionView{}, fmt.Errorf("get quiz: %w", err)
	}
	questions, err := a.store.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return model.SubmissionView{}, fmt.Errorf("list questions: %w", err)
	}
	answers, err := a.store.ListAnswers(ctx, sub.ID)
	if err != nil {
		return model.SubmissionView{}, fmt.Errorf("list answers: %w", err)
	}
	byQuestion := make(map[int64]model.Answer, len(answers))
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}

	view := model.SubmissionView{Submission: sub, Quiz: quiz}
	for _, q := range questions {
		r := model.QuestionResult{Question: q}
		if ans, ok := byQuestion[q.ID]; ok {
			r.Answer = &ans
		}
		view.Results = append(view.Results, r)
	}
	return view, nil
}

// AllowRetake deletes a submission and its answers so the student can take
// the quiz again. Only the quiz owner may do this.
func (a *Aggregator) AllowRetake(ctx context.Context, submissionID, teacherID int64) error {
	sub, err := a.store.GetSubmission(ctx, submissionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSubmissionNotFound
	}
	if err != nil {
		return fmt.Errorf("get submission: %w", err)
	}
	quiz, err := a.store.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return fmt.Errorf("get quiz: %w", err)
	}
	if quiz.CreatedBy != teacherID {
		return ErrNotOwner
	}
	if err := a.store.DeleteSubmission(ctx, sub.ID); err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	slog.Info("retake allowed", "submission", sub.ID, "quiz", quiz.Code, "student", sub.StudentID, "teacher", teacherID)
	return nil
}
