package model

import "time"

// SubmissionStatus is derived from the persisted submission row.
type SubmissionStatus string

const (
	StatusNotStarted SubmissionStatus = "not_started"
	StatusInProgress SubmissionStatus = "in_progress"
	StatusCompleted  SubmissionStatus = "completed"
)

// Submission is one student's attempt at one quiz.
type Submission struct {
	ID               int64      `json:"id"`
	QuizID           int64      `json:"quiz_id"`
	StudentID        int64      `json:"student_id"`
	StartedAt        time.Time  `json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	Completed        bool       `json:"completed"`
	Score            float64    `json:"score"`
	Total            float64    `json:"total"`
	Percentage       float64    `json:"percentage"`
	Passed           bool       `json:"passed"`
	ReviewUnlockedAt *time.Time `json:"review_unlocked_at,omitempty"`
	FullscreenExit   bool       `json:"fullscreen_exit"`
	AnsweredCount    int        `json:"answered_count"`
	QuestionCount    int        `json:"question_count"`
	FullCompletion   bool       `json:"full_completion"`
}

// Status reports where the submission is in its lifecycle.
func (s *Submission) Status() SubmissionStatus {
	switch {
	case s == nil:
		return StatusNotStarted
	case s.Completed:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

// ReviewUnlocked reports whether detailed results may be shown at now.
func (s Submission) ReviewUnlocked(now time.Time) bool {
	if s.ReviewUnlockedAt == nil {
		return true
	}
	return !now.Before(*s.ReviewUnlockedAt)
}

// Answer is one question's scored result within a submission.
type Answer struct {
	ID              int64            `json:"id"`
	SubmissionID    int64            `json:"submission_id"`
	QuestionID      int64            `json:"question_id"`
	UserAnswer      string           `json:"user_answer"`
	IsCorrect       *bool            `json:"is_correct,omitempty"`
	AIScore         *float64         `json:"ai_score,omitempty"`
	ScoredMarks     float64          `json:"scored_marks"`
	CodeLanguage    string           `json:"code_language,omitempty"`
	TestResults     []TestCaseResult `json:"test_results,omitempty"`
	PassedTestCases int              `json:"passed_test_cases"`
	TotalTestCases  int              `json:"total_test_cases"`
}

// Correct reports IsCorrect, treating unset as false.
func (a Answer) Correct() bool {
	return a.IsCorrect != nil && *a.IsCorrect
}

// TestCaseResult is the outcome of one test case run.
type TestCaseResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	IsCorrect      bool   `json:"is_correct"`
	IsHidden       bool   `json:"is_hidden"`
}

// QuestionResult pairs a question with the student's answer for display.
type QuestionResult struct {
	Question Question
	Answer   *Answer
}

// SubmissionView combines a submission with its quiz and per-question results.
type SubmissionView struct {
	Submission Submission
	Quiz       Quiz
	Results    []QuestionResult
}

// SubmissionRow is a submission joined with the student's name for teacher lists.
type SubmissionRow struct {
	Submission
	StudentName string
	QuizTitle   string
	QuizCode    string
}
