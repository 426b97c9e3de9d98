package model

import "time"

// QuizExport is the top-level JSON structure for quiz result export.
type QuizExport struct {
	Code         string          `json:"code"`
	Title        string          `json:"title"`
	Difficulty   Difficulty      `json:"difficulty"`
	NumQuestions int             `json:"num_questions"`
	TotalMarks   int             `json:"total_marks"`
	ExportedAt   time.Time       `json:"exported_at"`
	Results      []StudentResult `json:"results"`
}

// StudentResult holds one student's submission for export.
type StudentResult struct {
	Username       string           `json:"username"`
	DisplayName    string           `json:"display_name"`
	Status         SubmissionStatus `json:"status"`
	StartedAt      time.Time        `json:"started_at"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
	Score          float64          `json:"score"`
	Total          float64          `json:"total"`
	Percentage     float64          `json:"percentage"`
	Passed         bool             `json:"passed"`
	FullscreenExit bool             `json:"fullscreen_exit"`
	FullCompletion bool             `json:"full_completion"`
	Answers        []AnswerExport   `json:"answers"`
}

// AnswerExport holds per-question data for export.
type AnswerExport struct {
	Question        string       `json:"question"`
	Type            QuestionType `json:"type"`
	Marks           int          `json:"marks"`
	UserAnswer      string       `json:"user_answer"`
	IsCorrect       *bool        `json:"is_correct,omitempty"`
	AIScore         *float64     `json:"ai_score,omitempty"`
	ScoredMarks     float64      `json:"scored_marks"`
	CodeLanguage    string       `json:"code_language,omitempty"`
	PassedTestCases int          `json:"passed_test_cases,omitempty"`
	TotalTestCases  int          `json:"total_test_cases,omitempty"`
}
