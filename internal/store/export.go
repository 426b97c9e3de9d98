package store

import (
	"context"
	"fmt"
	"time"

	"github.com/quizmaster/quizmaster/internal/model"
)

// ExportQuiz builds export-ready results for every submission of the quiz with the given code.
func (s *Store) ExportQuiz(ctx context.Context, code string) (model.QuizExport, error) {
	quiz, err := s.GetQuizByCode(ctx, code)
	if err != nil {
		return model.QuizExport{}, fmt.Errorf("get quiz %s: %w", code, err)
	}
	questions, err := s.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return model.QuizExport{}, fmt.Errorf("list questions: %w", err)
	}
	rows, err := s.ListSubmissionsForQuiz(ctx, quiz.ID)
	if err != nil {
		return model.QuizExport{}, fmt.Errorf("list submissions: %w", err)
	}

	out := model.QuizExport{
		Code:         quiz.Code,
		Title:        quiz.Title,
		Difficulty:   quiz.Difficulty,
		NumQuestions: len(questions),
		ExportedAt:   time.Now().UTC(),
		Results:      []model.StudentResult{},
	}
	for _, q := range questions {
		out.TotalMarks += q.Marks
	}

	for _, row := range rows {
		user, err := s.GetUserByID(ctx, row.StudentID)
		if err != nil {
			return model.QuizExport{}, fmt.Errorf("get user %d: %w", row.StudentID, err)
		}
		answers, err := s.ListAnswers(ctx, row.ID)
		if err != nil {
			return model.QuizExport{}, fmt.Errorf("list answers for submission %d: %w", row.ID, err)
		}
		byQuestion := make(map[int64]model.Answer, len(answers))
		for _, a := range answers {
			byQuestion[a.QuestionID] = a
		}

		res := model.StudentResult{
			Username:       row.StudentName,
			Status:         row.Submission.Status(),
			StartedAt:      row.StartedAt,
			SubmittedAt:    row.SubmittedAt,
			Score:          row.Score,
			Total:          row.Total,
			Percentage:     row.Percentage,
			Passed:         row.Passed,
			FullscreenExit: row.FullscreenExit,
			FullCompletion: row.FullCompletion,
		}
		if user != nil {
			res.DisplayName = user.DisplayName
		}
		for _, q := range questions {
			a, ok := byQuestion[q.ID]
			if !ok {
				continue
			}
			res.Answers = append(res.Answers, model.AnswerExport{
				Question:        q.Text,
				Type:            q.Type(),
				Marks:           q.Marks,
				UserAnswer:      a.UserAnswer,
				IsCorrect:       a.IsCorrect,
				AIScore:         a.AIScore,
				ScoredMarks:     a.ScoredMarks,
				CodeLanguage:    a.CodeLanguage,
				PassedTestCases: a.PassedTestCases,
				TotalTestCases:  a.TotalTestCases,
			})
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}
