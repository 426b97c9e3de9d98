package store

import (
	"context"
	"fmt"
	"time"

	"github.com/quizmaster/quizmaster/internal/model"
)

const submissionColumns = `s.id, s.quiz_id, s.student_id, s.started_at, s.submitted_at, s.completed,
	s.score, s.total, s.percentage, s.passed, s.review_unlocked_at, s.fullscreen_exit,
	s.answered_count, s.question_count, s.full_completion`

func submissionDest(s *model.Submission) []any {
	return []any{&s.ID, &s.QuizID, &s.StudentID, &s.StartedAt, &s.SubmittedAt, &s.Completed,
		&s.Score, &s.Total, &s.Percentage, &s.Passed, &s.ReviewUnlockedAt, &s.FullscreenExit,
		&s.AnsweredCount, &s.QuestionCount, &s.FullCompletion}
}

// GetSubmission returns a submission by ID.
func (qs queries) GetSubmission(ctx context.Context, id int64) (model.Submission, error) {
	var sub model.Submission
	err := qs.queryRow(ctx, `SELECT `+submissionColumns+` FROM submissions s WHERE s.id = ?`, id).
		Scan(submissionDest(&sub)...)
	return sub, notFound(err)
}

// FindSubmission returns the submission for (quiz, student), or nil if the
// student has not opened the quiz yet.
func (qs queries) FindSubmission(ctx context.Context, quizID, studentID int64) (*model.Submission, error) {
	var sub model.Submission
	err := qs.queryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions s WHERE s.quiz_id = ? AND s.student_id = ?`,
		quizID, studentID,
	).Scan(submissionDest(&sub)...)
	if err = notFound(err); err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// StartSubmission returns the submission for (quiz, student), creating an
// in-progress one if none exists. An existing row is returned unchanged.
func (qs queries) StartSubmission(ctx context.Context, quizID, studentID int64, questionCount int, now time.Time) (model.Submission, error) {
	_, err := qs.exec(ctx,
		`INSERT INTO submissions (quiz_id, student_id, started_at, question_count)
		 VALUES (?, ?, ?, ?) ON CONFLICT (quiz_id, student_id) DO NOTHING`,
		quizID, studentID, now, questionCount,
	)
	if err != nil {
		return model.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	sub, err := qs.FindSubmission(ctx, quizID, studentID)
	if err != nil {
		return model.Submission{}, err
	}
	if sub == nil {
		return model.Submission{}, ErrNotFound
	}
	return *sub, nil
}

// CompleteSubmission writes the final totals and flips completed. It reports
// false without writing when the row is already completed.
func (qs queries) CompleteSubmission(ctx context.Context, sub model.Submission) (bool, error) {
	res, err := qs.exec(ctx,
		`UPDATE submissions SET submitted_at = ?, completed = ?, score = ?, total = ?, percentage = ?,
		 passed = ?, review_unlocked_at = ?, fullscreen_exit = ?, answered_count = ?, question_count = ?,
		 full_completion = ?
		 WHERE id = ? AND completed = ?`,
		sub.SubmittedAt, true, sub.Score, sub.Total, sub.Percentage,
		sub.Passed, sub.ReviewUnlockedAt, sub.FullscreenExit, sub.AnsweredCount, sub.QuestionCount,
		sub.FullCompletion,
		sub.ID, false,
	)
	if err != nil {
		return false, fmt.Errorf("complete submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpsertAnswer inserts or replaces the answer for (submission, question).
func (qs queries) UpsertAnswer(ctx context.Context, a model.Answer) error {
	results, err := encodeTestResults(a.TestResults)
	if err != nil {
		return err
	}
	_, err = qs.exec(ctx,
		`INSERT INTO answers (submission_id, question_id, user_answer, is_correct, ai_score, scored_marks,
		 code_language, test_results_json, passed_test_cases, total_test_cases)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (submission_id, question_id) DO UPDATE SET
		 user_answer = excluded.user_answer, is_correct = excluded.is_correct, ai_score = excluded.ai_score,
		 scored_marks = excluded.scored_marks, code_language = excluded.code_language,
		 test_results_json = excluded.test_results_json, passed_test_cases = excluded.passed_test_cases,
		 total_test_cases = excluded.total_test_cases`,
		a.SubmissionID, a.QuestionID, a.UserAnswer, a.IsCorrect, a.AIScore, a.ScoredMarks,
		a.CodeLanguage, results, a.PassedTestCases, a.TotalTestCases,
	)
	if err != nil {
		return fmt.Errorf("upsert answer for question %d: %w", a.QuestionID, err)
	}
	return nil
}

// ListAnswers returns all answers of a submission.
func (qs queries) ListAnswers(ctx context.Context, submissionID int64) ([]model.Answer, error) {
	rows, err := qs.query(ctx,
		`SELECT id, submission_id, question_id, user_answer, is_correct, ai_score, scored_marks,
		 code_language, test_results_json, passed_test_cases, total_test_cases
		 FROM answers WHERE submission_id = ? ORDER BY id`, submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var (
			a   model.Answer
			raw string
		)
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.QuestionID, &a.UserAnswer, &a.IsCorrect, &a.AIScore,
			&a.ScoredMarks, &a.CodeLanguage, &raw, &a.PassedTestCases, &a.TotalTestCases); err != nil {
			return nil, err
		}
		if a.TestResults, err = decodeTestResults(raw); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// DeleteSubmission removes a submission and all its answers.
func (s *Store) DeleteSubmission(ctx context.Context, id int64) error {
	return s.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.exec(ctx, `DELETE FROM answers WHERE submission_id = ?`, id); err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}
		res, err := tx.exec(ctx, `DELETE FROM submissions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete submission: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListSubmissionsForQuiz returns all submissions of a quiz with student names, newest first.
func (qs queries) ListSubmissionsForQuiz(ctx context.Context, quizID int64) ([]model.SubmissionRow, error) {
	return qs.listSubmissionRows(ctx, `WHERE s.quiz_id = ?`, quizID)
}

// ListSubmissionsForStudent returns all submissions of a student with quiz titles, newest first.
func (qs queries) ListSubmissionsForStudent(ctx context.Context, studentID int64) ([]model.SubmissionRow, error) {
	return qs.listSubmissionRows(ctx, `WHERE s.student_id = ?`, studentID)
}

func (qs queries) listSubmissionRows(ctx context.Context, where string, arg any) ([]model.SubmissionRow, error) {
	rows, err := qs.query(ctx,
		`SELECT `+submissionColumns+`, u.username, q.title, q.code
		 FROM submissions s
		 JOIN users u ON u.id = s.student_id
		 JOIN quizzes q ON q.id = s.quiz_id
		 `+where+` ORDER BY s.started_at DESC, s.id DESC`, arg,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubmissionRow
	for rows.Next() {
		var r model.SubmissionRow
		dest := append(submissionDest(&r.Submission), &r.StudentName, &r.QuizTitle, &r.QuizCode)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
