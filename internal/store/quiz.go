package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/quizmaster/quizmaster/internal/model"
)

const (
	quizCodeLength   = 6
	quizCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	quizColumns      = `id, title, code, created_by, difficulty, duration_minutes, created_at`
)

// CreateQuiz validates the questions, assigns a fresh share code and stores
// the quiz with its questions in one transaction.
func (s *Store) CreateQuiz(ctx context.Context, quiz model.Quiz, questions []model.Question) (model.Quiz, error) {
	for i, q := range questions {
		if err := ValidateQuestion(q); err != nil {
			return model.Quiz{}, fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	if quiz.Difficulty == "" {
		quiz.Difficulty = model.DifficultyBeginner
	}
	quiz.CreatedAt = time.Now()

	err := s.InTx(ctx, func(tx *Tx) error {
		code, err := tx.uniqueQuizCode(ctx)
		if err != nil {
			return err
		}
		quiz.Code = code
		err = tx.queryRow(ctx,
			`INSERT INTO quizzes (title, code, created_by, difficulty, duration_minutes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
			quiz.Title, quiz.Code, quiz.CreatedBy, quiz.Difficulty, quiz.DurationMinutes, quiz.CreatedAt,
		).Scan(&quiz.ID)
		if err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		for i, q := range questions {
			body, err := encodeBody(q.Body)
			if err != nil {
				return err
			}
			_, err = tx.exec(ctx,
				`INSERT INTO questions (quiz_id, position, qtype, text, marks, body_json) VALUES (?, ?, ?, ?, ?, ?)`,
				quiz.ID, i, q.Type(), q.Text, q.Marks, body,
			)
			if err != nil {
				return fmt.Errorf("insert question %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return model.Quiz{}, err
	}
	return quiz, nil
}

func (qs queries) uniqueQuizCode(ctx context.Context) (string, error) {
	for {
		code, err := newQuizCode()
		if err != nil {
			return "", err
		}
		var exists int
		err = qs.queryRow(ctx, `SELECT COUNT(*) FROM quizzes WHERE code = ?`, code).Scan(&exists)
		if err != nil {
			return "", err
		}
		if exists == 0 {
			return code, nil
		}
	}
}

func newQuizCode() (string, error) {
	b := make([]byte, quizCodeLength)
	limit := big.NewInt(int64(len(quizCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = quizCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

func scanQuiz(row rowScanner) (model.Quiz, error) {
	var q model.Quiz
	err := row.Scan(&q.ID, &q.Title, &q.Code, &q.CreatedBy, &q.Difficulty, &q.DurationMinutes, &q.CreatedAt)
	return q, err
}

// GetQuiz returns a quiz by ID.
func (qs queries) GetQuiz(ctx context.Context, id int64) (model.Quiz, error) {
	q, err := scanQuiz(qs.queryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = ?`, id))
	return q, notFound(err)
}

// GetQuizByCode returns a quiz by its share code, ignoring case.
func (qs queries) GetQuizByCode(ctx context.Context, code string) (model.Quiz, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	q, err := scanQuiz(qs.queryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE code = ?`, code))
	return q, notFound(err)
}

// ListQuizzesByCreator returns a teacher's quizzes, newest first.
func (qs queries) ListQuizzesByCreator(ctx context.Context, userID int64) ([]model.Quiz, error) {
	rows, err := qs.query(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE created_by = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// ListQuestions returns a quiz's questions in quiz order.
func (qs queries) ListQuestions(ctx context.Context, quizID int64) ([]model.Question, error) {
	rows, err := qs.query(ctx,
		`SELECT id, quiz_id, position, qtype, text, marks, body_json FROM questions
		 WHERE quiz_id = ? ORDER BY position, id`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q     model.Question
			qtype model.QuestionType
			raw   string
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Position, &qtype, &q.Text, &q.Marks, &raw); err != nil {
			return nil, err
		}
		q.Body, err = decodeBody(qtype, raw)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
