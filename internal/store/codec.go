package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/quizmaster/quizmaster/internal/model"
)

var validate = validator.New()

// ValidateQuestion checks a question and its type-specific body.
func ValidateQuestion(q model.Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("question text is required")
	}
	if q.Marks <= 0 {
		return fmt.Errorf("marks must be positive, got %d", q.Marks)
	}
	if q.Body == nil {
		return errors.New("question type is required")
	}
	if err := validate.Struct(q.Body); err != nil {
		return fmt.Errorf("%s question: %w", q.Type(), err)
	}
	return nil
}

// ValidateQuizImport checks a quiz file and every question in it.
func ValidateQuizImport(qi model.QuizImport) ([]model.Question, error) {
	if err := validate.Struct(qi); err != nil {
		return nil, err
	}
	questions := make([]model.Question, 0, len(qi.Questions))
	for i, raw := range qi.Questions {
		q := raw.ToQuestion()
		if err := ValidateQuestion(q); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func encodeBody(b model.QuestionBody) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode %s body: %w", b.Type(), err)
	}
	return string(data), nil
}

func decodeBody(t model.QuestionType, raw string) (model.QuestionBody, error) {
	var body model.QuestionBody
	switch t {
	case model.QuestionMCQ:
		var b model.MCQ
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("decode mcq body: %w", err)
		}
		body = b
	case model.QuestionSubjective:
		var b model.Subjective
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("decode subjective body: %w", err)
		}
		body = b
	case model.QuestionCoding:
		var b model.Coding
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("decode coding body: %w", err)
		}
		body = b.WithDefaults()
	default:
		return nil, fmt.Errorf("unknown question type %q", t)
	}
	if err := validate.Struct(body); err != nil {
		return nil, fmt.Errorf("stored %s body: %w", t, err)
	}
	return body, nil
}

func encodeTestResults(results []model.TestCaseResult) (string, error) {
	if results == nil {
		results = []model.TestCaseResult{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encode test results: %w", err)
	}
	return string(data), nil
}

func decodeTestResults(raw string) ([]model.TestCaseResult, error) {
	if raw == "" {
		return nil, nil
	}
	var results []model.TestCaseResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("decode test results: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results, nil
}
