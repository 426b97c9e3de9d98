package store

import (
	"testing"

	"github.com/quizmaster/quizmaster/internal/model"
)

func TestValidateQuestion(t *testing.T) {
	opts := []string{"A. 1", "B. 2", "C. 3", "D. 4"}
	tests := []struct {
		name    string
		q       model.Question
		wantErr bool
	}{
		{"valid mcq", model.Question{Text: "Q", Marks: 1, Body: model.MCQ{Options: opts, CorrectLabel: "C"}}, false},
		{"mcq three options", model.Question{Text: "Q", Marks: 1, Body: model.MCQ{Options: opts[:3], CorrectLabel: "C"}}, true},
		{"mcq bad label", model.Question{Text: "Q", Marks: 1, Body: model.MCQ{Options: opts, CorrectLabel: "E"}}, true},
		{"mcq empty option", model.Question{Text: "Q", Marks: 1, Body: model.MCQ{Options: []string{"a", "", "c", "d"}, CorrectLabel: "A"}}, true},
		{"subjective", model.Question{Text: "Q", Marks: 3, Body: model.Subjective{}}, false},
		{"empty text", model.Question{Text: "  ", Marks: 1, Body: model.Subjective{}}, true},
		{"zero marks", model.Question{Text: "Q", Body: model.Subjective{}}, true},
		{"nil body", model.Question{Text: "Q", Marks: 1}, true},
		{"coding defaults", model.Question{Text: "Q", Marks: 1, Body: model.Coding{}.WithDefaults()}, false},
		{"coding zero limits", model.Question{Text: "Q", Marks: 1, Body: model.Coding{AllowedLanguages: []string{"python"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestion(tt.q)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuestion() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuizImport(t *testing.T) {
	qi := model.QuizImport{
		Title: "Imported",
		Questions: []model.QuestionImport{
			{Question: "Pick", Options: []string{"A. a", "B. b", "C. c", "D. d"}, Answer: "A"},
			{Question: "Explain", Type: model.QuestionSubjective, Marks: 4, Answer: "model"},
			{Question: "Code", Type: model.QuestionCoding, Marks: 10, TestCases: []model.TestCase{{Input: "1", ExpectedOutput: "1"}}},
		},
	}
	questions, err := ValidateQuizImport(qi)
	if err != nil {
		t.Fatalf("ValidateQuizImport: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
	if questions[0].Type() != model.QuestionMCQ || questions[0].Marks != 1 {
		t.Errorf("expected mcq worth 1 mark, got %q worth %d", questions[0].Type(), questions[0].Marks)
	}
	coding := questions[2].Body.(model.Coding)
	if coding.MemoryLimitMB != model.DefaultMemoryLimitMB || len(coding.AllowedLanguages) != len(model.DefaultLanguages) {
		t.Errorf("expected coding defaults, got %+v", coding)
	}

	if _, err := ValidateQuizImport(model.QuizImport{Title: "Empty"}); err == nil {
		t.Error("expected error for quiz with no questions")
	}
}

func TestBodyRoundTrip(t *testing.T) {
	body := model.Coding{
		TestCases:   []model.TestCase{{Input: "x", ExpectedOutput: "y", IsHidden: true}},
		StarterCode: map[string]string{"python": "print()"},
	}.WithDefaults()
	raw, err := encodeBody(body)
	if err != nil {
		t.Fatalf("encodeBody: %v", err)
	}
	got, err := decodeBody(model.QuestionCoding, raw)
	if err != nil {
		t.Fatalf("decodeBody: %v", err)
	}
	c := got.(model.Coding)
	if c.StarterCode["python"] != "print()" || !c.TestCases[0].IsHidden {
		t.Errorf("unexpected decoded body: %+v", c)
	}

	if _, err := decodeBody("essay", "{}"); err == nil {
		t.Error("expected error for unknown type")
	}
}
