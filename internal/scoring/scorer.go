package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quizmaster/quizmaster/internal/model"
	"github.com/quizmaster/quizmaster/internal/sandbox"
)

// SubjectivePassScore is the lowest grader score counted as correct.
const SubjectivePassScore = 0.6

// DefaultLanguage is used for coding answers submitted without a language.
const DefaultLanguage = "python"

// SubjectiveGrader rates a free-text answer in [0, 1]. It must not fail.
type SubjectiveGrader interface {
	GradeSubjective(ctx context.Context, question, answer, modelAnswer string) float64
}

// CodeRunner runs code against test cases.
type CodeRunner interface {
	Run(ctx context.Context, code, language string, cases []model.TestCase, timeLimitSeconds, memoryLimitMB int) sandbox.Report
}

// Input is a student's raw response to one question. Answer is used by mcq
// and subjective questions; Code and Language by coding questions.
type Input struct {
	Answer   string
	Code     string
	Language string
}

// Scorer computes the marks for a single question.
type Scorer struct {
	grader SubjectiveGrader
	runner CodeRunner
}

// NewScorer creates a Scorer.
func NewScorer(grader SubjectiveGrader, runner CodeRunner) *Scorer {
	return &Scorer{grader: grader, runner: runner}
}

// Score grades in against q. Failures of the grader or the code runner are
// absorbed into zero or default credit; Score never fails.
func (s *Scorer) Score(ctx context.Context, q model.Question, in Input) model.Answer {
	ans := model.Answer{QuestionID: q.ID}
	marks := float64(q.Marks)

	switch b := q.Body.(type) {
	case model.MCQ:
		ans.UserAnswer = strings.TrimSpace(in.Answer)
		ok := mcqCorrect(ans.UserAnswer, b.CorrectLabel)
		ans.IsCorrect = &ok
		if ok {
			ans.ScoredMarks = marks
		}

	case model.Subjective:
		ans.UserAnswer = strings.TrimSpace(in.Answer)
		score := 0.0
		if ans.UserAnswer != "" {
			score = s.grader.GradeSubjective(ctx, q.Text, ans.UserAnswer, b.ModelAnswer)
		}
		ok := score >= SubjectivePassScore
		ans.AIScore = &score
		ans.IsCorrect = &ok
		ans.ScoredMarks = marks * score

	case model.Coding:
		ans.UserAnswer = strings.TrimSpace(in.Code)
		ans.CodeLanguage = in.Language
		if ans.CodeLanguage == "" {
			ans.CodeLanguage = DefaultLanguage
		}
		ok := false
		ans.IsCorrect = &ok
		if ans.UserAnswer == "" {
			break
		}
		rep, err := s.runCoding(ctx, ans.UserAnswer, ans.CodeLanguage, b)
		if err != nil {
			slog.Error("coding evaluation failed", "question", q.ID, "error", err)
			break
		}
		ans.TestResults = rep.Results
		ans.PassedTestCases = rep.Passed
		ans.TotalTestCases = rep.Total
		ans.ScoredMarks = marks * rep.Percentage / 100
		ok = rep.AllPassed()

	default:
		slog.Error("question has no scorable body", "question", q.ID, "type", q.Type())
	}
	return ans
}

// mcqCorrect compares the label before the first ". " with the correct label.
func mcqCorrect(answer, label string) bool {
	if answer == "" {
		return false
	}
	return strings.SplitN(answer, ". ", 2)[0] == label
}

func (s *Scorer) runCoding(ctx context.Context, code, language string, b model.Coding) (rep sandbox.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep = sandbox.Report{}
			err = fmt.Errorf("panic running test cases: %v", r)
		}
	}()
	b = b.WithDefaults()
	return s.runner.Run(ctx, code, language, b.TestCases, b.TimeLimitSeconds, b.MemoryLimitMB), nil
}
