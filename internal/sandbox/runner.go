package sandbox

import (
	"context"
	"strings"

	"github.com/quizmaster/quizmaster/internal/model"
)

// Executor runs one program against one stdin.
type Executor interface {
	Execute(ctx context.Context, req Request) Result
}

// Report aggregates the outcome of a test case run.
type Report struct {
	Results    []model.TestCaseResult `json:"results"`
	Passed     int                    `json:"passed"`
	Total      int                    `json:"total"`
	Percentage float64                `json:"percentage"`
}

// AllPassed reports whether every test case passed. An empty run never passes.
func (r Report) AllPassed() bool {
	return r.Total > 0 && r.Passed == r.Total
}

// Runner drives an Executor over the test cases of a coding question.
type Runner struct {
	exec Executor
}

// NewRunner creates a Runner backed by exec.
func NewRunner(exec Executor) *Runner {
	return &Runner{exec: exec}
}

// Run executes code once per test case, in order. Every case is reported,
// hidden ones included; filtering for display is left to the caller.
func (r *Runner) Run(ctx context.Context, code, language string, cases []model.TestCase, timeLimitSeconds, memoryLimitMB int) Report {
	rep := Report{
		Results: make([]model.TestCaseResult, 0, len(cases)),
		Total:   len(cases),
	}
	for _, tc := range cases {
		expected := strings.TrimSpace(tc.ExpectedOutput)
		res := r.exec.Execute(ctx, Request{
			Code:             code,
			Language:         language,
			Stdin:            tc.Input,
			TimeLimitSeconds: timeLimitSeconds,
			MemoryLimitMB:    memoryLimitMB,
		})

		var actual string
		correct := false
		if res.OK() {
			actual = strings.TrimSpace(res.Output)
			correct = actual == expected
		} else {
			actual = res.Stderr
			if actual == "" {
				actual = res.Message
			}
		}
		if correct {
			rep.Passed++
		}
		rep.Results = append(rep.Results, model.TestCaseResult{
			Input:          tc.Input,
			ExpectedOutput: expected,
			ActualOutput:   actual,
			IsCorrect:      correct,
			IsHidden:       tc.IsHidden,
		})
	}
	if rep.Total > 0 {
		rep.Percentage = float64(rep.Passed) / float64(rep.Total) * 100
	}
	return rep
}

// MaskHidden returns a copy of results with the input and outputs of hidden
// cases blanked, for showing to students.
func MaskHidden(results []model.TestCaseResult) []model.TestCaseResult {
	out := make([]model.TestCaseResult, len(results))
	for i, tc := range results {
		if tc.IsHidden {
			tc.Input = ""
			tc.ExpectedOutput = ""
			tc.ActualOutput = ""
		}
		out[i] = tc
	}
	return out
}
