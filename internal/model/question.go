package model

// QuestionType tags the scoring strategy of a question.
type QuestionType string

const (
	QuestionMCQ        QuestionType = "mcq"
	QuestionSubjective QuestionType = "subjective"
	QuestionCoding     QuestionType = "coding"
)

// Coding defaults applied when a question omits them.
const (
	DefaultTimeLimitSeconds = 2
	DefaultMemoryLimitMB    = 256
)

// DefaultLanguages are allowed when a coding question lists none.
var DefaultLanguages = []string{"python", "java", "cpp", "c"}

// Question is one item in a quiz. Body holds the type-specific fields.
type Question struct {
	ID       int64
	QuizID   int64
	Position int
	Text     string
	Marks    int
	Body     QuestionBody
}

// Type returns the question's type tag.
func (q Question) Type() QuestionType {
	if q.Body == nil {
		return ""
	}
	return q.Body.Type()
}

// QuestionBody is implemented only by MCQ, Subjective and Coding.
type QuestionBody interface {
	Type() QuestionType
	isQuestionBody()
}

// MCQ is a single-answer multiple-choice question.
type MCQ struct {
	Options      []string `json:"options" validate:"len=4,dive,required"`
	CorrectLabel string   `json:"correct_label" validate:"required,oneof=A B C D"`
}

// Subjective is a free-text question graded by the language model.
type Subjective struct {
	ModelAnswer string `json:"model_answer"`
}

// Coding is graded by running the student's code against test cases.
type Coding struct {
	TestCases        []TestCase        `json:"test_cases" validate:"dive"`
	AllowedLanguages []string          `json:"allowed_languages" validate:"dive,required"`
	TimeLimitSeconds int               `json:"time_limit_seconds" validate:"gt=0"`
	MemoryLimitMB    int               `json:"memory_limit_mb" validate:"gt=0"`
	SampleInput      string            `json:"sample_input"`
	SampleOutput     string            `json:"sample_output"`
	StarterCode      map[string]string `json:"starter_code"`
}

// TestCase is one input/expected-output pair of a coding question.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
}

func (MCQ) Type() QuestionType        { return QuestionMCQ }
func (Subjective) Type() QuestionType { return QuestionSubjective }
func (Coding) Type() QuestionType     { return QuestionCoding }

func (MCQ) isQuestionBody()        {}
func (Subjective) isQuestionBody() {}
func (Coding) isQuestionBody()     {}

// VisibleTestCases returns the test cases a student may see.
func (c Coding) VisibleTestCases() []TestCase {
	var out []TestCase
	for _, tc := range c.TestCases {
		if !tc.IsHidden {
			out = append(out, tc)
		}
	}
	return out
}

// QuestionImport is the loosely-typed question shape produced by teachers'
// JSON and by the generation client. Fields outside the question's type are ignored.
type QuestionImport struct {
	Question         string            `json:"question"`
	Type             QuestionType      `json:"type"`
	Marks            int               `json:"marks"`
	Options          []string          `json:"options,omitempty"`
	Answer           string            `json:"answer,omitempty"`
	TestCases        []TestCase        `json:"test_cases,omitempty"`
	Languages        []string          `json:"language_constraints,omitempty"`
	TimeLimitSeconds int               `json:"time_limit_seconds,omitempty"`
	MemoryLimitMB    int               `json:"memory_limit_mb,omitempty"`
	SampleInput      string            `json:"sample_input,omitempty"`
	SampleOutput     string            `json:"sample_output,omitempty"`
	StarterCode      map[string]string `json:"starter_code,omitempty"`
}

// QuizImport is the file format accepted by the import command.
type QuizImport struct {
	Title           string           `json:"title" validate:"required"`
	Difficulty      Difficulty       `json:"difficulty"`
	DurationMinutes *int             `json:"duration_minutes,omitempty"`
	Questions       []QuestionImport `json:"questions" validate:"required,min=1"`
}

// ToQuestion converts an import into a typed question, applying defaults.
// Unknown types become mcq, matching what teachers get when they omit the type.
func (qi QuestionImport) ToQuestion() Question {
	marks := qi.Marks
	if marks <= 0 {
		marks = 1
	}
	q := Question{Text: qi.Question, Marks: marks}
	switch qi.Type {
	case QuestionSubjective:
		q.Body = Subjective{ModelAnswer: qi.Answer}
	case QuestionCoding:
		c := Coding{
			TestCases:        qi.TestCases,
			AllowedLanguages: qi.Languages,
			TimeLimitSeconds: qi.TimeLimitSeconds,
			MemoryLimitMB:    qi.MemoryLimitMB,
			SampleInput:      qi.SampleInput,
			SampleOutput:     qi.SampleOutput,
			StarterCode:      qi.StarterCode,
		}
		q.Body = c.WithDefaults()
	default:
		q.Body = MCQ{Options: qi.Options, CorrectLabel: qi.Answer}
	}
	return q
}

// WithDefaults fills zero limits and an empty language list.
func (c Coding) WithDefaults() Coding {
	if c.TimeLimitSeconds <= 0 {
		c.TimeLimitSeconds = DefaultTimeLimitSeconds
	}
	if c.MemoryLimitMB <= 0 {
		c.MemoryLimitMB = DefaultMemoryLimitMB
	}
	if len(c.AllowedLanguages) == 0 {
		c.AllowedLanguages = append([]string(nil), DefaultLanguages...)
	}
	if c.TestCases == nil {
		c.TestCases = []TestCase{}
	}
	return c
}
