package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/quizmaster/quizmaster/internal/model"
)

//go:embed *.txt
var files embed.FS

const maxAnswerRunes = 10000

var studentAnswerRegex = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)

var (
	loadOnce  sync.Once
	loadErr   error
	templates *template.Template
)

// GradeData holds template data for the subjective grading prompt.
type GradeData struct {
	Question    string
	Answer      string
	ModelAnswer string
}

// GenerateData holds template data for question generation prompts.
type GenerateData struct {
	Topic            string
	Level            string
	LevelDescription string
	Count            int
	Seed             int
}

var levelDescriptions = map[model.Difficulty]string{
	model.DifficultyBeginner:     "Remembering and Understanding level - basic facts, definitions, and simple concepts",
	model.DifficultyIntermediate: "Applying and Analyzing level - practical application and analysis of concepts",
	model.DifficultyAdvanced:     "Evaluating and Creating level - critical thinking, evaluation, and synthesis",
}

// NewGenerateData fills level fields for d. Unknown difficulties fall back to beginner.
func NewGenerateData(topic string, d model.Difficulty, count, seed int) GenerateData {
	desc, ok := levelDescriptions[d]
	if !ok {
		d = model.DifficultyBeginner
		desc = levelDescriptions[d]
	}
	return GenerateData{
		Topic:            topic,
		Level:            strings.ToUpper(string(d)),
		LevelDescription: desc,
		Count:            count,
		Seed:             seed,
	}
}

func load() error {
	loadOnce.Do(func() {
		templates, loadErr = template.ParseFS(files, "*.txt")
		if loadErr != nil {
			loadErr = fmt.Errorf("parse prompt templates: %w", loadErr)
		}
	})
	return loadErr
}

func execute(name string, data any) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Grade renders the subjective grading prompt.
func Grade(data GradeData) (string, error) {
	data.Answer = sanitizeAnswer(data.Answer)
	return execute("grade.txt", data)
}

// Generate renders the generation prompt for one question type.
func Generate(qtype model.QuestionType, data GenerateData) (string, error) {
	switch qtype {
	case model.QuestionMCQ, model.QuestionSubjective, model.QuestionCoding:
	default:
		return "", fmt.Errorf("unknown question type %q", qtype)
	}
	return execute("generate_"+string(qtype)+".txt", data)
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
