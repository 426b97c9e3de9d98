package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quizmaster/quizmaster/internal/llm/prompts"
	"github.com/quizmaster/quizmaster/internal/metrics"
	"github.com/quizmaster/quizmaster/internal/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// NeutralScore is returned when the grader cannot produce a score.
const NeutralScore = 0.5

var (
	scoreRegex = regexp.MustCompile(`(\d*\.?\d+)`)
	fenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

func (c *Client) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}
	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return raw, nil
}

// GradeSubjective rates answer against the question and model answer on a
// 0..1 scale. A blank answer scores 0 without calling the model. Any failure
// to obtain or parse a score yields NeutralScore.
func (c *Client) GradeSubjective(ctx context.Context, question, answer, modelAnswer string) float64 {
	if strings.TrimSpace(answer) == "" {
		return 0
	}
	prompt, err := prompts.Grade(prompts.GradeData{Question: question, Answer: answer, ModelAnswer: modelAnswer})
	if err != nil {
		return fallback("prompt", err)
	}
	raw, err := c.complete(ctx, prompt, 0.1)
	if err != nil {
		return fallback("error", err)
	}
	score, ok := extractScore(raw)
	if !ok {
		return fallback("unparsable", fmt.Errorf("no number in response %q", raw))
	}
	return score
}

func fallback(reason string, err error) float64 {
	slog.Warn("subjective grading fell back to neutral score", "reason", reason, "error", err)
	metrics.GraderFallbacks.WithLabelValues(reason).Inc()
	return NeutralScore
}

// extractScore returns the first number in text clamped to [0, 1].
func extractScore(text string) (float64, bool) {
	m := scoreRegex.FindString(strings.TrimSpace(text))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return min(max(v, 0), 1), true
}

// GenerateRequest describes a batch of questions to generate.
type GenerateRequest struct {
	Topic      string
	Type       model.QuestionType
	Difficulty model.Difficulty
	Count      int
}

// GenerateQuestions asks the model for req.Count questions of req.Type.
// Every returned question is forced to the requested type.
func (c *Client) GenerateQuestions(ctx context.Context, req GenerateRequest) ([]model.QuestionImport, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, errors.New("topic is required")
	}
	if req.Count <= 0 {
		req.Count = 5
	}
	data := prompts.NewGenerateData(req.Topic, req.Difficulty, req.Count, 1000+rand.IntN(9000))
	prompt, err := prompts.Generate(req.Type, data)
	if err != nil {
		return nil, err
	}
	raw, err := c.complete(ctx, prompt, 0.7)
	if err != nil {
		return nil, err
	}
	questions, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if questions[i].Type != req.Type {
			if questions[i].Type != "" {
				slog.Warn("generated question type mismatch", "want", req.Type, "got", questions[i].Type)
			}
			questions[i].Type = req.Type
		}
	}
	if len(questions) > req.Count {
		questions = questions[:req.Count]
	}
	return questions, nil
}

// parseQuestions decodes a JSON array of questions, tolerating a markdown
// code fence or prose around it.
func parseQuestions(raw string) ([]model.QuestionImport, error) {
	text := strings.TrimSpace(raw)
	if m := fenceRegex.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	var questions []model.QuestionImport
	if err := json.Unmarshal([]byte(text), &questions); err != nil {
		return nil, fmt.Errorf("invalid response format from AI: %w", err)
	}
	if len(questions) == 0 {
		return nil, errors.New("AI returned no questions")
	}
	return questions, nil
}
