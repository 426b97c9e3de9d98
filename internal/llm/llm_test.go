package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/quizmaster/quizmaster/internal/model"
)

// fakeOpenAI serves chat completions whose content is produced by reply.
func fakeOpenAI(t *testing.T, status int, reply func(prompt string) string) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %q", req.Model)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"quota exceeded","type":"rate_limit"}}`))
			return
		}
		content := reply(req.Messages[0].Content)
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/v1", "test-key", "test-model"), &calls
}

func TestGradeSubjective(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{"plain number", "0.8", 0.8},
		{"number in prose", "Score: 0.65 because it is mostly right", 0.65},
		{"leading dot", ".9", 0.9},
		{"clamped above", "8", 1},
		{"no number", "excellent answer", NeutralScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := fakeOpenAI(t, http.StatusOK, func(string) string { return tt.reply })
			got := c.GradeSubjective(context.Background(), "Q", "some answer", "model")
			if got != tt.want {
				t.Errorf("GradeSubjective() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeSubjectiveSendsPrompt(t *testing.T) {
	var seen string
	c, _ := fakeOpenAI(t, http.StatusOK, func(p string) string { seen = p; return "1" })
	c.GradeSubjective(context.Background(), "Define latency.", "time to respond", "delay before response")
	for _, want := range []string{"Define latency.", "time to respond", "delay before response"} {
		if !strings.Contains(seen, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGradeSubjectiveBlankAnswerSkipsModel(t *testing.T) {
	c, calls := fakeOpenAI(t, http.StatusOK, func(string) string { return "1" })
	if got := c.GradeSubjective(context.Background(), "Q", "   \n", "model"); got != 0 {
		t.Errorf("expected 0 for blank answer, got %v", got)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no API calls, got %d", calls.Load())
	}
}

func TestGradeSubjectiveAPIError(t *testing.T) {
	c, _ := fakeOpenAI(t, http.StatusTooManyRequests, nil)
	if got := c.GradeSubjective(context.Background(), "Q", "answer", ""); got != NeutralScore {
		t.Errorf("expected neutral score on API error, got %v", got)
	}
}

func TestExtractScore(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"0.75", 0.75, true},
		{"  1.0\n", 1, true},
		{"0", 0, true},
		{"Rating: 3.5/10", 1, true},
		{"none", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := extractScore(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("extractScore(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestGenerateQuestions(t *testing.T) {
	reply := "Here you go:\n```json\n[" +
		`{"question":"Pick","options":["A. a","B. b","C. c","D. d"],"answer":"B","type":"subjective"},` +
		`{"question":"Pick again","options":["A. a","B. b","C. c","D. d"],"answer":"C"},` +
		`{"question":"Extra","options":["A. a","B. b","C. c","D. d"],"answer":"A","type":"mcq"}` +
		"]\n```"
	var seen string
	c, _ := fakeOpenAI(t, http.StatusOK, func(p string) string { seen = p; return reply })

	qs, err := c.GenerateQuestions(context.Background(), GenerateRequest{
		Topic: "Go", Type: model.QuestionMCQ, Difficulty: model.DifficultyAdvanced, Count: 2,
	})
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	for i, q := range qs {
		if q.Type != model.QuestionMCQ {
			t.Errorf("question %d: expected type forced to mcq, got %q", i, q.Type)
		}
	}
	if qs[1].Answer != "C" {
		t.Errorf("expected answer C, got %q", qs[1].Answer)
	}
	if !strings.Contains(seen, "ADVANCED") || !strings.Contains(seen, "exactly 2 questions") {
		t.Errorf("unexpected prompt: %s", seen)
	}
}

func TestGenerateQuestionsErrors(t *testing.T) {
	c, _ := fakeOpenAI(t, http.StatusOK, func(string) string { return "I cannot do that." })
	if _, err := c.GenerateQuestions(context.Background(), GenerateRequest{Topic: "Go", Type: model.QuestionMCQ, Count: 1}); err == nil {
		t.Error("expected error for non-JSON reply")
	}
	if _, err := c.GenerateQuestions(context.Background(), GenerateRequest{Topic: " ", Type: model.QuestionMCQ}); err == nil {
		t.Error("expected error for empty topic")
	}
	if _, err := c.GenerateQuestions(context.Background(), GenerateRequest{Topic: "Go", Type: "essay"}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestParseQuestionsCoding(t *testing.T) {
	raw := `[{"question":"Echo","type":"coding","test_cases":[{"input":"1","expected_output":"1","is_hidden":true}],"starter_code":{"python":"pass"}}]`
	qs, err := parseQuestions(raw)
	if err != nil {
		t.Fatalf("parseQuestions: %v", err)
	}
	if len(qs[0].TestCases) != 1 || !qs[0].TestCases[0].IsHidden || qs[0].StarterCode["python"] != "pass" {
		t.Errorf("unexpected coding question: %+v", qs[0])
	}
}
