package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/quizmaster/quizmaster/internal/metrics"
)

// DefaultURL is the public Piston execute endpoint. It needs no API key.
const DefaultURL = "https://emkc.org/api/v2/piston/execute"

const (
	requestTimeout     = 15 * time.Second
	compileTimeoutMs   = 10000
	maxErrorBodyLength = 200 // runes
)

// Status is the normalized outcome of one execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Request is one program run with one stdin.
type Request struct {
	Code             string
	Language         string
	Stdin            string
	TimeLimitSeconds int
	MemoryLimitMB    int
}

// Result is the execution outcome. Message is set only for errors.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Output  string `json:"output"`
	Stderr  string `json:"stderr"`
}

// OK reports whether the program ran and exited with code 0.
func (r Result) OK() bool { return r.Status == StatusSuccess }

func errorResult(message, stderr string) Result {
	return Result{Status: StatusError, Message: message, Stderr: stderr}
}

var pistonLanguages = map[string]string{
	"python":  "python3",
	"python3": "python3",
	"java":    "java",
	"cpp":     "cpp",
	"c":       "c",
}

// PistonLanguage maps a quiz language identifier to Piston's; unknown ones run as python3.
func PistonLanguage(lang string) string {
	if l, ok := pistonLanguages[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return l
	}
	return "python3"
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonRequest struct {
	Language           string       `json:"language"`
	Version            string       `json:"version"`
	Files              []pistonFile `json:"files"`
	Stdin              string       `json:"stdin"`
	Args               []string     `json:"args"`
	CompileTimeout     int          `json:"compile_timeout"`
	RunTimeout         int          `json:"run_timeout"`
	CompileMemoryLimit int64        `json:"compile_memory_limit"`
	RunMemoryLimit     int64        `json:"run_memory_limit"`
}

type pistonRun struct {
	Code   *int   `json:"code"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Client talks to a Piston-compatible code execution service.
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outbound requests per second. Zero or less disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a client for the execute endpoint at url (DefaultURL if empty).
func New(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:  url,
		http: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs req once. It never returns an error: every failure is folded
// into a Result with StatusError and a diagnostic message.
func (c *Client) Execute(ctx context.Context, req Request) Result {
	lang := PistonLanguage(req.Language)
	start := time.Now()
	res := c.execute(ctx, lang, req)
	metrics.ObserveExecution(lang, string(res.Status), time.Since(start))
	if !res.OK() && res.Message != "Runtime Error" {
		slog.Warn("code execution failed", "language", lang, "message", res.Message)
	}
	return res
}

func (c *Client) execute(ctx context.Context, lang string, req Request) Result {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errorResult(fmt.Sprintf("Execution error: %v", err), "")
		}
	}

	memBytes := int64(req.MemoryLimitMB) * 1024 * 1024
	payload, err := json.Marshal(pistonRequest{
		Language:           lang,
		Version:            "*",
		Files:              []pistonFile{{Content: req.Code}},
		Stdin:              req.Stdin,
		Args:               []string{},
		CompileTimeout:     compileTimeoutMs,
		RunTimeout:         req.TimeLimitSeconds * 1000,
		CompileMemoryLimit: memBytes,
		RunMemoryLimit:     memBytes,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("Execution error: %v", err), "")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return errorResult(fmt.Sprintf("Execution error: %v", err), "")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return errorResult(fmt.Sprintf("Network error: %v", err), "")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(fmt.Sprintf("Network error: %v", err), "")
	}
	if resp.StatusCode != http.StatusOK {
		snippet := []rune(string(body))
		if len(snippet) > maxErrorBodyLength {
			snippet = snippet[:maxErrorBodyLength]
		}
		return errorResult(fmt.Sprintf("API returned status %d", resp.StatusCode), string(snippet))
	}
	return parseResponse(body)
}

func parseResponse(body []byte) Result {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return errorResult(fmt.Sprintf("Failed to parse API response: %v", err), "")
	}
	if len(top) == 0 {
		return errorResult("Empty response from execution API", "")
	}

	raw, ok := top["run"]
	var run map[string]json.RawMessage
	if ok {
		if err := json.Unmarshal(raw, &run); err != nil {
			return errorResult(fmt.Sprintf("Failed to parse API response: %v", err), "")
		}
	}
	if len(run) == 0 {
		return errorResult("Unexpected API response format", strings.TrimSpace(string(body)))
	}

	var r pistonRun
	if err := json.Unmarshal(raw, &r); err != nil {
		return errorResult(fmt.Sprintf("Failed to parse API response: %v", err), "")
	}
	stdout := strings.TrimSpace(r.Stdout)
	stderr := strings.TrimSpace(r.Stderr)
	if r.Code != nil && *r.Code == 0 {
		return Result{Status: StatusSuccess, Output: stdout, Stderr: stderr}
	}
	if stderr == "" {
		stderr = r.Stdout
	}
	return Result{Status: StatusError, Message: "Runtime Error", Output: stdout, Stderr: stderr}
}
