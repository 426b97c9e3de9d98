package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func newPiston(t *testing.T, status int, body string, check func(t *testing.T, req pistonRequest)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req pistonRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(t, req)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestExecuteBuildsPistonRequest(t *testing.T) {
	c := newPiston(t, http.StatusOK, `{"run":{"code":0,"stdout":"3\n","stderr":""}}`, func(t *testing.T, req pistonRequest) {
		if req.Language != "python3" || req.Version != "*" {
			t.Errorf("unexpected language/version: %q %q", req.Language, req.Version)
		}
		if len(req.Files) != 1 || req.Files[0].Content != "print(1+2)" {
			t.Errorf("unexpected files: %+v", req.Files)
		}
		if req.Stdin != "in" {
			t.Errorf("expected stdin 'in', got %q", req.Stdin)
		}
		if req.Args == nil {
			t.Error("expected empty args array, got null")
		}
		if req.RunTimeout != 3000 || req.CompileTimeout != 10000 {
			t.Errorf("unexpected timeouts: run=%d compile=%d", req.RunTimeout, req.CompileTimeout)
		}
		if req.RunMemoryLimit != 128*1024*1024 || req.CompileMemoryLimit != 128*1024*1024 {
			t.Errorf("unexpected memory limits: %d %d", req.RunMemoryLimit, req.CompileMemoryLimit)
		}
	})

	res := c.Execute(context.Background(), Request{
		Code: "print(1+2)", Language: "python", Stdin: "in", TimeLimitSeconds: 3, MemoryLimitMB: 128,
	})
	if !res.OK() || res.Output != "3" {
		t.Errorf("expected success with output 3, got %+v", res)
	}
}

func TestExecuteResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  Status
		wantMessage string
		wantOutput  string
		wantStderr  string
	}{
		{"success trims", http.StatusOK, `{"run":{"code":0,"stdout":" hi \n","stderr":" warn "}}`, StatusSuccess, "", "hi", "warn"},
		{"runtime error with stderr", http.StatusOK, `{"run":{"code":1,"stdout":"partial","stderr":"Traceback"}}`, StatusError, "Runtime Error", "partial", "Traceback"},
		{"runtime error falls back to stdout", http.StatusOK, `{"run":{"code":2,"stdout":"oops\n","stderr":""}}`, StatusError, "Runtime Error", "oops", "oops\n"},
		{"killed by signal", http.StatusOK, `{"run":{"code":null,"signal":"SIGKILL","stdout":"","stderr":""}}`, StatusError, "Runtime Error", "", ""},
		{"empty object", http.StatusOK, `{}`, StatusError, "Empty response from execution API", "", ""},
		{"null body", http.StatusOK, `null`, StatusError, "Empty response from execution API", "", ""},
		{"no run key", http.StatusOK, `{"message":"runtime unknown"}`, StatusError, "Unexpected API response format", "", `{"message":"runtime unknown"}`},
		{"bad status", http.StatusTooManyRequests, strings.Repeat("x", 300), StatusError, "API returned status 429", "", strings.Repeat("x", 200)},
		{"bad status multibyte", http.StatusBadGateway, strings.Repeat("ошибка ", 40), StatusError, "API returned status 502", "", string([]rune(strings.Repeat("ошибка ", 40))[:200])},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newPiston(t, tt.status, tt.body, nil)
			res := c.Execute(context.Background(), Request{Code: "x", Language: "python", TimeLimitSeconds: 2, MemoryLimitMB: 256})
			if res.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", res.Status, tt.wantStatus)
			}
			if res.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", res.Message, tt.wantMessage)
			}
			if res.Output != tt.wantOutput {
				t.Errorf("output = %q, want %q", res.Output, tt.wantOutput)
			}
			if res.Stderr != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", res.Stderr, tt.wantStderr)
			}
		})
	}
}

func TestExecuteErrorSnippetIsValidUTF8(t *testing.T) {
	c := newPiston(t, http.StatusInternalServerError, strings.Repeat("é", 300), nil)
	res := c.Execute(context.Background(), Request{Code: "x"})
	if !utf8.ValidString(res.Stderr) {
		t.Fatalf("stderr is not valid UTF-8: %q", res.Stderr)
	}
	if n := utf8.RuneCountInString(res.Stderr); n != maxErrorBodyLength {
		t.Errorf("stderr has %d runes, want %d", n, maxErrorBodyLength)
	}
}

func TestExecuteMalformedJSON(t *testing.T) {
	c := newPiston(t, http.StatusOK, `not json`, nil)
	res := c.Execute(context.Background(), Request{Code: "x"})
	if res.OK() || !strings.HasPrefix(res.Message, "Failed to parse API response") {
		t.Errorf("expected parse failure, got %+v", res)
	}
}

func TestExecuteNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := New(url).Execute(context.Background(), Request{Code: "x"})
	if res.OK() || !strings.HasPrefix(res.Message, "Network error") {
		t.Errorf("expected network error, got %+v", res)
	}
}

func TestExecuteRateLimitHonorsContext(t *testing.T) {
	c := newPiston(t, http.StatusOK, `{"run":{"code":0,"stdout":"","stderr":""}}`, nil)
	WithRateLimit(0.001)(c)

	// The first request consumes the only token.
	if res := c.Execute(context.Background(), Request{Code: "x"}); !res.OK() {
		t.Fatalf("first request: %+v", res)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := c.Execute(ctx, Request{Code: "x"})
	if res.OK() || !strings.HasPrefix(res.Message, "Execution error") {
		t.Errorf("expected limiter error, got %+v", res)
	}
}

func TestPistonLanguage(t *testing.T) {
	tests := map[string]string{
		"python":  "python3",
		"Python3": "python3",
		"java":    "java",
		"cpp":     "cpp",
		"c":       "c",
		"rust":    "python3",
		"":        "python3",
	}
	for in, want := range tests {
		if got := PistonLanguage(in); got != want {
			t.Errorf("PistonLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
