package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/quizmaster/quizmaster/internal/model"
	"github.com/quizmaster/quizmaster/internal/sandbox"
	"github.com/quizmaster/quizmaster/internal/scoring"
)

const maxAPIBody = 1 << 20

type testCodeRequest struct {
	Code        string `json:"code"`
	Language    string `json:"language"`
	TestInput   string `json:"test_input"`
	TimeLimit   int    `json:"time_limit"`
	MemoryLimit int    `json:"memory_limit"`
}

type runTestCasesRequest struct {
	Code        string           `json:"code"`
	Language    string           `json:"language"`
	TestCases   []model.TestCase `json:"test_cases"`
	TimeLimit   int              `json:"time_limit"`
	MemoryLimit int              `json:"memory_limit"`
}

type apiResponse struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

func decodeAPIRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAPIBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

// limits fills zero values with the coding question defaults.
func limits(timeLimit, memoryLimit int) (int, int) {
	c := model.Coding{TimeLimitSeconds: timeLimit, MemoryLimitMB: memoryLimit}.WithDefaults()
	return c.TimeLimitSeconds, c.MemoryLimitMB
}

func languageOrDefault(lang string) string {
	if lang = strings.TrimSpace(lang); lang != "" {
		return lang
	}
	return scoring.DefaultLanguage
}

// handleTestCode runs code once against custom input.
func (h *Handler) handleTestCode(w http.ResponseWriter, r *http.Request) {
	var req testCodeRequest
	if !decodeAPIRequest(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "code is required"})
		return
	}
	tl, mem := limits(req.TimeLimit, req.MemoryLimit)
	res := h.exec.Execute(r.Context(), sandbox.Request{
		Code:             req.Code,
		Language:         languageOrDefault(req.Language),
		Stdin:            req.TestInput,
		TimeLimitSeconds: tl,
		MemoryLimitMB:    mem,
	})
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Result: res})
}

// handleRunTestCases runs code against a list of test cases. Hidden cases
// come back with their input and expected output masked.
func (h *Handler) handleRunTestCases(w http.ResponseWriter, r *http.Request) {
	var req runTestCasesRequest
	if !decodeAPIRequest(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "code is required"})
		return
	}
	if len(req.TestCases) == 0 {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "test_cases is required"})
		return
	}
	tl, mem := limits(req.TimeLimit, req.MemoryLimit)
	rep := h.runner.Run(r.Context(), req.Code, languageOrDefault(req.Language), req.TestCases, tl, mem)
	rep.Results = sandbox.MaskHidden(rep.Results)
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Result: rep})
}
