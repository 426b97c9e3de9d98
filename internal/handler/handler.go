package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/quizmaster/quizmaster/internal/handler/views"
	"github.com/quizmaster/quizmaster/internal/llm"
	"github.com/quizmaster/quizmaster/internal/model"
	"github.com/quizmaster/quizmaster/internal/sandbox"
	"github.com/quizmaster/quizmaster/internal/scoring"
	"github.com/quizmaster/quizmaster/internal/store"
)

// QuestionGenerator produces draft questions for a topic.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, req llm.GenerateRequest) ([]model.QuestionImport, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	agg    *scoring.Aggregator
	gen    QuestionGenerator
	exec   sandbox.Executor
	runner *sandbox.Runner
	config model.AppConfig
}

// New creates a new Handler.
func New(s *store.Store, agg *scoring.Aggregator, gen QuestionGenerator, exec sandbox.Executor, cfg model.AppConfig) *Handler {
	return &Handler{
		store:  s,
		agg:    agg,
		gen:    gen,
		exec:   exec,
		runner: sandbox.NewRunner(exec),
		config: cfg,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)
		r.Get("/signup", h.handleSignupPage)
		r.Post("/signup", h.handleSignup)
		r.Post("/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/", h.handleDashboard)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleStudent))
				r.Get("/quiz/join", h.handleJoinPage)
				r.Post("/quiz/join", h.handleJoin)
				r.Get("/quiz/take/{code}", h.handleTakeQuiz)
				r.Post("/quiz/submit/{code}", h.handleSubmitQuiz)
				r.Post("/quiz/auto_submit/{code}", h.handleAutoSubmit)
				r.Get("/quiz/result/{submissionID}", h.handleQuizResult)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleTeacher))
				r.Get("/teacher/quiz/new", h.handleNewQuizPage)
				r.Post("/teacher/quiz/generate", h.handleGenerateQuiz)
				r.Post("/teacher/quiz/create", h.handleCreateQuiz)
				r.Post("/teacher/quiz/upload", h.handleUploadQuiz)
				r.Get("/teacher/quiz/{code}/export", h.handleExportQuiz)
				r.Get("/teacher/quiz/{code}/results", h.handleTeacherResults)
				r.Post("/teacher/submission/{submissionID}/retake", h.handleAllowRetake)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/admin/users", h.handleAdminUsersPage)
				r.Post("/admin/users", h.handleCreateUser)
				r.Post("/admin/users/{userID}/toggle", h.handleToggleUserActive)
				r.Get("/admin/users/{userID}/logins", h.handleUserLogins)
			})
		})

		r.Route("/api", func(r chi.Router) {
			// An empty origin list would make cors allow every origin.
			if len(h.config.CORSOrigins) > 0 {
				r.Use(cors.Handler(cors.Options{
					AllowedOrigins:   h.config.CORSOrigins,
					AllowedMethods:   []string{"POST", "OPTIONS"},
					AllowedHeaders:   []string{"Content-Type", csrfHeaderName},
					AllowCredentials: true,
					MaxAge:           300,
				}))
			}
			r.Use(h.requireAuth)
			r.Use(requireRole(model.UserRoleStudent, model.UserRoleTeacher))
			r.Post("/test_code", h.handleTestCode)
			r.Post("/run_test_cases", h.handleRunTestCases)
		})
	})
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes an absolute application path with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// render writes an HTML page, first moving any pending flash message into its context.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	ctx := r.Context()
	if f, ok := h.popFlash(w, r); ok {
		ctx = views.WithFlash(ctx, f)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := c.Render(ctx, w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode JSON response", "error", err)
	}
}

func paramID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}
