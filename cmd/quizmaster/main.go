package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizmaster/quizmaster/internal/handler"
	appI18n "github.com/quizmaster/quizmaster/internal/i18n"
	"github.com/quizmaster/quizmaster/internal/llm"
	"github.com/quizmaster/quizmaster/internal/metrics"
	"github.com/quizmaster/quizmaster/internal/model"
	"github.com/quizmaster/quizmaster/internal/sandbox"
	"github.com/quizmaster/quizmaster/internal/scoring"
	"github.com/quizmaster/quizmaster/internal/store"
)

const sessionCleanupInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quizmaster",
		Short: "Quiz platform with multiple-choice, free-text and coding questions",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `quizmaster --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addDBFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "quizmaster.db", "SQLite path or PostgreSQL DSN")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	addDBFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("llm-url", "https://generativelanguage.googleapis.com/v1beta/openai/", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the LLM (or set QUIZMASTER_LLM_KEY)")
	f.String("llm-model", llm.DefaultModel, "LLM model name")
	f.String("sandbox-url", sandbox.DefaultURL, "Code execution service URL")
	f.Float64("sandbox-rps", 3, "Maximum code execution requests per second (0 = unlimited)")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /quiz)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.StringSlice("cors-origins", nil, "Origins allowed to call the /api endpoints (repeatable)")
	f.String("admin-password", "", "Initial admin password (or set QUIZMASTER_ADMIN_PASSWORD)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create a quiz from a JSON file",
		RunE:  runImport,
	}
	addDBFlags(cmd)
	f := cmd.Flags()
	f.StringP("file", "f", "", "Quiz JSON file (required)")
	f.String("teacher", "", "Username of the teacher who owns the quiz (required)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("teacher")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export quiz results as JSON",
		RunE:  runExport,
	}
	addDBFlags(cmd)
	f := cmd.Flags()
	f.String("quiz-code", "", "Code of the quiz to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("quiz-code")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZMASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizmaster")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizmaster")
	v.AddConfigPath("/etc/quizmaster")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// setup parses configuration, installs the logger and opens the database.
func setup(cmd *cobra.Command) (*viper.Viper, *store.Store, error) {
	v := viperForCmd(cmd)
	setupLogging(v)

	driver := store.Driver(strings.ToLower(v.GetString("db-driver")))
	db, err := store.Open(cmd.Context(), driver, v.GetString("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return v, db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	metrics.Init()

	if v.GetString("llm-key") == "" {
		slog.Warn("no LLM API key configured; subjective answers will get the neutral score")
	}
	llmClient := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	exec := sandbox.New(v.GetString("sandbox-url"), sandbox.WithRateLimit(v.GetFloat64("sandbox-rps")))
	scorer := scoring.NewScorer(llmClient, sandbox.NewRunner(exec))
	agg := scoring.NewAggregator(db, scorer)

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h := handler.New(db, agg, llmClient, exec, model.AppConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		Lang:          lang,
		CORSOrigins:   v.GetStringSlice("cors-origins"),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(appI18n.Middleware(lang))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Group(func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	}

	go cleanupSessions(ctx, db)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"db_driver", v.GetString("db-driver"),
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"sandbox_url", v.GetString("sandbox-url"),
		"lang", lang,
		"base_path", basePath,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func cleanupSessions(ctx context.Context, db *store.Store) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.CleanupExpiredSessions(ctx); err != nil {
				slog.Warn("failed to clean up expired sessions", "error", err)
			}
		}
	}
}

func runImport(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := cmd.Context()

	path := v.GetString("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	hash := sha256sum(data)
	storedHash, err := db.GetImportedFileHash(ctx, path)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash {
		slog.Info("quiz file unchanged, skipping", "path", path)
		return nil
	}

	teacher, err := db.GetUserByUsername(ctx, v.GetString("teacher"))
	if err != nil {
		return fmt.Errorf("look up teacher: %w", err)
	}
	if teacher == nil || teacher.Role != model.UserRoleTeacher {
		return fmt.Errorf("no teacher named %q", v.GetString("teacher"))
	}

	var imp model.QuizImport
	if err := json.Unmarshal(data, &imp); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	questions, err := store.ValidateQuizImport(imp)
	if err != nil {
		return fmt.Errorf("validate %s: %w", path, err)
	}
	quiz, err := db.CreateQuiz(ctx, model.Quiz{
		Title:           imp.Title,
		CreatedBy:       teacher.ID,
		Difficulty:      model.ParseDifficulty(string(imp.Difficulty)),
		DurationMinutes: imp.DurationMinutes,
	}, questions)
	if err != nil {
		return fmt.Errorf("create quiz from %s: %w", path, err)
	}

	if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
		return fmt.Errorf("record import for %s: %w", path, err)
	}
	slog.Info("imported quiz", "path", path, "code", quiz.Code, "questions", len(questions))
	fmt.Fprintln(cmd.OutOrStdout(), quiz.Code)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	code := strings.ToUpper(strings.TrimSpace(v.GetString("quiz-code")))
	export, err := db.ExportQuiz(cmd.Context(), code)
	if err != nil {
		return fmt.Errorf("export quiz: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func seedAdmin(ctx context.Context, db *store.Store, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or QUIZMASTER_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := db.CreateUser(ctx, model.User{
		Username:     "admin",
		Email:        "admin@localhost",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	}); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	return nil
}
