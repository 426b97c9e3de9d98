package handler

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
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quizmaster/quizmaster/internal/handler/views"
	appI18n "github.com/quizmaster/quizmaster/internal/i18n"
	"github.com/quizmaster/quizmaster/internal/llm"
	"github.com/quizmaster/quizmaster/internal/model"
	"github.com/quizmaster/quizmaster/internal/sandbox"
	"github.com/quizmaster/quizmaster/internal/scoring"
	"github.com/quizmaster/quizmaster/internal/store"
)

const (
	maxGenerateCount = 20
	maxUploadSize    = 10 << 20
)

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)
	switch user.Role {
	case model.UserRoleAdmin:
		http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
	case model.UserRoleTeacher:
		quizzes, err := h.store.ListQuizzesByCreator(ctx, user.ID)
		if err != nil {
			slog.Error("failed to list quizzes", "user", user.ID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.render(w, r, http.StatusOK, views.TeacherDashboard(quizzes))
	default:
		rows, err := h.store.ListSubmissionsForStudent(ctx, user.ID)
		if err != nil {
			slog.Error("failed to list submissions", "user", user.ID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.render(w, r, http.StatusOK, views.StudentDashboard(rows, time.Now()))
	}
}

// Student pages.

func (h *Handler) handleJoinPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.JoinPage(""))
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.ToUpper(strings.TrimSpace(r.FormValue("code")))
	if code == "" {
		h.render(w, r, http.StatusBadRequest, views.JoinPage(appI18n.T(ctx, "QuizCodeRequired")))
		return
	}
	if _, err := h.store.GetQuizByCode(ctx, code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.setFlash(w, views.FlashError, appI18n.T(ctx, "QuizNotFound"))
			http.Redirect(w, r, h.path("/quiz/join"), http.StatusSeeOther)
			return
		}
		slog.Error("failed to get quiz", "code", code, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.path("/quiz/take/"+code), http.StatusSeeOther)
}

func (h *Handler) handleTakeQuiz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)
	code := chi.URLParam(r, "code")

	quiz, questions, sub, err := h.agg.Start(ctx, code, user.ID)
	switch {
	case errors.Is(err, scoring.ErrQuizNotFound):
		h.setFlash(w, views.FlashError, appI18n.T(ctx, "QuizNotFound"))
		http.Redirect(w, r, h.path("/quiz/join"), http.StatusSeeOther)
		return
	case errors.Is(err, scoring.ErrAlreadyCompleted):
		h.setFlash(w, views.FlashInfo, appI18n.T(ctx, "QuizAlreadyAttempted"))
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	case err != nil:
		slog.Error("failed to start quiz", "code", code, "student", user.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, views.TakePage(quiz, questions, sub))
}

func (h *Handler) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)
	code := chi.URLParam(r, "code")

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	responses := make(scoring.Responses, len(r.PostForm))
	for key := range r.PostForm {
		responses[key] = r.PostForm.Get(key)
	}
	fullscreenExit := r.PostForm.Get("fullscreen_exit") == "true"

	sub, err := h.agg.Submit(ctx, code, user.ID, responses, fullscreenExit)
	switch {
	case errors.Is(err, scoring.ErrQuizNotFound):
		h.setFlash(w, views.FlashError, appI18n.T(ctx, "QuizNotFound"))
		http.Redirect(w, r, h.path("/quiz/join"), http.StatusSeeOther)
		return
	case errors.Is(err, scoring.ErrAlreadyCompleted):
		h.setFlash(w, views.FlashInfo, appI18n.T(ctx, "QuizAlreadyAttempted"))
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	case err != nil:
		h.setFlash(w, views.FlashError, appI18n.T(ctx, "SubmitFailed"))
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	}

	h.setFlash(w, views.FlashSuccess, appI18n.T(ctx, "QuizSubmitted"))
	http.Redirect(w, r, h.path(fmt.Sprintf("/quiz/result/%d", sub.ID)), http.StatusSeeOther)
}

// handleAutoSubmit is called by the quiz page when the student leaves
// fullscreen or closes the tab. It always answers 204; the client is gone.
func (h *Handler) handleAutoSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)
	code := chi.URLParam(r, "code")

	var payload map[string]any
	r.Body = http.MaxBytesReader(w, r.Body, maxAPIBody)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("invalid auto-submit payload", "code", code, "student", user.ID, "error", err)
	}
	responses := make(scoring.Responses, len(payload))
	for key, v := range payload {
		switch v := v.(type) {
		case string:
			responses[key] = v
		case nil:
		default:
			responses[key] = fmt.Sprint(v)
		}
	}

	if _, err := h.agg.AutoSubmit(ctx, code, user.ID, responses); err != nil && !errors.Is(err, scoring.ErrAlreadyCompleted) {
		slog.Warn("auto-submit failed", "code", code, "student", user.ID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleQuizResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)
	id, ok := paramID(r, "submissionID")
	if !ok {
		h.submissionNotFound(w, r)
		return
	}

	view, err := h.agg.Result(ctx, id, user.ID)
	switch {
	case errors.Is(err, scoring.ErrSubmissionNotFound), errors.Is(err, scoring.ErrNotOwner):
		h.submissionNotFound(w, r)
		return
	case errors.Is(err, scoring.ErrNotSubmitted):
		h.setFlash(w, views.FlashInfo, appI18n.T(ctx, "QuizNotSubmitted"))
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	case errors.Is(err, scoring.ErrReviewLocked):
		sub, err := h.store.GetSubmission(ctx, id)
		if err != nil {
			slog.Error("failed to get submission", "id", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.render(w, r, http.StatusOK, views.ResultLockedPage(sub))
		return
	case err != nil:
		slog.Error("failed to load result", "submission", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	for _, qr := range view.Results {
		if qr.Answer != nil {
			qr.Answer.TestResults = sandbox.MaskHidden(qr.Answer.TestResults)
		}
	}
	h.render(w, r, http.StatusOK, views.ResultPage(view))
}

// submissionNotFound sends the user home. Missing and foreign submissions
// get the same answer so ids cannot be enumerated.
func (h *Handler) submissionNotFound(w http.ResponseWriter, r *http.Request) {
	h.setFlash(w, views.FlashError, appI18n.T(r.Context(), "SubmissionNotFound"))
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

// Teacher pages.

func (h *Handler) handleNewQuizPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.QuizFormPage(views.QuizForm{
		Difficulty: string(model.DifficultyBeginner),
		Generate:   views.GenerateForm{Type: string(model.QuestionMCQ), Count: 5, Marks: 1},
	}, ""))
}

func (h *Handler) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := quizFormFromRequest(r)
	gf := views.GenerateForm{
		Topic: strings.TrimSpace(r.FormValue("topic")),
		Type:  r.FormValue("question_type"),
	}
	gf.Count, _ = strconv.Atoi(r.FormValue("count"))
	gf.Marks, _ = strconv.Atoi(r.FormValue("marks"))
	form.Generate = gf

	if gf.Topic == "" || gf.Count < 1 || gf.Count > maxGenerateCount {
		h.render(w, r, http.StatusBadRequest, views.QuizFormPage(form, appI18n.Td(ctx, "GenerateInvalid", map[string]any{"Max": maxGenerateCount})))
		return
	}
	if gf.Marks < 1 {
		gf.Marks = 1
	}

	questions, err := h.gen.GenerateQuestions(ctx, llm.GenerateRequest{
		Topic:      gf.Topic,
		Type:       model.QuestionType(gf.Type),
		Difficulty: model.ParseDifficulty(form.Difficulty),
		Count:      gf.Count,
	})
	if err != nil {
		slog.Warn("question generation failed", "topic", gf.Topic, "error", err)
		h.render(w, r, http.StatusBadGateway, views.QuizFormPage(form, appI18n.T(ctx, "GenerateFailed")))
		return
	}
	for i := range questions {
		questions[i].Marks = gf.Marks
	}
	data, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		slog.Error("failed to encode generated questions", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	form.QuestionsJSON = string(data)
	if form.Title == "" {
		form.Title = gf.Topic
	}
	h.render(w, r, http.StatusOK, views.QuizFormPage(form, ""))
}

func quizFormFromRequest(r *http.Request) views.QuizForm {
	return views.QuizForm{
		Title:           strings.TrimSpace(r.FormValue("title")),
		Difficulty:      string(model.ParseDifficulty(r.FormValue("difficulty"))),
		DurationMinutes: strings.TrimSpace(r.FormValue("duration_minutes")),
		QuestionsJSON:   r.FormValue("questions_json"),
	}
}

func (h *Handler) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := quizFormFromRequest(r)
	fail := func(msg string) {
		h.render(w, r, http.StatusBadRequest, views.QuizFormPage(form, msg))
	}

	imp := model.QuizImport{Title: form.Title, Difficulty: model.Difficulty(form.Difficulty)}
	if form.DurationMinutes != "" {
		d, err := strconv.Atoi(form.DurationMinutes)
		if err != nil || d <= 0 {
			fail(appI18n.T(ctx, "InvalidDuration"))
			return
		}
		imp.DurationMinutes = &d
	}
	if err := json.Unmarshal([]byte(form.QuestionsJSON), &imp.Questions); err != nil {
		fail(appI18n.Td(ctx, "InvalidQuestionsJSON", map[string]any{"Error": err.Error()}))
		return
	}

	quiz, err := h.createQuiz(ctx, imp)
	if err != nil {
		fail(appI18n.Td(ctx, "InvalidQuiz", map[string]any{"Error": err.Error()}))
		return
	}
	h.setFlash(w, views.FlashSuccess, appI18n.Td(ctx, "QuizCreated", map[string]any{"Code": quiz.Code}))
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

// handleUploadQuiz creates a quiz from an uploaded quiz file. A file whose
// content was already imported under the same name is skipped.
func (h *Handler) handleUploadQuiz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("quiz_file")
	if err != nil {
		http.Error(w, "no file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	key := fmt.Sprintf("upload:%d:%s", user.ID, header.Filename)

	stored, err := h.store.GetImportedFileHash(ctx, key)
	if err != nil {
		slog.Error("failed to check import status", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if stored == hash {
		h.setFlash(w, views.FlashInfo, appI18n.T(ctx, "UploadDuplicate"))
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	}

	var imp model.QuizImport
	if err := json.Unmarshal(data, &imp); err != nil {
		h.setFlash(w, views.FlashError, appI18n.Td(ctx, "InvalidQuestionsJSON", map[string]any{"Error": err.Error()}))
		http.Redirect(w, r, h.path("/teacher/quiz/new"), http.StatusSeeOther)
		return
	}
	quiz, err := h.createQuiz(ctx, imp)
	if err != nil {
		h.setFlash(w, views.FlashError, appI18n.Td(ctx, "InvalidQuiz", map[string]any{"Error": err.Error()}))
		http.Redirect(w, r, h.path("/teacher/quiz/new"), http.StatusSeeOther)
		return
	}
	if err := h.store.SetImportedFileHash(ctx, key, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}
	slog.Info("uploaded quiz", "filename", header.Filename, "code", quiz.Code, "questions", len(imp.Questions))

	h.setFlash(w, views.FlashSuccess, appI18n.Td(ctx, "QuizCreated", map[string]any{"Code": quiz.Code}))
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) createQuiz(ctx context.Context, imp model.QuizImport) (model.Quiz, error) {
	user := model.UserFromContext(ctx)
	questions, err := store.ValidateQuizImport(imp)
	if err != nil {
		return model.Quiz{}, err
	}
	quiz, err := h.store.CreateQuiz(ctx, model.Quiz{
		Title:           imp.Title,
		CreatedBy:       user.ID,
		Difficulty:      model.ParseDifficulty(string(imp.Difficulty)),
		DurationMinutes: imp.DurationMinutes,
	}, questions)
	if err != nil {
		slog.Error("failed to create quiz", "user", user.ID, "error", err)
		return model.Quiz{}, err
	}
	slog.Info("quiz created", "code", quiz.Code, "teacher", user.ID, "questions", len(questions))
	return quiz, nil
}

// ownQuiz loads the quiz with the code in the URL if the current user created it.
func (h *Handler) ownQuiz(w http.ResponseWriter, r *http.Request) (model.Quiz, bool) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)
	quiz, err := h.store.GetQuizByCode(ctx, chi.URLParam(r, "code"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && quiz.CreatedBy != user.ID) {
		h.setFlash(w, views.FlashError, appI18n.T(ctx, "QuizNotFound"))
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return model.Quiz{}, false
	}
	if err != nil {
		slog.Error("failed to get quiz", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return model.Quiz{}, false
	}
	return quiz, true
}

func (h *Handler) handleTeacherResults(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownQuiz(w, r)
	if !ok {
		return
	}
	rows, err := h.store.ListSubmissionsForQuiz(r.Context(), quiz.ID)
	if err != nil {
		slog.Error("failed to list submissions", "quiz", quiz.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, views.TeacherResultsPage(quiz, rows))
}

func (h *Handler) handleExportQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, ok := h.ownQuiz(w, r)
	if !ok {
		return
	}
	export, err := h.store.ExportQuiz(r.Context(), quiz.Code)
	if err != nil {
		slog.Error("failed to export quiz", "code", quiz.Code, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz-%s.json"`, quiz.Code))
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleAllowRetake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := model.UserFromContext(ctx)
	id, ok := paramID(r, "submissionID")
	if !ok {
		h.submissionNotFound(w, r)
		return
	}

	back := h.path("/")
	if code := strings.TrimSpace(r.FormValue("quiz_code")); code != "" {
		back = h.path("/teacher/quiz/" + url.PathEscape(code) + "/results")
	}

	err := h.agg.AllowRetake(ctx, id, user.ID)
	switch {
	case errors.Is(err, scoring.ErrSubmissionNotFound), errors.Is(err, scoring.ErrNotOwner):
		h.submissionNotFound(w, r)
		return
	case err != nil:
		h.setFlash(w, views.FlashError, appI18n.T(ctx, "RetakeFailed"))
	default:
		h.setFlash(w, views.FlashSuccess, appI18n.T(ctx, "RetakeAllowed"))
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
