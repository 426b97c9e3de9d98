package handler

import (
	"bytes"
	"encoding/base64"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizmaster/quizmaster/internal/handler/views"
	appI18n "github.com/quizmaster/quizmaster/internal/i18n"
	"github.com/quizmaster/quizmaster/internal/llm"
	"github.com/quizmaster/quizmaster/internal/model"
	"github.com/quizmaster/quizmaster/internal/sandbox"
	"github.com/quizmaster/quizmaster/internal/scoring"
	"github.com/quizmaster/quizmaster/internal/store"
)

const testCSRF = "test-csrf-token"

// echoExecutor prints its stdin back.
type echoExecutor struct{ calls int }

func (e *echoExecutor) Execute(_ context.Context, req sandbox.Request) sandbox.Result {
	e.calls++
	return sandbox.Result{Status: sandbox.StatusSuccess, Output: req.Stdin + "\n"}
}

type fixedGrader struct{ score float64 }

func (g fixedGrader) GradeSubjective(context.Context, string, string, string) float64 { return g.score }

type fakeGenerator struct {
	questions []model.QuestionImport
	err       error
	got       llm.GenerateRequest
}

func (g *fakeGenerator) GenerateQuestions(_ context.Context, req llm.GenerateRequest) ([]model.QuestionImport, error) {
	g.got = req
	return g.questions, g.err
}

type testEnv struct {
	t      *testing.T
	store  *store.Store
	router http.Handler
	exec   *echoExecutor
	gen    *fakeGenerator
	now    time.Time
}

func newTestEnv(t *testing.T, opts ...func(*model.AppConfig)) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}
	st, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	e := &testEnv{t: t, store: st, exec: &echoExecutor{}, gen: &fakeGenerator{}, now: time.Now()}
	scorer := scoring.NewScorer(fixedGrader{score: 1}, sandbox.NewRunner(e.exec))
	agg := scoring.NewAggregator(st, scorer, scoring.WithClock(func() time.Time { return e.now }))
	cfg := model.AppConfig{Lang: "en"}
	for _, opt := range opts {
		opt(&cfg)
	}
	h := New(st, agg, e.gen, e.exec, cfg)

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	r.Use(h.BasePathMiddleware)
	h.Routes(r)
	e.router = r
	return e
}

// login creates an active user and returns its id and session cookie.
func (e *testEnv) login(name string, role model.UserRole) (int64, *http.Cookie) {
	e.t.Helper()
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	id, err := e.store.CreateUser(ctx, model.User{
		Username: name, Email: name + "@example.com", DisplayName: name,
		PasswordHash: string(hash), Role: role, Active: true,
	})
	if err != nil {
		e.t.Fatalf("create user: %v", err)
	}
	token, err := e.store.CreateAuthSession(ctx, id)
	if err != nil {
		e.t.Fatalf("create session: %v", err)
	}
	return id, &http.Cookie{Name: sessionCookieName, Value: token}
}

func (e *testEnv) serve(req *http.Request, session *http.Cookie) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testCSRF})
	if session != nil {
		req.AddCookie(session)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string, session *http.Cookie) *httptest.ResponseRecorder {
	return e.serve(httptest.NewRequest(http.MethodGet, path, nil), session)
}

func (e *testEnv) post(path string, form url.Values, session *http.Cookie) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", testCSRF)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.serve(req, session)
}

func (e *testEnv) postJSON(path string, body any, session *http.Cookie) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeaderName, testCSRF)
	return e.serve(req, session)
}

func (e *testEnv) createQuiz(teacherID int64) (model.Quiz, []model.Question) {
	e.t.Helper()
	ctx := context.Background()
	quiz, err := e.store.CreateQuiz(ctx, model.Quiz{Title: "Go basics", CreatedBy: teacherID}, []model.Question{
		{Text: "Which keyword starts a goroutine?", Marks: 2, Body: model.MCQ{
			Options: []string{"A. go", "B. async", "C. spawn", "D. thread"}, CorrectLabel: "A"}},
		{Text: "Explain channels.", Marks: 4, Body: model.Subjective{ModelAnswer: "SECRET_MODEL_ANSWER"}},
		{Text: "Echo the input.", Marks: 4, Body: model.Coding{TestCases: []model.TestCase{
			{Input: "visible-in", ExpectedOutput: "visible-in"},
			{Input: "HIDDEN_INPUT", ExpectedOutput: "HIDDEN_INPUT", IsHidden: true},
		}}.WithDefaults()},
	})
	if err != nil {
		e.t.Fatalf("create quiz: %v", err)
	}
	questions, err := e.store.ListQuestions(ctx, quiz.ID)
	if err != nil {
		e.t.Fatalf("list questions: %v", err)
	}
	return quiz, questions
}

// expectFlashRedirect checks for a 303 to location carrying a flash of the given kind.
func expectFlashRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string, kind views.FlashKind) {
	t.Helper()
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != location {
		t.Errorf("expected 303 to %s, got %d %q", location, rec.Code, rec.Header().Get("Location"))
		return
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name != flashCookieName {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(c.Value)
		if err != nil {
			t.Fatalf("decode flash: %v", err)
		}
		if got, _, _ := strings.Cut(string(raw), "|"); got != string(kind) {
			t.Errorf("flash kind = %q, want %q", got, kind)
		}
		return
	}
	t.Errorf("expected a flash cookie on redirect to %s", location)
}

func hasCookie(rec *httptest.ResponseRecorder, name string) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name && c.MaxAge >= 0 && c.Value != "" {
			return true
		}
	}
	return false
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=a&password=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf cookie, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=a&password=b&csrf_token=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testCSRF})
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for mismatched token, got %d", rec.Code)
	}
}

func TestLoginPageSetsCSRFCookie(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get("/login", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !hasCookie(rec, csrfCookieName) {
		t.Error("expected csrf cookie")
	}
	if !strings.Contains(rec.Body.String(), `name="csrf_token"`) {
		t.Error("expected csrf field in login form")
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.login("alice", model.UserRoleStudent)

	rec := e.post("/login", url.Values{"username": {"alice"}, "password": {"wrong"}}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(url.Values{
		"username": {"alice"}, "password": {"secret1"}, "csrf_token": {testCSRF},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "test-agent")
	rec = e.serve(req, nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if !hasCookie(rec, sessionCookieName) {
		t.Fatal("expected session cookie")
	}

	logins, err := e.store.ListLogins(context.Background(), id, 10)
	if err != nil {
		t.Fatalf("ListLogins: %v", err)
	}
	if len(logins) != 1 || logins[0].UserAgent != "test-agent" {
		t.Errorf("expected one recorded login, got %+v", logins)
	}
}

func TestSignup(t *testing.T) {
	e := newTestEnv(t)
	e.login("taken", model.UserRoleStudent)

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
	}{
		{"missing fields", url.Values{"username": {"bob"}}, http.StatusBadRequest},
		{"password mismatch", url.Values{"username": {"bob"}, "email": {"bob@example.com"}, "password": {"secret1"}, "confirm_password": {"secret2"}}, http.StatusBadRequest},
		{"short password", url.Values{"username": {"bob"}, "email": {"bob@example.com"}, "password": {"abc"}, "confirm_password": {"abc"}}, http.StatusBadRequest},
		{"bad email", url.Values{"username": {"bob"}, "email": {"not-an-email"}, "password": {"secret1"}, "confirm_password": {"secret1"}}, http.StatusBadRequest},
		{"duplicate username", url.Values{"username": {"taken"}, "email": {"new@example.com"}, "password": {"secret1"}, "confirm_password": {"secret1"}}, http.StatusBadRequest},
		{"duplicate email", url.Values{"username": {"new"}, "email": {"taken@example.com"}, "password": {"secret1"}, "confirm_password": {"secret1"}}, http.StatusBadRequest},
		{"teacher", url.Values{"username": {"tina"}, "email": {"tina@example.com"}, "password": {"secret1"}, "confirm_password": {"secret1"}, "role": {"teacher"}}, http.StatusSeeOther},
		{"admin request becomes student", url.Values{"username": {"eve"}, "email": {"eve@example.com"}, "password": {"secret1"}, "confirm_password": {"secret1"}, "role": {"admin"}}, http.StatusSeeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.post("/signup", tt.form, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}

	ctx := context.Background()
	tina, _ := e.store.GetUserByUsername(ctx, "tina")
	if tina == nil || tina.Role != model.UserRoleTeacher {
		t.Errorf("expected tina to be a teacher, got %+v", tina)
	}
	eve, _ := e.store.GetUserByUsername(ctx, "eve")
	if eve == nil || eve.Role != model.UserRoleStudent {
		t.Errorf("expected eve to be a student, got %+v", eve)
	}
}

func TestAccessControl(t *testing.T) {
	e := newTestEnv(t)
	_, student := e.login("stu", model.UserRoleStudent)
	_, teacher := e.login("tea", model.UserRoleTeacher)

	rec := e.get("/", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := e.get("/teacher/quiz/new", student); rec.Code != http.StatusForbidden {
		t.Errorf("student on teacher page: expected 403, got %d", rec.Code)
	}
	if rec := e.get("/quiz/join", teacher); rec.Code != http.StatusForbidden {
		t.Errorf("teacher on student page: expected 403, got %d", rec.Code)
	}
	if rec := e.get("/admin/users", teacher); rec.Code != http.StatusForbidden {
		t.Errorf("teacher on admin page: expected 403, got %d", rec.Code)
	}
	if rec := e.postJSON("/api/test_code", map[string]string{"code": "x"}, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous api call: expected 401, got %d", rec.Code)
	}
}

func TestTakePageHidesAnswers(t *testing.T) {
	e := newTestEnv(t)
	teacherID, _ := e.login("tea", model.UserRoleTeacher)
	_, student := e.login("stu", model.UserRoleStudent)
	quiz, questions := e.createQuiz(teacherID)

	rec := e.get("/quiz/take/"+strings.ToLower(quiz.Code), student)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, q := range questions {
		if !strings.Contains(body, q.Text) {
			t.Errorf("expected question %q on page", q.Text)
		}
	}
	for _, secret := range []string{"SECRET_MODEL_ANSWER", "HIDDEN_INPUT"} {
		if strings.Contains(body, secret) {
			t.Errorf("page leaks %q", secret)
		}
	}
	if !strings.Contains(body, "visible-in") {
		t.Error("expected visible test case on page")
	}
}

func TestJoin(t *testing.T) {
	e := newTestEnv(t)
	teacherID, _ := e.login("tea", model.UserRoleTeacher)
	_, student := e.login("stu", model.UserRoleStudent)
	quiz, _ := e.createQuiz(teacherID)

	rec := e.post("/quiz/join", url.Values{"code": {" " + strings.ToLower(quiz.Code) + " "}}, student)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/quiz/take/"+quiz.Code {
		t.Errorf("expected redirect to quiz, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	expectFlashRedirect(t, e.post("/quiz/join", url.Values{"code": {"NOPE00"}}, student), "/quiz/join", views.FlashError)
}

func TestSubmitFlow(t *testing.T) {
	e := newTestEnv(t)
	teacherID, teacher := e.login("tea", model.UserRoleTeacher)
	studentID, student := e.login("stu", model.UserRoleStudent)
	quiz, qs := e.createQuiz(teacherID)
	ctx := context.Background()

	if rec := e.get("/quiz/take/"+quiz.Code, student); rec.Code != http.StatusOK {
		t.Fatalf("take: expected 200, got %d", rec.Code)
	}

	rec := e.post("/quiz/submit/"+quiz.Code, url.Values{
		scoring.AnswerKey(qs[0].ID):   {"A. go"},
		scoring.AnswerKey(qs[1].ID):   {"They pass values between goroutines."},
		scoring.CodeKey(qs[2].ID):     {"print(input())"},
		scoring.LanguageKey(qs[2].ID): {"python"},
	}, student)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("submit: expected 303, got %d", rec.Code)
	}
	sub, err := e.store.FindSubmission(ctx, quiz.ID, studentID)
	if err != nil || sub == nil {
		t.Fatalf("FindSubmission: %v %v", sub, err)
	}
	if want := fmt.Sprintf("/quiz/result/%d", sub.ID); rec.Header().Get("Location") != want {
		t.Errorf("expected redirect to %s, got %s", want, rec.Header().Get("Location"))
	}
	if !sub.Completed || sub.Score != 10 || sub.Total != 10 || !sub.FullCompletion {
		t.Errorf("unexpected submission: %+v", sub)
	}

	// A second submit and an auto-submit must not change anything.
	rec = e.post("/quiz/submit/"+quiz.Code, url.Values{scoring.AnswerKey(qs[0].ID): {"B. async"}}, student)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("resubmit: expected redirect to dashboard, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := e.postJSON("/quiz/auto_submit/"+quiz.Code, map[string]string{}, student); rec.Code != http.StatusNoContent {
		t.Errorf("auto-submit after completion: expected 204, got %d", rec.Code)
	}
	if rec := e.get("/quiz/take/"+quiz.Code, student); rec.Code != http.StatusSeeOther {
		t.Errorf("retaking: expected redirect, got %d", rec.Code)
	}
	again, _ := e.store.GetSubmission(ctx, sub.ID)
	if again.Score != sub.Score {
		t.Errorf("completed submission changed: %v -> %v", sub.Score, again.Score)
	}

	// Results are locked until the review delay passes.
	rec = e.get(fmt.Sprintf("/quiz/result/%d", sub.ID), student)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Results will be available") {
		t.Errorf("expected locked result page, got %d", rec.Code)
	}
	e.now = e.now.Add(scoring.ReviewDelay + time.Minute)
	rec = e.get(fmt.Sprintf("/quiz/result/%d", sub.ID), student)
	if rec.Code != http.StatusOK {
		t.Fatalf("result: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Echo the input.") || strings.Contains(body, "HIDDEN_INPUT") {
		t.Error("result page should show questions and mask hidden test cases")
	}

	// Another student cannot see it.
	_, other := e.login("other", model.UserRoleStudent)
	expectFlashRedirect(t, e.get(fmt.Sprintf("/quiz/result/%d", sub.ID), other), "/", views.FlashError)

	// The teacher sees the attempt in the results list.
	rec = e.get("/teacher/quiz/"+quiz.Code+"/results", teacher)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "stu") {
		t.Errorf("teacher results: expected student listed, got %d", rec.Code)
	}
}

func TestMissingRecordsRedirectWithFlash(t *testing.T) {
	e := newTestEnv(t)
	_, student := e.login("stu", model.UserRoleStudent)

	tests := []struct {
		name     string
		rec      *httptest.ResponseRecorder
		location string
	}{
		{"submit to unknown quiz", e.post("/quiz/submit/NOPE00", nil, student), "/quiz/join"},
		{"take unknown quiz", e.get("/quiz/take/NOPE00", student), "/quiz/join"},
		{"missing result", e.get("/quiz/result/999999", student), "/"},
		{"malformed result id", e.get("/quiz/result/abc", student), "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectFlashRedirect(t, tt.rec, tt.location, views.FlashError)
		})
	}
}

func TestAutoSubmit(t *testing.T) {
	e := newTestEnv(t)
	teacherID, _ := e.login("tea", model.UserRoleTeacher)
	studentID, student := e.login("stu", model.UserRoleStudent)
	quiz, qs := e.createQuiz(teacherID)

	e.get("/quiz/take/"+quiz.Code, student)
	rec := e.postJSON("/quiz/auto_submit/"+quiz.Code, map[string]string{
		scoring.AnswerKey(qs[0].ID): "A. go",
		scoring.CodeKey(qs[2].ID):   "print(input())",
	}, student)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if e.exec.calls != 0 {
		t.Errorf("auto-submit must not run code, got %d executions", e.exec.calls)
	}

	sub, _ := e.store.FindSubmission(context.Background(), quiz.ID, studentID)
	if sub == nil || !sub.Completed || !sub.FullscreenExit || sub.FullCompletion {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if sub.Score != 2 || sub.AnsweredCount != 2 {
		t.Errorf("expected 2 marks from 2 answers, got %v from %d", sub.Score, sub.AnsweredCount)
	}

	// Unknown quiz and garbage bodies still answer 204.
	req := httptest.NewRequest(http.MethodPost, "/quiz/auto_submit/NOPE00", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeaderName, testCSRF)
	if rec := e.serve(req, student); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for unknown quiz, got %d", rec.Code)
	}
}

func TestTeacherResultsOwnerOnly(t *testing.T) {
	e := newTestEnv(t)
	teacherID, _ := e.login("tea", model.UserRoleTeacher)
	_, intruder := e.login("other", model.UserRoleTeacher)
	quiz, _ := e.createQuiz(teacherID)

	for _, path := range []string{
		"/teacher/quiz/" + quiz.Code + "/results",
		"/teacher/quiz/" + quiz.Code + "/export",
		"/teacher/quiz/NOPE00/results",
	} {
		t.Run(path, func(t *testing.T) {
			rec := e.get(path, intruder)
			expectFlashRedirect(t, rec, "/", views.FlashError)
			if strings.Contains(rec.Body.String(), "Which keyword") {
				t.Error("quiz content leaked to non-owner")
			}
		})
	}
}

func TestAllowRetake(t *testing.T) {
	e := newTestEnv(t)
	teacherID, teacher := e.login("tea", model.UserRoleTeacher)
	_, intruder := e.login("other", model.UserRoleTeacher)
	studentID, student := e.login("stu", model.UserRoleStudent)
	quiz, _ := e.createQuiz(teacherID)
	ctx := context.Background()

	e.post("/quiz/submit/"+quiz.Code, nil, student)
	sub, _ := e.store.FindSubmission(ctx, quiz.ID, studentID)
	if sub == nil || !sub.Completed {
		t.Fatalf("expected completed submission, got %+v", sub)
	}
	path := fmt.Sprintf("/teacher/submission/%d/retake", sub.ID)

	expectFlashRedirect(t, e.post(path, url.Values{"quiz_code": {quiz.Code}}, intruder), "/", views.FlashError)
	if got, _ := e.store.FindSubmission(ctx, quiz.ID, studentID); got == nil {
		t.Fatal("non-owner retake deleted the submission")
	}
	expectFlashRedirect(t, e.post("/teacher/submission/999999/retake", nil, teacher), "/", views.FlashError)
	rec := e.post(path, url.Values{"quiz_code": {quiz.Code}}, teacher)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/teacher/quiz/"+quiz.Code+"/results" {
		t.Fatalf("retake: expected redirect to results, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if got, _ := e.store.FindSubmission(ctx, quiz.ID, studentID); got != nil {
		t.Errorf("expected submission deleted, got %+v", got)
	}
	if rec := e.get("/quiz/take/"+quiz.Code, student); rec.Code != http.StatusOK {
		t.Errorf("expected student can take the quiz again, got %d", rec.Code)
	}
}

func TestCreateQuizFromJSON(t *testing.T) {
	e := newTestEnv(t)
	teacherID, teacher := e.login("tea", model.UserRoleTeacher)
	ctx := context.Background()

	valid := `[{"question":"2+2?","type":"mcq","marks":3,"options":["A. 3","B. 4","C. 5","D. 6"],"answer":"B"},
		{"question":"Sum two numbers","type":"coding","marks":5,"test_cases":[{"input":"1 2","expected_output":"3"}]}]`
	tests := []struct {
		name     string
		form     url.Values
		wantCode int
	}{
		{"invalid json", url.Values{"title": {"T"}, "questions_json": {"[{"}}, http.StatusBadRequest},
		{"invalid question", url.Values{"title": {"T"}, "questions_json": {`[{"question":"x","type":"mcq","options":["A. a"],"answer":"A"}]`}}, http.StatusBadRequest},
		{"missing title", url.Values{"questions_json": {valid}}, http.StatusBadRequest},
		{"bad duration", url.Values{"title": {"T"}, "duration_minutes": {"-5"}, "questions_json": {valid}}, http.StatusBadRequest},
		{"valid", url.Values{"title": {"Arithmetic"}, "difficulty": {"advanced"}, "duration_minutes": {"30"}, "questions_json": {valid}}, http.StatusSeeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.post("/teacher/quiz/create", tt.form, teacher); rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}

	quizzes, err := e.store.ListQuizzesByCreator(ctx, teacherID)
	if err != nil {
		t.Fatalf("ListQuizzesByCreator: %v", err)
	}
	if len(quizzes) != 1 {
		t.Fatalf("expected exactly one quiz, got %d", len(quizzes))
	}
	q := quizzes[0]
	if q.Difficulty != model.DifficultyAdvanced || q.DurationMinutes == nil || *q.DurationMinutes != 30 {
		t.Errorf("unexpected quiz: %+v", q)
	}
	questions, _ := e.store.ListQuestions(ctx, q.ID)
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	coding, ok := questions[1].Body.(model.Coding)
	if !ok || coding.TimeLimitSeconds != model.DefaultTimeLimitSeconds || len(coding.AllowedLanguages) != len(model.DefaultLanguages) {
		t.Errorf("expected coding defaults applied, got %+v", questions[1].Body)
	}

	rec := e.get("/", teacher)
	if !strings.Contains(rec.Body.String(), q.Code) {
		t.Error("expected dashboard to list the new quiz code")
	}
}

func TestGenerateQuiz(t *testing.T) {
	e := newTestEnv(t)
	_, teacher := e.login("tea", model.UserRoleTeacher)
	e.gen.questions = []model.QuestionImport{
		{Question: "What is a slice?", Type: model.QuestionSubjective, Answer: "A view over an array."},
	}

	rec := e.post("/teacher/quiz/generate", url.Values{
		"topic": {"Go slices"}, "question_type": {"subjective"}, "count": {"1"}, "marks": {"7"}, "difficulty": {"intermediate"},
	}, teacher)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "What is a slice?") || !strings.Contains(body, "&#34;marks&#34;: 7") {
		t.Errorf("expected generated questions with marks in the form, got %s", body)
	}
	if e.gen.got.Count != 1 || e.gen.got.Type != model.QuestionSubjective || e.gen.got.Difficulty != model.DifficultyIntermediate {
		t.Errorf("unexpected generate request: %+v", e.gen.got)
	}

	if rec := e.post("/teacher/quiz/generate", url.Values{"topic": {""}, "count": {"1"}}, teacher); rec.Code != http.StatusBadRequest {
		t.Errorf("missing topic: expected 400, got %d", rec.Code)
	}
	if rec := e.post("/teacher/quiz/generate", url.Values{"topic": {"x"}, "count": {"50"}}, teacher); rec.Code != http.StatusBadRequest {
		t.Errorf("too many: expected 400, got %d", rec.Code)
	}
	e.gen.err = fmt.Errorf("model unavailable")
	if rec := e.post("/teacher/quiz/generate", url.Values{"topic": {"x"}, "count": {"2"}}, teacher); rec.Code != http.StatusBadGateway {
		t.Errorf("generator failure: expected 502, got %d", rec.Code)
	}
}

func TestUploadQuizSkipsDuplicate(t *testing.T) {
	e := newTestEnv(t)
	teacherID, teacher := e.login("tea", model.UserRoleTeacher)

	upload := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("csrf_token", testCSRF)
		fw, _ := mw.CreateFormFile("quiz_file", "quiz.json")
		_, _ = io.WriteString(fw, `{"title":"Uploaded","questions":[{"question":"Why?","type":"subjective","answer":"Because."}]}`)
		mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/teacher/quiz/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return e.serve(req, teacher)
	}

	if rec := upload(); rec.Code != http.StatusSeeOther {
		t.Fatalf("first upload: expected 303, got %d", rec.Code)
	}
	if rec := upload(); rec.Code != http.StatusSeeOther {
		t.Fatalf("second upload: expected 303, got %d", rec.Code)
	}
	quizzes, _ := e.store.ListQuizzesByCreator(context.Background(), teacherID)
	if len(quizzes) != 1 {
		t.Errorf("expected duplicate upload to be skipped, got %d quizzes", len(quizzes))
	}
}

func TestExportQuiz(t *testing.T) {
	e := newTestEnv(t)
	teacherID, teacher := e.login("tea", model.UserRoleTeacher)
	_, student := e.login("stu", model.UserRoleStudent)
	quiz, _ := e.createQuiz(teacherID)
	e.post("/quiz/submit/"+quiz.Code, nil, student)

	rec := e.get("/teacher/quiz/"+quiz.Code+"/export", teacher)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var export model.QuizExport
	if err := json.Unmarshal(rec.Body.Bytes(), &export); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if export.Code != quiz.Code || len(export.Results) != 1 || len(export.Results[0].Answers) != 3 {
		t.Errorf("unexpected export: %+v", export)
	}
}

func TestRunTestCasesAPI(t *testing.T) {
	e := newTestEnv(t)
	_, student := e.login("stu", model.UserRoleStudent)

	rec := e.postJSON("/api/run_test_cases", map[string]any{
		"code":     "print(input())",
		"language": "python",
		"test_cases": []model.TestCase{
			{Input: "a", ExpectedOutput: "a"},
			{Input: "b", ExpectedOutput: "x"},
			{Input: "secret", ExpectedOutput: "secret", IsHidden: true},
		},
	}, student)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool           `json:"success"`
		Result  sandbox.Report `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Result.Passed != 2 || resp.Result.Total != 3 {
		t.Errorf("unexpected report: %+v", resp)
	}
	hidden := resp.Result.Results[2]
	if !hidden.IsHidden || hidden.Input != "" || hidden.ExpectedOutput != "" || !hidden.IsCorrect {
		t.Errorf("hidden case not masked: %+v", hidden)
	}

	tests := []struct {
		name string
		body any
	}{
		{"missing code", map[string]any{"test_cases": []model.TestCase{{Input: "a"}}}},
		{"no test cases", map[string]any{"code": "print(1)"}},
		{"not json", "just a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.postJSON("/api/run_test_cases", tt.body, student); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestTestCodeAPI(t *testing.T) {
	e := newTestEnv(t)
	_, teacher := e.login("tea", model.UserRoleTeacher)

	rec := e.postJSON("/api/test_code", map[string]any{"code": "print(input())", "test_input": "hello"}, teacher)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Success bool           `json:"success"`
		Result  sandbox.Result `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || !resp.Result.OK() || resp.Result.Output != "hello\n" {
		t.Errorf("unexpected response: %+v", resp)
	}

	if rec := e.postJSON("/api/test_code", map[string]any{"code": "  "}, teacher); rec.Code != http.StatusBadRequest {
		t.Errorf("empty code: expected 400, got %d", rec.Code)
	}
}

func TestAdminUsers(t *testing.T) {
	e := newTestEnv(t)
	adminID, admin := e.login("root", model.UserRoleAdmin)
	stuID, _ := e.login("stu", model.UserRoleStudent)
	ctx := context.Background()

	rec := e.get("/", admin)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin/users" {
		t.Errorf("admin dashboard: expected redirect to users, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := e.get("/admin/users", admin); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "stu@example.com") {
		t.Errorf("expected user list, got %d", rec.Code)
	}

	rec = e.post("/admin/users", url.Values{"username": {"newt"}, "email": {"newt@example.com"}, "password": {"pw1234"}, "role": {"teacher"}}, admin)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create user: expected 303, got %d", rec.Code)
	}
	if u, _ := e.store.GetUserByUsername(ctx, "newt"); u == nil || u.Role != model.UserRoleTeacher || u.DisplayName != "newt" {
		t.Errorf("unexpected created user: %+v", u)
	}
	if rec := e.post("/admin/users", url.Values{"username": {"x"}, "email": {"x@example.com"}, "password": {"pw"}, "role": {"root"}}, admin); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid role: expected 400, got %d", rec.Code)
	}

	if rec := e.post(fmt.Sprintf("/admin/users/%d/toggle", stuID), nil, admin); rec.Code != http.StatusSeeOther {
		t.Fatalf("toggle: expected 303, got %d", rec.Code)
	}
	if u, _ := e.store.GetUserByID(ctx, stuID); u == nil || u.Active {
		t.Errorf("expected student deactivated, got %+v", u)
	}
	if rec := e.post(fmt.Sprintf("/admin/users/%d/toggle", adminID), nil, admin); rec.Code != http.StatusBadRequest {
		t.Errorf("self toggle: expected 400, got %d", rec.Code)
	}
	if rec := e.get(fmt.Sprintf("/admin/users/%d/logins", stuID), admin); rec.Code != http.StatusOK {
		t.Errorf("logins page: expected 200, got %d", rec.Code)
	}
}

func TestDeactivatedUserLoggedOut(t *testing.T) {
	e := newTestEnv(t)
	id, session := e.login("stu", model.UserRoleStudent)
	if err := e.store.ToggleUserActive(context.Background(), id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	if rec := e.get("/", session); rec.Code != http.StatusSeeOther {
		t.Errorf("expected redirect for inactive user, got %d", rec.Code)
	}
}

func TestAPIPreflight(t *testing.T) {
	e := newTestEnv(t, func(c *model.AppConfig) { c.CORSOrigins = []string{"https://ide.example.com"} })

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/run_test_cases", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("https://ide.example.com")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ide.example.com" {
		t.Errorf("allowed origin: expected echo of origin, got %q (status %d)", got, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("expected credentials allowed, got %q", got)
	}
	if got := preflight("https://evil.example.com").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin: expected no allow header, got %q", got)
	}
}
