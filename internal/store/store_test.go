package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quizmaster/quizmaster/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, username string, role model.UserRole) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), model.User{
		Username:     username,
		Email:        username + "@example.com",
		DisplayName:  "User " + username,
		PasswordHash: "hash",
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("createTestUser: %v", err)
	}
	return id
}

func testQuestions() []model.Question {
	return []model.Question{
		{Text: "2+2?", Marks: 1, Body: model.MCQ{Options: []string{"A. 3", "B. 4", "C. 5", "D. 6"}, CorrectLabel: "B"}},
		{Text: "Explain goroutines.", Marks: 5, Body: model.Subjective{ModelAnswer: "Lightweight threads."}},
		{Text: "Echo input.", Marks: 10, Body: model.Coding{
			TestCases: []model.TestCase{
				{Input: "1", ExpectedOutput: "1"},
				{Input: "2", ExpectedOutput: "2", IsHidden: true},
			},
		}.WithDefaults()},
	}
}

func createTestQuiz(t *testing.T, s *Store, teacherID int64) model.Quiz {
	t.Helper()
	quiz, err := s.CreateQuiz(context.Background(), model.Quiz{Title: "Basics", CreatedBy: teacherID}, testQuestions())
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	return quiz
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.UserCount(ctx)
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	id := createTestUser(t, s, "alice", model.UserRoleStudent)

	u, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("expected user %d, got %+v", id, u)
	}
	if u.Role != model.UserRoleStudent || !u.Active {
		t.Errorf("unexpected role/active: %q %v", u.Role, u.Active)
	}
	if u.LastLogin != nil {
		t.Errorf("expected nil last login, got %v", u.LastLogin)
	}

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || byEmail == nil || byEmail.ID != id {
		t.Errorf("GetUserByEmail: %v %+v", err, byEmail)
	}

	missing, err := s.GetUserByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetUserByUsername missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing user, got %+v", missing)
	}

	if _, err := s.CreateUser(ctx, model.User{Username: "alice", Email: "other@example.com", PasswordHash: "x", Role: model.UserRoleStudent}); err == nil {
		t.Error("expected duplicate username to fail")
	}

	if err := s.ToggleUserActive(ctx, id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ = s.GetUserByID(ctx, id)
	if u.Active {
		t.Error("expected user to be inactive after toggle")
	}
}

func TestRecordLogin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestUser(t, s, "bob", model.UserRoleTeacher)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := range 3 {
		err := s.RecordLogin(ctx, model.LoginRecord{
			UserID:    id,
			LoginTime: at.Add(time.Duration(i) * time.Hour),
			IPAddress: "10.0.0.1",
			UserAgent: "test-agent",
		})
		if err != nil {
			t.Fatalf("RecordLogin: %v", err)
		}
	}

	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u.LastLogin == nil || !u.LastLogin.Equal(at.Add(2*time.Hour)) {
		t.Errorf("expected last login %v, got %v", at.Add(2*time.Hour), u.LastLogin)
	}

	logins, err := s.ListLogins(ctx, id, 2)
	if err != nil {
		t.Fatalf("ListLogins: %v", err)
	}
	if len(logins) != 2 {
		t.Fatalf("expected 2 logins, got %d", len(logins))
	}
	if !logins[0].LoginTime.After(logins[1].LoginTime) {
		t.Error("expected newest login first")
	}
	if logins[0].UserAgent != "test-agent" {
		t.Errorf("expected user agent to round-trip, got %q", logins[0].UserAgent)
	}
}

func TestAuthSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestUser(t, s, "carol", model.UserRoleStudent)

	token, err := s.CreateAuthSession(ctx, id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64-char token, got %d", len(token))
	}

	sess, err := s.GetAuthSession(ctx, token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.UserID != id {
		t.Fatalf("expected session for user %d, got %+v", id, sess)
	}

	if err := s.DeleteAuthSession(ctx, token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, err = s.GetAuthSession(ctx, token)
	if err != nil {
		t.Fatalf("GetAuthSession after delete: %v", err)
	}
	if sess != nil {
		t.Error("expected nil session after delete")
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetMetadata(ctx, "missing")
	if err != nil || v != "" {
		t.Fatalf("expected empty value for missing key, got %q, %v", v, err)
	}
	if err := s.SetImportedFileHash(ctx, "quiz.json", "abc"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash(ctx, "quiz.json", "def"); err != nil {
		t.Fatalf("SetImportedFileHash overwrite: %v", err)
	}
	v, err = s.GetImportedFileHash(ctx, "quiz.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if v != "def" {
		t.Errorf("expected def, got %q", v)
	}
}

func TestCreateQuiz(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	teacher := createTestUser(t, s, "teach", model.UserRoleTeacher)

	quiz := createTestQuiz(t, s, teacher)
	if len(quiz.Code) != quizCodeLength {
		t.Errorf("expected %d-char code, got %q", quizCodeLength, quiz.Code)
	}
	if quiz.Difficulty != model.DifficultyBeginner {
		t.Errorf("expected default difficulty, got %q", quiz.Difficulty)
	}

	got, err := s.GetQuizByCode(ctx, "  "+strings.ToLower(quiz.Code)+" ")
	if err != nil {
		t.Fatalf("GetQuizByCode: %v", err)
	}
	if got.ID != quiz.ID {
		t.Errorf("expected quiz %d, got %d", quiz.ID, got.ID)
	}

	questions, err := s.ListQuestions(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
	wantTypes := []model.QuestionType{model.QuestionMCQ, model.QuestionSubjective, model.QuestionCoding}
	for i, q := range questions {
		if q.Type() != wantTypes[i] {
			t.Errorf("question %d: expected type %q, got %q", i, wantTypes[i], q.Type())
		}
		if q.Position != i {
			t.Errorf("question %d: expected position %d, got %d", i, i, q.Position)
		}
	}
	coding, ok := questions[2].Body.(model.Coding)
	if !ok {
		t.Fatalf("expected coding body, got %T", questions[2].Body)
	}
	if len(coding.TestCases) != 2 || !coding.TestCases[1].IsHidden {
		t.Errorf("test cases did not round-trip: %+v", coding.TestCases)
	}
	if coding.TimeLimitSeconds != model.DefaultTimeLimitSeconds {
		t.Errorf("expected default time limit, got %d", coding.TimeLimitSeconds)
	}

	list, err := s.ListQuizzesByCreator(ctx, teacher)
	if err != nil {
		t.Fatalf("ListQuizzesByCreator: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 quiz, got %d", len(list))
	}

	_, err = s.GetQuizByCode(ctx, "ZZZZZZ")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateQuizRejectsInvalidQuestion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	teacher := createTestUser(t, s, "teach", model.UserRoleTeacher)

	bad := []model.Question{
		{Text: "Pick one", Marks: 1, Body: model.MCQ{Options: []string{"A", "B"}, CorrectLabel: "A"}},
	}
	if _, err := s.CreateQuiz(ctx, model.Quiz{Title: "Bad", CreatedBy: teacher}, bad); err == nil {
		t.Fatal("expected validation error")
	}
	list, _ := s.ListQuizzesByCreator(ctx, teacher)
	if len(list) != 0 {
		t.Errorf("expected no quiz stored, got %d", len(list))
	}
}

func TestSubmissionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	teacher := createTestUser(t, s, "teach", model.UserRoleTeacher)
	student := createTestUser(t, s, "stud", model.UserRoleStudent)
	quiz := createTestQuiz(t, s, teacher)
	questions, _ := s.ListQuestions(ctx, quiz.ID)

	sub, err := s.FindSubmission(ctx, quiz.ID, student)
	if err != nil {
		t.Fatalf("FindSubmission: %v", err)
	}
	if sub.Status() != model.StatusNotStarted {
		t.Errorf("expected not started, got %q", sub.Status())
	}

	now := time.Now()
	started, err := s.StartSubmission(ctx, quiz.ID, student, len(questions), now)
	if err != nil {
		t.Fatalf("StartSubmission: %v", err)
	}
	again, err := s.StartSubmission(ctx, quiz.ID, student, len(questions), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("StartSubmission again: %v", err)
	}
	if again.ID != started.ID {
		t.Errorf("expected same submission, got %d and %d", started.ID, again.ID)
	}
	if !again.StartedAt.Equal(started.StartedAt) {
		t.Error("expected start time to be kept")
	}
	if started.Status() != model.StatusInProgress {
		t.Errorf("expected in progress, got %q", started.Status())
	}

	correct := true
	err = s.UpsertAnswer(ctx, model.Answer{SubmissionID: started.ID, QuestionID: questions[0].ID, UserAnswer: "A. 3", IsCorrect: new(bool)})
	if err != nil {
		t.Fatalf("UpsertAnswer: %v", err)
	}
	err = s.UpsertAnswer(ctx, model.Answer{SubmissionID: started.ID, QuestionID: questions[0].ID, UserAnswer: "B. 4", IsCorrect: &correct, ScoredMarks: 1})
	if err != nil {
		t.Fatalf("UpsertAnswer overwrite: %v", err)
	}
	err = s.UpsertAnswer(ctx, model.Answer{
		SubmissionID: started.ID, QuestionID: questions[2].ID, UserAnswer: "print(input())",
		CodeLanguage: "python", PassedTestCases: 1, TotalTestCases: 2,
		TestResults: []model.TestCaseResult{{Input: "1", ExpectedOutput: "1", ActualOutput: "1", IsCorrect: true}},
	})
	if err != nil {
		t.Fatalf("UpsertAnswer coding: %v", err)
	}

	answers, err := s.ListAnswers(ctx, started.ID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if answers[0].UserAnswer != "B. 4" || !answers[0].Correct() {
		t.Errorf("expected overwritten answer, got %+v", answers[0])
	}
	if answers[1].AIScore != nil {
		t.Errorf("expected nil ai score, got %v", *answers[1].AIScore)
	}
	if len(answers[1].TestResults) != 1 || !answers[1].TestResults[0].IsCorrect {
		t.Errorf("test results did not round-trip: %+v", answers[1].TestResults)
	}

	submitted := now.Add(10 * time.Minute)
	unlock := submitted.Add(15 * time.Minute)
	started.SubmittedAt = &submitted
	started.ReviewUnlockedAt = &unlock
	started.Score, started.Total, started.Percentage = 1, 16, 6.25
	ok, err := s.CompleteSubmission(ctx, started)
	if err != nil {
		t.Fatalf("CompleteSubmission: %v", err)
	}
	if !ok {
		t.Fatal("expected first completion to apply")
	}
	ok, err = s.CompleteSubmission(ctx, started)
	if err != nil {
		t.Fatalf("CompleteSubmission again: %v", err)
	}
	if ok {
		t.Error("expected second completion to be rejected")
	}

	done, err := s.GetSubmission(ctx, started.ID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if done.Status() != model.StatusCompleted || done.Score != 1 || done.Total != 16 {
		t.Errorf("unexpected completed submission: %+v", done)
	}

	rows, err := s.ListSubmissionsForQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("ListSubmissionsForQuiz: %v", err)
	}
	if len(rows) != 1 || rows[0].StudentName != "stud" || rows[0].QuizCode != quiz.Code {
		t.Errorf("unexpected rows: %+v", rows)
	}
	mine, err := s.ListSubmissionsForStudent(ctx, student)
	if err != nil {
		t.Fatalf("ListSubmissionsForStudent: %v", err)
	}
	if len(mine) != 1 || mine[0].QuizTitle != "Basics" {
		t.Errorf("unexpected student rows: %+v", mine)
	}

	if err := s.DeleteSubmission(ctx, started.ID); err != nil {
		t.Fatalf("DeleteSubmission: %v", err)
	}
	if _, err := s.GetSubmission(ctx, started.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	answers, _ = s.ListAnswers(ctx, started.ID)
	if len(answers) != 0 {
		t.Errorf("expected answers deleted, got %d", len(answers))
	}
	if err := s.DeleteSubmission(ctx, started.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestInTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := s.InTx(ctx, func(tx *Tx) error {
		if err := tx.SetMetadata(ctx, "k", "v"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	v, _ := s.GetMetadata(ctx, "k")
	if v != "" {
		t.Errorf("expected rollback, got %q", v)
	}
}

func TestExportQuiz(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	teacher := createTestUser(t, s, "teach", model.UserRoleTeacher)
	student := createTestUser(t, s, "stud", model.UserRoleStudent)
	quiz := createTestQuiz(t, s, teacher)
	questions, _ := s.ListQuestions(ctx, quiz.ID)

	sub, err := s.StartSubmission(ctx, quiz.ID, student, len(questions), time.Now())
	if err != nil {
		t.Fatalf("StartSubmission: %v", err)
	}
	score := 0.8
	if err := s.UpsertAnswer(ctx, model.Answer{SubmissionID: sub.ID, QuestionID: questions[1].ID, UserAnswer: "threads", AIScore: &score, ScoredMarks: 4}); err != nil {
		t.Fatalf("UpsertAnswer: %v", err)
	}

	exp, err := s.ExportQuiz(ctx, quiz.Code)
	if err != nil {
		t.Fatalf("ExportQuiz: %v", err)
	}
	if exp.NumQuestions != 3 || exp.TotalMarks != 16 {
		t.Errorf("expected 3 questions / 16 marks, got %d / %d", exp.NumQuestions, exp.TotalMarks)
	}
	if len(exp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(exp.Results))
	}
	r := exp.Results[0]
	if r.Username != "stud" || r.DisplayName != "User stud" {
		t.Errorf("unexpected student: %q %q", r.Username, r.DisplayName)
	}
	if r.Status != model.StatusInProgress {
		t.Errorf("expected in progress, got %q", r.Status)
	}
	if len(r.Answers) != 1 || r.Answers[0].Type != model.QuestionSubjective || *r.Answers[0].AIScore != 0.8 {
		t.Errorf("unexpected answers: %+v", r.Answers)
	}

	if _, err := s.ExportQuiz(ctx, "NOPE00"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		name   string
		driver Driver
		in     string
		want   string
	}{
		{"sqlite untouched", DriverSQLite, "SELECT ? , ?", "SELECT ? , ?"},
		{"postgres numbered", DriverPostgres, "INSERT INTO t VALUES (?, ?, ?)", "INSERT INTO t VALUES ($1, $2, $3)"},
		{"postgres no args", DriverPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queries{driver: tt.driver}.rebind(tt.in)
			if got != tt.want {
				t.Errorf("rebind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
