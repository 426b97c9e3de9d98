package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent takes quizzes.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher creates quizzes and reviews results.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin manages users.
	UserRoleAdmin UserRole = "admin"
)

// ParseSignupRole maps a self-service signup role to a role, defaulting to student.
func ParseSignupRole(s string) UserRole {
	if UserRole(s) == UserRoleTeacher {
		return UserRoleTeacher
	}
	return UserRoleStudent
}

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	LastLogin    *time.Time
	CreatedAt    time.Time
}

// LoginRecord is one successful login.
type LoginRecord struct {
	ID        int64
	UserID    int64
	LoginTime time.Time
	IPAddress string
	UserAgent string
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Difficulty is the level a quiz was generated at.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParseDifficulty returns the matching difficulty, or beginner for anything unknown.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case DifficultyIntermediate, DifficultyAdvanced:
		return Difficulty(s)
	default:
		return DifficultyBeginner
	}
}

// Quiz is a teacher-owned question set shared with students by code.
type Quiz struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Code            string     `json:"code"`
	CreatedBy       int64      `json:"created_by"`
	Difficulty      Difficulty `json:"difficulty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// AppConfig holds runtime HTTP settings set via CLI flags.
type AppConfig struct {
	BasePath      string // URL prefix for sub-path deployments (e.g. "/quiz")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	Lang          string
	CORSOrigins   []string // Origins allowed to call the code execution API
}
