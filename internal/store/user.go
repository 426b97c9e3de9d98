package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/quizmaster/quizmaster/internal/model"
)

const userColumns = `id, username, email, display_name, password_hash, role, active, last_login, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Role, &u.Active, &u.LastLogin, &u.CreatedAt)
	return u, err
}

// CreateUser inserts a new user.
func (qs queries) CreateUser(ctx context.Context, u model.User) (int64, error) {
	var id int64
	err := qs.queryRow(ctx,
		`INSERT INTO users (username, email, display_name, password_hash, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		u.Username, u.Email, u.DisplayName, u.PasswordHash, u.Role, u.Active, time.Now(),
	).Scan(&id)
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return id, nil
}

// GetUserByUsername returns a user by username, or nil if there is none.
func (qs queries) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return qs.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// GetUserByEmail returns a user by email, or nil if there is none.
func (qs queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return qs.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetUserByID returns a user by ID, or nil if there is none.
func (qs queries) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return qs.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (qs queries) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	u, err := scanUser(qs.queryRow(ctx, query, arg))
	if err = notFound(err); err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all users.
func (qs queries) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := qs.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ToggleUserActive flips the active flag on a user.
func (qs queries) ToggleUserActive(ctx context.Context, id int64) error {
	_, err := qs.exec(ctx, `UPDATE users SET active = NOT active WHERE id = ?`, id)
	return err
}

// UserCount returns the total number of users.
func (qs queries) UserCount(ctx context.Context) (int, error) {
	var count int
	err := qs.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// RecordLogin stamps last_login and appends a login history row.
func (qs queries) RecordLogin(ctx context.Context, rec model.LoginRecord) error {
	if _, err := qs.exec(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, rec.LoginTime, rec.UserID); err != nil {
		return err
	}
	_, err := qs.exec(ctx,
		`INSERT INTO login_history (user_id, login_time, ip_address, user_agent) VALUES (?, ?, ?, ?)`,
		rec.UserID, rec.LoginTime, rec.IPAddress, rec.UserAgent,
	)
	return err
}

// ListLogins returns a user's login history, newest first.
func (qs queries) ListLogins(ctx context.Context, userID int64, limit int) ([]model.LoginRecord, error) {
	rows, err := qs.query(ctx,
		`SELECT id, user_id, login_time, ip_address, user_agent FROM login_history
		 WHERE user_id = ? ORDER BY login_time DESC, id DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.LoginRecord
	for rows.Next() {
		var r model.LoginRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.LoginTime, &r.IPAddress, &r.UserAgent); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
