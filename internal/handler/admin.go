package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/quizmaster/quizmaster/internal/handler/views"
	appI18n "github.com/quizmaster/quizmaster/internal/i18n"
	"github.com/quizmaster/quizmaster/internal/model"
)

const loginHistoryLimit = 20

func (h *Handler) handleAdminUsersPage(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, views.AdminUsersPage(users))
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := strings.TrimSpace(r.FormValue("username"))
	email := strings.TrimSpace(r.FormValue("email"))
	displayName := strings.TrimSpace(r.FormValue("display_name"))
	password := r.FormValue("password")
	role := model.UserRole(r.FormValue("role"))

	if username == "" || email == "" || password == "" {
		http.Error(w, "username, email and password required", http.StatusBadRequest)
		return
	}
	switch role {
	case model.UserRoleStudent, model.UserRoleTeacher, model.UserRoleAdmin:
	default:
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if displayName == "" {
		displayName = username
	}

	if _, err := h.store.CreateUser(ctx, model.User{
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}); err != nil {
		h.setFlash(w, views.FlashError, appI18n.T(ctx, "UserCreateFailed"))
		http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
		return
	}

	h.setFlash(w, views.FlashSuccess, appI18n.Td(ctx, "UserCreated", map[string]any{"Username": username}))
	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, ok := paramID(r, "userID")
	if !ok {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}
	if me := model.UserFromContext(r.Context()); me != nil && me.ID == id {
		http.Error(w, "cannot deactivate yourself", http.StatusBadRequest)
		return
	}

	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}

func (h *Handler) handleUserLogins(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := paramID(r, "userID")
	if !ok {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}
	user, err := h.store.GetUserByID(ctx, id)
	if err != nil {
		slog.Error("failed to get user", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.NotFound(w, r)
		return
	}
	logins, err := h.store.ListLogins(ctx, id, loginHistoryLimit)
	if err != nil {
		slog.Error("failed to list logins", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, http.StatusOK, views.UserLoginsPage(*user, logins))
}
