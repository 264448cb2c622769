package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"tinytrack.org/internal/audit"
	"tinytrack.org/internal/auth"
	"tinytrack.org/internal/tracker"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      tracker.User `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := a.users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			a.loginFailed(w, r, email)
			return
		}
		handleServiceError(w, r, err)
		return
	}
	if u.Deleted || auth.VerifyPassword(u.PasswordHash, req.Password) != nil {
		a.loginFailed(w, r, email)
		return
	}

	token, err := auth.GenerateToken(u.ID, u.RoleID, a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	_ = audit.LogEvent(r.Context(), audit.EventLogin, map[string]any{
		"user_id":    u.ID,
		"email":      email,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      u,
	})
}

// loginFailed answers the same way for unknown accounts and wrong
// passwords so the endpoint does not leak which emails exist.
func (a *API) loginFailed(w http.ResponseWriter, r *http.Request, email string) {
	_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{
		"email": email,
	})
	writeError(w, r, http.StatusUnauthorized, "invalid credentials")
}

type createUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	RoleID    string `json:"role_id"`
	Password  string `json:"password"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	u, err := a.svc.CreateUser(r.Context(), actor, tracker.CreateUserInput{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		RoleID:       req.RoleID,
		PasswordHash: hash,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), audit.EventUserCreated, map[string]any{
		"user_id": u.ID,
		"role_id": u.RoleID,
	})

	w.Header().Set("Location", "/v1/users/"+u.ID)
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	users, err := a.svc.ListUsers(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := a.svc.DeleteUser(r.Context(), actor, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventUserDeleted, map[string]any{
		"user_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}
