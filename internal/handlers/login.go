package handlers

import (
	"errors"
	"net/http"

	applog "platecost/internal/log"
	"platecost/models"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials, starts a session and returns the API key.
func Login(w http.ResponseWriter, r *http.Request) {
	applog.Debug(r.Context(), "handling login request", "method", r.Method)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if sessionManager == nil || database == nil {
		applog.Debug(r.Context(), "authentication dependencies unavailable", "hasSession", sessionManager != nil, "hasDatabase", database != nil)
		writeJSONError(w, http.StatusServiceUnavailable, "authentication not available")
		return
	}

	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := authenticate(r, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) {
			applog.Debug(r.Context(), "authentication failed", "email", models.NormalizeEmail(req.Email))
			writeJSONError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		applog.Error(r.Context(), "failed to authenticate", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to sign in")
		return
	}

	applog.Debug(r.Context(), "authentication succeeded", "userID", user.ID)
	writeJSON(w, http.StatusOK, userWithKeyResponse{userResponse: projectUser(user), APIKey: user.APIKey})
}

// Logout destroys the current session.
func Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if sessionManager != nil {
		if err := sessionManager.Destroy(r.Context()); err != nil {
			applog.Error(r.Context(), "failed to destroy session", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
