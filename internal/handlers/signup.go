package handlers

import (
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	applog "platecost/internal/log"
	"platecost/models"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type userResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type userWithKeyResponse struct {
	userResponse
	APIKey string `json:"api_key"`
}

func projectUser(user *models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

// Signup registers a new tenant and returns its API key.
func Signup(w http.ResponseWriter, r *http.Request) {
	applog.Debug(r.Context(), "handling signup request", "method", r.Method)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if database == nil {
		applog.Debug(r.Context(), "registration dependencies unavailable")
		writeJSONError(w, http.StatusServiceUnavailable, "registration not available")
		return
	}

	var req signupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := findUserByEmail(r, req.Email); err == nil {
		applog.Debug(r.Context(), "signup attempted with existing email", "email", models.NormalizeEmail(req.Email))
		writeJSONError(w, http.StatusBadRequest, "email already registered")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		applog.Error(r.Context(), "failed to check existing user", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create account")
		return
	}

	user, err := createUser(r, req.Email, req.Name, req.Password)
	if err != nil {
		applog.Error(r.Context(), "failed to create user", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create account")
		return
	}

	applog.Info(r.Context(), "tenant created", "userID", user.ID, "email", user.Email)
	writeJSON(w, http.StatusCreated, userWithKeyResponse{userResponse: projectUser(user), APIKey: user.APIKey})
}
