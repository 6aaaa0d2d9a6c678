package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	applog "platecost/internal/log"
	"platecost/models"
)

// CurrentUser serves the authenticated tenant: GET /api/v1/users/me and
// POST /api/v1/users/me/regenerate-key.
func CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	segments := resourcePath(r, "/api/v1/users/me")
	switch {
	case len(segments) == 0 && r.Method == http.MethodGet:
		showCurrentUser(w, r, userID)
	case len(segments) == 1 && segments[0] == "regenerate-key" && r.Method == http.MethodPost:
		regenerateAPIKey(w, r, userID)
	case len(segments) > 1 || (len(segments) == 1 && segments[0] != "regenerate-key"):
		http.NotFound(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func loadUser(w http.ResponseWriter, r *http.Request, userID uint) (*models.User, bool) {
	var user models.User
	if err := database.WithContext(r.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSONError(w, http.StatusNotFound, "user not found")
			return nil, false
		}
		applog.Error(r.Context(), "failed to load user", "error", err, "id", userID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load user")
		return nil, false
	}
	return &user, true
}

func showCurrentUser(w http.ResponseWriter, r *http.Request, userID uint) {
	user, ok := loadUser(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectUser(user))
}

func regenerateAPIKey(w http.ResponseWriter, r *http.Request, userID uint) {
	user, ok := loadUser(w, r, userID)
	if !ok {
		return
	}
	key := newAPIKey()
	if err := database.WithContext(r.Context()).Model(user).Update("api_key", key).Error; err != nil {
		applog.Error(r.Context(), "failed to regenerate api key", "error", err, "id", userID)
		writeJSONError(w, http.StatusInternalServerError, "unable to regenerate API key")
		return
	}
	applog.Info(r.Context(), "api key regenerated", "userID", userID)
	writeJSON(w, http.StatusOK, map[string]string{"api_key": key})
}
