package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSignupAndLogin(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	_, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	w := serve(t, Signup, http.MethodPost, "/api/v1/users", map[string]string{
		"email":    "Chef@Example.com",
		"name":     "Chef",
		"password": "correct-horse",
	}, 0)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created userWithKeyResponse
	decodeBody(t, w, &created)
	if created.Email != "chef@example.com" || created.APIKey == "" || !created.IsActive {
		t.Fatalf("unexpected signup response %+v", created)
	}

	w = serve(t, Signup, http.MethodPost, "/api/v1/users", map[string]string{
		"email":    "chef@example.com",
		"password": "another-password",
	}, 0)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate signup: expected 400, got %d", w.Code)
	}

	w = serve(t, Signup, http.MethodPost, "/api/v1/users", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	}, 0)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid signup: expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "email") {
		t.Fatalf("expected validation message to name the email field, got %s", w.Body.String())
	}

	login := func(password string) *httptest.ResponseRecorder {
		body := `{"email":"chef@example.com","password":"` + password + `"}`
		req := loadSession(t, sm, httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader(body)))
		rec := httptest.NewRecorder()
		Login(rec, req)
		return rec
	}

	if w := login("wrong-password"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}
	w = login("correct-horse")
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var loggedIn userWithKeyResponse
	decodeBody(t, w, &loggedIn)
	if loggedIn.ID != created.ID || loggedIn.APIKey != created.APIKey {
		t.Fatalf("login returned %+v, want user %d", loggedIn, created.ID)
	}
}

func TestSignupWithoutDatabase(t *testing.T) {
	w := serve(t, Signup, http.MethodPost, "/api/v1/users", `{"email":"a@b.c","password":"password"}`, 0)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestSignupRejectsUnknownFields(t *testing.T) {
	_, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	w := serve(t, Signup, http.MethodPost, "/api/v1/users", `{"email":"a@example.com","password":"password","admin":true}`, 0)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLogout(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)

	req := loadSession(t, sm, httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil))
	sm.Put(req.Context(), sessionAuthenticatedKey, true)
	sm.Put(req.Context(), sessionUserIDKey, 4)

	w := httptest.NewRecorder()
	Logout(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if ActiveSession(req) {
		t.Fatal("expected session to be destroyed")
	}
}

func TestCurrentUser(t *testing.T) {
	gdb, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	user := seedUser(t, gdb, "me@example.com")

	w := serve(t, CurrentUser, http.MethodGet, "/api/v1/users/me", nil, user.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp userResponse
	decodeBody(t, w, &resp)
	if resp.ID != user.ID || resp.Email != "me@example.com" {
		t.Fatalf("unexpected user %+v", resp)
	}
	if strings.Contains(w.Body.String(), user.APIKey) {
		t.Fatal("profile must not expose the api key")
	}

	w = serve(t, CurrentUser, http.MethodPost, "/api/v1/users/me/regenerate-key", nil, user.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("regenerate: expected 200, got %d", w.Code)
	}
	var key map[string]string
	decodeBody(t, w, &key)
	if key["api_key"] == "" || key["api_key"] == user.APIKey {
		t.Fatalf("expected a fresh api key, got %q", key["api_key"])
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := findUserByAPIKey(req, user.APIKey); err == nil {
		t.Fatal("expected old api key to stop working")
	}
	if found, err := findUserByAPIKey(req, key["api_key"]); err != nil || found.ID != user.ID {
		t.Fatalf("expected new key to resolve user %d, got %v", user.ID, err)
	}

	if w := serve(t, CurrentUser, http.MethodGet, "/api/v1/users/me/other", nil, user.ID); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := serve(t, CurrentUser, http.MethodGet, "/api/v1/users/me", nil, 0); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", w.Code)
	}
}
