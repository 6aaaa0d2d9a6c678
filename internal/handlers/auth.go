package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"platecost/internal/cache"
	applog "platecost/internal/log"
	"platecost/internal/metrics"
	"platecost/models"
)

const (
	sessionAuthenticatedKey = "auth:authenticated"
	sessionUserIDKey        = "auth:user:id"
	sessionUserEmailKey     = "auth:user:email"
	sessionUserNameKey      = "auth:user:name"

	apiKeyHeader = "X-API-Key"
	devUserEmail = "dev@platecost.local"
)

var errInvalidCredentials = errors.New("invalid email or password")

type userIDContextKey struct{}

// Services are the optional collaborators of the HTTP handlers.
type Services struct {
	Environment string
	Cache       cache.Store
	ExportTTL   time.Duration
	Metrics     *metrics.Recorder
	// DevAPIKey, when set, is accepted as an API key and resolves to a
	// development tenant that is created on first use.
	DevAPIKey string
}

var (
	sessionManager *scs.SessionManager
	database       *gorm.DB
	services       = Services{Cache: cache.Noop{}}
)

// Configure installs the shared dependencies used by the HTTP handlers.
func Configure(sm *scs.SessionManager, db *gorm.DB) {
	sessionManager = sm
	database = db
}

// ConfigureServices installs the cache, metrics and auth settings.
func ConfigureServices(s Services) {
	if s.Cache == nil {
		s.Cache = cache.Noop{}
	}
	services = s
}

func newAPIKey() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

func createUser(r *http.Request, email, name, password string) (*models.User, error) {
	if database == nil {
		return nil, gorm.ErrInvalidDB
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        models.NormalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hashed),
		APIKey:       newAPIKey(),
		IsActive:     true,
	}

	if err := database.WithContext(r.Context()).Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

func findUserByEmail(r *http.Request, email string) (*models.User, error) {
	if database == nil {
		return nil, gorm.ErrInvalidDB
	}

	user := &models.User{}
	err := database.WithContext(r.Context()).Where("lower(email) = ?", models.NormalizeEmail(email)).First(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func findUserByAPIKey(r *http.Request, key string) (*models.User, error) {
	if database == nil {
		return nil, gorm.ErrInvalidDB
	}

	user := &models.User{}
	err := database.WithContext(r.Context()).Where("api_key = ? AND is_active = ?", key, true).First(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

// devUser returns the development tenant, creating it on first use.
func devUser(r *http.Request) (*models.User, error) {
	if database == nil {
		return nil, gorm.ErrInvalidDB
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{}
	err = database.WithContext(r.Context()).
		Where(models.User{Email: devUserEmail}).
		Attrs(models.User{
			Name:         "Development Kitchen",
			PasswordHash: string(hashed),
			APIKey:       services.DevAPIKey,
			IsActive:     true,
		}).
		FirstOrCreate(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

// authenticate verifies the provided credentials and populates the session if successful.
func authenticate(r *http.Request, email, password string) (*models.User, error) {
	if sessionManager == nil {
		return nil, errors.New("session manager not configured")
	}

	user, err := findUserByEmail(r, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}

	if err := establishSession(r, user); err != nil {
		return nil, err
	}
	return user, nil
}

func establishSession(r *http.Request, user *models.User) error {
	if sessionManager == nil {
		return errors.New("session manager not configured")
	}
	if err := sessionManager.RenewToken(r.Context()); err != nil {
		return err
	}
	sessionManager.Put(r.Context(), sessionAuthenticatedKey, true)
	sessionManager.Put(r.Context(), sessionUserIDKey, int(user.ID))
	sessionManager.Put(r.Context(), sessionUserEmailKey, user.Email)
	sessionManager.Put(r.Context(), sessionUserNameKey, user.Name)
	return nil
}

// RequireAPIAuth resolves the tenant from the X-API-Key header or the
// session cookie before passing the request on.
func RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if database == nil {
			applog.Debug(r.Context(), "api request without database")
			writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}

		if key := strings.TrimSpace(r.Header.Get(apiKeyHeader)); key != "" {
			var (
				user *models.User
				err  error
			)
			if services.DevAPIKey != "" && key == services.DevAPIKey {
				user, err = devUser(r)
			} else {
				user, err = findUserByAPIKey(r, key)
			}
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					applog.Error(r.Context(), "failed to resolve api key", "error", err)
					writeJSONError(w, http.StatusInternalServerError, "unable to authenticate")
					return
				}
				applog.Debug(r.Context(), "rejected unknown api key")
				w.Header().Set("WWW-Authenticate", "ApiKey")
				writeJSONError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), user.ID)))
			return
		}

		if ActiveSession(r) {
			next.ServeHTTP(w, r)
			return
		}

		applog.Debug(r.Context(), "api request missing credentials", "path", r.URL.Path)
		w.Header().Set("WWW-Authenticate", "ApiKey")
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
	})
}

func withUserID(ctx context.Context, id uint) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, id)
}

// currentUserID returns the tenant resolved by RequireAPIAuth, falling back
// to the session.
func currentUserID(r *http.Request) (uint, bool) {
	if id, ok := r.Context().Value(userIDContextKey{}).(uint); ok && id > 0 {
		return id, true
	}
	if sessionManager == nil {
		return 0, false
	}
	id := sessionManager.GetInt(r.Context(), sessionUserIDKey)
	if id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// ActiveSession returns true when the current request has an authenticated session.
func ActiveSession(r *http.Request) bool {
	if sessionManager == nil {
		return false
	}
	return sessionManager.GetBool(r.Context(), sessionAuthenticatedKey) && sessionManager.GetInt(r.Context(), sessionUserIDKey) > 0
}
