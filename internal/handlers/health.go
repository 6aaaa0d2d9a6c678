package handlers

import (
	"context"
	"net/http"
	"time"

	applog "platecost/internal/log"
)

type healthResponse struct {
	Status      string    `json:"status"`
	Environment string    `json:"environment,omitempty"`
	Database    string    `json:"database"`
	Time        time.Time `json:"time"`
}

// Health is a simple readiness handler suitable for infrastructure probes.
func Health(w http.ResponseWriter, r *http.Request) {
	applog.Debug(r.Context(), "health check requested", "method", r.Method)
	resp := healthResponse{
		Status:      "ok",
		Environment: services.Environment,
		Database:    databaseStatus(r.Context()),
		Time:        time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, resp)
	applog.Debug(r.Context(), "health check responded successfully", "database", resp.Database)
}

func databaseStatus(ctx context.Context) string {
	if database == nil {
		return "unconfigured"
	}
	sqlDB, err := database.DB()
	if err != nil {
		return "unavailable"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		applog.Error(ctx, "database ping failed", "error", err)
		return "unavailable"
	}
	return "connected"
}
