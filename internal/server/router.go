package server

import (
	"context"
	"net/http"

	"platecost/internal/handlers"
	applog "platecost/internal/log"
	"platecost/internal/metrics"
)

func newRouter(recorder *metrics.Recorder) http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")

	handle := func(pattern string, handler http.Handler, protected bool) {
		if protected {
			handler = handlers.RequireAPIAuth(handler)
		}
		mux.Handle(pattern, handler)
		applog.Debug(context.Background(), "route registered", "path", pattern, "protected", protected)
	}

	handle("/healthz", http.HandlerFunc(handlers.Health), false)
	handle("/api/v1/users", http.HandlerFunc(handlers.Signup), false)
	handle("/api/v1/users/login", http.HandlerFunc(handlers.Login), false)
	handle("/api/v1/users/logout", http.HandlerFunc(handlers.Logout), false)
	handle("/api/v1/users/me", http.HandlerFunc(handlers.CurrentUser), true)
	handle("/api/v1/users/me/", http.HandlerFunc(handlers.CurrentUser), true)
	handle("/api/v1/units", http.HandlerFunc(handlers.Units), false)
	handle("/api/v1/units/convert", http.HandlerFunc(handlers.ConvertUnits), false)
	for _, resource := range []struct {
		prefix  string
		handler http.HandlerFunc
	}{
		{"/api/v1/ingredients", handlers.IngredientResource},
		{"/api/v1/recipes", handlers.RecipeResource},
		{"/api/v1/bom", handlers.BOMResource},
	} {
		handle(resource.prefix, resource.handler, true)
		handle(resource.prefix+"/", resource.handler, true)
	}
	if recorder != nil {
		handle("/metrics", recorder.Handler(), false)
	}
	handle("/", http.HandlerFunc(handlers.Home), false)

	return withRequestContext(instrument(mux, recorder))
}
