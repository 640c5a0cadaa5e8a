package api

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/Togather-Foundation/events-api/internal/api/handlers"
	"github.com/Togather-Foundation/events-api/internal/api/middleware"
	"github.com/Togather-Foundation/events-api/internal/api/problem"
	"github.com/Togather-Foundation/events-api/internal/config"
	"github.com/Togather-Foundation/events-api/internal/domain/events"
	"github.com/Togather-Foundation/events-api/internal/metrics"
	"github.com/rs/zerolog"
)

// RouterDeps are the services the HTTP layer dispatches to.
type RouterDeps struct {
	Events    *events.Service
	Store     handlers.Checker
	Version   string
	GitCommit string
	BuildDate string
}

// NewRouter assembles routes and the middleware chain. Background work
// started by middleware stops when ctx is done.
func NewRouter(ctx context.Context, cfg config.Config, logger zerolog.Logger, deps RouterDeps) http.Handler {
	eventsHandler := handlers.NewEventsHandler(deps.Events, cfg.Environment, cfg.Server.BaseURL)
	health := handlers.NewHealthChecker(deps.Store, deps.Version, deps.GitCommit)

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", health.Readyz())
	mux.Handle("/version", methodMux(map[string]http.Handler{
		http.MethodGet: VersionHandler(deps.Version, deps.GitCommit, deps.BuildDate),
	}))
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api-docs/openapi.json", OpenAPIHandler())

	mux.Handle("/events", methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(eventsHandler.List),
		http.MethodPost: http.HandlerFunc(eventsHandler.Create),
	}))
	mux.Handle("/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    http.HandlerFunc(eventsHandler.Get),
		http.MethodPut:    http.HandlerFunc(eventsHandler.Update),
		http.MethodDelete: http.HandlerFunc(eventsHandler.Delete),
	}))
	mux.Handle("/", notFound())

	var handler http.Handler = mux
	handler = middleware.RequestSize(cfg.Server.MaxBodyBytes)(handler)
	handler = middleware.RateLimit(ctx, cfg.RateLimit)(handler)
	handler = middleware.CORS(cfg.CORS, logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		if allow := allowedMethods(handlers); allow != "" {
			w.Header().Set("Allow", allow)
		}
		problem.WriteProblem(w, problem.ProblemDetails{
			Type:     problem.TypeMethodNotAllowed,
			Title:    "Method not allowed",
			Status:   http.StatusMethodNotAllowed,
			Detail:   r.Method + " is not supported on " + r.URL.Path,
			Instance: r.URL.Path,
		})
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

func notFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.WriteProblem(w, problem.ProblemDetails{
			Type:     problem.TypeNotFound,
			Title:    "Not found",
			Status:   http.StatusNotFound,
			Instance: r.URL.Path,
		})
	})
}
