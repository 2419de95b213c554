package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/timetrack-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/timetrack-backend-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// HealthCheck reports whether the storage backend is reachable.
type HealthCheck func(ctx context.Context) error

type RouterOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
	Health         HealthCheck
}

func NewRouter(JWTService jwt.Service, timeTrackHandler TimeTrackHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health(ctx); err != nil {
				logger.Error("Health check failed", "error", err)
				response.InternalServerError(w, "Storage unavailable")
				return
			}
		}
		response.Success(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/timetrack", func(r chi.Router) {
				r.Post("/events", timeTrackHandler.RecordEvent)
				r.Get("/summary/{employeeID}", timeTrackHandler.Summary)

				r.Route("/days/{employeeID}", func(r chi.Router) {
					r.Get("/", timeTrackHandler.ListDays)

					r.Route("/{date}", func(r chi.Router) {
						r.Get("/", timeTrackHandler.GetDay)
						r.Post("/close", timeTrackHandler.CloseDay)
						// employees may dispute their own days
						r.Post("/review", timeTrackHandler.RequestReview)

						// Managers only
						r.Group(func(r chi.Router) {
							r.Use(middleware.RequirePermission(user.PermissionTimetrackApprove))
							r.Post("/resolve", timeTrackHandler.ResolveReview)
							r.Post("/approve", timeTrackHandler.ApproveDay)
						})
						r.Group(func(r chi.Router) {
							r.Use(middleware.RequirePermission(user.PermissionTimetrackCorrect))
							r.Patch("/events/{eventID}", timeTrackHandler.CorrectEvent)
						})
					})
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireManager)
					r.Post("/corrections/batch", timeTrackHandler.BatchCorrect)
				})
			})
		})
	})
	return r
}

// NewLogger builds the ECS JSON logger shared by the router and the jobs.
func NewLogger(app, version, env string, level slog.Level, w io.Writer) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(false)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", app),
		slog.String("version", version),
		slog.String("env", env),
	)
}
