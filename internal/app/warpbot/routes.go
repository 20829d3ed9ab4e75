package warpbot

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/warp-config-bot/internal/http/handlers/dashboard/exportcsv"
	"github.com/magabrotheeeer/warp-config-bot/internal/http/handlers/dashboard/health"
	"github.com/magabrotheeeer/warp-config-bot/internal/http/handlers/dashboard/login"
	"github.com/magabrotheeeer/warp-config-bot/internal/http/handlers/dashboard/stats"
	"github.com/magabrotheeeer/warp-config-bot/internal/http/handlers/dashboard/templatesave"
	"github.com/magabrotheeeer/warp-config-bot/internal/http/handlers/dashboard/userlist"
	"github.com/magabrotheeeer/warp-config-bot/internal/http/middlewarectx"
	jwtlib "github.com/magabrotheeeer/warp-config-bot/internal/lib/jwt"
	adminservice "github.com/magabrotheeeer/warp-config-bot/internal/services/admin"
	catalogservice "github.com/magabrotheeeer/warp-config-bot/internal/services/catalog"
	"github.com/magabrotheeeer/warp-config-bot/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты панели администратора.
func RegisterRoutes(r chi.Router, logger *slog.Logger, db *repository.Storage, admin *adminservice.Service, catalog *catalogservice.Service, maker jwtlib.Maker) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.New(logger).ServeHTTP)
		r.Post("/login", login.New(logger, db, maker).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(maker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/users", userlist.New(logger, admin).ServeHTTP)
			r.Get("/users/export", exportcsv.New(logger, admin).ServeHTTP)
			r.Get("/stats", stats.New(logger, admin).ServeHTTP)

			saveTemplate := templatesave.New(logger, catalog)
			r.Post("/templates", saveTemplate.ServeHTTP)
			r.Put("/templates", saveTemplate.ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
