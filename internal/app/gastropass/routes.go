// Package gastropass предоставляет маршруты для основного приложения.
package gastropass

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/gastropass/internal/http/handlers/benefit/benefitredeem"
	"github.com/magabrotheeeer/gastropass/internal/http/handlers/payment/paymentcreate"
	"github.com/magabrotheeeer/gastropass/internal/http/handlers/payment/paymentdecision"
	"github.com/magabrotheeeer/gastropass/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/gastropass/internal/http/handlers/payment/paymentpending"
	"github.com/magabrotheeeer/gastropass/internal/http/handlers/payment/paymentreopen"
	"github.com/magabrotheeeer/gastropass/internal/http/handlers/payment/paymentstatus"
	"github.com/magabrotheeeer/gastropass/internal/http/handlers/subscription/subscriptioncancel"
	"github.com/magabrotheeeer/gastropass/internal/http/handlers/subscription/subscriptionstatus"
	"github.com/magabrotheeeer/gastropass/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gastropass/internal/lib/jwt"
	"github.com/magabrotheeeer/gastropass/internal/services/activator"
	"github.com/magabrotheeeer/gastropass/internal/services/benefits"
	"github.com/magabrotheeeer/gastropass/internal/services/lifecycle"
	"github.com/magabrotheeeer/gastropass/internal/services/reconciler"
	"github.com/magabrotheeeer/gastropass/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger,
	jwtMaker jwt.Maker,
	lifecycleService *lifecycle.Service,
	reconcilerService *reconciler.Service,
	activatorService *activator.Service,
	benefitsService *benefits.Service,
	db *repository.Storage,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/payments", paymentcreate.New(logger, lifecycleService).ServeHTTP)
			r.Get("/payments", paymentlist.New(logger, lifecycleService).ServeHTTP)
			r.Post("/payments/reopen", paymentreopen.New(logger, lifecycleService).ServeHTTP)
			r.Get("/payments/{id}", paymentstatus.New(logger, lifecycleService).ServeHTTP)
			r.Get("/subscription", subscriptionstatus.New(logger, db).ServeHTTP)
			r.Post("/subscription/cancel", subscriptioncancel.New(logger, activatorService).ServeHTTP)
			r.Post("/benefits/redeem", benefitredeem.New(logger, benefitsService).ServeHTTP)

			// Админские конечные точки
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(logger))
				r.Get("/admin/payments/pending", paymentpending.New(logger, lifecycleService).ServeHTTP)
				r.Post("/admin/payments/decision", paymentdecision.New(logger, reconcilerService).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
