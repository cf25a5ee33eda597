package router

import (
	"property-catalog/internal/delivery/handler"
	"property-catalog/internal/delivery/middleware"
	"property-catalog/internal/infrastructure/metrics"
	"property-catalog/internal/service"
	"property-catalog/pkg/logger"

	"github.com/go-chi/chi/v5"
)

func SetupCatalogRoutes(catalogRouter chi.Router, catalogService service.CatalogService, auth *middleware.Authenticator, loggers *logger.Loggers, metrics *metrics.HandlerMetrics) {
	catalogHandler := handler.NewCatalogHandler(catalogService, loggers, metrics)

	catalogRouter.Group(func(r chi.Router) {
		r.Use(auth.Identify)

		r.Get("/", catalogHandler.Load)
		r.Post("/navigate", catalogHandler.Navigate)
	})

	catalogRouter.Get("/api/listings", catalogHandler.SearchListings)
	catalogRouter.Get("/api/listings/{id}", catalogHandler.GetListing)
	catalogRouter.Get("/api/listings/{id}/share", catalogHandler.ShareListing)
	catalogRouter.Post("/api/retry", catalogHandler.Retry)
}

func SetupAdminRoutes(adminRouter chi.Router, catalogService service.CatalogService, auth *middleware.Authenticator, loggers *logger.Loggers, metrics *metrics.HandlerMetrics) {
	adminHandler := handler.NewAdminHandler(catalogService, auth, loggers, metrics)

	adminRouter.Route("/admin", func(r chi.Router) {
		r.Post("/login", adminHandler.Login)
		r.Post("/logout", adminHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			r.Get("/form", adminHandler.BlankForm)
			r.Get("/listings", adminHandler.ListListings)
			r.Post("/listings", adminHandler.CreateListing)
			r.Get("/listings/{id}/form", adminHandler.EditForm)
			r.Put("/listings/{id}", adminHandler.ReplaceListing)
			r.Patch("/listings/{id}", adminHandler.PatchListing)
			r.Delete("/listings/{id}", adminHandler.DeleteListing)
		})
	})
}
