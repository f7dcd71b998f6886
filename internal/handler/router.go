package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	custommiddleware "github.com/igorprost60-bit/cafe-app/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware витрины кафе.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Фронтенд мини-приложения открывается из webview Telegram с другого origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Telegram-Init-Data"},
		MaxAge:         300,
	}))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", h.GetMenu)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Optional)

			r.Post("/orders", h.SubmitOrder)
			r.Get("/role", h.GetRole)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Require)

			r.Get("/catalog", h.AdminCatalog)
			r.Post("/categories", h.CreateCategory)
			r.Post("/products", h.CreateProduct)
			r.Patch("/products/{productID}/activity", h.ToggleProductActivity)
			r.Post("/media", h.UploadMedia)

			r.Get("/access", h.ListAdmins)
			r.Post("/access", h.AddAdmin)
			r.Delete("/access/{telegramID}", h.RemoveAdmin)

			r.Get("/orders/orphans", h.ListOrphanOrders)
		})
	})

	r.Get("/media/{key}", h.ServeMedia)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
