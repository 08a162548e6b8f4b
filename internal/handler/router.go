package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/dealerhub-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса dealerhub.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/accounts", h.ListSubordinates)
			r.Post("/accounts", h.CreateAccount)
			r.Get("/accounts/{accountID}", h.GetAccount)
			r.Delete("/accounts/{accountID}", h.DeleteAccount)
			r.Patch("/accounts/{accountID}/status", h.UpdateAccountStatus)

			r.Get("/accounts/{accountID}/transfers", h.ListTransfers)
			r.Get("/accounts/{accountID}/codes", h.ListCodes)

			r.Post("/transfers", h.Transfer)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
