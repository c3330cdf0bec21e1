package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/ecommerce-checkout/internal/order/infra/httpx/middlewares"
)

// NewRouter wires the order and webhook endpoints. The webhook route is
// registered for GET as well as POST because the gateway configuration in
// the wild has been seen probing with GET.
func NewRouter(orders *OrderHandler, webhooks *WebhookHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.AttachIdentity)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orders.CreateOrder)
			r.With(middlewares.RequireAdmin).Get("/", orders.ListOrders)
			r.With(middlewares.RequireUser).Get("/me", orders.MyOrders)
			r.Get("/{id}", orders.GetOrderByID)
			r.With(middlewares.RequireAdmin).Patch("/{id}/status", orders.UpdateStatus)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/payment", webhooks.HandlePaymentEvent)
			r.Get("/payment", webhooks.HandlePaymentEvent)
		})
	})

	return r
}
