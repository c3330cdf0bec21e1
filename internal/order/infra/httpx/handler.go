package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/ecommerce-checkout/internal/order/app"
	"github.com/jcmexdev/ecommerce-checkout/internal/order/domain"
	"github.com/jcmexdev/ecommerce-checkout/internal/order/infra/httpx/middlewares"
)

// OrderHandler serves the order endpoints.
type OrderHandler struct {
	service *app.Service
}

func NewOrderHandler(service *app.Service) *OrderHandler {
	return &OrderHandler{service: service}
}

// CreateOrder prices the submitted cart, opens the hosted payment session
// and persists the order. Responds 201 with the data the client needs to
// redirect the buyer to the payment page.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	identity := middlewares.IdentityFrom(r.Context())
	var customer *domain.Customer
	if identity.IsAuthenticated() {
		customer = &domain.Customer{
			ID:        identity.UserID,
			FirstName: identity.FirstName,
			LastName:  identity.LastName,
			Email:     identity.Email,
		}
	}

	details := domain.ShippingDetails{
		FirstName:   req.Details.FirstName,
		LastName:    req.Details.LastName,
		County:      req.Details.County,
		City:        req.Details.City,
		Address:     req.Details.Address,
		Zip:         req.Details.Zip,
		PhoneNumber: req.Details.PhoneNumber,
		Email:       req.Details.Email,
	}

	result, err := h.service.CreateOrder(r.Context(), mapCart(req.Products), details, customer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateOrderResponse{
		Order:     mapOrderToResponse(result.Order),
		SessionID: result.SessionID,
		URL:       result.URL,
	})
}

// ListOrders returns every order. Admin only.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrders(orders))
}

// MyOrders returns the authenticated user's own orders.
func (h *OrderHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	identity := middlewares.IdentityFrom(r.Context())
	orders, err := h.service.ListOrdersByUser(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrders(orders))
}

// GetOrderByID fetches a single order.
func (h *OrderHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "order_id_required", "")
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// UpdateStatus applies an administrative fulfilment transition. Payment
// states are owned by the reconciliation engine and rejected here.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id, next)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "order status overridden", "order_id", id, "status", next)
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func mapOrders(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, order := range orders {
		out[i] = mapOrderToResponse(order)
	}
	return out
}

// writeServiceError maps domain and application errors onto the HTTP
// taxonomy: validation problems are client errors, gateway failures are
// bad-gateway, everything else is an opaque server error with full detail
// kept in the logs.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrEmptyCart),
		errors.Is(err, app.ErrUnpriceableItem),
		errors.Is(err, domain.ErrMissingShippingField),
		errors.Is(err, domain.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", "")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid_transition", err.Error())
	case errors.Is(err, app.ErrVersionConflict):
		writeError(w, http.StatusConflict, "conflict", "order was modified concurrently")
	case errors.Is(err, app.ErrGateway):
		slog.ErrorContext(r.Context(), "payment gateway failure", "error", err)
		writeError(w, http.StatusBadGateway, "payment_gateway_error", "payment session could not be created")
	default:
		slog.ErrorContext(r.Context(), "internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
