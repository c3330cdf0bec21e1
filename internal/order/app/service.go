package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/ecommerce-checkout/internal/coordinator"
	"github.com/jcmexdev/ecommerce-checkout/internal/order/domain"
)

var (
	// ErrEmptyCart means the checkout request carried no products.
	ErrEmptyCart = errors.New("cannot complete payment without any products")
	// ErrUnpriceableItem means a cart entry had no usable price.
	ErrUnpriceableItem = errors.New("cart item has no usable price")
	// ErrGateway wraps failures of the external payment processor.
	ErrGateway = errors.New("payment gateway error")
)

// CheckoutConfig is the fixed, per-deployment part of every checkout
// session: a single currency and the hosted-page redirect targets.
type CheckoutConfig struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Service creates orders and serves order queries. Status mutation after
// creation belongs to the Reconciler (payment states) and to UpdateStatus
// (fulfilment states).
type Service struct {
	store    OrderStore
	gateway  PaymentGateway
	checkout CheckoutConfig
}

func NewService(store OrderStore, gateway PaymentGateway, checkout CheckoutConfig) *Service {
	return &Service{store: store, gateway: gateway, checkout: checkout}
}

// CheckoutResult is what the caller needs to redirect the buyer to the
// hosted payment page.
type CheckoutResult struct {
	Order     *domain.Order
	SessionID string
	URL       string
}

// CreateOrder validates the cart, opens a gateway checkout session covering
// every line item and persists the order in its initial state. The two side
// effects run as a saga: if the insert fails the session is expired, so no
// partial state survives on either side.
func (s *Service) CreateOrder(
	ctx context.Context,
	cart []domain.CartItem,
	details domain.ShippingDetails,
	customer *domain.Customer,
) (*CheckoutResult, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	lineItems := make([]LineItem, 0, len(cart))
	for _, item := range cart {
		amount := domain.GatewayUnitAmount(item.Product.Price, item.Product.Discount)
		if amount == domain.Unpriceable {
			return nil, fmt.Errorf("%w: %q", ErrUnpriceableItem, item.Product.Name)
		}
		lineItems = append(lineItems, LineItem{
			Name:       item.Product.Name,
			UnitAmount: amount,
			Quantity:   item.Quantity,
		})
	}

	session := &createSessionStep{
		gateway: s.gateway,
		request: CheckoutSessionRequest{
			LineItems:  lineItems,
			Currency:   s.checkout.Currency,
			SuccessURL: s.checkout.SuccessURL,
			CancelURL:  s.checkout.CancelURL,
		},
	}
	persist := &persistOrderStep{
		store:    s.store,
		session:  session,
		cart:     cart,
		details:  details,
		customer: customer,
	}

	if err := coordinator.NewOrchestrator(session, persist).Start(ctx); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order created",
		"order_id", persist.order.ID,
		"session_id", session.result.ID,
		"total", session.result.AmountTotal,
	)

	return &CheckoutResult{
		Order:     persist.order,
		SessionID: session.result.ID,
		URL:       session.result.URL,
	}, nil
}

// GetOrder fetches one order by its internal id.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.store.GetByID(ctx, id)
}

// ListOrders returns every order. Admin surface.
func (s *Service) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.store.List(ctx)
}

// ListOrdersByUser returns the orders placed by one authenticated user.
func (s *Service) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.store.ListByUser(ctx, userID)
}

// UpdateStatus applies an administrative fulfilment transition. The write
// is conditional on the status the transition was validated against, so a
// concurrent webhook or a second admin cannot be silently overwritten.
func (s *Service) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, next)
	}
	if err := s.store.UpdateStatus(ctx, id, order.Status, next); err != nil {
		return nil, err
	}
	order.Status = next
	return order, nil
}

// createSessionStep opens the hosted checkout session. Its compensation
// expires the session so an abandoned payment page cannot settle against
// an order that was never persisted.
type createSessionStep struct {
	gateway PaymentGateway
	request CheckoutSessionRequest
	result  *CheckoutSession
}

func (s *createSessionStep) Name() string { return "Create_Checkout_Session_Step" }

func (s *createSessionStep) Execute(ctx context.Context) error {
	session, err := s.gateway.CreateCheckoutSession(ctx, s.request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	s.result = session
	return nil
}

func (s *createSessionStep) Compensate(ctx context.Context) error {
	if s.result == nil {
		return nil
	}
	return s.gateway.ExpireSession(ctx, s.result.ID)
}

// persistOrderStep builds the order from the session the previous step
// opened and inserts it. Last step, so no compensation.
type persistOrderStep struct {
	store    OrderStore
	session  *createSessionStep
	cart     []domain.CartItem
	details  domain.ShippingDetails
	customer *domain.Customer

	order *domain.Order
}

func (s *persistOrderStep) Name() string { return "Persist_Order_Step" }

func (s *persistOrderStep) Execute(ctx context.Context) error {
	sess := s.session.result
	order, err := domain.NewOrder(s.cart, s.details, s.customer, sess.ID, sess.PaymentIntent, sess.AmountTotal)
	if err != nil {
		return err
	}
	if err := s.store.Insert(ctx, order); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}
	s.order = order
	return nil
}

func (s *persistOrderStep) Compensate(ctx context.Context) error {
	return nil
}
