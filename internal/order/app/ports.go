package app

import (
	"context"
	"errors"

	"github.com/jcmexdev/ecommerce-checkout/internal/order/domain"
)

// Sentinel errors shared by every OrderStore implementation.
var (
	// ErrNotFound means no order matched the given id or correlation key.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateEvent means a payment event with the same gateway event
	// id was already applied; redelivery must be a no-op.
	ErrDuplicateEvent = errors.New("payment event already applied")
	// ErrVersionConflict means a concurrent writer updated the order
	// between read and write; the caller should re-read and retry.
	ErrVersionConflict = errors.New("order version conflict")
)

// OrderStore is the persistence port for orders. Correlation lookups use
// the gateway keys (session id, payment intent); concurrency control lives
// here, at the storage layer, because multiple process instances may
// reconcile events for the same order.
type OrderStore interface {
	Insert(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	FindByStripeID(ctx context.Context, sessionID string) (*domain.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error)
	List(ctx context.Context) ([]*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)

	// UpdateStatus performs an administrative status override, conditional
	// on the order still being in the from status.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error

	// ApplyEvent persists the already-mutated order together with an
	// audit/dedup row for the gateway event, in one transaction. The order
	// write is compare-and-set on order.Version. Returns ErrDuplicateEvent
	// if the event id was seen before and ErrVersionConflict if a
	// concurrent writer got there first.
	ApplyEvent(ctx context.Context, order *domain.Order, eventID, eventType string) error
}

// LineItem is one gateway line item: a name, an integral minor-unit amount
// and a quantity.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int
}

// CheckoutSessionRequest describes the hosted-payment session to open for
// one order. Redirect targets and currency are configuration, not
// per-request input.
type CheckoutSessionRequest struct {
	LineItems  []LineItem
	Currency   string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the gateway's view of an opened session. AmountTotal
// is authoritative for the charge amount.
type CheckoutSession struct {
	ID            string
	PaymentIntent string
	AmountTotal   int64
	URL           string
}

// PaymentGateway wraps the external payment processor.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	// ExpireSession invalidates a previously opened session; used to
	// compensate when the order cannot be persisted after the session was
	// created.
	ExpireSession(ctx context.Context, sessionID string) error
}

// EventDeduper is the fast-path duplicate filter for webhook deliveries.
// It is advisory: the authoritative dedup is the event row written by
// OrderStore.ApplyEvent. Implementations must tolerate being unavailable.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}
