package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
//
// The payment reconciliation engine only ever moves an order between
// StatusWaitingForPayment, StatusPaymentCompleted and StatusPaymentRejected.
// The remaining states belong to fulfilment and are reachable only through
// the administrative status endpoint.
type OrderStatus string

const (
	StatusWaitingForPayment OrderStatus = "waitingForPayment"
	StatusPaymentCompleted  OrderStatus = "paymentCompleted"
	StatusPaymentRejected   OrderStatus = "paymentRejected"
	StatusOrderAccepted     OrderStatus = "orderAccepted"
	StatusInProgress        OrderStatus = "inProgress"
	StatusDelivering        OrderStatus = "delivering"
	StatusCompleted         OrderStatus = "completed"
	StatusCancelled         OrderStatus = "cancelled"
)

// PaymentType is how the buyer pays for the order.
type PaymentType string

const (
	PaymentTypeCard PaymentType = "card"
	PaymentTypeCash PaymentType = "cash"
)

var (
	ErrMissingShippingField = errors.New("missing required shipping field")
	ErrInvalidEmail         = errors.New("please add a valid email")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// ProductSnapshot is the client-submitted view of a product at checkout
// time. It is stored verbatim on the order and never re-fetched from the
// catalog, so the order remains auditable after catalog changes.
type ProductSnapshot struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
}

// CartItem is one entry of the submitted cart.
type CartItem struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

// ShippingDetails are the contact fields copied onto the order at creation.
type ShippingDetails struct {
	FirstName   string
	LastName    string
	County      string
	City        string
	Address     string
	Zip         string
	PhoneNumber string
	Email       string
}

// Customer is the authenticated buyer, when there is one. Orders may also
// be placed by guests, in which case all contact fields must come from the
// request itself.
type Customer struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// Order is the central entity: a priced cart bound to a gateway checkout
// session, whose status is advanced by asynchronous payment events.
type Order struct {
	// ID is the internal identifier used in API paths.
	ID string
	// UUID is the externally facing correlation value, generated fresh
	// for every order.
	UUID string

	UserID string

	// OriginalItems is the exact cart payload submitted by the client.
	// Immutable after creation.
	OriginalItems []CartItem
	ProductIDs    []string
	Quantities    map[string]int

	FirstName   string
	LastName    string
	County      string
	City        string
	Address     string
	Zip         string
	PhoneNumber string
	Email       string

	PaymentType PaymentType
	Vouchers    []string

	// StripeID is the gateway checkout session id, set exactly once at
	// creation. Primary correlation key for inbound webhook events.
	StripeID string
	// PaymentIntent is populated at most once, when the gateway reports
	// a payment intent for the session.
	PaymentIntent string

	Status OrderStatus

	// Total is the gateway-reported amount in minor units. The gateway is
	// authoritative for the charge amount; it is never recomputed locally.
	Total int64

	// LastEventAt is the gateway timestamp of the newest payment event
	// applied to this order. Older events are rejected as stale.
	LastEventAt time.Time

	// Version is bumped on every persisted update and used for
	// compare-and-set writes at the store.
	Version int64

	CreatedAt time.Time
}

// NewOrder builds an order in its initial state from a priced checkout
// session. Contact fields missing from the request fall back to the
// authenticated customer; guests must supply everything themselves.
func NewOrder(
	cart []CartItem,
	details ShippingDetails,
	customer *Customer,
	sessionID, paymentIntent string,
	total int64,
) (*Order, error) {
	if customer != nil {
		if details.FirstName == "" {
			details.FirstName = customer.FirstName
		}
		if details.LastName == "" {
			details.LastName = customer.LastName
		}
		if details.Email == "" {
			details.Email = customer.Email
		}
	}

	if err := validateShipping(details); err != nil {
		return nil, err
	}

	productIDs := make([]string, 0, len(cart))
	quantities := make(map[string]int, len(cart))
	for _, item := range cart {
		productIDs = append(productIDs, item.Product.ID)
		quantities[item.Product.ID] += item.Quantity
	}

	order := &Order{
		ID:            uuid.NewString(),
		UUID:          uuid.NewString(),
		OriginalItems: cart,
		ProductIDs:    productIDs,
		Quantities:    quantities,
		FirstName:     details.FirstName,
		LastName:      details.LastName,
		County:        details.County,
		City:          details.City,
		Address:       details.Address,
		Zip:           details.Zip,
		PhoneNumber:   details.PhoneNumber,
		Email:         details.Email,
		PaymentType:   PaymentTypeCard,
		StripeID:      sessionID,
		PaymentIntent: paymentIntent,
		Status:        StatusWaitingForPayment,
		Total:         total,
		Version:       1,
		CreatedAt:     time.Now().UTC(),
	}
	if customer != nil {
		order.UserID = customer.ID
	}
	return order, nil
}

func validateShipping(d ShippingDetails) error {
	required := map[string]string{
		"county":       d.County,
		"city":         d.City,
		"address":      d.Address,
		"phone_number": d.PhoneNumber,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("%w: %s", ErrMissingShippingField, field)
		}
	}
	if d.Email != "" && !emailPattern.MatchString(d.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// paymentStatuses are the only states the reconciliation engine may write.
func isPaymentStatus(s OrderStatus) bool {
	switch s {
	case StatusWaitingForPayment, StatusPaymentCompleted, StatusPaymentRejected:
		return true
	}
	return false
}

// ApplyPaymentOutcome applies a classified gateway outcome to the order and
// reports whether anything changed. It enforces the reconciliation rules:
//
//   - events older than the newest applied one are stale and ignored
//   - a stale "created" event never regresses a settled status back to
//     waitingForPayment
//   - fulfilment states are never overwritten by payment events
//   - payment_intent is recorded at most once
//
// Callers are expected to have already deduplicated by gateway event id;
// this method is the ordering guard, not the identity guard.
func (o *Order) ApplyPaymentOutcome(next OrderStatus, paymentIntent string, occurredAt time.Time) bool {
	if !isPaymentStatus(next) {
		return false
	}
	if !occurredAt.IsZero() && !o.LastEventAt.IsZero() && occurredAt.Before(o.LastEventAt) {
		return false
	}
	if !isPaymentStatus(o.Status) {
		// Fulfilment has taken over; late gateway noise is irrelevant.
		return false
	}

	changed := false
	if o.PaymentIntent == "" && paymentIntent != "" {
		o.PaymentIntent = paymentIntent
		changed = true
	}

	regression := next == StatusWaitingForPayment && o.Status != StatusWaitingForPayment
	if next != o.Status && !regression {
		o.Status = next
		changed = true
	}

	if changed && occurredAt.After(o.LastEventAt) {
		o.LastEventAt = occurredAt
	}
	return changed
}

// fulfilmentTransitions is the closed set of administrative moves allowed
// through the status override endpoint. The payment states themselves are
// owned by the reconciliation engine and cannot be entered here.
var fulfilmentTransitions = map[OrderStatus][]OrderStatus{
	StatusWaitingForPayment: {StatusCancelled},
	StatusPaymentRejected:   {StatusCancelled},
	StatusPaymentCompleted:  {StatusOrderAccepted, StatusCancelled},
	StatusOrderAccepted:     {StatusInProgress, StatusCancelled},
	StatusInProgress:        {StatusDelivering, StatusCancelled},
	StatusDelivering:        {StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether an administrative move from the current
// status to next is allowed.
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range fulfilmentTransitions[o.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus validates a client-supplied status string.
func ParseStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusWaitingForPayment, StatusPaymentCompleted, StatusPaymentRejected,
		StatusOrderAccepted, StatusInProgress, StatusDelivering,
		StatusCompleted, StatusCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
}
