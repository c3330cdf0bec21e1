package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedEvent marks webhook payloads that cannot be decoded into any
// recognised shape. The HTTP boundary maps it to a client error so the
// gateway does not retry garbage forever.
var ErrMalformedEvent = errors.New("malformed payment event")

// PaymentEvent is the closed set of gateway notifications the
// reconciliation engine understands. The raw webhook envelope is decoded
// into one of these variants at the boundary; dispatch inside the engine
// is on the concrete type, never on raw strings.
type PaymentEvent interface {
	// EventID is the gateway's unique id for this delivery, used for
	// deduplication under at-least-once redelivery.
	EventID() string
	// OccurredAt is the gateway-side creation time of the event, used to
	// reject stale out-of-order deliveries.
	OccurredAt() time.Time
}

// CheckoutSessionEvent is a checkout.session.* notification. Correlates to
// an order via the session id (Order.StripeID).
type CheckoutSessionEvent struct {
	ID            string
	Type          string
	SessionID     string
	PaymentIntent string
	Created       time.Time
}

func (e CheckoutSessionEvent) EventID() string       { return e.ID }
func (e CheckoutSessionEvent) OccurredAt() time.Time { return e.Created }

// PaymentIntentEvent is a payment_intent.* notification. Correlates to an
// order via the intent id (Order.PaymentIntent).
type PaymentIntentEvent struct {
	ID       string
	Type     string
	IntentID string
	Created  time.Time
}

func (e PaymentIntentEvent) EventID() string       { return e.ID }
func (e PaymentIntentEvent) OccurredAt() time.Time { return e.Created }

// ChargeEvent is a charge.* notification. Recognised but deliberately not
// acted on; the charge family is reserved for refund reconciliation.
type ChargeEvent struct {
	ID       string
	Type     string
	ChargeID string
	Created  time.Time
}

func (e ChargeEvent) EventID() string       { return e.ID }
func (e ChargeEvent) OccurredAt() time.Time { return e.Created }

// UnknownEvent is a well-formed envelope whose embedded object kind the
// engine does not handle. It is acknowledged without any state change.
type UnknownEvent struct {
	ID      string
	Type    string
	Kind    string
	Created time.Time
}

func (e UnknownEvent) EventID() string       { return e.ID }
func (e UnknownEvent) OccurredAt() time.Time { return e.Created }

// envelope is the outer webhook shape shared by all gateway events.
type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// embeddedObject carries the fields the engine needs regardless of kind.
// The object's own "object" field names its kind.
type embeddedObject struct {
	Object        string `json:"object"`
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
}

// DecodePaymentEvent parses a raw webhook body into a typed event.
// A payload without an event type or an embedded object is malformed;
// an unrecognised object kind is not (it decodes to UnknownEvent).
func DecodePaymentEvent(raw []byte) (PaymentEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Type == "" || len(env.Data.Object) == 0 {
		return nil, fmt.Errorf("%w: missing type or data.object", ErrMalformedEvent)
	}

	var obj embeddedObject
	if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("%w: data.object: %v", ErrMalformedEvent, err)
	}

	created := time.Time{}
	if env.Created > 0 {
		created = time.Unix(env.Created, 0).UTC()
	}

	switch obj.Object {
	case "checkout.session":
		return CheckoutSessionEvent{
			ID:            env.ID,
			Type:          env.Type,
			SessionID:     obj.ID,
			PaymentIntent: obj.PaymentIntent,
			Created:       created,
		}, nil
	case "payment_intent":
		return PaymentIntentEvent{
			ID:       env.ID,
			Type:     env.Type,
			IntentID: obj.ID,
			Created:  created,
		}, nil
	case "charge":
		return ChargeEvent{
			ID:       env.ID,
			Type:     env.Type,
			ChargeID: obj.ID,
			Created:  created,
		}, nil
	default:
		return UnknownEvent{
			ID:      env.ID,
			Type:    env.Type,
			Kind:    obj.Object,
			Created: created,
		}, nil
	}
}

// SessionOutcome maps a checkout.session.* event type to the order status
// it implies.
func SessionOutcome(eventType string) OrderStatus {
	switch eventType {
	case "checkout.session.created":
		return StatusWaitingForPayment
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return StatusPaymentCompleted
	default:
		return StatusPaymentRejected
	}
}

// IntentOutcome maps a payment_intent.* event type to the order status it
// implies.
func IntentOutcome(eventType string) OrderStatus {
	switch eventType {
	case "payment_intent.created":
		return StatusWaitingForPayment
	case "payment_intent.succeeded":
		return StatusPaymentCompleted
	default:
		return StatusPaymentRejected
	}
}
