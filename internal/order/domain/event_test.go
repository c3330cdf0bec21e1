package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePaymentEvent_CheckoutSession(t *testing.T) {
	raw := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {"object": "checkout.session", "id": "sess_1", "payment_intent": "pi_1"}}
	}`)

	evt, err := DecodePaymentEvent(raw)
	require.NoError(t, err)

	session, ok := evt.(CheckoutSessionEvent)
	require.True(t, ok)
	assert.Equal(t, "evt_1", session.EventID())
	assert.Equal(t, "checkout.session.completed", session.Type)
	assert.Equal(t, "sess_1", session.SessionID)
	assert.Equal(t, "pi_1", session.PaymentIntent)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), session.OccurredAt())
}

func TestDecodePaymentEvent_PaymentIntent(t *testing.T) {
	raw := []byte(`{
		"id": "evt_2",
		"type": "payment_intent.succeeded",
		"created": 1700000001,
		"data": {"object": {"object": "payment_intent", "id": "pi_1"}}
	}`)

	evt, err := DecodePaymentEvent(raw)
	require.NoError(t, err)

	intent, ok := evt.(PaymentIntentEvent)
	require.True(t, ok)
	assert.Equal(t, "pi_1", intent.IntentID)
	assert.Equal(t, "payment_intent.succeeded", intent.Type)
}

func TestDecodePaymentEvent_Charge(t *testing.T) {
	raw := []byte(`{
		"id": "evt_3",
		"type": "charge.succeeded",
		"data": {"object": {"object": "charge", "id": "ch_1"}}
	}`)

	evt, err := DecodePaymentEvent(raw)
	require.NoError(t, err)

	charge, ok := evt.(ChargeEvent)
	require.True(t, ok)
	assert.Equal(t, "ch_1", charge.ChargeID)
	assert.True(t, charge.OccurredAt().IsZero())
}

func TestDecodePaymentEvent_UnknownKind(t *testing.T) {
	raw := []byte(`{
		"id": "evt_4",
		"type": "invoice.paid",
		"data": {"object": {"object": "invoice", "id": "in_1"}}
	}`)

	evt, err := DecodePaymentEvent(raw)
	require.NoError(t, err)

	unknown, ok := evt.(UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, "invoice", unknown.Kind)
}

func TestDecodePaymentEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"missing type", `{"id":"evt_1","data":{"object":{"object":"charge"}}}`},
		{"missing object", `{"id":"evt_1","type":"checkout.session.completed","data":{}}`},
		{"object not a map", `{"id":"evt_1","type":"x","data":{"object":"oops"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePaymentEvent([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestSessionOutcome(t *testing.T) {
	assert.Equal(t, StatusWaitingForPayment, SessionOutcome("checkout.session.created"))
	assert.Equal(t, StatusPaymentCompleted, SessionOutcome("checkout.session.completed"))
	assert.Equal(t, StatusPaymentCompleted, SessionOutcome("checkout.session.async_payment_succeeded"))
	assert.Equal(t, StatusPaymentRejected, SessionOutcome("checkout.session.expired"))
}

func TestIntentOutcome(t *testing.T) {
	assert.Equal(t, StatusWaitingForPayment, IntentOutcome("payment_intent.created"))
	assert.Equal(t, StatusPaymentCompleted, IntentOutcome("payment_intent.succeeded"))
	assert.Equal(t, StatusPaymentRejected, IntentOutcome("payment_intent.payment_failed"))
}
