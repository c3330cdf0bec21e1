package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCart() []CartItem {
	return []CartItem{
		{Product: ProductSnapshot{ID: "p1", Name: "Widget", Price: 10, Discount: 10}, Quantity: 2},
		{Product: ProductSnapshot{ID: "p2", Name: "Gadget", Price: 5}, Quantity: 1},
	}
}

func validDetails() ShippingDetails {
	return ShippingDetails{
		FirstName:   "Ana",
		LastName:    "Pop",
		County:      "Cluj",
		City:        "Cluj-Napoca",
		Address:     "Str. Principala 1",
		PhoneNumber: "0740000000",
		Email:       "ana@example.com",
	}
}

func TestNewOrder_InitialState(t *testing.T) {
	order, err := NewOrder(validCart(), validDetails(), nil, "sess_1", "", 2400)
	require.NoError(t, err)

	assert.Equal(t, StatusWaitingForPayment, order.Status)
	assert.Equal(t, "sess_1", order.StripeID)
	assert.Empty(t, order.PaymentIntent)
	assert.Equal(t, int64(2400), order.Total)
	assert.Equal(t, []string{"p1", "p2"}, order.ProductIDs)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 1}, order.Quantities)
	assert.Equal(t, PaymentTypeCard, order.PaymentType)
	assert.NotEmpty(t, order.ID)
	assert.NotEmpty(t, order.UUID)
	assert.Equal(t, int64(1), order.Version)
}

func TestNewOrder_FreshUUIDPerOrder(t *testing.T) {
	a, err := NewOrder(validCart(), validDetails(), nil, "sess_a", "", 100)
	require.NoError(t, err)
	b, err := NewOrder(validCart(), validDetails(), nil, "sess_b", "", 100)
	require.NoError(t, err)

	assert.NotEqual(t, a.UUID, b.UUID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewOrder_CustomerFallback(t *testing.T) {
	details := validDetails()
	details.FirstName = ""
	details.LastName = ""
	details.Email = ""

	customer := &Customer{ID: "u1", FirstName: "Ion", LastName: "Ionescu", Email: "ion@example.com"}
	order, err := NewOrder(validCart(), details, customer, "sess_1", "", 100)
	require.NoError(t, err)

	assert.Equal(t, "Ion", order.FirstName)
	assert.Equal(t, "Ionescu", order.LastName)
	assert.Equal(t, "ion@example.com", order.Email)
	assert.Equal(t, "u1", order.UserID)
}

func TestNewOrder_RequestOverridesCustomer(t *testing.T) {
	customer := &Customer{ID: "u1", FirstName: "Ion", Email: "ion@example.com"}
	order, err := NewOrder(validCart(), validDetails(), customer, "sess_1", "", 100)
	require.NoError(t, err)

	assert.Equal(t, "Ana", order.FirstName)
	assert.Equal(t, "ana@example.com", order.Email)
}

func TestNewOrder_MissingShippingField(t *testing.T) {
	details := validDetails()
	details.City = ""

	_, err := NewOrder(validCart(), details, nil, "sess_1", "", 100)
	assert.ErrorIs(t, err, ErrMissingShippingField)
}

func TestNewOrder_InvalidEmail(t *testing.T) {
	details := validDetails()
	details.Email = "not-an-email"

	_, err := NewOrder(validCart(), details, nil, "sess_1", "", 100)
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestApplyPaymentOutcome_Completes(t *testing.T) {
	order, err := NewOrder(validCart(), validDetails(), nil, "sess_1", "", 100)
	require.NoError(t, err)

	at := time.Unix(1000, 0)
	changed := order.ApplyPaymentOutcome(StatusPaymentCompleted, "pi_1", at)

	assert.True(t, changed)
	assert.Equal(t, StatusPaymentCompleted, order.Status)
	assert.Equal(t, "pi_1", order.PaymentIntent)
	assert.Equal(t, at, order.LastEventAt)
}

func TestApplyPaymentOutcome_NoRegressionToWaiting(t *testing.T) {
	order, err := NewOrder(validCart(), validDetails(), nil, "sess_1", "", 100)
	require.NoError(t, err)
	require.True(t, order.ApplyPaymentOutcome(StatusPaymentCompleted, "pi_1", time.Unix(200, 0)))

	// Stale created event arriving after completion.
	changed := order.ApplyPaymentOutcome(StatusWaitingForPayment, "pi_1", time.Unix(100, 0))
	assert.False(t, changed)
	assert.Equal(t, StatusPaymentCompleted, order.Status)

	// Even a later created event must not regress a settled status.
	changed = order.ApplyPaymentOutcome(StatusWaitingForPayment, "pi_1", time.Unix(300, 0))
	assert.False(t, changed)
	assert.Equal(t, StatusPaymentCompleted, order.Status)
}

func TestApplyPaymentOutcome_StaleEventIgnored(t *testing.T) {
	order, err := NewOrder(validCart(), validDetails(), nil, "sess_1", "", 100)
	require.NoError(t, err)
	require.True(t, order.ApplyPaymentOutcome(StatusPaymentCompleted, "pi_1", time.Unix(200, 0)))

	changed := order.ApplyPaymentOutcome(StatusPaymentRejected, "", time.Unix(100, 0))
	assert.False(t, changed)
	assert.Equal(t, StatusPaymentCompleted, order.Status)
}

func TestApplyPaymentOutcome_SameTimestampNotStale(t *testing.T) {
	// Gateway timestamps have second granularity; created and completed
	// can share one. Equality must not be treated as stale.
	order, err := NewOrder(validCart(), validDetails(), nil, "sess_1", "", 100)
	require.NoError(t, err)

	at := time.Unix(100, 0)
	require.True(t, order.ApplyPaymentOutcome(StatusWaitingForPayment, "pi_1", at))
	changed := order.ApplyPaymentOutcome(StatusPaymentCompleted, "pi_1", at)

	assert.True(t, changed)
	assert.Equal(t, StatusPaymentCompleted, order.Status)
}

func TestApplyPaymentOutcome_Idempotent(t *testing.T) {
	order, err := NewOrder(validCart(), validDetails(), nil, "sess_1", "", 100)
	require.NoError(t, err)

	at := time.Unix(100, 0)
	require.True(t, order.ApplyPaymentOutcome(StatusPaymentCompleted, "pi_1", at))
	snapshot := *order

	changed := order.ApplyPaymentOutcome(StatusPaymentCompleted, "pi_1", at)
	assert.False(t, changed)
	assert.Equal(t, snapshot.Status, order.Status)
	assert.Equal(t, snapshot.PaymentIntent, order.PaymentIntent)
	assert.Equal(t, snapshot.LastEventAt, order.LastEventAt)
}

func TestApplyPaymentOutcome_PaymentIntentSetOnce(t *testing.T) {
	order, err := NewOrder(validCart(), validDetails(), nil, "sess_1", "", 100)
	require.NoError(t, err)

	require.True(t, order.ApplyPaymentOutcome(StatusWaitingForPayment, "pi_1", time.Unix(100, 0)))
	order.ApplyPaymentOutcome(StatusPaymentCompleted, "pi_other", time.Unix(200, 0))

	assert.Equal(t, "pi_1", order.PaymentIntent)
}

func TestApplyPaymentOutcome_FulfilmentStatesUntouchable(t *testing.T) {
	order, err := NewOrder(validCart(), validDetails(), nil, "sess_1", "", 100)
	require.NoError(t, err)
	order.Status = StatusOrderAccepted

	changed := order.ApplyPaymentOutcome(StatusPaymentRejected, "", time.Unix(999, 0))
	assert.False(t, changed)
	assert.Equal(t, StatusOrderAccepted, order.Status)
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPaymentCompleted, StatusOrderAccepted, true},
		{StatusPaymentCompleted, StatusCancelled, true},
		{StatusOrderAccepted, StatusInProgress, true},
		{StatusInProgress, StatusDelivering, true},
		{StatusDelivering, StatusCompleted, true},
		{StatusWaitingForPayment, StatusCancelled, true},
		{StatusWaitingForPayment, StatusOrderAccepted, false},
		{StatusPaymentCompleted, StatusPaymentCompleted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusOrderAccepted, StatusPaymentCompleted, false},
	}
	for _, tt := range tests {
		order := &Order{Status: tt.from}
		assert.Equalf(t, tt.want, order.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("delivering")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivering, status)

	_, err = ParseStatus("teleported")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
