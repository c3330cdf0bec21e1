package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jcmexdev/ecommerce-checkout/internal/order/domain"
)

// Outcome describes what processing a webhook event did. Every outcome is
// acknowledged to the gateway with success; only real errors (persistence
// failures) propagate, so the gateway redelivers exactly the events that
// were actually lost.
type Outcome string

const (
	// OutcomeApplied means the order was updated.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the event id was already processed.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means the event is recognised but causes no state
	// change (waiting short-circuit, charge family, stale delivery).
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnmatched means no order correlates to the event.
	OutcomeUnmatched Outcome = "unmatched"
)

// maxApplyAttempts bounds the re-read/retry loop on version conflicts.
// Conflicts need a second concurrent writer on the same order, so more
// than a couple of retries means something is genuinely wrong.
const maxApplyAttempts = 3

// Reconciler consumes decoded gateway events and converges the correlated
// order to the correct status. It must survive at-least-once, out-of-order
// delivery: duplicates are filtered by gateway event id, stale events by
// the order's LastEventAt guard, and concurrent deliveries by the store's
// compare-and-set write.
type Reconciler struct {
	store OrderStore
	dedup EventDeduper
}

func NewReconciler(store OrderStore, dedup EventDeduper) *Reconciler {
	return &Reconciler{store: store, dedup: dedup}
}

// Process applies one gateway event.
func (r *Reconciler) Process(ctx context.Context, evt domain.PaymentEvent) (Outcome, error) {
	eventID := evt.EventID()
	if eventID == "" {
		// No gateway id to deduplicate on; synthesise one so the audit
		// trail stays complete. Such an event can never be recognised as
		// a redelivery, which is the best we can do without an identity.
		eventID = "evt_local_" + uuid.NewString()
	} else if seen := r.fastPathSeen(ctx, eventID); seen {
		return OutcomeDuplicate, nil
	}

	switch e := evt.(type) {
	case domain.CheckoutSessionEvent:
		return r.reconcileSession(ctx, e, eventID)
	case domain.PaymentIntentEvent:
		return r.reconcileIntent(ctx, e, eventID)
	case domain.ChargeEvent:
		// Recognised but deliberately unhandled; reserved for refund
		// reconciliation.
		slog.DebugContext(ctx, "charge event acknowledged without action", "event_type", e.Type)
		return OutcomeIgnored, nil
	default:
		slog.WarnContext(ctx, "unhandled payment event kind", "event_id", eventID)
		return OutcomeIgnored, nil
	}
}

func (r *Reconciler) reconcileSession(ctx context.Context, e domain.CheckoutSessionEvent, eventID string) (Outcome, error) {
	order, err := r.store.FindByStripeID(ctx, e.SessionID)
	if errors.Is(err, ErrNotFound) {
		// The session may belong to an order outside this system's
		// knowledge. Acknowledge so the gateway does not retry forever.
		slog.InfoContext(ctx, "no order for session, dropping event",
			"session_id", e.SessionID, "event_type", e.Type)
		r.fastPathMark(ctx, eventID)
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return "", fmt.Errorf("find order by session %q: %w", e.SessionID, err)
	}

	next := domain.SessionOutcome(e.Type)
	return r.apply(ctx, order, next, e.PaymentIntent, e, eventID)
}

func (r *Reconciler) reconcileIntent(ctx context.Context, e domain.PaymentIntentEvent, eventID string) (Outcome, error) {
	next := domain.IntentOutcome(e.Type)
	if next == domain.StatusWaitingForPayment {
		// Waiting events never need to touch storage; answer immediately
		// so the gateway is not held up by a pointless lookup.
		return OutcomeIgnored, nil
	}

	order, err := r.store.FindByPaymentIntent(ctx, e.IntentID)
	if errors.Is(err, ErrNotFound) {
		slog.InfoContext(ctx, "no order for payment intent, dropping event",
			"payment_intent", e.IntentID, "event_type", e.Type)
		r.fastPathMark(ctx, eventID)
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return "", fmt.Errorf("find order by payment intent %q: %w", e.IntentID, err)
	}

	return r.apply(ctx, order, next, "", e, eventID)
}

// apply runs the read-modify-write loop: mutate the in-memory order under
// the domain guards, then persist with the event dedup row and the version
// CAS in one transaction. A version conflict means a concurrent event won
// the race; re-read and re-apply against the fresh state.
func (r *Reconciler) apply(
	ctx context.Context,
	order *domain.Order,
	next domain.OrderStatus,
	paymentIntent string,
	evt domain.PaymentEvent,
	eventID string,
) (Outcome, error) {
	eventType := fmt.Sprintf("%T", evt)
	switch e := evt.(type) {
	case domain.CheckoutSessionEvent:
		eventType = e.Type
	case domain.PaymentIntentEvent:
		eventType = e.Type
	}

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		if changed := order.ApplyPaymentOutcome(next, paymentIntent, evt.OccurredAt()); !changed {
			r.fastPathMark(ctx, eventID)
			return OutcomeIgnored, nil
		}

		err := r.store.ApplyEvent(ctx, order, eventID, eventType)
		switch {
		case err == nil:
			slog.InfoContext(ctx, "payment event applied",
				"order_id", order.ID, "event_type", eventType, "status", order.Status)
			r.fastPathMark(ctx, eventID)
			return OutcomeApplied, nil
		case errors.Is(err, ErrDuplicateEvent):
			r.fastPathMark(ctx, eventID)
			return OutcomeDuplicate, nil
		case errors.Is(err, ErrVersionConflict):
			fresh, ferr := r.store.GetByID(ctx, order.ID)
			if ferr != nil {
				return "", fmt.Errorf("reload order %q after conflict: %w", order.ID, ferr)
			}
			order = fresh
		default:
			return "", fmt.Errorf("apply event %q to order %q: %w", eventID, order.ID, err)
		}
	}
	return "", fmt.Errorf("apply event %q: %w after %d attempts", eventID, ErrVersionConflict, maxApplyAttempts)
}

// fastPathSeen consults the advisory dedup store. Unavailability degrades
// to "not seen": the transactional event row still guarantees idempotence.
func (r *Reconciler) fastPathSeen(ctx context.Context, eventID string) bool {
	if r.dedup == nil {
		return false
	}
	seen, err := r.dedup.Seen(ctx, eventID)
	if err != nil {
		slog.WarnContext(ctx, "event dedup unavailable", "error", err)
		return false
	}
	return seen
}

func (r *Reconciler) fastPathMark(ctx context.Context, eventID string) {
	if r.dedup == nil {
		return
	}
	if err := r.dedup.Mark(ctx, eventID); err != nil {
		slog.WarnContext(ctx, "event dedup mark failed", "error", err)
	}
}
