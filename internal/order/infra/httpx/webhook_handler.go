package httpx

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/ecommerce-checkout/internal/order/app"
	"github.com/jcmexdev/ecommerce-checkout/internal/order/domain"
)

// maxWebhookBody bounds the event envelope size. Real gateway events are a
// few KB; anything past 1 MiB is not a payment event.
const maxWebhookBody = 1 << 20

// WebhookHandler is the gateway callback endpoint. Its acknowledgment
// rules are deliberately different from a normal API handler: success for
// everything the system recognised (applied, duplicate, inapplicable,
// uncorrelated) so the gateway stops redelivering, failure only for
// envelopes that could not be parsed or persisted.
type WebhookHandler struct {
	reconciler *app.Reconciler
}

func NewWebhookHandler(reconciler *app.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandlePaymentEvent consumes one gateway event delivery.
func (h *WebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_body", err.Error())
		return
	}

	event, err := domain.DecodePaymentEvent(body)
	if err != nil {
		// Malformed payloads get a client error so the gateway retries
		// nothing it has no business retrying.
		slog.WarnContext(r.Context(), "rejecting malformed webhook", "error", err)
		writeError(w, http.StatusBadRequest, "malformed_event", err.Error())
		return
	}

	outcome, err := h.reconciler.Process(r.Context(), event)
	if err != nil {
		// Persistence failed; a non-2xx makes the gateway redeliver
		// instead of losing the event.
		slog.ErrorContext(r.Context(), "webhook processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "processing_failed", "")
		return
	}

	writeJSON(w, http.StatusOK, WebhookResponse{Received: true, Outcome: string(outcome)})
}
