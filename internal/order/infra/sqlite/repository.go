// Package sqlite provides the SQLite-backed order store.
//
// WAL mode is enabled on Open so readers never block the writer: webhook
// deliveries write while the listing endpoints read. All concurrency
// control the reconciliation engine relies on lives here: a UNIQUE
// payment_events row per gateway event id (idempotence) and a version
// compare-and-set on the orders row (lost-update protection), both inside
// one transaction in ApplyEvent.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jcmexdev/ecommerce-checkout/internal/order/app"
	"github.com/jcmexdev/ecommerce-checkout/internal/order/domain"
	"github.com/jcmexdev/ecommerce-checkout/internal/pkg/telemetry"

	// Register the pure-Go SQLite driver. modernc.org/sqlite avoids CGO,
	// which keeps the Docker build on Alpine trivial.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    -- Internal identifier (UUID), used in API paths.
    id              TEXT PRIMARY KEY,

    -- Externally facing correlation value, generated per order.
    uuid            TEXT    NOT NULL,

    -- Optional authenticated buyer; empty for guest checkout.
    user_id         TEXT    NOT NULL DEFAULT '',

    -- Verbatim cart payload as submitted (JSON array). Audit trail,
    -- immutable after insert.
    original_items  TEXT    NOT NULL,

    -- Normalised references derived from the cart (JSON).
    product_ids     TEXT    NOT NULL,
    quantities      TEXT    NOT NULL,

    first_name      TEXT    NOT NULL DEFAULT '',
    last_name       TEXT    NOT NULL DEFAULT '',
    county          TEXT    NOT NULL,
    city            TEXT    NOT NULL,
    address         TEXT    NOT NULL,
    zip             TEXT    NOT NULL DEFAULT '',
    phone_number    TEXT    NOT NULL,
    email           TEXT    NOT NULL DEFAULT '',

    payment_type    TEXT    NOT NULL DEFAULT 'card',
    vouchers        TEXT    NOT NULL DEFAULT '[]',

    -- Gateway correlation keys. stripe_id is set exactly once at creation
    -- and globally unique; payment_intent is filled in by the first event
    -- that carries one.
    stripe_id       TEXT    NOT NULL,
    payment_intent  TEXT    NOT NULL DEFAULT '',

    status          TEXT    NOT NULL,

    -- Gateway-reported charge amount in minor units.
    total           INTEGER NOT NULL DEFAULT 0,

    -- Gateway timestamp (unix seconds) of the newest applied event.
    last_event_at   INTEGER NOT NULL DEFAULT 0,

    -- Bumped on every update; the CAS guard for concurrent writers.
    version         INTEGER NOT NULL DEFAULT 1,

    -- RFC3339 stored as TEXT, SQLite idiom.
    created_at      TEXT    NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_stripe_id      ON orders(stripe_id);
CREATE INDEX        IF NOT EXISTS idx_orders_payment_intent ON orders(payment_intent);
CREATE INDEX        IF NOT EXISTS idx_orders_user_id        ON orders(user_id);

-- Append-only audit of every applied gateway event. The UNIQUE event_id
-- doubles as the authoritative idempotency table: redelivered events hit
-- the constraint and are dropped before the order row is touched.
CREATE TABLE IF NOT EXISTS payment_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id    TEXT    NOT NULL UNIQUE,
    event_type  TEXT    NOT NULL,
    order_id    TEXT    NOT NULL,
    status      TEXT    NOT NULL,

    -- W3C trace/span ids of the delivery that applied this event, for
    -- jumping from a row straight to the distributed trace.
    trace_id    TEXT    NOT NULL DEFAULT '',
    span_id     TEXT    NOT NULL DEFAULT '',

    recorded_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_events_order_id ON payment_events(order_id, recorded_at);
`

// Store is the SQLite implementation of app.OrderStore.
type Store struct {
	db *sql.DB
}

var _ app.OrderStore = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const orderColumns = `id, uuid, user_id, original_items, product_ids, quantities,
	first_name, last_name, county, city, address, zip, phone_number, email,
	payment_type, vouchers, stripe_id, payment_intent, status, total,
	last_event_at, version, created_at`

// Insert persists a new order. The UNIQUE stripe_id index rejects a second
// order reusing the same gateway session.
func (s *Store) Insert(ctx context.Context, order *domain.Order) error {
	originalItems, productIDs, quantities, vouchers, err := marshalOrderJSON(order)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		order.ID, order.UUID, order.UserID,
		originalItems, productIDs, quantities,
		order.FirstName, order.LastName, order.County, order.City,
		order.Address, order.Zip, order.PhoneNumber, order.Email,
		string(order.PaymentType), vouchers,
		order.StripeID, order.PaymentIntent, string(order.Status), order.Total,
		unixOrZero(order.LastEventAt), order.Version,
		order.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert order %q: %w", order.ID, err)
	}
	return nil
}

// GetByID fetches one order.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOne(ctx, "id", id)
}

// FindByStripeID looks an order up by its checkout session id.
func (s *Store) FindByStripeID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return s.findOne(ctx, "stripe_id", sessionID)
}

// FindByPaymentIntent looks an order up by its payment intent id.
func (s *Store) FindByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	if intentID == "" {
		return nil, app.ErrNotFound
	}
	return s.findOne(ctx, "payment_intent", intentID)
}

func (s *Store) findOne(ctx context.Context, column, value string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = ?`
	order, err := scanOrder(s.db.QueryRowContext(ctx, q, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, app.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find order by %s: %w", column, err)
	}
	return order, nil
}

// List returns every order, newest first.
func (s *Store) List(ctx context.Context) ([]*domain.Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// ListByUser returns one user's orders, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (s *Store) list(ctx context.Context, q string, args ...any) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateStatus applies an administrative transition, conditional on the
// current status still being the one the transition was validated against.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET    status = ?, version = version + 1
		WHERE  id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("sqlite: update status of %q: %w", id, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return app.ErrVersionConflict
	}
	return nil
}

// ApplyEvent persists the outcome of one gateway event: the audit/dedup
// row and the CAS-guarded order update commit or roll back together, so a
// crash between them cannot lose or double-apply the event.
func (s *Store) ApplyEvent(ctx context.Context, order *domain.Order, eventID, eventType string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	ti := telemetry.ExtractTraceInfo(ctx)
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO payment_events
			(event_id, event_type, order_id, status, trace_id, span_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		eventID, eventType, order.ID, string(order.Status),
		ti.TraceID, ti.SpanID,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record event %q: %w", eventID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return app.ErrDuplicateEvent
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET    status = ?, payment_intent = ?, last_event_at = ?, version = version + 1
		WHERE  id = ? AND version = ?`,
		string(order.Status), order.PaymentIntent, unixOrZero(order.LastEventAt),
		order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update order %q: %w", order.ID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return app.ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit event %q: %w", eventID, err)
	}
	order.Version++
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		o             domain.Order
		originalItems []byte
		productIDs    []byte
		quantities    []byte
		vouchers      []byte
		paymentType   string
		status        string
		lastEventAt   int64
		createdAt     string
	)
	err := row.Scan(
		&o.ID, &o.UUID, &o.UserID,
		&originalItems, &productIDs, &quantities,
		&o.FirstName, &o.LastName, &o.County, &o.City,
		&o.Address, &o.Zip, &o.PhoneNumber, &o.Email,
		&paymentType, &vouchers,
		&o.StripeID, &o.PaymentIntent, &status, &o.Total,
		&lastEventAt, &o.Version, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(originalItems, &o.OriginalItems); err != nil {
		return nil, fmt.Errorf("decode original_items: %w", err)
	}
	if err := json.Unmarshal(productIDs, &o.ProductIDs); err != nil {
		return nil, fmt.Errorf("decode product_ids: %w", err)
	}
	if err := json.Unmarshal(quantities, &o.Quantities); err != nil {
		return nil, fmt.Errorf("decode quantities: %w", err)
	}
	if err := json.Unmarshal(vouchers, &o.Vouchers); err != nil {
		return nil, fmt.Errorf("decode vouchers: %w", err)
	}

	o.PaymentType = domain.PaymentType(paymentType)
	o.Status = domain.OrderStatus(status)
	if lastEventAt > 0 {
		o.LastEventAt = time.Unix(lastEventAt, 0).UTC()
	}
	o.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &o, nil
}

func marshalOrderJSON(order *domain.Order) (originalItems, productIDs, quantities, vouchers []byte, err error) {
	if originalItems, err = json.Marshal(order.OriginalItems); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode original_items: %w", err)
	}
	if productIDs, err = json.Marshal(order.ProductIDs); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode product_ids: %w", err)
	}
	if quantities, err = json.Marshal(order.Quantities); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode quantities: %w", err)
	}
	if order.Vouchers == nil {
		vouchers = []byte("[]")
	} else if vouchers, err = json.Marshal(order.Vouchers); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode vouchers: %w", err)
	}
	return originalItems, productIDs, quantities, vouchers, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
