package app

import (
	"context"
	"errors"
	"sync"

	"github.com/jcmexdev/ecommerce-checkout/internal/order/domain"
)

// memStore is an in-memory OrderStore with the same concurrency semantics
// as the SQLite implementation: unique event ids and version CAS.
type memStore struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	events map[string]string // event id -> order id

	insertErr error
	applyErr  error
	// conflictsLeft forces that many ErrVersionConflict results from
	// ApplyEvent before behaving normally, to exercise the retry loop.
	conflictsLeft int

	findCalls  int
	applyCalls int
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]domain.Order),
		events: make(map[string]string),
	}
}

func (m *memStore) Insert(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := order
	return &cp, nil
}

func (m *memStore) FindByStripeID(_ context.Context, sessionID string) (*domain.Order, error) {
	return m.findBy(func(o domain.Order) bool { return o.StripeID == sessionID })
}

func (m *memStore) FindByPaymentIntent(_ context.Context, intentID string) (*domain.Order, error) {
	if intentID == "" {
		return nil, ErrNotFound
	}
	return m.findBy(func(o domain.Order) bool { return o.PaymentIntent == intentID })
}

func (m *memStore) findBy(match func(domain.Order) bool) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	for _, order := range m.orders {
		if match(order) {
			cp := order
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) List(_ context.Context) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Order, 0, len(m.orders))
	for _, order := range m.orders {
		cp := order
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			cp := order
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if order.Status != from {
		return ErrVersionConflict
	}
	order.Status = to
	order.Version++
	m.orders[id] = order
	return nil
}

func (m *memStore) ApplyEvent(_ context.Context, order *domain.Order, eventID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	if m.applyErr != nil {
		return m.applyErr
	}
	if _, dup := m.events[eventID]; dup {
		return ErrDuplicateEvent
	}
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return ErrVersionConflict
	}
	stored, ok := m.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != order.Version {
		return ErrVersionConflict
	}
	m.events[eventID] = order.ID
	cp := *order
	cp.Version++
	m.orders[order.ID] = cp
	order.Version++
	return nil
}

// fakeGateway records requests and returns a canned session.
type fakeGateway struct {
	mu       sync.Mutex
	requests []CheckoutSessionRequest
	session  CheckoutSession
	err      error
	expired  []string
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	cp := g.session
	return &cp, nil
}

func (g *fakeGateway) ExpireSession(_ context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = append(g.expired, sessionID)
	return nil
}

// fakeDeduper is an in-memory EventDeduper.
type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (d *fakeDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.seen[eventID], nil
}

func (d *fakeDeduper) Mark(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.seen[eventID] = true
	return nil
}

var errStoreDown = errors.New("store down")
