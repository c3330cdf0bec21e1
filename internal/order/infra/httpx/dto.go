package httpx

import (
	"encoding/json"
	"time"

	"github.com/jcmexdev/ecommerce-checkout/internal/order/domain"
)

// CreateOrderRequest is the checkout payload: the client-priced cart plus
// shipping details. Product data is a snapshot, not re-fetched from the
// catalog.
type CreateOrderRequest struct {
	Products []CartEntryDTO `json:"products"`
	Details  ShippingDTO    `json:"details"`
}

type CartEntryDTO struct {
	Product  ProductDTO `json:"product"`
	Quantity int        `json:"quantity"`
}

type ProductDTO struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	// Discount is lenient on purpose: clients have historically sent
	// strings or null here, all of which mean "no discount".
	Discount json.RawMessage `json:"discount"`
}

// DiscountValue returns the discount percentage, treating anything that is
// not a JSON number as zero.
func (p ProductDTO) DiscountValue() float64 {
	var v float64
	if err := json.Unmarshal(p.Discount, &v); err != nil {
		return 0
	}
	return v
}

// ShippingDTO mirrors the order's contact fields on the wire.
type ShippingDTO struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	County      string `json:"county"`
	City        string `json:"city"`
	Address     string `json:"address"`
	Zip         string `json:"zip"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type OrderResponse struct {
	ID            string           `json:"id"`
	UUID          string           `json:"uuid"`
	UserID        string           `json:"user_id,omitempty"`
	Products      []string         `json:"products"`
	Quantities    map[string]int   `json:"quantities"`
	OriginalItems []CartEntryDTO   `json:"originalProducts"`
	FirstName     string           `json:"firstName,omitempty"`
	LastName      string           `json:"lastName,omitempty"`
	County        string           `json:"county"`
	City          string           `json:"city"`
	Address       string           `json:"address"`
	Zip           string           `json:"zip,omitempty"`
	PhoneNumber   string           `json:"phone_number"`
	Email         string           `json:"email,omitempty"`
	PaymentType   string           `json:"payment_type"`
	Vouchers      []string         `json:"vouchers,omitempty"`
	StripeID      string           `json:"stripe_id"`
	PaymentIntent string           `json:"payment_intent,omitempty"`
	Status        string           `json:"status"`
	Total         int64            `json:"total"`
	CreatedAt     string           `json:"created_at"`
}

type CreateOrderResponse struct {
	Order     OrderResponse `json:"order"`
	SessionID string        `json:"sessionId"`
	URL       string        `json:"url"`
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapOrderToResponse(order *domain.Order) OrderResponse {
	items := make([]CartEntryDTO, len(order.OriginalItems))
	for i, item := range order.OriginalItems {
		discount, _ := json.Marshal(item.Product.Discount)
		items[i] = CartEntryDTO{
			Product: ProductDTO{
				ID:       item.Product.ID,
				Name:     item.Product.Name,
				Price:    item.Product.Price,
				Discount: discount,
			},
			Quantity: item.Quantity,
		}
	}
	return OrderResponse{
		ID:            order.ID,
		UUID:          order.UUID,
		UserID:        order.UserID,
		Products:      order.ProductIDs,
		Quantities:    order.Quantities,
		OriginalItems: items,
		FirstName:     order.FirstName,
		LastName:      order.LastName,
		County:        order.County,
		City:          order.City,
		Address:       order.Address,
		Zip:           order.Zip,
		PhoneNumber:   order.PhoneNumber,
		Email:         order.Email,
		PaymentType:   string(order.PaymentType),
		Vouchers:      order.Vouchers,
		StripeID:      order.StripeID,
		PaymentIntent: order.PaymentIntent,
		Status:        string(order.Status),
		Total:         order.Total,
		CreatedAt:     order.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapCart(entries []CartEntryDTO) []domain.CartItem {
	cart := make([]domain.CartItem, len(entries))
	for i, entry := range entries {
		cart[i] = domain.CartItem{
			Product: domain.ProductSnapshot{
				ID:       entry.Product.ID,
				Name:     entry.Product.Name,
				Price:    entry.Product.Price,
				Discount: entry.Product.DiscountValue(),
			},
			Quantity: entry.Quantity,
		}
	}
	return cart
}
