package domain

import "math"

// Unpriceable is the sentinel returned by GatewayUnitAmount when a product
// carries no usable price. Callers must check for it before submitting the
// amount to the gateway.
const Unpriceable int64 = -1

// EffectiveUnitPrice computes the chargeable unit price from a product's
// base price and discount percentage. Discounts outside [0,100] (or NaN,
// which is what a non-numeric JSON value decodes to via interface poking)
// are treated as "no discount".
func EffectiveUnitPrice(price, discount float64) float64 {
	if math.IsNaN(discount) || discount < 0 || discount > 100 {
		discount = 0
	}
	return price * (1 - discount/100)
}

// GatewayUnitAmount converts the effective unit price to the gateway's
// integral minor-unit representation (e.g. pounds to pence), truncating
// any sub-minor-unit remainder. A product without a positive price is
// unpriceable and yields the Unpriceable sentinel rather than an error.
func GatewayUnitAmount(price, discount float64) int64 {
	if price <= 0 || math.IsNaN(price) {
		return Unpriceable
	}
	return int64(math.Trunc(EffectiveUnitPrice(price, discount) * 100))
}
