// Package pricing computes order totals from a set of line items.
//
// This is the single calculator shared by the cart display and the checkout
// flow, so both always agree on shipping and tax. ComputeTotals is pure:
// same lines in, same totals out, no side effects.
package pricing

import "github.com/mkellner/storefront-engine/money"

// Store-wide pricing policy.
const (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	// The comparison is strict: a subtotal of exactly $50.00 still ships
	// at the flat rate.
	FreeShippingThreshold = money.Cents(5000)

	// FlatShippingRate applies to orders at or below the threshold.
	FlatShippingRate = money.Cents(599)

	// TaxRatePercent is applied to the subtotal, rounded half-up.
	TaxRatePercent = 8
)

// Line is the minimal input the calculator needs per cart entry.
type Line struct {
	UnitPrice money.Cents
	Quantity  int
}

// Totals holds the derived amounts for a cart. It is always recomputed from
// the line items, never stored, so it cannot drift from the cart contents.
type Totals struct {
	Subtotal money.Cents
	Shipping money.Cents
	Tax      money.Cents
	Total    money.Cents
}

// ComputeTotals derives subtotal, shipping, tax and total from the given
// lines. An empty input yields all-zero totals (no shipping is charged on
// an empty cart).
func ComputeTotals(lines []Line) Totals {
	var subtotal money.Cents
	for _, l := range lines {
		subtotal += l.UnitPrice.Mul(l.Quantity)
	}

	var shipping money.Cents
	if len(lines) > 0 && subtotal <= FreeShippingThreshold {
		shipping = FlatShippingRate
	}

	tax := subtotal.Percent(TaxRatePercent)

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal + shipping + tax,
	}
}
