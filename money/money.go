// Package money provides fixed-point currency arithmetic in integer minor
// units (cents).
//
// All engine-internal amounts are Cents. Decimal dollars exist only at the
// boundaries: parsing prices received from the catalogue API and formatting
// amounts for display or for the outbound order payload. Keeping the
// arithmetic in integers makes totals exact and reproducible.
package money

import (
	"fmt"
	"math"
)

// Cents is a monetary amount in minor units (1/100 of a dollar).
type Cents int64

// FromDollars converts a decimal dollar amount to Cents, rounding half-up.
// This is the single point where float prices enter the engine.
func FromDollars(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// Dollars converts back to a decimal dollar amount for display and for the
// outbound order payload.
func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

// Percent returns pct% of the amount, rounded half-up on the cent.
// Percent(5500, 8) == 440.
func (c Cents) Percent(pct int64) Cents {
	if c < 0 {
		return -((-c).Percent(pct))
	}
	return Cents((int64(c)*pct + 50) / 100)
}

// Mul multiplies the amount by an integer quantity.
func (c Cents) Mul(qty int) Cents {
	return c * Cents(qty)
}

// String formats the amount as a plain decimal, e.g. "59.40".
func (c Cents) String() string {
	sign := ""
	v := c
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
