// Package checkout implements the multi-step checkout session.
//
// A Session is a linear state machine (Shipping -> Payment -> Review ->
// Submitted) that collects the shopper's shipping and payment details,
// validates each step before allowing the next, and assembles the outbound
// order from an immutable snapshot of the cart taken when the session was
// created. Back-navigation is always allowed and never loses entered data.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mkellner/storefront-engine/cart"
	"github.com/mkellner/storefront-engine/gateway"
	"github.com/mkellner/storefront-engine/pricing"
)

// Step identifies the shopper's position in the checkout flow.
type Step int

const (
	StepShipping Step = iota
	StepPayment
	StepReview
	StepSubmitted
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	case StepSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Address is a postal address as the order service expects it.
type Address struct {
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// ShippingInfo is everything collected on the shipping step.
type ShippingInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string // optional
	Address
}

// PaymentType selects how the shopper pays. The values are the wire
// identifiers the order service expects.
type PaymentType string

const (
	PaymentCard           PaymentType = "card"
	PaymentPayPal         PaymentType = "paypal"
	PaymentCashOnDelivery PaymentType = "cod"
)

// CardDetails holds raw card input. It is transmitted once inside the
// submission call and never persisted by the engine.
type CardDetails struct {
	Number string
	Name   string
	Expiry string
	CVV    string
}

// Payment is the shopper's payment selection. Card is only consulted when
// Type is PaymentCard.
type Payment struct {
	Type PaymentType
	Card CardDetails
}

// ValidationError reports which required fields are missing for the step
// the shopper tried to leave. The transition is blocked and the session
// state is unchanged.
type ValidationError struct {
	Step    Step
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s step is incomplete: missing %s",
		e.Step, strings.Join(e.Missing, ", "))
}

var (
	// ErrEmptyCart rejects session creation for a cart with no items.
	ErrEmptyCart = errors.New("cannot start checkout with an empty cart")

	// ErrAdvanceFromReview rejects Advance on the review step; Submit is
	// the only transition out of review.
	ErrAdvanceFromReview = errors.New("submit the order to leave the review step")

	// ErrAlreadySubmitted rejects operations on a completed session.
	ErrAlreadySubmitted = errors.New("order was already submitted")

	// ErrSubmitInProgress rejects a submit while another one is pending,
	// so a double-click cannot place a duplicate order.
	ErrSubmitInProgress = errors.New("order submission already in progress")

	// ErrSessionAbandoned reports that the session was abandoned; a late
	// submission result for an abandoned session is discarded.
	ErrSessionAbandoned = errors.New("checkout session was abandoned")
)

// Submitter sends an assembled order to the order service.
type Submitter interface {
	SubmitOrder(ctx context.Context, order *gateway.Order) (*gateway.Confirmation, error)
}

// Session is one checkout attempt. Create it with NewSession; it is
// destroyed (abandoned) on navigation away or consumed by a successful
// submission.
type Session struct {
	id     string
	logger *slog.Logger

	mu              sync.Mutex
	step            Step
	shipping        ShippingInfo
	payment         Payment
	billing         Address
	separateBilling bool
	snapshot        []cart.LineItem
	submitting      bool
	abandoned       bool
}

// NewSession starts a checkout over an immutable copy of the given cart
// items. The cart must be non-empty; the caller is responsible for the
// authentication precondition.
func NewSession(items []cart.LineItem, logger *slog.Logger) (*Session, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	snapshot := make([]cart.LineItem, len(items))
	copy(snapshot, items)

	return &Session{
		id:       uuid.NewString(),
		logger:   logger,
		step:     StepShipping,
		payment:  Payment{Type: PaymentCard},
		snapshot: snapshot,
	}, nil
}

// ID is the session identifier, also used as the submission idempotency key.
func (s *Session) ID() string {
	return s.id
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Snapshot returns a copy of the cart items this session will order. Cart
// mutations made after the session started are not reflected here.
func (s *Session) Snapshot() []cart.LineItem {
	out := make([]cart.LineItem, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// Totals derives the order totals from the session's snapshot.
func (s *Session) Totals() pricing.Totals {
	lines := make([]pricing.Line, len(s.snapshot))
	for i, item := range s.snapshot {
		lines[i] = pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	return pricing.ComputeTotals(lines)
}

// SetShipping records the shipping-step input.
func (s *Session) SetShipping(info ShippingInfo) {
	s.mu.Lock()
	s.shipping = info
	s.mu.Unlock()
}

// Shipping returns the shipping-step input entered so far.
func (s *Session) Shipping() ShippingInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shipping
}

// SetPayment records the payment selection.
func (s *Session) SetPayment(p Payment) {
	s.mu.Lock()
	s.payment = p
	s.mu.Unlock()
}

// Payment returns the payment selection entered so far.
func (s *Session) Payment() Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment
}

// SetBillingAddress opts out of billing-same-as-shipping and records a
// distinct billing address. Payment-step validation then requires the
// billing fields.
func (s *Session) SetBillingAddress(addr Address) {
	s.mu.Lock()
	s.billing = addr
	s.separateBilling = true
	s.mu.Unlock()
}

// UseShippingAsBilling restores the default of billing the shipping
// address.
func (s *Session) UseShippingAsBilling() {
	s.mu.Lock()
	s.billing = Address{}
	s.separateBilling = false
	s.mu.Unlock()
}

// BillingAddress returns the effective billing address: the distinct one if
// the shopper opted out, otherwise a copy of the shipping address.
func (s *Session) BillingAddress() Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.separateBilling {
		return s.billing
	}
	return s.shipping.Address
}

// Advance moves forward one step if the current step's required fields are
// present. On missing fields it returns a *ValidationError and the session
// stays where it is.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.step {
	case StepShipping:
		if missing := s.missingShippingFields(); len(missing) > 0 {
			return &ValidationError{Step: StepShipping, Missing: missing}
		}
		s.step = StepPayment
	case StepPayment:
		if missing := s.missingPaymentFields(); len(missing) > 0 {
			return &ValidationError{Step: StepPayment, Missing: missing}
		}
		s.step = StepReview
	case StepReview:
		return ErrAdvanceFromReview
	case StepSubmitted:
		return ErrAlreadySubmitted
	}
	return nil
}

// Retreat moves back one step unconditionally, preserving everything the
// shopper entered. On the first step it is a no-op.
func (s *Session) Retreat() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.step {
	case StepPayment:
		s.step = StepShipping
	case StepReview:
		s.step = StepPayment
	}
}

func (s *Session) missingShippingFields() []string {
	var missing []string
	required := []struct {
		field string
		value string
	}{
		{"firstName", s.shipping.FirstName},
		{"lastName", s.shipping.LastName},
		{"email", s.shipping.Email},
		{"address", s.shipping.Street},
		{"city", s.shipping.City},
		{"state", s.shipping.State},
		{"zipCode", s.shipping.ZipCode},
		{"country", s.shipping.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.field)
		}
	}
	return missing
}

func (s *Session) missingPaymentFields() []string {
	var missing []string

	switch s.payment.Type {
	case PaymentCard:
		required := []struct {
			field string
			value string
		}{
			{"cardNumber", s.payment.Card.Number},
			{"cardName", s.payment.Card.Name},
			{"expiryDate", s.payment.Card.Expiry},
			{"cvv", s.payment.Card.CVV},
		}
		for _, r := range required {
			if strings.TrimSpace(r.value) == "" {
				missing = append(missing, r.field)
			}
		}
	case PaymentPayPal, PaymentCashOnDelivery:
		// Nothing beyond the method itself.
	default:
		missing = append(missing, "paymentMethod")
	}

	if s.separateBilling {
		required := []struct {
			field string
			value string
		}{
			{"billingAddress", s.billing.Street},
			{"billingCity", s.billing.City},
			{"billingState", s.billing.State},
			{"billingZipCode", s.billing.ZipCode},
			{"billingCountry", s.billing.Country},
		}
		for _, r := range required {
			if strings.TrimSpace(r.value) == "" {
				missing = append(missing, r.field)
			}
		}
	}

	return missing
}

// Abandon marks the session as navigated away from. An in-flight
// submission is not cancelled, but its result will be discarded when it
// arrives.
func (s *Session) Abandon() {
	s.mu.Lock()
	s.abandoned = true
	s.mu.Unlock()
}

// Abandoned reports whether the session was abandoned.
func (s *Session) Abandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned
}

// Submit sends the assembled order through gw. It is only valid from the
// review step and is the sole transition into Submitted. While one
// submission is pending, further calls are rejected with
// ErrSubmitInProgress so exactly one order can result from a session. On
// failure the session stays at review for a shopper-initiated retry.
func (s *Session) Submit(ctx context.Context, gw Submitter) (*gateway.Confirmation, error) {
	s.mu.Lock()
	switch {
	case s.abandoned:
		s.mu.Unlock()
		return nil, ErrSessionAbandoned
	case s.step == StepSubmitted:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case s.step != StepReview:
		s.mu.Unlock()
		return nil, &ValidationError{Step: s.step, Missing: []string{"complete checkout before submitting"}}
	case s.submitting:
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	s.submitting = true
	order := s.buildOrderLocked()
	s.mu.Unlock()

	s.logger.Info("submitting order",
		"session_id", s.id,
		"items", len(order.Items),
		"total", order.TotalAmount)

	conf, err := gw.SubmitOrder(ctx, order)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false

	if err != nil {
		s.logger.Warn("order submission failed", "session_id", s.id, "error", err)
		return nil, err
	}
	if s.abandoned {
		// The shopper navigated away while the call was in flight; the
		// late result must not resurrect the session.
		s.logger.Info("discarding order result for abandoned session",
			"session_id", s.id, "order_id", conf.OrderID)
		return nil, ErrSessionAbandoned
	}

	s.step = StepSubmitted
	s.logger.Info("order submitted", "session_id", s.id, "order_id", conf.OrderID)
	return conf, nil
}

// buildOrderLocked assembles the outbound payload from the snapshot and the
// collected shopper input. Unit prices are the ones captured at session
// start, immune to later catalogue price changes. Callers must hold s.mu.
func (s *Session) buildOrderLocked() *gateway.Order {
	items := make([]gateway.OrderItem, len(s.snapshot))
	lines := make([]pricing.Line, len(s.snapshot))
	for i, item := range s.snapshot {
		items[i] = gateway.OrderItem{
			Product:  item.ProductID,
			Quantity: item.Quantity,
			Price:    item.UnitPrice.Dollars(),
		}
		lines[i] = pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	totals := pricing.ComputeTotals(lines)

	billing := s.shipping.Address
	if s.separateBilling {
		billing = s.billing
	}

	order := &gateway.Order{
		IdempotencyKey:  s.id,
		Items:           items,
		ShippingAddress: toGatewayAddress(s.shipping.Address),
		BillingAddress:  toGatewayAddress(billing),
		PaymentMethod: gateway.PaymentDescriptor{
			Type: string(s.payment.Type),
		},
		TotalAmount:  totals.Total.Dollars(),
		ShippingCost: totals.Shipping.Dollars(),
		TaxAmount:    totals.Tax.Dollars(),
	}

	if s.payment.Type == PaymentCard {
		order.PaymentMethod.CardNumber = s.payment.Card.Number
		order.PaymentMethod.CardName = s.payment.Card.Name
		order.PaymentMethod.ExpiryDate = s.payment.Card.Expiry
		order.PaymentMethod.CVV = s.payment.Card.CVV
	}

	return order
}

func toGatewayAddress(a Address) gateway.Address {
	return gateway.Address{
		Street:  a.Street,
		City:    a.City,
		State:   a.State,
		ZipCode: a.ZipCode,
		Country: a.Country,
	}
}
