package storefront_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storefront "github.com/mkellner/storefront-engine"
	"github.com/mkellner/storefront-engine/auth"
	"github.com/mkellner/storefront-engine/cart"
	"github.com/mkellner/storefront-engine/checkout"
	"github.com/mkellner/storefront-engine/gateway"
	"github.com/mkellner/storefront-engine/observability"
	"github.com/mkellner/storefront-engine/storage"
)

type recordingSubmitter struct {
	mu      sync.Mutex
	orders  []*gateway.Order
	conf    *gateway.Confirmation
	err     error
	started chan struct{}
	release chan struct{}
}

func (r *recordingSubmitter) SubmitOrder(_ context.Context, order *gateway.Order) (*gateway.Confirmation, error) {
	r.mu.Lock()
	r.orders = append(r.orders, order)
	r.mu.Unlock()

	if r.started != nil {
		close(r.started)
	}
	if r.release != nil {
		<-r.release
	}
	return r.conf, r.err
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func signedIn() auth.Session {
	return auth.NewStatic(auth.Identity{ID: "u1", Name: "Ada", Email: "ada@example.com"}, "opaque-token")
}

func newTestEngine(t *testing.T, session auth.Session, submitter checkout.Submitter) *storefront.Engine {
	t.Helper()
	e := storefront.NewWithDeps(storage.NewMemory(), session, submitter, observability.Nop())
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func fillCart(t *testing.T, e *storefront.Engine) {
	t.Helper()
	require.NoError(t, e.Cart.Add(cart.LineItem{
		ProductID: "a", Name: "Desk Lamp", UnitPrice: 2000, Quantity: 2,
	}))
	require.NoError(t, e.Cart.Add(cart.LineItem{
		ProductID: "b", Name: "Notebook", UnitPrice: 1500, Quantity: 1,
	}))
}

func walkToReview(t *testing.T, s *checkout.Session) {
	t.Helper()
	s.SetShipping(checkout.ShippingInfo{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		Address: checkout.Address{
			Street: "12 Analytical Way", City: "London",
			State: "LDN", ZipCode: "E1 6AN", Country: "UK",
		},
	})
	require.NoError(t, s.Advance())
	s.SetPayment(checkout.Payment{Type: checkout.PaymentPayPal})
	require.NoError(t, s.Advance())
}

func TestBeginCheckoutPreconditions(t *testing.T) {
	t.Run("unauthenticated shopper", func(t *testing.T) {
		e := newTestEngine(t, auth.NewStatic(auth.Identity{}, ""), &recordingSubmitter{})
		fillCart(t, e)

		_, err := e.BeginCheckout()
		assert.ErrorIs(t, err, storefront.ErrNotAuthenticated)
	})

	t.Run("empty cart", func(t *testing.T) {
		e := newTestEngine(t, signedIn(), &recordingSubmitter{})

		_, err := e.BeginCheckout()
		assert.ErrorIs(t, err, checkout.ErrEmptyCart)
	})
}

func TestPlaceOrderHappyPath(t *testing.T) {
	gw := &recordingSubmitter{conf: &gateway.Confirmation{OrderID: "ord-1"}}
	e := newTestEngine(t, signedIn(), gw)
	fillCart(t, e)

	session, err := e.BeginCheckout()
	require.NoError(t, err)
	walkToReview(t, session)

	conf, err := e.PlaceOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ord-1", conf.OrderID)

	assert.True(t, e.Cart.IsEmpty(), "cart is cleared after a successful order")
	_, active := e.ActiveCheckout()
	assert.False(t, active, "session is consumed by a successful order")
}

func TestPlaceOrderWithoutSession(t *testing.T) {
	e := newTestEngine(t, signedIn(), &recordingSubmitter{})
	_, err := e.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, storefront.ErrNoActiveCheckout)
}

func TestPlaceOrderFailureKeepsCartAndSession(t *testing.T) {
	gw := &recordingSubmitter{err: &gateway.SubmissionError{StatusCode: 503, Message: "unavailable"}}
	e := newTestEngine(t, signedIn(), gw)
	fillCart(t, e)

	session, err := e.BeginCheckout()
	require.NoError(t, err)
	walkToReview(t, session)

	_, err = e.PlaceOrder(context.Background())
	var serr *gateway.SubmissionError
	require.ErrorAs(t, err, &serr)

	assert.Equal(t, 3, e.Cart.ItemCount(), "cart must be preserved for retry")
	active, ok := e.ActiveCheckout()
	require.True(t, ok)
	assert.Same(t, session, active)

	// A shopper-initiated retry of the same session succeeds.
	gw.err = nil
	gw.conf = &gateway.Confirmation{OrderID: "ord-2"}
	conf, err := e.PlaceOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ord-2", conf.OrderID)
	assert.True(t, e.Cart.IsEmpty())
}

func TestConcurrentPlaceOrderRejected(t *testing.T) {
	gw := &recordingSubmitter{
		conf:    &gateway.Confirmation{OrderID: "ord-3"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := newTestEngine(t, signedIn(), gw)
	fillCart(t, e)

	session, err := e.BeginCheckout()
	require.NoError(t, err)
	walkToReview(t, session)

	done := make(chan error, 1)
	go func() {
		_, err := e.PlaceOrder(context.Background())
		done <- err
	}()

	<-gw.started
	_, err = e.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, checkout.ErrSubmitInProgress)

	close(gw.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gw.count(), "only one order may be produced")
}

func TestAbandonDuringPendingSubmissionDiscardsResult(t *testing.T) {
	gw := &recordingSubmitter{
		conf:    &gateway.Confirmation{OrderID: "ord-4"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := newTestEngine(t, signedIn(), gw)
	fillCart(t, e)

	session, err := e.BeginCheckout()
	require.NoError(t, err)
	walkToReview(t, session)

	done := make(chan error, 1)
	go func() {
		_, err := e.PlaceOrder(context.Background())
		done <- err
	}()

	<-gw.started
	e.AbandonCheckout()
	close(gw.release)

	assert.ErrorIs(t, <-done, checkout.ErrSessionAbandoned)
	assert.False(t, e.Cart.IsEmpty(), "a discarded result must not clear the cart")
}

func TestBeginCheckoutSupersedesPreviousSession(t *testing.T) {
	e := newTestEngine(t, signedIn(), &recordingSubmitter{})
	fillCart(t, e)

	first, err := e.BeginCheckout()
	require.NoError(t, err)
	second, err := e.BeginCheckout()
	require.NoError(t, err)

	assert.True(t, first.Abandoned())
	assert.False(t, second.Abandoned())

	active, ok := e.ActiveCheckout()
	require.True(t, ok)
	assert.Same(t, second, active)
}

func TestCheckoutSnapshotImmuneToCartMutations(t *testing.T) {
	gw := &recordingSubmitter{conf: &gateway.Confirmation{OrderID: "ord-5"}}
	e := newTestEngine(t, signedIn(), gw)
	fillCart(t, e)

	session, err := e.BeginCheckout()
	require.NoError(t, err)
	walkToReview(t, session)

	// Mutations after session start must not affect the in-flight order.
	require.NoError(t, e.Cart.SetQuantity("a", 50))
	e.Cart.Remove("b")

	_, err = e.PlaceOrder(context.Background())
	require.NoError(t, err)

	order := gw.orders[0]
	require.Len(t, order.Items, 2)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, 59.40, order.TotalAmount)
}

func TestExpiredTokenBlocksCheckout(t *testing.T) {
	// A well-formed JWT with an exp in the past counts as signed out.
	expired := expiredJWT(t)
	e := newTestEngine(t, auth.NewStatic(auth.Identity{ID: "u1"}, expired), &recordingSubmitter{})
	fillCart(t, e)

	_, err := e.BeginCheckout()
	assert.ErrorIs(t, err, storefront.ErrNotAuthenticated)
}

func expiredJWT(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}
