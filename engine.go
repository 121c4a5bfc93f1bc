// Package storefront wires the cart, pricing, checkout and order
// submission components into a single embeddable engine.
//
// The hosting client constructs one Engine per shopper session, drives the
// cart through Engine.Cart, starts checkout with BeginCheckout, and places
// the order with PlaceOrder. The engine owns the active checkout session:
// there is at most one, it is destroyed by a successful submission or by
// AbandonCheckout, and a result arriving for a session that is no longer
// active is discarded.
package storefront

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mkellner/storefront-engine/auth"
	"github.com/mkellner/storefront-engine/cart"
	"github.com/mkellner/storefront-engine/catalog"
	"github.com/mkellner/storefront-engine/checkout"
	"github.com/mkellner/storefront-engine/config"
	"github.com/mkellner/storefront-engine/gateway"
	"github.com/mkellner/storefront-engine/observability"
	"github.com/mkellner/storefront-engine/storage"
)

// ErrNotAuthenticated rejects checkout for a shopper without a usable
// credential. The host should route the shopper to its login view.
var ErrNotAuthenticated = errors.New("checkout requires an authenticated shopper")

// ErrNoActiveCheckout reports that no checkout session is in progress.
var ErrNoActiveCheckout = errors.New("no active checkout session")

// Engine is the cart/checkout engine for one shopper session.
type Engine struct {
	Cart    *cart.Store
	Catalog *catalog.Client

	auth      auth.Session
	submitter checkout.Submitter
	logger    *slog.Logger
	closer    func() error

	mu     sync.Mutex
	active *checkout.Session
}

// New builds an engine from configuration: it opens (and rehydrates from)
// durable cart storage and wires the catalogue and order service clients.
// Close releases the storage when the session ends.
func New(cfg *config.Config, session auth.Session) (*Engine, error) {
	logger := observability.NewLogger(cfg.Observability.Logging)

	var (
		repo   cart.Repository
		closer func() error
	)
	if cfg.Storage.DatabasePath != "" {
		db, err := storage.NewSQLite(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, err
		}
		repo = db
		closer = db.Close
	} else {
		repo = storage.NewMemory()
	}

	return &Engine{
		Cart:      cart.NewStore(repo, logger),
		Catalog:   catalog.NewClient(cfg.API.BaseURL, cfg.API.Timeout(), logger),
		auth:      session,
		submitter: gateway.NewClient(cfg.API.BaseURL, cfg.API.Timeout(), session, logger),
		logger:    logger,
		closer:    closer,
	}, nil
}

// NewWithDeps builds an engine from explicit collaborators. Hosts and tests
// use this to substitute repositories or the order submitter.
func NewWithDeps(repo cart.Repository, session auth.Session, submitter checkout.Submitter, logger *slog.Logger) *Engine {
	return &Engine{
		Cart:      cart.NewStore(repo, logger),
		auth:      session,
		submitter: submitter,
		logger:    logger,
	}
}

// Close tears the engine down at session end.
func (e *Engine) Close() error {
	e.AbandonCheckout()
	if e.closer != nil {
		return e.closer()
	}
	return nil
}

// BeginCheckout starts a checkout session over a snapshot of the current
// cart. Preconditions: the cart is non-empty (otherwise checkout.ErrEmptyCart,
// route to the cart view) and the shopper is authenticated (otherwise
// ErrNotAuthenticated, route to login). Any previous session is abandoned.
func (e *Engine) BeginCheckout() (*checkout.Session, error) {
	if _, ok := e.auth.CurrentUser(); !ok {
		return nil, ErrNotAuthenticated
	}
	if _, ok := e.auth.Token(); !ok {
		return nil, ErrNotAuthenticated
	}

	session, err := checkout.NewSession(e.Cart.Snapshot(), e.logger)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.active != nil {
		e.active.Abandon()
	}
	e.active = session
	e.mu.Unlock()

	e.logger.Info("checkout started", "session_id", session.ID(), "items", e.Cart.ItemCount())
	return session, nil
}

// ActiveCheckout returns the checkout session in progress, if any.
func (e *Engine) ActiveCheckout() (*checkout.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.active != nil
}

// AbandonCheckout destroys the active session, e.g. when the shopper
// navigates away. Entered checkout data is not kept; the shopper restarts
// checkout next time. An in-flight submission is not cancelled, but its
// late result will be discarded.
func (e *Engine) AbandonCheckout() {
	e.mu.Lock()
	session := e.active
	e.active = nil
	e.mu.Unlock()

	if session != nil {
		session.Abandon()
		e.logger.Info("checkout abandoned", "session_id", session.ID())
	}
}

// PlaceOrder submits the active checkout session. On success the cart is
// cleared and the confirmation returned for display. On failure the cart
// and session are left untouched so the shopper can re-submit. A second
// call while a submission is pending fails with
// checkout.ErrSubmitInProgress.
func (e *Engine) PlaceOrder(ctx context.Context) (*gateway.Confirmation, error) {
	e.mu.Lock()
	session := e.active
	e.mu.Unlock()

	if session == nil {
		return nil, ErrNoActiveCheckout
	}

	conf, err := session.Submit(ctx, e.submitter)
	if err != nil {
		return nil, err
	}

	// The submission may have outlived the session's tenure as the active
	// one; only the still-active session gets to clear the cart.
	e.mu.Lock()
	stillActive := e.active == session
	if stillActive {
		e.active = nil
	}
	e.mu.Unlock()

	if !stillActive {
		e.logger.Info("discarding confirmation for superseded session",
			"session_id", session.ID(), "order_id", conf.OrderID)
		return nil, checkout.ErrSessionAbandoned
	}

	e.Cart.Clear()
	return conf, nil
}
