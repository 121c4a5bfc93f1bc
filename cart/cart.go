// Package cart implements the shopping cart store.
//
// The Store owns the set of line items a shopper intends to buy for the
// lifetime of a session. Entries are keyed by product ID and kept in
// insertion order. Every mutation persists the new state through the
// configured Repository and notifies subscribed observers synchronously,
// so the UI always sees a state at least as fresh as the mutation that
// triggered it.
package cart

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/mkellner/storefront-engine/money"
	"github.com/mkellner/storefront-engine/pricing"
)

// Invalid-input errors. The offending operation is a no-op; the cart is
// never left in a partial state.
var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrNegativePrice   = errors.New("unit price cannot be negative")
	ErrUnknownProduct  = errors.New("product is not in the cart")
)

// LineItem is one product entry in the cart.
type LineItem struct {
	ProductID string      `json:"product_id"`
	Name      string      `json:"name"`
	UnitPrice money.Cents `json:"unit_price"`
	Quantity  int         `json:"quantity"`
	ImageURL  string      `json:"image_url,omitempty"`
	Brand     string      `json:"brand,omitempty"`
}

// Repository persists cart state across sessions. Load returning
// ErrCorrupt (or any other error) is recovered by starting from an empty
// cart; persistence problems are never fatal to the shopper.
type Repository interface {
	Save(items []LineItem) error
	Load() ([]LineItem, error)
}

// ErrCorrupt reports that the persisted cart record could not be decoded.
var ErrCorrupt = errors.New("persisted cart state is corrupt")

// Store owns the cart state. Construct with NewStore; the zero value is not
// usable.
type Store struct {
	mu        sync.Mutex
	items     []LineItem
	index     map[string]int // productID -> position in items
	repo      Repository
	logger    *slog.Logger
	observers map[int]func()
	nextObsID int
}

// NewStore creates a Store backed by repo and rehydrates any previously
// persisted state. A missing or corrupt record falls back to an empty cart.
func NewStore(repo Repository, logger *slog.Logger) *Store {
	s := &Store{
		index:     make(map[string]int),
		repo:      repo,
		logger:    logger,
		observers: make(map[int]func()),
	}

	items, err := repo.Load()
	if err != nil {
		logger.Warn("could not restore saved cart, starting empty", "error", err)
		return s
	}

	for _, item := range items {
		// Re-validate on the way in: a stale record written by an older
		// build must not smuggle in an invalid entry.
		if item.Quantity < 1 || item.UnitPrice < 0 || item.ProductID == "" {
			logger.Warn("dropping invalid persisted cart entry",
				"product_id", item.ProductID, "quantity", item.Quantity)
			continue
		}
		if pos, ok := s.index[item.ProductID]; ok {
			s.items[pos].Quantity += item.Quantity
			continue
		}
		s.index[item.ProductID] = len(s.items)
		s.items = append(s.items, item)
	}

	return s
}

// Add puts item in the cart. If the product is already present its quantity
// is added to the existing entry; the existing display fields are kept.
// Items with a quantity below 1 or a negative price are rejected.
func (s *Store) Add(item LineItem) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if item.UnitPrice < 0 {
		return ErrNegativePrice
	}

	s.mu.Lock()
	if pos, ok := s.index[item.ProductID]; ok {
		s.items[pos].Quantity += item.Quantity
	} else {
		s.index[item.ProductID] = len(s.items)
		s.items = append(s.items, item)
	}
	s.persistLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Remove deletes the entry for productID. Removing a product that is not in
// the cart is a no-op.
func (s *Store) Remove(productID string) {
	s.mu.Lock()
	removed := s.removeLocked(productID)
	s.mu.Unlock()

	if removed {
		s.notify()
	}
}

func (s *Store) removeLocked(productID string) bool {
	pos, ok := s.index[productID]
	if !ok {
		return false
	}
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	delete(s.index, productID)
	for i := pos; i < len(s.items); i++ {
		s.index[s.items[i].ProductID] = i
	}
	s.persistLocked()
	return true
}

// SetQuantity updates the quantity of an existing entry. A quantity of zero
// or less removes the entry. Setting the quantity of a product that is not
// in the cart is rejected; SetQuantity never creates entries.
func (s *Store) SetQuantity(productID string, quantity int) error {
	s.mu.Lock()

	if quantity <= 0 {
		removed := s.removeLocked(productID)
		s.mu.Unlock()
		if removed {
			s.notify()
		}
		return nil
	}

	pos, ok := s.index[productID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownProduct
	}
	s.items[pos].Quantity = quantity
	s.persistLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Clear empties the cart unconditionally. Called after a successful order
// submission.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.index = make(map[string]int)
	s.persistLocked()
	s.mu.Unlock()

	s.notify()
}

// Items returns a copy of the cart entries in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItemsLocked()
}

// Snapshot returns an immutable copy of the cart taken at this instant.
// Checkout holds a snapshot rather than a live reference so that cart
// mutations during checkout cannot corrupt an in-flight order.
func (s *Store) Snapshot() []LineItem {
	return s.Items()
}

// Totals derives the current totals. The result is computed fresh from the
// cart on every call and never cached.
func (s *Store) Totals() pricing.Totals {
	s.mu.Lock()
	lines := make([]pricing.Line, len(s.items))
	for i, item := range s.items {
		lines[i] = pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	s.mu.Unlock()
	return pricing.ComputeTotals(lines)
}

// ItemCount returns the sum of quantities across all entries.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no entries.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

// Subscribe registers fn to be called synchronously after every mutation.
// The returned function cancels the subscription.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) copyItemsLocked() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// persistLocked saves the current state. Callers must hold s.mu. A failed
// save is logged and otherwise ignored: losing persistence must not break
// the in-memory cart.
func (s *Store) persistLocked() {
	if err := s.repo.Save(s.copyItemsLocked()); err != nil {
		s.logger.Error("failed to persist cart state", "error", err)
	}
}

// notify runs the observers outside the lock, in the same call that mutated
// the store, so observers may read back from the Store without deadlocking.
func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
