package guest

import (
	"sync"

	"cartsync/internal/logging"
	"cartsync/internal/storage"
	"cartsync/internal/types"
)

// CartStore is the guest cart.
type CartStore struct {
	mu  sync.Mutex
	env envelopeStore[types.CartLine]
}

// NewCartStore returns a guest cart persisted in kv.
func NewCartStore(kv storage.KV, opts Options) *CartStore {
	opts = opts.withDefaults()
	return &CartStore{env: envelopeStore[types.CartLine]{kv: kv, key: CartKey, opts: opts}}
}

// Get returns the current lines.
func (s *CartStore) Get() []types.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.read()
}

// Add merges line into the cart: an existing line with the same key gets its quantity
// increased, otherwise a new line with a fresh local id is appended. Lines missing a
// product or variant identifier are ignored. Returns the persisted snapshot.
func (s *CartStore) Add(line types.CartLine) []types.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := line.ValidateIdentity(); err != nil {
		logging.GuestWarn("Ignoring guest cart add: %v", err)
		return s.env.read()
	}
	line = line.Normalized()

	lines := s.env.read()
	if idx := types.FindLine(lines, line.Key()); idx >= 0 {
		lines[idx].Quantity += line.Quantity
		if line.UnitPrice > 0 {
			lines[idx].UnitPrice = line.UnitPrice
		}
		if line.Product != nil {
			lines[idx].Product = line.Product
		}
		logging.GuestDebug("Merged %s into existing line (qty=%d)", line.Key(), lines[idx].Quantity)
	} else {
		line.ID = s.env.opts.NewID()
		lines = append(lines, line)
		logging.GuestDebug("Added guest line %s (%s qty=%d)", line.ID, line.Key(), line.Quantity)
	}

	return s.commit(lines)
}

// Update sets the quantity of line id. Negative quantities clamp to zero and zero
// removes the line. Unknown ids are a no-op.
func (s *CartStore) Update(id string, quantity int) []types.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 0 {
		quantity = 0
	}

	lines := s.env.read()
	idx := indexByID(lines, id)
	if idx < 0 {
		return lines
	}
	if quantity == 0 {
		lines = append(lines[:idx], lines[idx+1:]...)
	} else {
		lines[idx].Quantity = quantity
	}
	return s.commit(lines)
}

// Remove deletes line id. Unknown ids are a no-op.
func (s *CartStore) Remove(id string) []types.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.env.read()
	idx := indexByID(lines, id)
	if idx < 0 {
		return lines
	}
	return s.commit(append(lines[:idx], lines[idx+1:]...))
}

// Clear deletes the persisted envelope.
func (s *CartStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env.discard()
	logging.Guest("Guest cart cleared")
}

// Count returns the number of units in the cart.
func (s *CartStore) Count() int {
	return types.NewCart(s.Get()).ItemCount()
}

// Subtotal returns the sum of line subtotals.
func (s *CartStore) Subtotal() float64 {
	return types.NewCart(s.Get()).TotalAmount
}

// commit writes lines and returns what is actually persisted afterwards.
func (s *CartStore) commit(lines []types.CartLine) []types.CartLine {
	if len(lines) == 0 {
		s.env.discard()
		return []types.CartLine{}
	}
	if !s.env.write(lines) {
		return s.env.read()
	}
	return lines
}

func indexByID(lines []types.CartLine, id string) int {
	for i := range lines {
		if lines[i].ID == id {
			return i
		}
	}
	return -1
}
