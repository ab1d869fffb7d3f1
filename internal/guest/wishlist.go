package guest

import (
	"strings"
	"sync"

	"cartsync/internal/logging"
	"cartsync/internal/storage"
	"cartsync/internal/types"
)

// WishlistStore is the guest wishlist.
type WishlistStore struct {
	mu  sync.Mutex
	env envelopeStore[types.WishlistEntry]
}

// NewWishlistStore returns a guest wishlist persisted in kv.
func NewWishlistStore(kv storage.KV, opts Options) *WishlistStore {
	opts = opts.withDefaults()
	return &WishlistStore{env: envelopeStore[types.WishlistEntry]{kv: kv, key: WishlistKey, opts: opts}}
}

// Get returns the current entries.
func (s *WishlistStore) Get() []types.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.read()
}

// Contains reports whether productID is saved.
func (s *WishlistStore) Contains(productID string) bool {
	return types.FindEntry(s.Get(), productID) >= 0
}

// Add saves entry unless its product is already present.
func (s *WishlistStore) Add(entry types.WishlistEntry) []types.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.env.read()
	entry.ProductID = strings.TrimSpace(entry.ProductID)
	if entry.ProductID == "" {
		logging.GuestWarn("Ignoring guest wishlist add: %v", types.ErrMissingProductID)
		return entries
	}
	if types.FindEntry(entries, entry.ProductID) >= 0 {
		return entries
	}
	return s.commit(append(entries, s.stamp(entry)))
}

// Remove deletes productID. Unknown products are a no-op.
func (s *WishlistStore) Remove(productID string) []types.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.env.read()
	idx := types.FindEntry(entries, productID)
	if idx < 0 {
		return entries
	}
	return s.commit(append(entries[:idx], entries[idx+1:]...))
}

// Toggle removes productID when present and adds it otherwise. The full list is
// re-read under the lock on every call.
func (s *WishlistStore) Toggle(productID string) (types.ToggleAction, []types.WishlistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.env.read()
	pid := strings.TrimSpace(productID)
	if pid == "" {
		logging.GuestWarn("Ignoring guest wishlist toggle: %v", types.ErrMissingProductID)
		return "", entries
	}

	if idx := types.FindEntry(entries, pid); idx >= 0 {
		logging.GuestDebug("Toggle removed %s", pid)
		return types.ToggleRemoved, s.commit(append(entries[:idx], entries[idx+1:]...))
	}
	logging.GuestDebug("Toggle added %s", pid)
	return types.ToggleAdded, s.commit(append(entries, s.stamp(types.WishlistEntry{ProductID: pid})))
}

// Clear deletes the persisted envelope.
func (s *WishlistStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env.discard()
	logging.Guest("Guest wishlist cleared")
}

func (s *WishlistStore) stamp(e types.WishlistEntry) types.WishlistEntry {
	if e.AddedAt.IsZero() {
		e.AddedAt = s.env.opts.Now()
	}
	return e
}

func (s *WishlistStore) commit(entries []types.WishlistEntry) []types.WishlistEntry {
	if len(entries) == 0 {
		s.env.discard()
		return []types.WishlistEntry{}
	}
	if !s.env.write(entries) {
		return s.env.read()
	}
	return entries
}
