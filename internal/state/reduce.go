// Package state holds the client's shared cart and wishlist state.
//
// Intents and effect results are both Commands. Reduce is a pure function from
// (State, Command) to the next State plus the Effects to run; the Store executes
// effects against the guest store or the remote API and feeds their results back.
//
// Collections are derived: the displayed cart is the last confirmed snapshot with
// every pending optimistic change replayed on top. Reverting a failed change is
// dropping it from Pending and replaying the rest.
package state

import (
	"strings"

	"cartsync/internal/types"
)

// Pending is an optimistic change awaiting confirmation.
type Pending struct {
	ID       CorrelationID
	Mutation Mutation
}

// State is an immutable snapshot. Reduce never modifies its input.
type State struct {
	Authenticated bool
	Cart          types.Cart
	Wishlist      types.Wishlist
	Pending       []Pending
	LastError     error

	confirmedCart     types.Cart
	confirmedWishlist types.Wishlist
}

// Initial returns the empty anonymous state.
func Initial() State {
	return State{
		Cart:              types.NewCart(nil),
		Wishlist:          types.Wishlist{Items: []types.WishlistEntry{}},
		confirmedCart:     types.NewCart(nil),
		confirmedWishlist: types.Wishlist{Items: []types.WishlistEntry{}},
	}
}

// HasPending reports whether a change with id is still unconfirmed.
func (s State) HasPending(id CorrelationID) bool {
	return s.pendingIndex(id) >= 0
}

// PendingCount returns the number of unconfirmed changes for r.
func (s State) PendingCount(r types.Resource) int {
	n := 0
	for _, p := range s.Pending {
		if p.Mutation.Resource() == r {
			n++
		}
	}
	return n
}

func (s State) pendingIndex(id CorrelationID) int {
	for i, p := range s.Pending {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Effect is work the Store must perform after a reduction.
type Effect struct {
	Guest bool    // route to the local guest store instead of the remote API
	Cmd   Command // a Mutation, FetchCart or FetchWishlist
}

// Reduce applies cmd to s.
func Reduce(s State, cmd Command) (State, []Effect) {
	if m, ok := cmd.(Mutation); ok {
		return reduceMutation(s, m)
	}

	switch c := cmd.(type) {
	case FetchCart, FetchWishlist:
		return s, []Effect{{Guest: !s.Authenticated, Cmd: c}}

	case SetAuthenticated:
		next := Initial()
		next.Authenticated = c.Authenticated
		return next, []Effect{
			{Guest: !c.Authenticated, Cmd: FetchCart{Force: true}},
			{Guest: !c.Authenticated, Cmd: FetchWishlist{Force: true}},
		}

	case CartLoaded:
		s.confirmedCart = c.Cart.Clone()
		s.LastError = nil
		return s.recompute(), nil

	case WishlistLoaded:
		s.confirmedWishlist = c.Wishlist.Clone()
		s.LastError = nil
		return s.recompute(), nil

	case MutationSucceeded:
		idx := s.pendingIndex(c.ID)
		if idx < 0 {
			return s, nil
		}
		m := s.Pending[idx].Mutation
		s.Pending = without(s.Pending, idx)
		switch {
		case c.Cart != nil:
			s.confirmedCart = c.Cart.Clone()
		case c.Wishlist != nil:
			s.confirmedWishlist = c.Wishlist.Clone()
		case m.Resource() == types.ResourceCart:
			s.confirmedCart = applyCart(s.confirmedCart.Clone(), m)
		default:
			s.confirmedWishlist = applyWishlist(s.confirmedWishlist.Clone(), m)
		}
		s.LastError = nil
		return s.recompute(), nil

	case MutationFailed:
		if idx := s.pendingIndex(c.ID); idx >= 0 {
			s.Pending = without(s.Pending, idx)
		}
		s.LastError = c.Err
		return s.recompute(), nil

	case FetchRejected:
		return s, nil

	case FetchFailed:
		s.LastError = c.Err
		return s, nil
	}
	return s, nil
}

func reduceMutation(s State, m Mutation) (State, []Effect) {
	if err := validate(m); err != nil {
		s.LastError = err
		return s, nil
	}

	// Pin cart targets to full identity so the remote call can address the line.
	switch c := m.(type) {
	case UpdateCartItem:
		if l, idx := c.Target.resolve(s.Cart.Items); idx >= 0 {
			c.Target = RefOf(l)
			m = c
		}
	case RemoveCartItem:
		if l, idx := c.Target.resolve(s.Cart.Items); idx >= 0 {
			c.Target = RefOf(l)
			m = c
		}
	}

	pending := make([]Pending, 0, len(s.Pending)+1)
	pending = append(pending, s.Pending...)
	s.Pending = append(pending, Pending{ID: m.CorrelationID(), Mutation: m})
	return s.recompute(), []Effect{{Guest: !s.Authenticated, Cmd: m}}
}

// recompute derives the displayed collections from the confirmed ones.
func (s State) recompute() State {
	cart := s.confirmedCart.Clone()
	wishlist := s.confirmedWishlist.Clone()
	cartTouched := false
	for _, p := range s.Pending {
		if p.Mutation.Resource() == types.ResourceCart {
			cart = applyCart(cart, p.Mutation)
			cartTouched = true
		} else {
			wishlist = applyWishlist(wishlist, p.Mutation)
		}
	}
	if cartTouched {
		cart.TotalAmount = cart.ComputeTotal()
	}
	if cart.Items == nil {
		cart.Items = []types.CartLine{}
	}
	if wishlist.Items == nil {
		wishlist.Items = []types.WishlistEntry{}
	}
	s.Cart = cart
	s.Wishlist = wishlist
	return s
}

// applyCart applies one optimistic change to an owned copy of cart.
func applyCart(cart types.Cart, m Mutation) types.Cart {
	switch c := m.(type) {
	case AddCartItem:
		line := c.Line.Normalized()
		if idx := cart.Find(line.Key()); idx >= 0 {
			cart.Items[idx].Quantity += line.Quantity
		} else {
			line.ID = "pending-" + string(c.ID)
			cart.Items = append(cart.Items, line)
		}
	case UpdateCartItem:
		if _, idx := c.Target.resolve(cart.Items); idx >= 0 {
			if c.Quantity <= 0 {
				cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
			} else {
				cart.Items[idx].Quantity = c.Quantity
			}
		}
	case RemoveCartItem:
		if _, idx := c.Target.resolve(cart.Items); idx >= 0 {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		}
	case ClearCart:
		cart.Items = []types.CartLine{}
		cart.TotalAmount = 0
	}
	return cart
}

// applyWishlist applies one optimistic change to an owned copy of wl.
func applyWishlist(wl types.Wishlist, m Mutation) types.Wishlist {
	var pid string
	var want int // 1 add, -1 remove, 0 toggle
	switch c := m.(type) {
	case AddWishlist:
		pid, want = c.ProductID, 1
	case RemoveWishlist:
		pid, want = c.ProductID, -1
	case ToggleWishlist:
		pid, want = c.ProductID, 0
	default:
		return wl
	}

	idx := types.FindEntry(wl.Items, pid)
	present := idx >= 0
	if want == 0 {
		if present {
			want = -1
		} else {
			want = 1
		}
	}
	switch {
	case want > 0 && !present:
		wl.Items = append(wl.Items, types.WishlistEntry{ProductID: strings.TrimSpace(pid)})
	case want < 0 && present:
		wl.Items = append(wl.Items[:idx], wl.Items[idx+1:]...)
	}
	return wl
}

func without(p []Pending, idx int) []Pending {
	out := make([]Pending, 0, len(p)-1)
	out = append(out, p[:idx]...)
	return append(out, p[idx+1:]...)
}
