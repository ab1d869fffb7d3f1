package state

import (
	"strings"

	"cartsync/internal/types"
)

// CorrelationID ties an optimistic change to the result that confirms or reverts it.
type CorrelationID string

// Command is an intent or an effect result fed to Reduce.
type Command interface {
	commandName() string
}

// Mutation is a command that changes a collection optimistically.
type Mutation interface {
	Command
	CorrelationID() CorrelationID
	Resource() types.Resource
	withCorrelation(CorrelationID) Mutation
}

// LineRef identifies a cart line by local/server id or by product and variant.
type LineRef struct {
	ID         string
	ProductID  string
	VariantID  string
	VariantSKU string
}

func (r LineRef) key() types.LineKey {
	return types.CartLine{ProductID: r.ProductID, VariantID: r.VariantID, VariantSKU: r.VariantSKU}.Key()
}

// resolve finds the line r points to.
func (r LineRef) resolve(lines []types.CartLine) (types.CartLine, int) {
	if id := strings.TrimSpace(r.ID); id != "" {
		for i, l := range lines {
			if l.ID == id {
				return l, i
			}
		}
	}
	if strings.TrimSpace(r.ProductID) != "" {
		if idx := types.FindLine(lines, r.key()); idx >= 0 {
			return lines[idx], idx
		}
	}
	return types.CartLine{}, -1
}

// RefOf returns a reference to l.
func RefOf(l types.CartLine) LineRef {
	return LineRef{ID: l.ID, ProductID: l.ProductID, VariantID: l.VariantID, VariantSKU: l.VariantSKU}
}

// ---------------------------------------------------------------------------
// Intents
// ---------------------------------------------------------------------------

type AddCartItem struct {
	ID   CorrelationID
	Line types.CartLine
}

type UpdateCartItem struct {
	ID       CorrelationID
	Target   LineRef
	Quantity int
}

type RemoveCartItem struct {
	ID     CorrelationID
	Target LineRef
}

type ClearCart struct {
	ID CorrelationID
}

type AddWishlist struct {
	ID        CorrelationID
	ProductID string
}

type RemoveWishlist struct {
	ID        CorrelationID
	ProductID string
}

type ToggleWishlist struct {
	ID        CorrelationID
	ProductID string
}

// FetchCart asks for the account or guest cart. Force bypasses the coalescer.
type FetchCart struct{ Force bool }

// FetchWishlist asks for the account or guest wishlist.
type FetchWishlist struct{ Force bool }

// SetAuthenticated switches between guest and account mode. Cached collections and
// pending changes are dropped and both resources are reloaded.
type SetAuthenticated struct{ Authenticated bool }

// ---------------------------------------------------------------------------
// Effect results
// ---------------------------------------------------------------------------

// CartLoaded carries a fresh cart snapshot.
type CartLoaded struct{ Cart types.Cart }

// WishlistLoaded carries a fresh wishlist snapshot.
type WishlistLoaded struct{ Wishlist types.Wishlist }

// MutationSucceeded confirms a pending change. Exactly one of Cart or Wishlist is set
// when the backend returned a snapshot.
type MutationSucceeded struct {
	ID       CorrelationID
	Cart     *types.Cart
	Wishlist *types.Wishlist
}

// MutationFailed reverts exactly the pending change with ID.
type MutationFailed struct {
	ID  CorrelationID
	Err error
}

// FetchRejected reports a coalescer rejection. Cached data stays visible.
type FetchRejected struct {
	Resource types.Resource
	Err      error
}

// FetchFailed reports a failed read.
type FetchFailed struct {
	Resource types.Resource
	Err      error
}

func (AddCartItem) commandName() string       { return "AddCartItem" }
func (UpdateCartItem) commandName() string    { return "UpdateCartItem" }
func (RemoveCartItem) commandName() string    { return "RemoveCartItem" }
func (ClearCart) commandName() string         { return "ClearCart" }
func (AddWishlist) commandName() string       { return "AddWishlist" }
func (RemoveWishlist) commandName() string    { return "RemoveWishlist" }
func (ToggleWishlist) commandName() string    { return "ToggleWishlist" }
func (FetchCart) commandName() string         { return "FetchCart" }
func (FetchWishlist) commandName() string     { return "FetchWishlist" }
func (SetAuthenticated) commandName() string  { return "SetAuthenticated" }
func (CartLoaded) commandName() string        { return "CartLoaded" }
func (WishlistLoaded) commandName() string    { return "WishlistLoaded" }
func (MutationSucceeded) commandName() string { return "MutationSucceeded" }
func (MutationFailed) commandName() string    { return "MutationFailed" }
func (FetchRejected) commandName() string     { return "FetchRejected" }
func (FetchFailed) commandName() string       { return "FetchFailed" }

func (c AddCartItem) CorrelationID() CorrelationID    { return c.ID }
func (c UpdateCartItem) CorrelationID() CorrelationID { return c.ID }
func (c RemoveCartItem) CorrelationID() CorrelationID { return c.ID }
func (c ClearCart) CorrelationID() CorrelationID      { return c.ID }
func (c AddWishlist) CorrelationID() CorrelationID    { return c.ID }
func (c RemoveWishlist) CorrelationID() CorrelationID { return c.ID }
func (c ToggleWishlist) CorrelationID() CorrelationID { return c.ID }

func (AddCartItem) Resource() types.Resource    { return types.ResourceCart }
func (UpdateCartItem) Resource() types.Resource { return types.ResourceCart }
func (RemoveCartItem) Resource() types.Resource { return types.ResourceCart }
func (ClearCart) Resource() types.Resource      { return types.ResourceCart }
func (AddWishlist) Resource() types.Resource    { return types.ResourceWishlist }
func (RemoveWishlist) Resource() types.Resource { return types.ResourceWishlist }
func (ToggleWishlist) Resource() types.Resource { return types.ResourceWishlist }

func (c AddCartItem) withCorrelation(id CorrelationID) Mutation    { c.ID = id; return c }
func (c UpdateCartItem) withCorrelation(id CorrelationID) Mutation { c.ID = id; return c }
func (c RemoveCartItem) withCorrelation(id CorrelationID) Mutation { c.ID = id; return c }
func (c ClearCart) withCorrelation(id CorrelationID) Mutation      { c.ID = id; return c }
func (c AddWishlist) withCorrelation(id CorrelationID) Mutation    { c.ID = id; return c }
func (c RemoveWishlist) withCorrelation(id CorrelationID) Mutation { c.ID = id; return c }
func (c ToggleWishlist) withCorrelation(id CorrelationID) Mutation { c.ID = id; return c }

// validate checks a mutation before it is applied.
func validate(m Mutation) error {
	switch c := m.(type) {
	case AddCartItem:
		return c.Line.ValidateIdentity()
	case UpdateCartItem:
		if c.Quantity < 0 {
			return types.ErrInvalidQuantity
		}
		if strings.TrimSpace(c.Target.ID) == "" && strings.TrimSpace(c.Target.ProductID) == "" {
			return types.ErrMissingProductID
		}
	case RemoveCartItem:
		if strings.TrimSpace(c.Target.ID) == "" && strings.TrimSpace(c.Target.ProductID) == "" {
			return types.ErrMissingProductID
		}
	case AddWishlist:
		return requireProduct(c.ProductID)
	case RemoveWishlist:
		return requireProduct(c.ProductID)
	case ToggleWishlist:
		return requireProduct(c.ProductID)
	}
	return nil
}

func requireProduct(id string) error {
	if strings.TrimSpace(id) == "" {
		return types.ErrMissingProductID
	}
	return nil
}
