// Package types defines the cart and wishlist data model shared by the guest store,
// the remote client, the state store and the login-time merge.
package types

import (
	"errors"
	"strings"
	"time"
)

// Resource names one of the two synchronized collections.
type Resource string

const (
	ResourceCart     Resource = "cart"
	ResourceWishlist Resource = "wishlist"
)

// ToggleAction reports the net effect of a wishlist toggle.
type ToggleAction string

const (
	ToggleAdded   ToggleAction = "added"
	ToggleRemoved ToggleAction = "removed"
)

var (
	ErrMissingProductID = errors.New("productId is required")
	ErrMissingVariant   = errors.New("variantId or variantSku is required")
	ErrInvalidQuantity  = errors.New("quantity must not be negative")
)

// ProductSnapshot is denormalized display data captured when an item is added.
type ProductSnapshot struct {
	Name     string  `json:"name,omitempty"`
	Slug     string  `json:"slug,omitempty"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

// CartLine is one line of a cart.
// Identity across adds is (ProductID, VariantID-or-VariantSKU); see Key.
type CartLine struct {
	ID         string           `json:"id"`
	ProductID  string           `json:"productId"`
	VariantID  string           `json:"variantId,omitempty"`
	VariantSKU string           `json:"variantSku,omitempty"`
	Quantity   int              `json:"quantity"`
	UnitPrice  float64          `json:"unitPrice"`
	Product    *ProductSnapshot `json:"productSnapshot,omitempty"`
}

// LineKey identifies a purchasable configuration within a cart.
type LineKey struct {
	ProductID  string
	VariantID  string
	VariantSKU string
}

func (k LineKey) String() string {
	switch {
	case k.VariantID != "":
		return k.ProductID + ":id:" + k.VariantID
	case k.VariantSKU != "":
		return k.ProductID + ":sku:" + k.VariantSKU
	}
	return k.ProductID
}

// Matches reports whether k and o name the same variant of the same product.
// Variant ids are compared when both sides carry one; otherwise SKUs are compared.
// Server lines often carry both identifiers while guest lines carry only one.
func (k LineKey) Matches(o LineKey) bool {
	if k.ProductID != o.ProductID {
		return false
	}
	if k.VariantID != "" && o.VariantID != "" {
		return k.VariantID == o.VariantID
	}
	return k.VariantSKU != "" && k.VariantSKU == o.VariantSKU
}

// Key returns the trimmed identity of the line.
func (l CartLine) Key() LineKey {
	return LineKey{
		ProductID:  strings.TrimSpace(l.ProductID),
		VariantID:  strings.TrimSpace(l.VariantID),
		VariantSKU: strings.TrimSpace(l.VariantSKU),
	}
}

// ValidateIdentity checks the identifiers required by every cart operation.
func (l CartLine) ValidateIdentity() error {
	if strings.TrimSpace(l.ProductID) == "" {
		return ErrMissingProductID
	}
	if strings.TrimSpace(l.VariantID) == "" && strings.TrimSpace(l.VariantSKU) == "" {
		return ErrMissingVariant
	}
	return nil
}

// Normalized trims identifiers and defaults a non-positive quantity to 1.
func (l CartLine) Normalized() CartLine {
	l.ProductID = strings.TrimSpace(l.ProductID)
	l.VariantID = strings.TrimSpace(l.VariantID)
	l.VariantSKU = strings.TrimSpace(l.VariantSKU)
	if l.Quantity <= 0 {
		l.Quantity = 1
	}
	if l.UnitPrice < 0 {
		l.UnitPrice = 0
	}
	return l
}

// Subtotal is UnitPrice × Quantity.
func (l CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// WishlistEntry is one saved product. ProductID is unique within a wishlist.
type WishlistEntry struct {
	ProductID string           `json:"productId"`
	AddedAt   time.Time        `json:"addedAt"`
	Product   *ProductSnapshot `json:"productSnapshot,omitempty"`
}

// Cart is the server-side cart snapshot returned by every cart endpoint.
type Cart struct {
	Items       []CartLine `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
}

// NewCart builds a cart whose total is computed from its lines.
func NewCart(lines []CartLine) Cart {
	c := Cart{Items: CloneLines(lines)}
	c.TotalAmount = c.ComputeTotal()
	return c
}

// ComputeTotal sums line subtotals.
func (c Cart) ComputeTotal() float64 {
	var total float64
	for _, l := range c.Items {
		total += l.Subtotal()
	}
	return total
}

// ItemCount sums quantities.
func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Items {
		n += l.Quantity
	}
	return n
}

// Find returns the index of the first line matching k, or -1.
func (c Cart) Find(k LineKey) int {
	return FindLine(c.Items, k)
}

// Clone deep-copies the cart.
func (c Cart) Clone() Cart {
	return Cart{Items: CloneLines(c.Items), TotalAmount: c.TotalAmount}
}

// Wishlist is the server-side wishlist page.
type Wishlist struct {
	Items []WishlistEntry `json:"items"`
	Page  int             `json:"page,omitempty"`
	Limit int             `json:"limit,omitempty"`
	Total int             `json:"total,omitempty"`
}

// Contains reports whether productID is in the wishlist.
func (w Wishlist) Contains(productID string) bool {
	return FindEntry(w.Items, productID) >= 0
}

// Clone deep-copies the wishlist.
func (w Wishlist) Clone() Wishlist {
	out := w
	out.Items = CloneEntries(w.Items)
	return out
}

// FindLine returns the index of the first line matching k, or -1.
func FindLine(lines []CartLine, k LineKey) int {
	for i := range lines {
		if lines[i].Key().Matches(k) {
			return i
		}
	}
	return -1
}

// FindEntry returns the index of productID, or -1.
func FindEntry(entries []WishlistEntry, productID string) int {
	pid := strings.TrimSpace(productID)
	for i := range entries {
		if entries[i].ProductID == pid {
			return i
		}
	}
	return -1
}

// CloneLines copies lines, including product snapshots.
func CloneLines(src []CartLine) []CartLine {
	out := make([]CartLine, 0, len(src))
	for _, l := range src {
		if l.Product != nil {
			p := *l.Product
			l.Product = &p
		}
		out = append(out, l)
	}
	return out
}

// CloneEntries copies wishlist entries, including product snapshots.
func CloneEntries(src []WishlistEntry) []WishlistEntry {
	out := make([]WishlistEntry, 0, len(src))
	for _, e := range src {
		if e.Product != nil {
			p := *e.Product
			e.Product = &p
		}
		out = append(out, e)
	}
	return out
}
