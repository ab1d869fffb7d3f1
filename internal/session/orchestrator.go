// Package session merges the anonymous visitor's cart and wishlist into their account
// right after login. Sync problems are reported, never raised: login itself is not
// affected by anything that happens here.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"cartsync/internal/guest"
	"cartsync/internal/logging"
	"cartsync/internal/remote"
	"cartsync/internal/types"

	"golang.org/x/sync/errgroup"
)

const slowSyncThreshold = 5 * time.Second

// MergePolicy decides how guest quantities combine with lines already in the account cart.
type MergePolicy string

const (
	// MergeSum replays every guest line as an add; the backend sums quantities.
	MergeSum MergePolicy = "sum"
	// MergeMax adds only what is missing so the result is max(guest, account).
	MergeMax MergePolicy = "max"
)

// ParseMergePolicy accepts "sum", "max" or "" (sum).
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MergeSum:
		return MergeSum, nil
	case MergeMax:
		return MergeMax, nil
	}
	return "", fmt.Errorf("unknown merge policy %q (want sum or max)", s)
}

// CartRemote is the account cart API used during the merge.
type CartRemote interface {
	FetchCart(ctx context.Context) (types.Cart, error)
	AddToCart(ctx context.Context, req remote.AddItemRequest) (types.Cart, error)
}

// WishlistRemote is the account wishlist API used during the merge.
type WishlistRemote interface {
	AddToWishlist(ctx context.Context, productID string) (types.Wishlist, error)
}

// Refresher reloads server state after the merge. state.Store implements it.
type Refresher interface {
	RefreshCart(ctx context.Context) error
	RefreshWishlist(ctx context.Context) error
}

// Deps wires an Orchestrator.
type Deps struct {
	GuestCart     *guest.CartStore
	GuestWishlist *guest.WishlistStore
	Cart          CartRemote
	Wishlist      WishlistRemote
	Refresher     Refresher // optional
	Policy        MergePolicy
}

// Orchestrator runs the login-time merge.
type Orchestrator struct {
	deps    Deps
	running atomic.Bool
}

// New returns an Orchestrator. An empty policy means MergeSum.
func New(deps Deps) *Orchestrator {
	if deps.Policy == "" {
		deps.Policy = MergeSum
	}
	return &Orchestrator{deps: deps}
}

// OnLogin replays guest entries into the account. Cart and wishlist run concurrently;
// entries within each run one at a time so the backend never sees racing adds for the
// same resource. A call made while another is still running returns a Skipped result.
func (o *Orchestrator) OnLogin(ctx context.Context) Result {
	if !o.running.CompareAndSwap(false, true) {
		logging.SessionWarn("Login sync already running; skipping duplicate trigger")
		return Result{Skipped: true}
	}
	defer o.running.Store(false)

	timer := logging.StartTimer(logging.CategorySession, "OnLogin")
	defer timer.StopWithThreshold(slowSyncThreshold)

	var res Result
	var g errgroup.Group
	g.Go(func() error {
		res.Cart = o.syncCart(ctx)
		return nil
	})
	g.Go(func() error {
		res.Wishlist = o.syncWishlist(ctx)
		return nil
	})
	_ = g.Wait()

	logging.Session("Login sync finished: %s (cart %s, wishlist %s)", res.Outcome(), res.Cart.Outcome(), res.Wishlist.Outcome())
	return res
}

func (o *Orchestrator) syncCart(ctx context.Context) ResourceResult {
	rr := ResourceResult{Resource: types.ResourceCart}
	lines := o.deps.GuestCart.Get()
	if len(lines) == 0 {
		logging.SessionDebug("No guest cart lines to sync")
		return rr
	}
	rr.Attempted = len(lines)

	var account []types.CartLine
	if o.deps.Policy == MergeMax {
		account = o.accountLines(ctx)
	}

	for _, line := range lines {
		qty := line.Quantity
		if account != nil {
			qty -= quantityOf(account, line.Key())
			if qty <= 0 {
				rr.Synced++
				rr.Unchanged++
				logging.SessionDebug("Account cart already holds %s; nothing to add", line.Key())
				continue
			}
		}
		req := remote.AddItemFromLine(line)
		req.Quantity = qty
		if _, err := o.deps.Cart.AddToCart(ctx, req); err != nil {
			logging.SessionWarn("Replaying cart line %s failed: %v", line.Key(), err)
			rr.Errors = append(rr.Errors, ItemError{Item: line.Key().String(), Err: err})
			continue
		}
		rr.Synced++
	}

	if rr.Synced > 0 {
		o.deps.GuestCart.Clear()
		rr.Cleared = true
	} else {
		logging.SessionWarn("No cart lines synced; keeping %d guest lines", len(lines))
	}

	if o.deps.Refresher != nil {
		rr.RefreshErr = o.deps.Refresher.RefreshCart(ctx)
		rr.Refreshed = true
	}
	return rr
}

// accountLines returns the account cart lines, never nil on success. A failed fetch
// returns nil and the merge falls back to summing.
func (o *Orchestrator) accountLines(ctx context.Context) []types.CartLine {
	cart, err := o.deps.Cart.FetchCart(ctx)
	if err != nil {
		logging.SessionWarn("Could not read account cart for max merge, summing instead: %v", err)
		return nil
	}
	if cart.Items == nil {
		return []types.CartLine{}
	}
	return cart.Items
}

// quantityOf sums the account lines matching k.
func quantityOf(lines []types.CartLine, k types.LineKey) int {
	n := 0
	for _, l := range lines {
		if l.Key().Matches(k) {
			n += l.Quantity
		}
	}
	return n
}

func (o *Orchestrator) syncWishlist(ctx context.Context) ResourceResult {
	rr := ResourceResult{Resource: types.ResourceWishlist}
	entries := o.deps.GuestWishlist.Get()
	if len(entries) == 0 {
		logging.SessionDebug("No guest wishlist entries to sync")
		return rr
	}
	rr.Attempted = len(entries)

	for _, e := range entries {
		_, err := o.deps.Wishlist.AddToWishlist(ctx, e.ProductID)
		switch {
		case err == nil:
			rr.Synced++
		case remote.IsConflict(err):
			// Already in the account wishlist.
			rr.Synced++
			rr.Unchanged++
		default:
			logging.SessionWarn("Replaying wishlist entry %s failed: %v", e.ProductID, err)
			rr.Errors = append(rr.Errors, ItemError{Item: e.ProductID, Err: err})
		}
	}

	if rr.Synced > 0 {
		o.deps.GuestWishlist.Clear()
		rr.Cleared = true
	} else {
		logging.SessionWarn("No wishlist entries synced; keeping %d guest entries", len(entries))
	}

	if o.deps.Refresher != nil {
		rr.RefreshErr = o.deps.Refresher.RefreshWishlist(ctx)
		rr.Refreshed = true
	}
	return rr
}

// Running reports whether a sync is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}
