package state

import (
	"context"
	"errors"
	"sync"

	"cartsync/internal/coalesce"
	"cartsync/internal/guest"
	"cartsync/internal/logging"
	"cartsync/internal/remote"
	"cartsync/internal/types"

	"github.com/google/uuid"
)

// ErrNoBackend is returned for account operations when no remote client is configured.
var ErrNoBackend = errors.New("no backend configured")

// Remote is the subset of the account API the store drives.
type Remote interface {
	FetchCart(ctx context.Context) (types.Cart, error)
	AddToCart(ctx context.Context, req remote.AddItemRequest) (types.Cart, error)
	UpdateCartItem(ctx context.Context, req remote.UpdateItemRequest) (types.Cart, error)
	RemoveFromCart(ctx context.Context, req remote.ItemCriteria) (types.Cart, error)
	ClearCart(ctx context.Context) (types.Cart, error)
	FetchWishlist(ctx context.Context, p remote.ListParams) (types.Wishlist, error)
	AddToWishlist(ctx context.Context, productID string) (types.Wishlist, error)
	RemoveFromWishlist(ctx context.Context, productID string) (types.Wishlist, error)
	ToggleWishlist(ctx context.Context, productID string) (remote.ToggleResult, error)
}

// Deps wires a Store.
type Deps struct {
	GuestCart     *guest.CartStore
	GuestWishlist *guest.WishlistStore
	Remote        Remote // may be nil for guest-only use
	CartFetch     *coalesce.Coalescer
	WishlistFetch *coalesce.Coalescer
	WishlistPage  remote.ListParams
	NewID         func() string
}

// Store owns the current State and runs the effects Reduce asks for.
type Store struct {
	deps Deps

	mu    sync.Mutex
	state State

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// NewStore returns an anonymous store.
func NewStore(deps Deps) *Store {
	if deps.CartFetch == nil {
		deps.CartFetch = coalesce.New(string(types.ResourceCart), coalesce.Options{})
	}
	if deps.WishlistFetch == nil {
		deps.WishlistFetch = coalesce.New(string(types.ResourceWishlist), coalesce.Options{})
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Store{deps: deps, state: Initial(), subs: make(map[int]func(State))}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to be called after every state change. The returned
// function unregisters it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Dispatch reduces cmd and runs the resulting effects to completion. Mutations without
// a correlation id get one. The returned error is the failure of this command, if any;
// coalescer rejections are not failures.
func (s *Store) Dispatch(ctx context.Context, cmd Command) (State, error) {
	if m, ok := cmd.(Mutation); ok && m.CorrelationID() == "" {
		cmd = m.withCorrelation(CorrelationID(s.deps.NewID()))
	}
	if m, ok := cmd.(Mutation); ok {
		if err := validate(m); err != nil {
			st := s.apply(cmd)
			return st, err
		}
	}
	if _, ok := cmd.(SetAuthenticated); ok {
		s.deps.CartFetch.Reset()
		s.deps.WishlistFetch.Reset()
	}

	var failure error
	queue := []Command{cmd}
	var st State
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		var effects []Effect
		st, effects = s.reduce(next)
		for _, eff := range effects {
			res := s.execute(ctx, eff)
			switch r := res.(type) {
			case MutationFailed:
				failure = r.Err
			case FetchFailed:
				failure = r.Err
			}
			queue = append(queue, res)
		}
	}
	return st, failure
}

// RefreshCart forces a cart fetch.
func (s *Store) RefreshCart(ctx context.Context) error {
	_, err := s.Dispatch(ctx, FetchCart{Force: true})
	return err
}

// RefreshWishlist forces a wishlist fetch.
func (s *Store) RefreshWishlist(ctx context.Context) error {
	_, err := s.Dispatch(ctx, FetchWishlist{Force: true})
	return err
}

func (s *Store) apply(cmd Command) State {
	st, _ := s.reduce(cmd)
	return st
}

func (s *Store) reduce(cmd Command) (State, []Effect) {
	s.mu.Lock()
	next, effects := Reduce(s.state, cmd)
	s.state = next
	s.mu.Unlock()

	logging.StateDebug("%s -> %d effect(s), %d pending", cmd.commandName(), len(effects), len(next.Pending))
	s.notify(next)
	return next, effects
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

// execute performs one effect and returns the result command.
func (s *Store) execute(ctx context.Context, eff Effect) Command {
	if eff.Guest {
		return s.executeGuest(eff.Cmd)
	}
	return s.executeRemote(ctx, eff.Cmd)
}

func (s *Store) executeGuest(cmd Command) Command {
	gc, gw := s.deps.GuestCart, s.deps.GuestWishlist
	if gc == nil || gw == nil {
		logging.StateWarn("Guest store not configured; ignoring %s", cmd.commandName())
		if m, ok := cmd.(Mutation); ok {
			return MutationSucceeded{ID: m.CorrelationID()}
		}
		return FetchRejected{Err: ErrNoBackend}
	}

	cartResult := func(id CorrelationID, lines []types.CartLine) Command {
		c := types.NewCart(lines)
		return MutationSucceeded{ID: id, Cart: &c}
	}
	wishlistResult := func(id CorrelationID, entries []types.WishlistEntry) Command {
		w := types.Wishlist{Items: entries}
		return MutationSucceeded{ID: id, Wishlist: &w}
	}

	switch c := cmd.(type) {
	case FetchCart:
		return CartLoaded{Cart: types.NewCart(gc.Get())}
	case FetchWishlist:
		return WishlistLoaded{Wishlist: types.Wishlist{Items: gw.Get()}}
	case AddCartItem:
		return cartResult(c.ID, gc.Add(c.Line))
	case UpdateCartItem:
		return cartResult(c.ID, gc.Update(guestLineID(gc, c.Target), c.Quantity))
	case RemoveCartItem:
		return cartResult(c.ID, gc.Remove(guestLineID(gc, c.Target)))
	case ClearCart:
		gc.Clear()
		return cartResult(c.ID, nil)
	case AddWishlist:
		return wishlistResult(c.ID, gw.Add(types.WishlistEntry{ProductID: c.ProductID}))
	case RemoveWishlist:
		return wishlistResult(c.ID, gw.Remove(c.ProductID))
	case ToggleWishlist:
		_, entries := gw.Toggle(c.ProductID)
		return wishlistResult(c.ID, entries)
	}
	return FetchRejected{}
}

func guestLineID(gc *guest.CartStore, ref LineRef) string {
	if l, idx := ref.resolve(gc.Get()); idx >= 0 {
		return l.ID
	}
	return ref.ID
}

func (s *Store) executeRemote(ctx context.Context, cmd Command) Command {
	api := s.deps.Remote
	if api == nil {
		if m, ok := cmd.(Mutation); ok {
			return MutationFailed{ID: m.CorrelationID(), Err: ErrNoBackend}
		}
		return FetchFailed{Resource: resourceOf(cmd), Err: ErrNoBackend}
	}

	switch c := cmd.(type) {
	case FetchCart:
		var cart types.Cart
		err := s.deps.CartFetch.Fetch(ctx, c.Force, func(ctx context.Context) error {
			var err error
			cart, err = api.FetchCart(ctx)
			return err
		})
		return fetchResult(types.ResourceCart, err, func() Command { return CartLoaded{Cart: cart} })

	case FetchWishlist:
		var wl types.Wishlist
		err := s.deps.WishlistFetch.Fetch(ctx, c.Force, func(ctx context.Context) error {
			var err error
			wl, err = api.FetchWishlist(ctx, s.deps.WishlistPage)
			return err
		})
		return fetchResult(types.ResourceWishlist, err, func() Command { return WishlistLoaded{Wishlist: wl} })

	case AddCartItem:
		cart, err := api.AddToCart(ctx, remote.AddItemFromLine(c.Line))
		return s.cartMutationResult(c.ID, cart, err)
	case UpdateCartItem:
		cart, err := api.UpdateCartItem(ctx, remote.UpdateItemRequest{
			ProductID: c.Target.ProductID, VariantID: c.Target.VariantID, VariantSKU: c.Target.VariantSKU, Quantity: c.Quantity,
		})
		return s.cartMutationResult(c.ID, cart, err)
	case RemoveCartItem:
		cart, err := api.RemoveFromCart(ctx, remote.ItemCriteria{
			ProductID: c.Target.ProductID, VariantID: c.Target.VariantID, VariantSKU: c.Target.VariantSKU,
		})
		return s.cartMutationResult(c.ID, cart, err)
	case ClearCart:
		cart, err := api.ClearCart(ctx)
		return s.cartMutationResult(c.ID, cart, err)

	case AddWishlist:
		wl, err := api.AddToWishlist(ctx, c.ProductID)
		return s.wishlistMutationResult(c.ID, wl, err)
	case RemoveWishlist:
		wl, err := api.RemoveFromWishlist(ctx, c.ProductID)
		return s.wishlistMutationResult(c.ID, wl, err)
	case ToggleWishlist:
		res, err := api.ToggleWishlist(ctx, c.ProductID)
		return s.wishlistMutationResult(c.ID, res.Wishlist, err)
	}
	return FetchRejected{}
}

func fetchResult(r types.Resource, err error, loaded func() Command) Command {
	switch {
	case err == nil:
		return loaded()
	case coalesce.IsRejected(err):
		logging.StateDebug("%s fetch skipped: %v", r, err)
		return FetchRejected{Resource: r, Err: err}
	default:
		logging.StateWarn("%s fetch failed: %v", r, err)
		return FetchFailed{Resource: r, Err: err}
	}
}

func (s *Store) cartMutationResult(id CorrelationID, cart types.Cart, err error) Command {
	if err != nil {
		logging.StateWarn("Cart change %s reverted: %v", id, err)
		return MutationFailed{ID: id, Err: err}
	}
	s.deps.CartFetch.Invalidate()
	return MutationSucceeded{ID: id, Cart: &cart}
}

func (s *Store) wishlistMutationResult(id CorrelationID, wl types.Wishlist, err error) Command {
	if err != nil {
		logging.StateWarn("Wishlist change %s reverted: %v", id, err)
		return MutationFailed{ID: id, Err: err}
	}
	s.deps.WishlistFetch.Invalidate()
	return MutationSucceeded{ID: id, Wishlist: &wl}
}

func resourceOf(cmd Command) types.Resource {
	if m, ok := cmd.(Mutation); ok {
		return m.Resource()
	}
	if _, ok := cmd.(FetchWishlist); ok {
		return types.ResourceWishlist
	}
	return types.ResourceCart
}
