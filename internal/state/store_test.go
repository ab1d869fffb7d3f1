package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cartsync/internal/coalesce"
	"cartsync/internal/guest"
	"cartsync/internal/remote"
	"cartsync/internal/storage"
	"cartsync/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory account backend.
type fakeRemote struct {
	mu       sync.Mutex
	cart     []types.CartLine
	wishlist []types.WishlistEntry
	fail     map[string]error
	calls    map[string]int
	nextLine int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{fail: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeRemote) hit(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeRemote) snapshot() types.Cart { return types.NewCart(f.cart) }

func (f *fakeRemote) wl() types.Wishlist {
	return types.Wishlist{Items: types.CloneEntries(f.wishlist)}
}

func (f *fakeRemote) FetchCart(ctx context.Context) (types.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("FetchCart"); err != nil {
		return types.Cart{}, err
	}
	return f.snapshot(), nil
}

func (f *fakeRemote) AddToCart(ctx context.Context, req remote.AddItemRequest) (types.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("AddToCart"); err != nil {
		return types.Cart{}, err
	}
	line := types.CartLine{ProductID: req.ProductID, VariantID: req.VariantID, VariantSKU: req.VariantSKU, Quantity: req.Quantity, UnitPrice: 10}
	if idx := types.FindLine(f.cart, line.Key()); idx >= 0 {
		f.cart[idx].Quantity += req.Quantity
	} else {
		f.nextLine++
		line.ID = fmt.Sprintf("srv-%d", f.nextLine)
		f.cart = append(f.cart, line)
	}
	return f.snapshot(), nil
}

func (f *fakeRemote) UpdateCartItem(ctx context.Context, req remote.UpdateItemRequest) (types.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("UpdateCartItem"); err != nil {
		return types.Cart{}, err
	}
	key := types.CartLine{ProductID: req.ProductID, VariantID: req.VariantID, VariantSKU: req.VariantSKU}.Key()
	if idx := types.FindLine(f.cart, key); idx >= 0 {
		if req.Quantity == 0 {
			f.cart = append(f.cart[:idx], f.cart[idx+1:]...)
		} else {
			f.cart[idx].Quantity = req.Quantity
		}
	}
	return f.snapshot(), nil
}

func (f *fakeRemote) RemoveFromCart(ctx context.Context, req remote.ItemCriteria) (types.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("RemoveFromCart"); err != nil {
		return types.Cart{}, err
	}
	key := types.CartLine{ProductID: req.ProductID, VariantID: req.VariantID, VariantSKU: req.VariantSKU}.Key()
	if idx := types.FindLine(f.cart, key); idx >= 0 {
		f.cart = append(f.cart[:idx], f.cart[idx+1:]...)
	}
	return f.snapshot(), nil
}

func (f *fakeRemote) ClearCart(ctx context.Context) (types.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("ClearCart"); err != nil {
		return types.Cart{}, err
	}
	f.cart = nil
	return f.snapshot(), nil
}

func (f *fakeRemote) FetchWishlist(ctx context.Context, p remote.ListParams) (types.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("FetchWishlist"); err != nil {
		return types.Wishlist{}, err
	}
	return f.wl(), nil
}

func (f *fakeRemote) AddToWishlist(ctx context.Context, productID string) (types.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("AddToWishlist"); err != nil {
		return types.Wishlist{}, err
	}
	if types.FindEntry(f.wishlist, productID) < 0 {
		f.wishlist = append(f.wishlist, types.WishlistEntry{ProductID: productID})
	}
	return f.wl(), nil
}

func (f *fakeRemote) RemoveFromWishlist(ctx context.Context, productID string) (types.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("RemoveFromWishlist"); err != nil {
		return types.Wishlist{}, err
	}
	if idx := types.FindEntry(f.wishlist, productID); idx >= 0 {
		f.wishlist = append(f.wishlist[:idx], f.wishlist[idx+1:]...)
	}
	return f.wl(), nil
}

func (f *fakeRemote) ToggleWishlist(ctx context.Context, productID string) (remote.ToggleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("ToggleWishlist"); err != nil {
		return remote.ToggleResult{}, err
	}
	if idx := types.FindEntry(f.wishlist, productID); idx >= 0 {
		f.wishlist = append(f.wishlist[:idx], f.wishlist[idx+1:]...)
		return remote.ToggleResult{Action: types.ToggleRemoved, Wishlist: f.wl()}, nil
	}
	f.wishlist = append(f.wishlist, types.WishlistEntry{ProductID: productID})
	return remote.ToggleResult{Action: types.ToggleAdded, Wishlist: f.wl()}, nil
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	store  *Store
	remote *fakeRemote
	cart   *guest.CartStore
	wl     *guest.WishlistStore
	clock  *fixedClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	kv := storage.NewMemory(0)
	clk := &fixedClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	n := 0
	h := &harness{
		remote: newFakeRemote(),
		cart:   guest.NewCartStore(kv, guest.Options{}),
		wl:     guest.NewWishlistStore(kv, guest.Options{}),
		clock:  clk,
	}
	h.store = NewStore(Deps{
		GuestCart:     h.cart,
		GuestWishlist: h.wl,
		Remote:        h.remote,
		CartFetch:     coalesce.New("cart", coalesce.Options{Now: clk.Now}),
		WishlistFetch: coalesce.New("wishlist", coalesce.Options{Now: clk.Now}),
		NewID: func() string {
			n++
			return fmt.Sprintf("corr-%d", n)
		},
	})
	return h
}

func TestGuestModeRoutesToLocalStore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.store.Dispatch(ctx, AddCartItem{Line: types.CartLine{ProductID: "P1", VariantSKU: "S1", Quantity: 1, UnitPrice: 100}})
	require.NoError(t, err)
	st, err := h.store.Dispatch(ctx, AddCartItem{Line: types.CartLine{ProductID: "P1", VariantSKU: "S1", Quantity: 1, UnitPrice: 100}})
	require.NoError(t, err)

	require.Len(t, st.Cart.Items, 1)
	assert.Equal(t, 2, st.Cart.Items[0].Quantity)
	assert.Equal(t, 200.0, st.Cart.TotalAmount)
	assert.Empty(t, st.Pending)
	assert.Equal(t, 2, h.cart.Count())
	assert.Zero(t, h.remote.count("AddToCart"))

	st, err = h.store.Dispatch(ctx, ToggleWishlist{ProductID: "P2"})
	require.NoError(t, err)
	assert.True(t, st.Wishlist.Contains("P2"))
	assert.True(t, h.wl.Contains("P2"))

	lineID := st.Cart.Items[0].ID
	st, err = h.store.Dispatch(ctx, UpdateCartItem{Target: LineRef{ID: lineID}, Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, st.Cart.Items)
	assert.Empty(t, h.cart.Get())
}

func TestGuestFetchLoadsPersistedData(t *testing.T) {
	h := newHarness(t)
	h.cart.Add(types.CartLine{ProductID: "P1", VariantID: "V1", Quantity: 3, UnitPrice: 2})
	h.wl.Add(types.WishlistEntry{ProductID: "P7"})

	st, err := h.store.Dispatch(context.Background(), SetAuthenticated{Authenticated: false})
	require.NoError(t, err)

	assert.Equal(t, 3, st.Cart.ItemCount())
	assert.True(t, st.Wishlist.Contains("P7"))
}

func TestAuthenticatedMutationUsesServerSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.store.Dispatch(ctx, SetAuthenticated{Authenticated: true})
	require.NoError(t, err)
	assert.Equal(t, 1, h.remote.count("FetchCart"))

	st, err := h.store.Dispatch(ctx, AddCartItem{Line: types.CartLine{ProductID: "P1", VariantID: "V1", Quantity: 2}})
	require.NoError(t, err)

	h.remote.mu.Lock()
	want := h.remote.snapshot()
	h.remote.mu.Unlock()
	if diff := cmp.Diff(want, st.Cart); diff != "" {
		t.Errorf("cart mismatch (-server +state):\n%s", diff)
	}
	assert.Empty(t, h.cart.Get(), "account mode never writes guest data")

	st, err = h.store.Dispatch(ctx, RemoveCartItem{Target: LineRef{ID: "srv-1"}})
	require.NoError(t, err)
	assert.Empty(t, st.Cart.Items)
	assert.Equal(t, 1, h.remote.count("RemoveFromCart"))
}

func TestAuthenticatedFailureReverts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.store.Dispatch(ctx, SetAuthenticated{Authenticated: true})
	require.NoError(t, err)

	conflict := remote.Normalize("AddToCart", 409, []byte(`{"message":"insufficient stock"}`), nil)
	h.remote.fail["AddToCart"] = conflict

	var seen []int
	unsubscribe := h.store.Subscribe(func(s State) { seen = append(seen, len(s.Cart.Items)) })
	defer unsubscribe()

	st, err := h.store.Dispatch(ctx, AddCartItem{Line: types.CartLine{ProductID: "P1", VariantID: "V1"}})
	require.Error(t, err)
	assert.True(t, remote.IsConflict(err))
	assert.Empty(t, st.Cart.Items)
	assert.Empty(t, st.Pending)
	assert.Equal(t, []int{1, 0}, seen, "optimistic line shown then reverted")
}

func TestFetchesAreCoalesced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.store.Dispatch(ctx, SetAuthenticated{Authenticated: true})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := h.store.Dispatch(ctx, FetchCart{})
		require.NoError(t, err, "rejections are not errors")
	}
	assert.Equal(t, 1, h.remote.count("FetchCart"))

	require.NoError(t, h.store.RefreshCart(ctx))
	assert.Equal(t, 2, h.remote.count("FetchCart"))
}

func TestMutationInvalidatesFreshness(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.store.Dispatch(ctx, SetAuthenticated{Authenticated: true})
	require.NoError(t, err)

	_, err = h.store.Dispatch(ctx, ToggleWishlist{ProductID: "P2"})
	require.NoError(t, err)

	h.clock.Advance(2 * time.Second)
	_, err = h.store.Dispatch(ctx, FetchWishlist{})
	require.NoError(t, err)
	assert.Equal(t, 2, h.remote.count("FetchWishlist"), "fetch runs once the cooldown passes")
}

func TestFetchFailureKeepsCachedData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.wishlist = []types.WishlistEntry{{ProductID: "P9"}}
	_, err := h.store.Dispatch(ctx, SetAuthenticated{Authenticated: true})
	require.NoError(t, err)

	h.remote.fail["FetchWishlist"] = remote.Normalize("FetchWishlist", 503, nil, nil)
	require.Error(t, h.store.RefreshWishlist(ctx))

	st := h.store.State()
	assert.True(t, st.Wishlist.Contains("P9"))
	assert.Error(t, st.LastError)
}

func TestNoBackend(t *testing.T) {
	s := NewStore(Deps{})
	ctx := context.Background()

	_, err := s.Dispatch(ctx, SetAuthenticated{Authenticated: true})
	assert.ErrorIs(t, err, ErrNoBackend)

	_, err = s.Dispatch(ctx, AddWishlist{ProductID: "P1"})
	assert.ErrorIs(t, err, ErrNoBackend)
	assert.Empty(t, s.State().Wishlist.Items)
}

func TestValidationErrorReturned(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Dispatch(context.Background(), AddWishlist{ProductID: " "})
	assert.ErrorIs(t, err, types.ErrMissingProductID)
}
