// Package remote is the client for the account-bound cart and wishlist REST API.
// Every call validates its input before touching the network and returns a classified
// *Error on failure. Reads are retried on transient network errors; mutations never are.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cartsync/internal/logging"
	"cartsync/internal/types"

	"github.com/jpillora/backoff"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

const (
	DefaultTimeout   = 15 * time.Second
	defaultRetryMin  = 200 * time.Millisecond
	defaultRetryMax  = 2 * time.Second
	maxResponseBytes = 4 << 20
)

// Config holds the client settings.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	TokenSource    oauth2.TokenSource // nil sends no Authorization header
	MaxReadRetries int                // 0 disables retries
	RetryMin       time.Duration
	RetryMax       time.Duration
	HTTPClient     *http.Client // optional base client; its Transport is wrapped
}

// Client talks to the commerce backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retries    int
	retryMin   time.Duration
	retryMax   time.Duration
}

// StaticToken returns a token source for a fixed bearer token, or nil when token is empty.
func StaticToken(token string) oauth2.TokenSource {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// New creates a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := cfg.MaxReadRetries
	if retries < 0 {
		retries = 0
	}
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = defaultRetryMin
	}
	if cfg.RetryMax < cfg.RetryMin {
		cfg.RetryMax = defaultRetryMax
	}

	hc := &http.Client{Timeout: timeout}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		hc = &copied
		if hc.Timeout == 0 {
			hc.Timeout = timeout
		}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		hc.Jar = jar
	}
	if cfg.TokenSource != nil {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc.Transport = &oauth2.Transport{Source: cfg.TokenSource, Base: base}
	}

	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		retries:    retries,
		retryMin:   cfg.RetryMin,
		retryMax:   cfg.RetryMax,
	}, nil
}

// AddItemRequest adds Quantity units of a variant. Quantity ≤ 0 is sent as 1.
type AddItemRequest struct {
	ProductID  string `json:"productId"`
	VariantID  string `json:"variantId,omitempty"`
	VariantSKU string `json:"variantSku,omitempty"`
	Quantity   int    `json:"quantity"`
}

// UpdateItemRequest sets the quantity of a variant. Zero removes it.
type UpdateItemRequest struct {
	ProductID  string `json:"productId"`
	VariantID  string `json:"variantId,omitempty"`
	VariantSKU string `json:"variantSku,omitempty"`
	Quantity   int    `json:"quantity"`
}

// ItemCriteria identifies a cart line for removal.
type ItemCriteria struct {
	ProductID  string `json:"productId"`
	VariantID  string `json:"variantId,omitempty"`
	VariantSKU string `json:"variantSku,omitempty"`
}

// ListParams paginates wishlist reads. Zero values are omitted.
type ListParams struct {
	Page  int
	Limit int
}

// ToggleResult is the response of ToggleWishlist.
type ToggleResult struct {
	Action   types.ToggleAction `json:"action"`
	Wishlist types.Wishlist     `json:"wishlist"`
}

type wishlistRequest struct {
	ProductID string `json:"productId"`
}

// AddItemFromLine builds an add request from a cart line.
func AddItemFromLine(l types.CartLine) AddItemRequest {
	return AddItemRequest{ProductID: l.ProductID, VariantID: l.VariantID, VariantSKU: l.VariantSKU, Quantity: l.Quantity}
}

// ---------------------------------------------------------------------------
// Cart
// ---------------------------------------------------------------------------

// FetchCart returns the account cart.
func (c *Client) FetchCart(ctx context.Context) (types.Cart, error) {
	var cart types.Cart
	err := c.read(ctx, "FetchCart", func() error {
		cart = types.Cart{}
		return c.do(ctx, "FetchCart", http.MethodGet, "/cart", nil, nil, &cart)
	})
	return normalizeCart(cart), err
}

// AddToCart adds an item and returns the updated cart.
func (c *Client) AddToCart(ctx context.Context, req AddItemRequest) (types.Cart, error) {
	const op = "AddToCart"
	req.ProductID, req.VariantID, req.VariantSKU = trim3(req.ProductID, req.VariantID, req.VariantSKU)
	if err := validateItem(req.ProductID, req.VariantID, req.VariantSKU); err != nil {
		return types.Cart{}, validationError(op, err)
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	return c.cartMutation(ctx, op, http.MethodPost, "/cart/items", req)
}

// UpdateCartItem sets an item quantity and returns the updated cart.
func (c *Client) UpdateCartItem(ctx context.Context, req UpdateItemRequest) (types.Cart, error) {
	const op = "UpdateCartItem"
	req.ProductID, req.VariantID, req.VariantSKU = trim3(req.ProductID, req.VariantID, req.VariantSKU)
	if err := validateItem(req.ProductID, req.VariantID, req.VariantSKU); err != nil {
		return types.Cart{}, validationError(op, err)
	}
	if req.Quantity < 0 {
		return types.Cart{}, validationError(op, types.ErrInvalidQuantity)
	}
	return c.cartMutation(ctx, op, http.MethodPut, "/cart/items", req)
}

// RemoveFromCart removes an item and returns the updated cart.
func (c *Client) RemoveFromCart(ctx context.Context, req ItemCriteria) (types.Cart, error) {
	const op = "RemoveFromCart"
	req.ProductID, req.VariantID, req.VariantSKU = trim3(req.ProductID, req.VariantID, req.VariantSKU)
	if err := validateItem(req.ProductID, req.VariantID, req.VariantSKU); err != nil {
		return types.Cart{}, validationError(op, err)
	}
	return c.cartMutation(ctx, op, http.MethodDelete, "/cart/items", req)
}

// ClearCart empties the account cart.
func (c *Client) ClearCart(ctx context.Context) (types.Cart, error) {
	return c.cartMutation(ctx, "ClearCart", http.MethodDelete, "/cart", nil)
}

func (c *Client) cartMutation(ctx context.Context, op, method, path string, body any) (types.Cart, error) {
	var cart types.Cart
	if err := c.do(ctx, op, method, path, nil, body, &cart); err != nil {
		return types.Cart{}, err
	}
	return normalizeCart(cart), nil
}

// ---------------------------------------------------------------------------
// Wishlist
// ---------------------------------------------------------------------------

// FetchWishlist returns one page of the account wishlist.
func (c *Client) FetchWishlist(ctx context.Context, p ListParams) (types.Wishlist, error) {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	var wl types.Wishlist
	err := c.read(ctx, "FetchWishlist", func() error {
		wl = types.Wishlist{}
		return c.do(ctx, "FetchWishlist", http.MethodGet, "/wishlist", q, nil, &wl)
	})
	return normalizeWishlist(wl), err
}

// AddToWishlist saves a product and returns the updated wishlist.
func (c *Client) AddToWishlist(ctx context.Context, productID string) (types.Wishlist, error) {
	return c.wishlistMutation(ctx, "AddToWishlist", http.MethodPost, "/wishlist", productID)
}

// RemoveFromWishlist drops a product and returns the updated wishlist.
func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) (types.Wishlist, error) {
	return c.wishlistMutation(ctx, "RemoveFromWishlist", http.MethodDelete, "/wishlist", productID)
}

// ToggleWishlist adds or removes a product and reports which happened.
func (c *Client) ToggleWishlist(ctx context.Context, productID string) (ToggleResult, error) {
	const op = "ToggleWishlist"
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return ToggleResult{}, validationError(op, types.ErrMissingProductID)
	}
	var res ToggleResult
	if err := c.do(ctx, op, http.MethodPost, "/wishlist/toggle", nil, wishlistRequest{ProductID: pid}, &res); err != nil {
		return ToggleResult{}, err
	}
	res.Wishlist = normalizeWishlist(res.Wishlist)
	return res, nil
}

func (c *Client) wishlistMutation(ctx context.Context, op, method, path, productID string) (types.Wishlist, error) {
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return types.Wishlist{}, validationError(op, types.ErrMissingProductID)
	}
	var wl types.Wishlist
	if err := c.do(ctx, op, method, path, nil, wishlistRequest{ProductID: pid}, &wl); err != nil {
		return types.Wishlist{}, err
	}
	return normalizeWishlist(wl), nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// read runs fn, retrying transient failures with exponential backoff.
func (c *Client) read(ctx context.Context, op string, fn func() error) error {
	b := &backoff.Backoff{Min: c.retryMin, Max: c.retryMax, Factor: 2, Jitter: true}
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !IsTransient(err) || attempt >= c.retries {
			return err
		}
		wait := b.Duration()
		logging.RemoteWarn("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt+1, c.retries+1, wait, err)
		select {
		case <-ctx.Done():
			return networkError(op, ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	timer := logging.StartTimer(logging.CategoryRemote, op)
	defer timer.StopWithThreshold(2 * time.Second)

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return validationError(op, fmt.Errorf("failed to encode request: %w", err))
		}
		bodyReader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return validationError(op, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.RemoteDebug("%s %s", method, endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return networkError(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		rerr := Normalize(op, resp.StatusCode, respBody, resp.Header)
		logging.RemoteWarn("%s %s -> %d (%s): %s", method, path, resp.StatusCode, rerr.Kind, rerr.Detail)
		return rerr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: msgServer,
			Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func validateItem(productID, variantID, sku string) error {
	if productID == "" {
		return types.ErrMissingProductID
	}
	if variantID == "" && sku == "" {
		return types.ErrMissingVariant
	}
	return nil
}

func trim3(a, b, c string) (string, string, string) {
	return strings.TrimSpace(a), strings.TrimSpace(b), strings.TrimSpace(c)
}

func normalizeCart(c types.Cart) types.Cart {
	if c.Items == nil {
		c.Items = []types.CartLine{}
	}
	return c
}

func normalizeWishlist(w types.Wishlist) types.Wishlist {
	if w.Items == nil {
		w.Items = []types.WishlistEntry{}
	}
	return w
}
