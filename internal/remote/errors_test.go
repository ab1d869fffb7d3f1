package remote

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"cartsync/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeByStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{"bad request passes message", 400, `{"message":"variant is archived"}`, KindValidation, "variant is archived"},
		{"bad request without body", 400, ``, KindValidation, "invalid request"},
		{"unauthorized", 401, `{"message":"jwt expired"}`, KindAuthRequired, "must authenticate"},
		{"forbidden", 403, ``, KindAuthRequired, "must authenticate"},
		{"not found", 404, `{"message":"no such product"}`, KindNotFound, "product not found"},
		{"conflict passes message", 409, `{"message":"already in wishlist"}`, KindConflict, "already in wishlist"},
		{"conflict on add defaults to stock", 409, `{}`, KindConflict, "insufficient stock"},
		{"rate limited", 429, ``, KindRateLimit, "rate limited, retry later"},
		{"server", 500, `{"message":"stack trace"}`, KindServer, "server error"},
		{"bad gateway", 502, `<html>`, KindServer, "server error"},
		{"unexpected status", 418, ``, KindServer, "server error"},
		{"stock marker on 400", 400, `{"message":"Insufficient stock for SKU-1"}`, KindConflict, "Insufficient stock for SKU-1"},
		{"stock code on 422", 422, `{"code":"OUT_OF_STOCK"}`, KindConflict, "insufficient stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Normalize("AddToCart", tt.status, []byte(tt.body), nil)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.message, err.Display())
			assert.Equal(t, tt.status, err.Status)
		})
	}
}

func TestNormalizeReadsPassBackendMessage(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{"maintenance", "FetchCart", 503, `{"message":"Cart service is under maintenance"}`, KindServer, "Cart service is under maintenance"},
		{"nested error", "FetchWishlist", 500, `{"error":{"message":"wishlist shard offline"}}`, KindServer, "wishlist shard offline"},
		{"expired session", "FetchCart", 401, `{"message":"Session expired"}`, KindAuthRequired, "Session expired"},
		{"no message", "FetchCart", 503, `{}`, KindServer, "server error"},
		{"html body", "FetchWishlist", 502, `<html>bad gateway</html>`, KindServer, "server error"},
		{"mutation keeps generic", "AddToCart", 503, `{"message":"Cart service is under maintenance"}`, KindServer, "server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Normalize(tt.op, tt.status, []byte(tt.body), nil)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.message, err.Display())
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestConflictDefaultsByOperation(t *testing.T) {
	assert.Equal(t, "insufficient stock", Normalize("AddToCart", 409, nil, nil).Display())
	assert.Equal(t, "insufficient stock", Normalize("UpdateCartItem", 409, []byte(`{}`), nil).Display())
	assert.Equal(t, "conflict", Normalize("AddToWishlist", 409, nil, nil).Display())
	assert.Equal(t, "already saved", Normalize("AddToWishlist", 409, []byte(`{"message":"already saved"}`), nil).Display())
}

func TestExtractMessageShapes(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"message":"a"}`, "a"},
		{`{"error":"b"}`, "b"},
		{`{"error":{"message":"c"}}`, "c"},
		{`{"errors":[{"message":""},{"message":"d"}]}`, "d"},
		{`{"message":"first","error":"second"}`, "first"},
		{`plain text`, "plain text"},
		{`{}`, ""},
	}
	for _, tt := range tests {
		got, _ := extractMessage([]byte(tt.body))
		assert.Equal(t, tt.want, got, tt.body)
	}
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	err := Normalize("FetchCart", http.StatusTooManyRequests, nil, h)
	assert.Equal(t, 7*time.Second, err.RetryAfter)

	h.Set("Retry-After", "garbage")
	err = Normalize("FetchCart", http.StatusTooManyRequests, nil, h)
	assert.Zero(t, err.RetryAfter)
}

func TestKindHelpers(t *testing.T) {
	base := Normalize("AddToWishlist", 409, nil, nil)
	wrapped := fmt.Errorf("replaying item: %w", base)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsTransient(wrapped))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindConflict))

	var re *Error
	require.ErrorAs(t, wrapped, &re)
	assert.Contains(t, re.Error(), "AddToWishlist: conflict (409)")
}

func TestValidationErrorUnwraps(t *testing.T) {
	err := validationError("AddToCart", types.ErrMissingVariant)
	assert.ErrorIs(t, err, types.ErrMissingVariant)
	assert.Equal(t, "AddToCart: validation: variantId or variantSku is required", err.Error())
}
