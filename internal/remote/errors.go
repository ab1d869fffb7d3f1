package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a remote failure.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindAuthRequired     Kind = "auth_required"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindRateLimit        Kind = "rate_limit"
	KindTransientNetwork Kind = "transient_network"
	KindServer           Kind = "server"
)

// Messages surfaced to the user for statuses whose backend text is not passed through.
const (
	msgAuthRequired = "must authenticate"
	msgNotFound     = "product not found"
	msgRateLimited  = "rate limited, retry later"
	msgServer       = "server error"
	msgNetwork      = "network unavailable"
	msgStock        = "insufficient stock"
	msgConflict     = "conflict"
)

// Reads surface the backend's own message whenever it sent one.
var passthroughOps = map[string]bool{
	"FetchCart":     true,
	"FetchWishlist": true,
}

// Cart mutations whose 409 means the requested quantity is not in stock.
var stockOps = map[string]bool{
	"AddToCart":      true,
	"UpdateCartItem": true,
}

// Error is the single error type returned by the Client. Every failure carries a Kind.
type Error struct {
	Kind       Kind
	Op         string // e.g. "AddToCart"
	Status     int    // HTTP status, 0 for client-side and transport errors
	Message    string // user-facing message
	Detail     string // raw backend message, if any
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Status > 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil && e.Kind != KindValidation {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Display returns the message meant for the end user.
func (e *Error) Display() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// KindOf returns the kind of err, or "" when err is not a remote error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsKind reports whether err is a remote error of kind k.
func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// IsTransient reports whether retrying the same request later might succeed.
func IsTransient(err error) bool { return IsKind(err, KindTransientNetwork) }

// IsConflict reports whether err is a 409 or insufficient-stock failure.
func IsConflict(err error) bool { return IsKind(err, KindConflict) }

// IsAuthRequired reports whether err requires the user to sign in again.
func IsAuthRequired(err error) bool { return IsKind(err, KindAuthRequired) }

func validationError(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: err.Error(), Err: err}
}

func networkError(op string, err error) *Error {
	return &Error{Kind: KindTransientNetwork, Op: op, Message: msgNetwork, Err: err}
}

// backendMessage is the union of error body shapes the API is known to return.
type backendMessage struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Code string `json:"code"`
}

// extractMessage pulls the most specific message out of an error body:
// message, then error (string or {message}), then errors[0].message.
func extractMessage(body []byte) (message, code string) {
	var m backendMessage
	if len(body) == 0 || json.Unmarshal(body, &m) != nil {
		return strings.TrimSpace(string(body)), ""
	}
	if m.Message != "" {
		return m.Message, m.Code
	}
	if len(m.Error) > 0 {
		var s string
		if json.Unmarshal(m.Error, &s) == nil && s != "" {
			return s, m.Code
		}
		var nested struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if json.Unmarshal(m.Error, &nested) == nil && nested.Message != "" {
			if m.Code == "" {
				m.Code = nested.Code
			}
			return nested.Message, m.Code
		}
	}
	for _, e := range m.Errors {
		if e.Message != "" {
			return e.Message, m.Code
		}
	}
	return "", m.Code
}

func isStockMarker(message, code string) bool {
	c := strings.ToLower(code)
	if strings.Contains(c, "stock") {
		return true
	}
	m := strings.ToLower(message)
	return strings.Contains(m, "insufficient stock") || strings.Contains(m, "out of stock")
}

// Normalize maps an HTTP failure to a classified Error. header may be nil.
func Normalize(op string, status int, body []byte, header http.Header) *Error {
	detail, code := extractMessage(body)
	e := &Error{Op: op, Status: status, Detail: detail}

	if isStockMarker(detail, code) {
		e.Kind = KindConflict
		e.Message = orDefault(detail, msgStock)
		return e
	}

	switch {
	case status == http.StatusBadRequest:
		e.Kind = KindValidation
		e.Message = orDefault(detail, "invalid request")
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthRequired
		e.Message = msgAuthRequired
	case status == http.StatusForbidden:
		e.Kind = KindAuthRequired
		e.Message = orDefault(detail, msgAuthRequired)
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = msgNotFound
	case status == http.StatusConflict:
		e.Kind = KindConflict
		if stockOps[op] {
			e.Message = orDefault(detail, msgStock)
		} else {
			e.Message = orDefault(detail, msgConflict)
		}
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.Message = msgRateLimited
		e.RetryAfter = parseRetryAfter(header)
	default:
		e.Kind = KindServer
		e.Message = msgServer
	}
	if passthroughOps[op] && json.Valid(body) && strings.TrimSpace(detail) != "" {
		e.Message = detail
	}
	return e
}

func parseRetryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
