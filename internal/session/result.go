package session

import (
	"fmt"
	"strings"

	"cartsync/internal/remote"
	"cartsync/internal/types"
)

// Outcome summarizes how a sync went.
type Outcome int

const (
	OutcomeNothingToSync Outcome = iota
	OutcomeSuccess
	OutcomePartial
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNothingToSync:
		return "nothing_to_sync"
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ItemError records one guest entry that could not be replayed.
type ItemError struct {
	Item string // cart line key or wishlist product id
	Err  error
}

func (e ItemError) Error() string {
	return e.Item + ": " + message(e.Err)
}

// ResourceResult is the outcome of syncing one resource.
type ResourceResult struct {
	Resource   types.Resource
	Attempted  int
	Synced     int
	Unchanged  int // cart lines already covered by the account cart (max policy)
	Errors     []ItemError
	Cleared    bool
	Refreshed  bool
	RefreshErr error
}

// Outcome classifies the result.
func (r ResourceResult) Outcome() Outcome {
	switch {
	case r.Attempted == 0:
		return OutcomeNothingToSync
	case len(r.Errors) == 0:
		return OutcomeSuccess
	case r.Synced > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

// Success is false only when every entry failed.
func (r ResourceResult) Success() bool {
	return r.Outcome() != OutcomeFailed
}

// Result is the outcome of OnLogin.
type Result struct {
	Cart     ResourceResult
	Wishlist ResourceResult
	// Skipped is set when another sync for the same login was already running.
	Skipped bool
}

// Success is the conjunction of both resources.
func (r Result) Success() bool {
	return !r.Skipped && r.Cart.Success() && r.Wishlist.Success()
}

// Errors returns every per-item error, cart first.
func (r Result) Errors() []ItemError {
	out := make([]ItemError, 0, len(r.Cart.Errors)+len(r.Wishlist.Errors))
	out = append(out, r.Cart.Errors...)
	return append(out, r.Wishlist.Errors...)
}

// Outcome combines both resources.
func (r Result) Outcome() Outcome {
	c, w := r.Cart.Outcome(), r.Wishlist.Outcome()
	switch {
	case r.Skipped:
		return OutcomeNothingToSync
	case c == OutcomeNothingToSync && w == OutcomeNothingToSync:
		return OutcomeNothingToSync
	case (c == OutcomeFailed || c == OutcomeNothingToSync) && (w == OutcomeFailed || w == OutcomeNothingToSync):
		return OutcomeFailed
	case c == OutcomeFailed || w == OutcomeFailed || c == OutcomePartial || w == OutcomePartial:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

// Summary is a one-line, user-facing description.
func (r Result) Summary() string {
	if r.Skipped {
		return "Sync already in progress."
	}

	parts := make([]string, 0, 2)
	for _, rr := range []ResourceResult{r.Cart, r.Wishlist} {
		if rr.Attempted == 0 {
			continue
		}
		if rr.Synced == rr.Attempted {
			parts = append(parts, fmt.Sprintf("%d %s", rr.Synced, plural(rr.Resource, rr.Synced)))
		} else {
			parts = append(parts, fmt.Sprintf("%d of %d %s", rr.Synced, rr.Attempted, plural(rr.Resource, rr.Attempted)))
		}
	}

	switch r.Outcome() {
	case OutcomeNothingToSync:
		return "Nothing to sync."
	case OutcomeSuccess:
		return "Synced " + strings.Join(parts, " and ") + "."
	case OutcomeFailed:
		return fmt.Sprintf("Could not sync your saved items (%d failed); they are kept on this device.", len(r.Errors()))
	default:
		errs := r.Errors()
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return fmt.Sprintf("Synced %s. %d could not be added: %s.", strings.Join(parts, " and "), len(errs), strings.Join(msgs, "; "))
	}
}

func plural(r types.Resource, n int) string {
	noun := "cart item"
	if r == types.ResourceWishlist {
		noun = "wishlist item"
	}
	if n == 1 {
		return noun
	}
	return noun + "s"
}

func message(err error) string {
	if err == nil {
		return "unknown error"
	}
	if re, ok := err.(*remote.Error); ok {
		return re.Display()
	}
	return err.Error()
}
