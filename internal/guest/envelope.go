// Package guest is the anonymous visitor's cart and wishlist, persisted locally until
// login. Operations never return errors: unavailable, over-quota or corrupt storage
// degrades to "no guest data".
package guest

import (
	"encoding/json"
	"errors"
	"time"

	"cartsync/internal/logging"
	"cartsync/internal/storage"
	"cartsync/internal/types"

	"github.com/google/uuid"
)

const (
	DefaultNamespace = "guest"
	CartKey          = "cart"
	WishlistKey      = "wishlist"
)

// Options configures the guest stores.
type Options struct {
	Namespace string
	Retention time.Duration
	Now       func() time.Time
	NewID     func() string
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.Retention <= 0 {
		o.Retention = types.DefaultRetention
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.NewString() }
	}
	return o
}

// envelopeStore reads and writes one versioned envelope under a fixed key.
type envelopeStore[T any] struct {
	kv   storage.KV
	key  string
	opts Options
}

// read returns the envelope contents. Anything absent, unreadable, expired or of
// another schema version reads as empty, and the stale entry is deleted.
func (s *envelopeStore[T]) read() []T {
	raw, err := s.kv.Get(s.opts.Namespace, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logging.GuestWarn("Reading %s/%s failed, treating as empty: %v", s.opts.Namespace, s.key, err)
		}
		return []T{}
	}

	var env types.Envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		logging.GuestWarn("Corrupt %s envelope, discarding: %v", s.key, err)
		s.discard()
		return []T{}
	}
	if !env.Usable(s.opts.Now(), s.opts.Retention) {
		logging.GuestDebug("Discarding %s envelope (version=%q written=%s)", s.key, env.Version, env.WrittenAt().Format(time.RFC3339))
		s.discard()
		return []T{}
	}
	if env.Data == nil {
		return []T{}
	}
	return env.Data
}

// write persists data; it reports whether the write succeeded.
func (s *envelopeStore[T]) write(data []T) bool {
	raw, err := json.Marshal(types.NewEnvelope(data, s.opts.Now()))
	if err != nil {
		logging.GuestWarn("Encoding %s envelope failed: %v", s.key, err)
		return false
	}
	if err := s.kv.Set(s.opts.Namespace, s.key, raw); err != nil {
		logging.GuestWarn("Persisting %s envelope failed: %v", s.key, err)
		return false
	}
	return true
}

func (s *envelopeStore[T]) discard() {
	if err := s.kv.Delete(s.opts.Namespace, s.key); err != nil && !storage.IsStorageError(err) {
		logging.GuestWarn("Deleting %s envelope failed: %v", s.key, err)
	}
}
