// Package storage provides the durable, namespaced key/value facility that holds guest
// data on the local machine. It plays the role a browser's localStorage plays for a web
// client: small JSON values, per-namespace quota, and the possibility of being disabled.
package storage

import "errors"

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Set when the namespace would exceed its quota.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	// ErrUnavailable is returned by every call on a disabled or closed facility.
	ErrUnavailable = errors.New("storage: unavailable")
)

// KV is a namespaced key/value store.
type KV interface {
	Get(namespace, key string) ([]byte, error)
	Set(namespace, key string, value []byte) error
	Delete(namespace, key string) error
	Keys(namespace string) ([]string, error)
	Close() error
}

// IsStorageError reports whether err belongs to the storage error class.
// Callers that must never surface storage failures use it to decide what to swallow.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrUnavailable)
}

// Disabled is a facility with persistence turned off.
type Disabled struct{}

func (Disabled) Get(string, string) ([]byte, error) { return nil, ErrUnavailable }
func (Disabled) Set(string, string, []byte) error   { return ErrUnavailable }
func (Disabled) Delete(string, string) error        { return ErrUnavailable }
func (Disabled) Keys(string) ([]string, error)      { return nil, ErrUnavailable }
func (Disabled) Close() error                       { return nil }
