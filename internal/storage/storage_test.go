package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// kvSuite runs the same contract against every KV implementation.
type kvSuite struct {
	suite.Suite
	newKV func(quota int64) KV
	kv    KV
}

func (s *kvSuite) SetupTest() {
	s.kv = s.newKV(0)
}

func (s *kvSuite) TearDownTest() {
	s.NoError(s.kv.Close())
}

func (s *kvSuite) TestGetMissing() {
	_, err := s.kv.Get("guest", "cart")
	s.ErrorIs(err, ErrNotFound)
}

func (s *kvSuite) TestSetGetOverwrite() {
	s.Require().NoError(s.kv.Set("guest", "cart", []byte(`{"v":1}`)))
	s.Require().NoError(s.kv.Set("guest", "cart", []byte(`{"v":2}`)))

	got, err := s.kv.Get("guest", "cart")
	s.Require().NoError(err)
	s.Equal(`{"v":2}`, string(got))
}

func (s *kvSuite) TestNamespacesAreIsolated() {
	s.Require().NoError(s.kv.Set("guest", "cart", []byte("a")))
	s.Require().NoError(s.kv.Set("other", "cart", []byte("b")))

	got, err := s.kv.Get("guest", "cart")
	s.Require().NoError(err)
	s.Equal("a", string(got))

	keys, err := s.kv.Keys("other")
	s.Require().NoError(err)
	s.Equal([]string{"cart"}, keys)
}

func (s *kvSuite) TestDelete() {
	s.Require().NoError(s.kv.Set("guest", "wishlist", []byte("x")))
	s.Require().NoError(s.kv.Delete("guest", "wishlist"))
	s.Require().NoError(s.kv.Delete("guest", "wishlist"), "deleting an absent key is fine")

	_, err := s.kv.Get("guest", "wishlist")
	s.ErrorIs(err, ErrNotFound)
}

func (s *kvSuite) TestQuota() {
	kv := s.newKV(10)
	defer kv.Close()

	s.Require().NoError(kv.Set("guest", "cart", []byte("123456")))
	err := kv.Set("guest", "wishlist", []byte("123456"))
	s.ErrorIs(err, ErrQuotaExceeded)
	s.True(IsStorageError(err))

	// Replacing a key only counts the new value.
	s.NoError(kv.Set("guest", "cart", []byte("1234567890")))
	// Other namespaces have their own budget.
	s.NoError(kv.Set("other", "cart", []byte("1234567890")))
}

func (s *kvSuite) TestClosed() {
	kv := s.newKV(0)
	s.Require().NoError(kv.Close())

	_, err := kv.Get("guest", "cart")
	s.ErrorIs(err, ErrUnavailable)
	s.ErrorIs(kv.Set("guest", "cart", nil), ErrUnavailable)
}

func TestMemoryKV(t *testing.T) {
	suite.Run(t, &kvSuite{newKV: func(q int64) KV { return NewMemory(q) }})
}

func TestSQLiteKV(t *testing.T) {
	suite.Run(t, &kvSuite{newKV: func(q int64) KV {
		s, err := NewSQLiteStore(":memory:", Options{QuotaBytes: q})
		require.NoError(t, err)
		return s
	}})
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "guest.db")

	s, err := NewSQLiteStore(path, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Set("guest", "cart", []byte(`{"version":"1.0"}`)))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path, Options{})
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("guest", "cart")
	require.NoError(t, err)
	assert.Equal(t, `{"version":"1.0"}`, string(got))
	assert.Equal(t, path, s2.Path())
}

func TestUnknownDriver(t *testing.T) {
	_, err := NewSQLiteStore(":memory:", Options{Driver: "nope"})
	require.Error(t, err)
}

func TestDisabled(t *testing.T) {
	var kv KV = Disabled{}
	_, err := kv.Get("guest", "cart")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, kv.Set("guest", "cart", []byte("x")), ErrUnavailable)
	assert.True(t, IsStorageError(kv.Delete("guest", "cart")))
	assert.NoError(t, kv.Close())
}
