package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/fhevm-session/pkg/pgutil"
	mghelper "github.com/chainsafe/fhevm-session/pkg/pgutil/migrations"
)

// exerciseStore runs the behaviour every persistent Store shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem(ctx, "k", "v1"))
	got, ok, err := s.GetItem(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", got)

	require.NoError(t, s.SetItem(ctx, "k", "v2"))
	got, _, err = s.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	require.NoError(t, s.RemoveItem(ctx, "k"))
	_, ok, err = s.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RemoveItem(ctx, "never-set"))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)
	assert.Equal(t, 0, m.Len())
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var s Store = Noop{}
	require.NoError(t, s.SetItem(ctx, "k", "v"))
	_, ok, err := s.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSealed(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	t.Run("behaves like a store", func(t *testing.T) {
		s, err := NewSealed(NewMemory(), secret)
		require.NoError(t, err)
		exerciseStore(t, s)
	})

	t.Run("values are not stored in clear", func(t *testing.T) {
		inner := NewMemory()
		s, err := NewSealed(inner, secret)
		require.NoError(t, err)
		require.NoError(t, s.SetItem(context.Background(), "k", "private-key-material"))

		raw, ok, err := inner.GetItem(context.Background(), "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotContains(t, raw, "private-key-material")
	})

	t.Run("wrong secret cannot open", func(t *testing.T) {
		inner := NewMemory()
		s, err := NewSealed(inner, secret)
		require.NoError(t, err)
		require.NoError(t, s.SetItem(context.Background(), "k", "v"))

		other, err := NewSealed(inner, []byte("another secret of sufficient size"))
		require.NoError(t, err)
		_, ok, err := other.GetItem(context.Background(), "k")
		assert.ErrorIs(t, err, ErrSealBroken)
		assert.False(t, ok)
	})

	t.Run("value bound to its key", func(t *testing.T) {
		inner := NewMemory()
		s, err := NewSealed(inner, secret)
		require.NoError(t, err)
		ctx := context.Background()
		require.NoError(t, s.SetItem(ctx, "a", "v"))
		raw, _, _ := inner.GetItem(ctx, "a")
		require.NoError(t, inner.SetItem(ctx, "b", raw))

		_, _, err = s.GetItem(ctx, "b")
		assert.ErrorIs(t, err, ErrSealBroken)
	})

	t.Run("garbage is reported", func(t *testing.T) {
		inner := NewMemory()
		require.NoError(t, inner.SetItem(context.Background(), "k", "not base64!"))
		s, err := NewSealed(inner, secret)
		require.NoError(t, err)
		_, _, err = s.GetItem(context.Background(), "k")
		assert.True(t, errors.Is(err, ErrSealBroken))
	})

	t.Run("rejects short secret and nil inner", func(t *testing.T) {
		_, err := NewSealed(NewMemory(), []byte("short"))
		assert.Error(t, err)
		_, err = NewSealed(nil, secret)
		assert.Error(t, err)
	})
}

func TestPostgres(t *testing.T) {
	db := pgutil.SetupTestDB(t)
	ctx := context.Background()
	require.NoError(t, mghelper.CreateSchema(ctx, db, &SignatureDao{}))

	s := NewPostgres(db)
	exerciseStore(t, s)

	require.NoError(t, s.SetItem(ctx, "a", "1"))
	require.NoError(t, s.SetItem(ctx, "a", "2"))
	pgutil.AssertRowCount(t, db, "decryption_signatures", 1)

	require.NoError(t, mghelper.TruncateTables(ctx, db, &SignatureDao{}))
	pgutil.AssertRowCount(t, db, "decryption_signatures", 0)
}
