package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runContract(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "cart")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "cart", []byte(`[{"productId":"P1"}]`)))
	got, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"productId":"P1"}]`, string(got))

	// last write wins
	require.NoError(t, s.Set(ctx, "cart", []byte(`[]`)))
	got, err = s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	require.NoError(t, s.Set(ctx, "cart:u1", []byte(`null`)))
	require.NoError(t, s.Delete(ctx, "cart"))
	_, err = s.Get(ctx, "cart")
	require.ErrorIs(t, err, ErrNotFound)

	got, err = s.Get(ctx, "cart:u1")
	require.NoError(t, err)
	assert.Equal(t, "null", string(got))

	require.NoError(t, s.Delete(ctx, "missing"))
	require.NoError(t, Ping(ctx, s))
}

func TestMemory_Contract(t *testing.T) {
	t.Parallel()
	runContract(t, NewMemory())
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", []byte("abc")))

	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	v[0] = 'z'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestGormStorage_SQLiteContract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "storefront.db"))
	require.NoError(t, err)

	s, err := NewGorm(ctx, db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runContract(t, s)
}

func TestRedisStorage_Contract(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(client)
	t.Cleanup(func() { _ = s.Close() })

	runContract(t, s)
	assert.Zero(t, mr.TTL("cart:u1"))
}

func TestOpen_Drivers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Options{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &GormStorage{}, s)
	require.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Options{Driver: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisStorage{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Driver: "mongo"})
	require.Error(t, err)

	_, err = Open(ctx, Options{Driver: "redis"})
	require.Error(t, err)
}
