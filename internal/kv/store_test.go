//go:build integration

package kv

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/licitai/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(ctx context.Context, t *testing.T) *Store {
	rc := testutil.NewRedisContainer(ctx, t)
	t.Cleanup(func() { _ = rc.Terminate(ctx) })

	s, err := NewStore(Config{Addrs: []string{rc.Addr()}})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Ping(ctx))
	return s
}

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(ctx, t)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.SetWithTTL(ctx, "k", []byte("v"), time.Minute))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestStore_AppendCapped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(ctx, t)

	require.NoError(t, s.AppendCapped(ctx, "l", 3, time.Minute, "a", "b"))
	require.NoError(t, s.AppendCapped(ctx, "l", 3, time.Minute, "c", "d"))

	values, err := s.Range(ctx, "l")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, values)

	require.NoError(t, s.Delete(ctx, "l"))
	values, err = s.Range(ctx, "l")
	require.NoError(t, err)
	assert.Empty(t, values)
}
