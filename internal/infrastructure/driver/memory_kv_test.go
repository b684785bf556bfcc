package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKVExpiration(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	kv := NewMemoryKV()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.SetEX(ctx, "latest:u1:c1", "s1", time.Minute))
	require.NoError(t, kv.SetEX(ctx, "forever", "v", 0))

	v, err := kv.Get(ctx, "latest:u1:c1")
	require.NoError(t, err)
	assert.Equal(t, "s1", v)

	now = now.Add(time.Minute)
	_, err = kv.Get(ctx, "latest:u1:c1")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	ok, err := kv.Exists(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kv.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
