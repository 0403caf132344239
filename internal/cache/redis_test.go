package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/albaranes/config"
)

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c, err := NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	assert.False(t, c.Enabled())
	assert.Nil(t, c.Client())
	assert.NoError(t, c.Set(ctx, "k", map[string]string{"a": "b"}))

	var out map[string]string
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrMiss)
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestCacheKeys(t *testing.T) {
	id := uuid.MustParse("6f1c2f9e-3b0a-4b8e-9d55-0a4f5a3b8c11")

	assert.Equal(t, "project:6f1c2f9e-3b0a-4b8e-9d55-0a4f5a3b8c11", ProjectCacheKey(id))
	assert.Equal(t, "client:6f1c2f9e-3b0a-4b8e-9d55-0a4f5a3b8c11", ClientCacheKey(id))
}
