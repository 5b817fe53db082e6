package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"prepai/internal/cache"
)

func TestTokenStore_UnavailableRedisFailsClosed(t *testing.T) {
	store := NewTokenStore(cache.New("127.0.0.1:1", "", 0))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, store.StoreRefreshToken(ctx, "jti", "user-1", time.Hour))

	_, err := store.GetRefreshToken(ctx, "jti")
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestTokenStore_NilCacheRejectsWrites(t *testing.T) {
	store := NewTokenStore(nil)

	err := store.StoreRefreshToken(context.Background(), "jti", "user-1", time.Hour)
	assert.ErrorIs(t, err, cache.ErrUnavailable)
}
