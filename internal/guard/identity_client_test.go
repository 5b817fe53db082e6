package guard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepai/internal/auth"
	"prepai/internal/metrics"
	"prepai/internal/model"
)

func TestIdentityClient_Exchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/refresh", r.URL.Path)

		cookie, err := r.Cookie(auth.RefreshTokenCookie)
		if err != nil || cookie.Value != "refresh-jwt" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "other", Value: "x"})
		http.SetCookie(w, auth.NewAccessCookie("access-jwt", time.Hour, true))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "access-jwt", "role": "AUTHOR"})
	}))
	defer srv.Close()

	client := NewIdentityClient(srv.URL, time.Second, metrics.New(prometheus.NewRegistry()))

	ex, err := client.Exchange(context.Background(), "refresh-jwt")
	require.NoError(t, err)
	assert.Equal(t, "access-jwt", ex.AccessToken)
	assert.Equal(t, model.RoleAuthor, ex.Role)

	_, err = client.Exchange(context.Background(), "wrong")
	assert.ErrorIs(t, err, ErrExchangeRejected)
}

func TestIdentityClient_MissingAccessCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"access-jwt","role":"USER"}`))
	}))
	defer srv.Close()

	_, err := NewIdentityClient(srv.URL, time.Second, nil).Exchange(context.Background(), "refresh-jwt")
	assert.ErrorIs(t, err, ErrAccessTokenMissing)
}

func TestIdentityClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: auth.AccessTokenCookie, Value: "access-jwt"})
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewIdentityClient(srv.URL, time.Second, nil).Exchange(context.Background(), "refresh-jwt")
	assert.Error(t, err)
}

func TestIdentityClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewIdentityClient(srv.URL, 50*time.Millisecond, nil).Exchange(context.Background(), "refresh-jwt")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestIdentityClient_BreakerOpensOnProviderFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewIdentityClient(srv.URL, time.Second, nil)
	for i := 0; i < 5; i++ {
		_, err := client.Exchange(context.Background(), "refresh-jwt")
		require.ErrorIs(t, err, ErrAccessTokenMissing)
	}

	_, err := client.Exchange(context.Background(), "refresh-jwt")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.EqualValues(t, 5, hits.Load())
}

func TestIdentityClient_RejectionsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewIdentityClient(srv.URL, time.Second, nil)
	for i := 0; i < 10; i++ {
		_, err := client.Exchange(context.Background(), "refresh-jwt")
		require.ErrorIs(t, err, ErrExchangeRejected)
	}
}
