package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopscan/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTokenSource(t *testing.T, handler http.HandlerFunc) (*tokenSource, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ts := newTokenSource(server.Client(), server.URL, "client-id", "client-secret", zap.NewNop())
	return ts, server
}

func tokenHandler(exchanges *int64, expiresIn int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(exchanges, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "test-token",
			ExpiresIn:   expiresIn,
		})
	}
}

func TestToken_ExchangeRequest(t *testing.T) {
	ts, _ := newTestTokenSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/token/", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "expected basic auth")
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "public_data", r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "abc123", ExpiresIn: 3600})
	})

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestToken_CachedWithinTTL(t *testing.T) {
	var exchanges int64
	ts, _ := newTestTokenSource(t, tokenHandler(&exchanges, 3600))

	// N calls within the TTL-minus-margin window trigger exactly one exchange
	for i := 0; i < 10; i++ {
		token, err := ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "test-token", token)
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&exchanges))
}

func TestToken_RefreshWhenWithinSafetyMargin(t *testing.T) {
	var exchanges int64
	// TTL of 60s is entirely inside the 300s safety margin, so every call
	// must refresh
	ts, _ := newTestTokenSource(t, tokenHandler(&exchanges, 60))

	_, err := ts.Token(context.Background())
	require.NoError(t, err)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&exchanges))
}

func TestToken_SingleFlightUnderConcurrency(t *testing.T) {
	var exchanges int64
	ts, _ := newTestTokenSource(t, tokenHandler(&exchanges, 3600))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := ts.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "test-token", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&exchanges))
}

func TestToken_AuthErrorOnRejectedExchange(t *testing.T) {
	ts, _ := newTestTokenSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := ts.Token(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
}

func TestToken_AuthErrorOnMalformedBody(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		ts, _ := newTestTokenSource(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		})

		_, err := ts.Token(context.Background())
		assert.ErrorIs(t, err, domain.ErrAuthFailed)
	})

	t.Run("missing access token", func(t *testing.T) {
		ts, _ := newTestTokenSource(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(tokenResponse{ExpiresIn: 3600})
		})

		_, err := ts.Token(context.Background())
		assert.ErrorIs(t, err, domain.ErrAuthFailed)
	})
}

func TestCredential_Live(t *testing.T) {
	now := time.Now()

	t.Run("nil credential is not live", func(t *testing.T) {
		var cred *credential
		assert.False(t, cred.live(now))
	})

	t.Run("live outside safety margin", func(t *testing.T) {
		cred := &credential{token: "t", expiresAt: now.Add(time.Hour)}
		assert.True(t, cred.live(now))
	})

	t.Run("stale inside safety margin", func(t *testing.T) {
		cred := &credential{token: "t", expiresAt: now.Add(tokenSafetyMargin - time.Second)}
		assert.False(t, cred.live(now))
	})

	t.Run("stale after expiry", func(t *testing.T) {
		cred := &credential{token: "t", expiresAt: now.Add(-time.Minute)}
		assert.False(t, cred.live(now))
	})
}
