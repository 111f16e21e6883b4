package usecase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnidesk/channeledge/config"
	domainSession "github.com/omnidesk/channeledge/domains/session"
	"github.com/omnidesk/channeledge/infrastructure/sessionstore"
	"github.com/omnidesk/channeledge/usecase"
)

func signedToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "console",
		"exp": time.Now().Add(ttl).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func tokenTestConfig(apiBaseURL string) *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{APIBaseURL: apiBaseURL, RefreshPath: "/auth/refresh"},
		Auth:    config.AuthConfig{ExpirySkew: 60 * time.Second},
	}
}

func TestEnsureAccessTokenFreshTokenSkipsRefresh(t *testing.T) {
	var refreshes atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	store := sessionstore.NewMemory()
	fresh := signedToken(t, time.Hour)
	store.Put(&domainSession.CredentialSession{ID: "s1", AccessToken: fresh, RefreshToken: "r1"})

	tokens := usecase.NewTokenService(store, tokenTestConfig(backend.URL))

	got, err := tokens.EnsureAccessToken(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
	assert.Equal(t, int32(0), refreshes.Load())
}

func TestEnsureAccessTokenRefreshesNearExpiry(t *testing.T) {
	rotated := signedToken(t, time.Hour)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "r1", body["refreshToken"])
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": rotated, "refreshToken": "r2"})
	}))
	defer backend.Close()

	store := sessionstore.NewMemory()
	store.Put(&domainSession.CredentialSession{ID: "s1", AccessToken: signedToken(t, 30*time.Second), RefreshToken: "r1"})

	tokens := usecase.NewTokenService(store, tokenTestConfig(backend.URL))

	got, err := tokens.EnsureAccessToken(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, rotated, got)

	sess, ok := store.Get("s1")
	require.True(t, ok)
	assert.Equal(t, rotated, sess.AccessToken)
	assert.Equal(t, "r2", sess.RefreshToken, "rotated refresh token must be stored")
}

func TestEnsureAccessTokenSingleFlight(t *testing.T) {
	var refreshes atomic.Int32
	rotated := signedToken(t, time.Hour)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": rotated})
	}))
	defer backend.Close()

	store := sessionstore.NewMemory()
	store.Put(&domainSession.CredentialSession{ID: "s1", AccessToken: signedToken(t, 30*time.Second), RefreshToken: "r1"})

	tokens := usecase.NewTokenService(store, tokenTestConfig(backend.URL))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := tokens.EnsureAccessToken(context.Background(), "s1")
			assert.NoError(t, err)
			assert.Equal(t, rotated, got)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), refreshes.Load(), "10 concurrent callers must share one refresh")
}

func TestEnsureAccessTokenNoSession(t *testing.T) {
	tokens := usecase.NewTokenService(sessionstore.NewMemory(), tokenTestConfig("http://unused"))

	_, err := tokens.EnsureAccessToken(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestEnsureAccessTokenRefreshRejected(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()

	store := sessionstore.NewMemory()
	store.Put(&domainSession.CredentialSession{ID: "s1", AccessToken: "not-a-jwt", RefreshToken: "r1"})

	tokens := usecase.NewTokenService(store, tokenTestConfig(backend.URL))

	_, err := tokens.EnsureAccessToken(context.Background(), "s1")
	assert.Error(t, err)
}

func TestIssueTransportTokenReturnsCurrent(t *testing.T) {
	store := sessionstore.NewMemory()
	almostExpired := signedToken(t, 5*time.Second)
	store.Put(&domainSession.CredentialSession{ID: "s1", AccessToken: almostExpired, RefreshToken: "r1"})

	tokens := usecase.NewTokenService(store, tokenTestConfig("http://unused"))

	got, err := tokens.IssueTransportToken(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, almostExpired, got, "transport token is the current access token, already-expiring by contract")

	_, err = tokens.IssueTransportToken(context.Background(), "ghost")
	assert.Error(t, err)
}
