package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cardrail/cardrail/card"
	"github.com/cardrail/cardrail/config"
)

func testCard() *card.Card {
	return &card.Card{
		ID:       "card-1",
		FullName: "Ada Lovelace",
		Email:    "ada@example.test",
		JobTitle: "Analyst",
		Code:     "abcd2345",
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	c, err := NewClient(config.WalletConfig{
		BaseURL:              baseURL,
		APIKey:               "test-key",
		TimeoutSeconds:       5,
		MaxRequestsPerMinute: 6000,
		AllowPrivateHosts:    true, // httptest binds to loopback
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	return c
}

func TestBuildPassSendsCardFields(t *testing.T) {
	var got passRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/passes", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.BuildPass(context.Background(), testCard()))

	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "card-1", got.SerialNumber)
	assert.Equal(t, "Ada Lovelace", got.HolderName)
	assert.Equal(t, "abcd2345", got.ShareCode)
}

func TestBuildPassSurfacesProviderMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(passError{Message: "holder name exceeds pass field limit"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.BuildPass(context.Background(), testCard())
	require.Error(t, err)
	assert.Equal(t, "holder name exceeds pass field limit", err.Error())
}

func TestBuildPassFallsBackToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.BuildPass(context.Background(), testCard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass provider returned 502")
}

func TestBuildPassHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.BuildPass(ctx, testCard())
	assert.Error(t, err)
}

func TestNewClientRejectsPrivateBaseURL(t *testing.T) {
	_, err := NewClient(config.WalletConfig{
		BaseURL:              "http://127.0.0.1:9999",
		TimeoutSeconds:       5,
		MaxRequestsPerMinute: 60,
	}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(config.WalletConfig{}, zap.NewNop().Sugar())
	assert.Error(t, err)
}
