package apify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/reperio/internal/providers"
)

func TestRunActorSync_DecodesDatasetItems(t *testing.T) {
	var gotToken string
	var gotInput searchInput
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotInput))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]instagramUser{
			{ID: "1", Username: "alice"},
			{ID: "2", Username: "bob"},
		})
	}))
	defer server.Close()

	client := NewClient("secret-token", WithBaseURL(server.URL))

	var items []instagramUser
	err := client.RunActorSync(context.Background(), "actor-1", searchInput{Search: "surfing", ResultsLimit: 10}, &items)
	require.NoError(t, err)

	assert.Equal(t, "secret-token", gotToken)
	assert.Equal(t, "surfing", gotInput.Search)
	require.Len(t, items, 2)
	assert.Equal(t, "alice", items[0].Username)
}

func TestRunActorSync_RateLimitCarriesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("t", WithBaseURL(server.URL))

	var items []instagramUser
	err := client.RunActorSync(context.Background(), "actor-1", searchInput{}, &items)
	require.Error(t, err)

	var rateLimit *providers.RateLimitError
	require.True(t, errors.As(err, &rateLimit))
	assert.Equal(t, 7*time.Second, rateLimit.RetryAfter)
	assert.True(t, providers.IsRetryable(err))
}

func TestRunActorSync_ServerErrorIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "actor crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("t", WithBaseURL(server.URL))

	var items []instagramUser
	err := client.RunActorSync(context.Background(), "actor-1", searchInput{}, &items)
	require.Error(t, err)

	var apiErr *providers.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "actor crashed")
	assert.True(t, providers.IsRetryable(err))
}

func TestRunActorSync_AuthFailureIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("bad", WithBaseURL(server.URL))

	var items []instagramUser
	err := client.RunActorSync(context.Background(), "actor-1", searchInput{}, &items)
	require.Error(t, err)
	assert.False(t, providers.IsRetryable(err))
}

func TestRunActorSync_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	client := NewClient("t", WithBaseURL(server.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var items []instagramUser
	err := client.RunActorSync(ctx, "actor-1", searchInput{}, &items)
	assert.Error(t, err)
}
