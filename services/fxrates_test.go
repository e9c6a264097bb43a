package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateServer(t *testing.T, hits *int32, rate float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		currency := r.URL.Query().Get("to")
		fmt.Fprintf(w, `{"rates":{"%s":%g}}`, currency, rate)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRateFetchAndCache(t *testing.T) {
	var hits int32
	srv := rateServer(t, &hits, 1.08)

	fetcher := NewRateFetcher(srv.URL+"/latest?from=EUR&to=%s", time.Hour)

	require.Equal(t, 1.08, fetcher.Rate("USD"))
	require.Equal(t, 1.08, fetcher.Rate("USD"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second lookup should hit the cache")
}

func TestRateRefreshesAfterTTL(t *testing.T) {
	var hits int32
	srv := rateServer(t, &hits, 1.08)

	fetcher := NewRateFetcher(srv.URL+"/latest?from=EUR&to=%s", 0)

	fetcher.Rate("USD")
	fetcher.Rate("USD")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRateFallbackWhenUnreachable(t *testing.T) {
	fetcher := NewRateFetcher("http://127.0.0.1:1/latest?to=%s", time.Hour)
	assert.Equal(t, FallbackRate, fetcher.Rate("USD"))
}

func TestRateServesStaleOverFallback(t *testing.T) {
	var hits int32
	srv := rateServer(t, &hits, 1.08)

	fetcher := NewRateFetcher(srv.URL+"/latest?from=EUR&to=%s", 0)
	require.Equal(t, 1.08, fetcher.Rate("USD"))

	srv.Close()
	assert.Equal(t, 1.08, fetcher.Rate("USD"), "stale cached rate beats the hardcoded fallback")
}

func TestRateUnconfiguredEndpoint(t *testing.T) {
	fetcher := NewRateFetcher("", time.Hour)
	assert.Equal(t, FallbackRate, fetcher.Rate("USD"))
	assert.Equal(t, FallbackRate, fetcher.Rate(""))
}
