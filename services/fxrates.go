package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"billing-backend/logger"

	"go.uber.org/zap"
)

// FallbackRate is used when the external rate service is unreachable so
// display conversion degrades gracefully instead of failing requests.
const FallbackRate = 1.0

type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// RateFetcher fetches display-currency exchange rates from an external HTTP
// endpoint and caches them per currency. Conversion is presentational only;
// stored amounts never change.
type RateFetcher struct {
	urlFormat string // e.g. https://api.frankfurter.app/latest?from=EUR&to=%s
	ttl       time.Duration
	client    *http.Client

	mu    sync.Mutex
	cache map[string]cachedRate
}

func NewRateFetcher(urlFormat string, ttl time.Duration) *RateFetcher {
	return &RateFetcher{
		urlFormat: urlFormat,
		ttl:       ttl,
		client:    &http.Client{Timeout: 5 * time.Second},
		cache:     make(map[string]cachedRate),
	}
}

// Rate returns the cached rate for currency, refreshing it when stale. On any
// fetch failure the hardcoded fallback rate is returned.
func (f *RateFetcher) Rate(currency string) float64 {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return FallbackRate
	}

	f.mu.Lock()
	cached, ok := f.cache[currency]
	f.mu.Unlock()
	if ok && time.Since(cached.fetchedAt) < f.ttl {
		return cached.rate
	}

	rate, err := f.fetch(currency)
	if err != nil {
		logger.Warn("exchange rate fetch failed, using fallback",
			zap.String("currency", currency), zap.Error(err))
		if ok {
			return cached.rate // stale beats hardcoded
		}
		return FallbackRate
	}

	f.mu.Lock()
	f.cache[currency] = cachedRate{rate: rate, fetchedAt: time.Now()}
	f.mu.Unlock()
	return rate
}

func (f *RateFetcher) fetch(currency string) (float64, error) {
	if f.urlFormat == "" {
		return 0, fmt.Errorf("rate endpoint not configured")
	}

	resp, err := f.client.Get(fmt.Sprintf(f.urlFormat, currency))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	rate, ok := payload.Rates[currency]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("no rate for %s in response", currency)
	}
	return rate, nil
}
