// Package quotes gives access to the external price source and streams
// observed quotes to websocket subscribers.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when the source has no price for a stock code.
var ErrUnavailable = errors.New("quote unavailable")

// Source is the external price feed. Implementations must be safe for
// concurrent use; a failed lookup for one code must not affect others.
type Source interface {
	Current(ctx context.Context, stockCode string) (decimal.Decimal, error)
}

// HTTPSource fetches quotes from a price endpoint:
// GET {base}/quote?code={stockCode} -> {"code": "...", "price": "70100"}.
type HTTPSource struct {
	base   string
	client *http.Client
}

func NewHTTPSource(base string) *HTTPSource {
	return &HTTPSource{
		base:   base,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type quotePayload struct {
	Code  string `json:"code"`
	Price string `json:"price"`
}

func (s *HTTPSource) Current(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	u := s.base + "/quote?code=" + url.QueryEscape(stockCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return decimal.Zero, ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price source returned %d", resp.StatusCode)
	}
	var payload quotePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(payload.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", payload.Price, err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrUnavailable
	}
	return price, nil
}

// StaticSource serves fixed prices set at runtime. Used by the development
// profile and by tests.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStaticSource() *StaticSource {
	return &StaticSource{prices: make(map[string]decimal.Decimal)}
}

func (s *StaticSource) Set(stockCode string, price decimal.Decimal) {
	s.mu.Lock()
	s.prices[stockCode] = price
	s.mu.Unlock()
}

func (s *StaticSource) Unset(stockCode string) {
	s.mu.Lock()
	delete(s.prices, stockCode)
	s.mu.Unlock()
}

func (s *StaticSource) Current(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	s.mu.RLock()
	price, ok := s.prices[stockCode]
	s.mu.RUnlock()
	if !ok {
		return decimal.Zero, ErrUnavailable
	}
	return price, nil
}
