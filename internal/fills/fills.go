// Package fills decides when pending orders execute. The scanner walks the
// pending ledger on an interval, asks the price source for each distinct
// stock code once, and settles every order the fill rule accepts.
package fills

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pointstock/internal/model"
	"pointstock/internal/orders"
	"pointstock/internal/quotes"
	"pointstock/internal/types"
)

// Rule decides whether a pending order executes at the current price.
type Rule interface {
	ShouldFill(o model.Order, current decimal.Decimal) bool
}

// LimitRule fills like a limit order: buys at or below the order price,
// sells at or above it.
type LimitRule struct{}

func (LimitRule) ShouldFill(o model.Order, current decimal.Decimal) bool {
	if o.Side == types.OrderSideBuy {
		return current.LessThanOrEqual(o.Price)
	}
	return current.GreaterThanOrEqual(o.Price)
}

// HoldRule never fills. Pending orders stay pending until a cancel or the
// reconciliation sweep resolves them, which matches a venue integration
// that is switched off.
type HoldRule struct{}

func (HoldRule) ShouldFill(model.Order, decimal.Decimal) bool { return false }

type Scanner struct {
	svc      *orders.Service
	quotes   quotes.Source
	bus      *quotes.Bus
	rule     Rule
	interval time.Duration
	log      *zap.Logger
}

// NewScanner wires the scan loop. bus may be nil when nothing streams
// quotes to clients.
func NewScanner(svc *orders.Service, src quotes.Source, bus *quotes.Bus, rule Rule, interval time.Duration, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	if rule == nil {
		rule = LimitRule{}
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Scanner{svc: svc, quotes: src, bus: bus, rule: rule, interval: interval, log: log}
}

func (s *Scanner) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan runs one pass over the pending ledger. A quote outage or fill
// failure for one instrument never stops the rest of the pass.
func (s *Scanner) Scan(ctx context.Context) {
	pending, err := s.svc.AllPendingOrders(ctx)
	if err != nil {
		s.log.Error("scan: listing pending orders failed", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	prices := make(map[string]decimal.Decimal)
	failed := make(map[string]bool)
	for _, o := range pending {
		price, ok := prices[o.StockCode]
		if !ok {
			if failed[o.StockCode] {
				continue
			}
			price, err = s.quotes.Current(ctx, o.StockCode)
			if err != nil {
				failed[o.StockCode] = true
				s.log.Warn("scan: quote unavailable",
					zap.String("stock_code", o.StockCode), zap.Error(err))
				continue
			}
			prices[o.StockCode] = price
			if s.bus != nil {
				s.bus.Publish(quotes.NewQuoteEvent(o.StockCode, price.String()))
			}
		}
		if !s.rule.ShouldFill(o, price) {
			continue
		}
		if _, err := s.svc.CompletePendingOrder(ctx, o.ID); err != nil {
			s.log.Error("scan: fill failed",
				zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		s.log.Info("scan: order filled",
			zap.String("order_id", o.ID),
			zap.String("stock_code", o.StockCode),
			zap.String("price", price.String()))
	}
}
