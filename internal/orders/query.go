package orders

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pointstock/internal/model"
	"pointstock/internal/storage"
)

// OrderPage is one page of an account's order history plus the total
// count before pagination.
type OrderPage struct {
	Orders []model.Order `json:"orders"`
	Total  int           `json:"total"`
	Page   int           `json:"page"`
	Take   int           `json:"take"`
}

// ListOrders pages through every order of the user's account.
func (s *Service) ListOrders(ctx context.Context, userID string, p storage.Page) (OrderPage, error) {
	return s.listOrders(ctx, userID, "", p)
}

// ListStockOrders pages through the account's orders for one stock code.
func (s *Service) ListStockOrders(ctx context.Context, userID, stockCode string, p storage.Page) (OrderPage, error) {
	return s.listOrders(ctx, userID, stockCode, p)
}

func (s *Service) listOrders(ctx context.Context, userID, stockCode string, p storage.Page) (OrderPage, error) {
	acc, err := s.account(ctx, userID)
	if err != nil {
		return OrderPage{}, err
	}
	p = p.Normalize()
	list, total, err := s.db.View().Orders().ListByAccount(ctx, userID, acc.ID, stockCode, p)
	if err != nil {
		return OrderPage{}, err
	}
	return OrderPage{Orders: list, Total: total, Page: p.Page, Take: p.Take}, nil
}

// ListPendingOrders returns the account's still-pending orders.
func (s *Service) ListPendingOrders(ctx context.Context, userID string) ([]model.Order, error) {
	acc, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.db.View().Orders().ListPendingByAccount(ctx, userID, acc.ID)
}

// AllPendingOrders returns every pending order system-wide, oldest first.
// This is the feed the pending-fill scanner walks.
func (s *Service) AllPendingOrders(ctx context.Context) ([]model.Order, error) {
	return s.db.View().Orders().ListAllPending(ctx)
}

// HoldingView is a holding enriched with the live quote and the completed
// buy totals that back average-cost maths on the client.
type HoldingView struct {
	model.Holding
	CurrentPrice     *decimal.Decimal `json:"current_price,omitempty"`
	CompletedBuyQty  int64            `json:"completed_buy_qty"`
	CompletedBuyCost decimal.Decimal  `json:"completed_buy_cost"`
}

// ListHoldings returns the account's positions. The live quote is best
// effort: a price source outage leaves CurrentPrice empty rather than
// failing the listing.
func (s *Service) ListHoldings(ctx context.Context, userID string) ([]HoldingView, error) {
	acc, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	held, err := s.db.View().Holdings().ListByAccount(ctx, userID, acc.ID)
	if err != nil {
		return nil, err
	}
	views := make([]HoldingView, 0, len(held))
	for _, h := range held {
		views = append(views, s.enrich(ctx, h))
	}
	return views, nil
}

// GetHolding returns one position by id, enriched the same way as the
// listing.
func (s *Service) GetHolding(ctx context.Context, userID, holdingID string) (HoldingView, error) {
	acc, err := s.account(ctx, userID)
	if err != nil {
		return HoldingView{}, err
	}
	h, err := s.db.View().Holdings().GetByID(ctx, holdingID, userID, acc.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return HoldingView{}, ErrHoldingNotFound
	}
	if err != nil {
		return HoldingView{}, err
	}
	return s.enrich(ctx, h), nil
}

func (s *Service) enrich(ctx context.Context, h model.Holding) HoldingView {
	v := HoldingView{Holding: h}
	qty, cost, err := s.db.View().Orders().CompletedBuyTotals(ctx, h.AccountID, h.StockCode)
	if err != nil {
		s.log.Warn("completed buy totals unavailable",
			zap.String("stock_code", h.StockCode), zap.Error(err))
	} else {
		v.CompletedBuyQty = qty
		v.CompletedBuyCost = cost
	}
	if s.quotes == nil {
		return v
	}
	price, err := s.quotes.Current(ctx, h.StockCode)
	if err != nil {
		s.log.Warn("quote unavailable",
			zap.String("stock_code", h.StockCode), zap.Error(err))
		return v
	}
	v.CurrentPrice = &price
	return v
}
