// Package orders is the settlement core: buy/sell intake, point debits and
// credits, holdings aggregation, pending-order cancellation with refund,
// and the scheduled sweep that cancels stale pending orders.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pointstock/internal/model"
	"pointstock/internal/quotes"
	"pointstock/internal/storage"
	"pointstock/internal/types"
)

type Config struct {
	// AllowNegativeBalance keeps the unconditional debit on buy. When
	// false, a buy that would push the balance below zero fails with
	// ErrInsufficientBalance instead.
	AllowNegativeBalance bool
}

type Service struct {
	db     storage.DB
	quotes quotes.Source
	cfg    Config
	log    *zap.Logger
}

func NewService(db storage.DB, quoteSrc quotes.Source, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, quotes: quoteSrc, cfg: cfg, log: log}
}

// PlaceRequest describes a buy or sell intent. Status decides whether the
// order settles immediately (complete) or waits as a pending limit order.
type PlaceRequest struct {
	StockName string
	StockCode string
	Qty       int64
	Price     decimal.Decimal
	Status    types.OrderStatus
}

func (r PlaceRequest) validate() error {
	if strings.TrimSpace(r.StockCode) == "" || strings.TrimSpace(r.StockName) == "" {
		return fmt.Errorf("%w: stock name and code are required", ErrInvalidOrder)
	}
	if r.Qty <= 0 {
		return fmt.Errorf("%w: qty must be positive", ErrInvalidOrder)
	}
	if r.Price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	}
	if !r.Status.ValidInitial() {
		return fmt.Errorf("%w: status must be pending or complete", ErrInvalidOrder)
	}
	return nil
}

func (s *Service) account(ctx context.Context, userID string) (model.Account, error) {
	acc, err := s.db.View().Accounts().FindByUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Account{}, ErrAccountMissing
	}
	return acc, err
}

// Buy records a buy order and debits the account by qty*price in one unit
// of work. Holdings move only when the order is placed already complete;
// a pending buy touches the balance alone until it fills.
func (s *Service) Buy(ctx context.Context, userID string, req PlaceRequest) (model.Order, error) {
	if err := req.validate(); err != nil {
		return model.Order{}, err
	}
	acc, err := s.account(ctx, userID)
	if err != nil {
		return model.Order{}, err
	}
	total := req.Price.Mul(decimal.NewFromInt(req.Qty))

	var placed model.Order
	err = s.db.WithinTx(ctx, func(r storage.Repos) error {
		if !s.cfg.AllowNegativeBalance {
			current, err := r.Accounts().Get(ctx, acc.ID)
			if err != nil {
				return err
			}
			if current.Points.LessThan(total) {
				return ErrInsufficientBalance
			}
		}
		placed, err = r.Orders().Create(ctx, model.Order{
			UserID:     userID,
			AccountID:  acc.ID,
			StockName:  req.StockName,
			StockCode:  req.StockCode,
			Qty:        req.Qty,
			Price:      req.Price,
			TotalPrice: total,
			Side:       types.OrderSideBuy,
			Status:     req.Status,
		})
		if err != nil {
			return err
		}
		if err := r.Accounts().AdjustPoints(ctx, acc.ID, total.Neg()); err != nil {
			return err
		}
		if placed.Status != types.OrderStatusComplete {
			return nil
		}
		return s.addToHolding(ctx, r, placed)
	})
	if err != nil {
		return model.Order{}, err
	}
	s.log.Info("buy order settled",
		zap.String("order_id", placed.ID),
		zap.String("stock_code", placed.StockCode),
		zap.Int64("qty", placed.Qty),
		zap.String("status", string(placed.Status)))
	return placed, nil
}

// addToHolding applies a completed buy to the aggregate: create the row on
// the first fill, increment it afterwards.
func (s *Service) addToHolding(ctx context.Context, r storage.Repos, o model.Order) error {
	_, err := r.Holdings().Find(ctx, o.AccountID, o.StockCode)
	if errors.Is(err, storage.ErrNotFound) {
		_, err = r.Holdings().Create(ctx, model.Holding{
			UserID:     o.UserID,
			AccountID:  o.AccountID,
			StockName:  o.StockName,
			StockCode:  o.StockCode,
			Qty:        o.Qty,
			TotalPrice: o.TotalPrice,
		})
		return err
	}
	if err != nil {
		return err
	}
	return r.Holdings().Adjust(ctx, o.AccountID, o.StockCode, o.Qty, o.TotalPrice)
}

// Sell records a sell order. The position and quantity checks run before
// the transaction and again on the locked row inside it; the reservation
// check (pending sells must not outgrow the position) runs after the order
// row exists, so a violation rolls the new order back too. A completed
// sell credits the balance, decrements the aggregate and deletes it at
// zero, all in the same unit of work.
func (s *Service) Sell(ctx context.Context, userID string, req PlaceRequest) (model.Order, error) {
	if err := req.validate(); err != nil {
		return model.Order{}, err
	}
	acc, err := s.account(ctx, userID)
	if err != nil {
		return model.Order{}, err
	}
	held, err := s.db.View().Holdings().Find(ctx, acc.ID, req.StockCode)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Order{}, ErrNoPosition
	}
	if err != nil {
		return model.Order{}, err
	}
	if held.Qty < req.Qty {
		return model.Order{}, ErrInsufficientHoldings
	}
	total := req.Price.Mul(decimal.NewFromInt(req.Qty))

	var placed model.Order
	err = s.db.WithinTx(ctx, func(r storage.Repos) error {
		// Re-read under the row lock: the pre-check raced with nothing.
		locked, err := r.Holdings().Find(ctx, acc.ID, req.StockCode)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoPosition
		}
		if err != nil {
			return err
		}
		if locked.Qty < req.Qty {
			return ErrInsufficientHoldings
		}
		placed, err = r.Orders().Create(ctx, model.Order{
			UserID:     userID,
			AccountID:  acc.ID,
			StockName:  req.StockName,
			StockCode:  req.StockCode,
			Qty:        req.Qty,
			Price:      req.Price,
			TotalPrice: total,
			Side:       types.OrderSideSell,
			Status:     req.Status,
		})
		if err != nil {
			return err
		}
		reserved, err := r.Orders().SumPendingSellQty(ctx, acc.ID, req.StockCode)
		if err != nil {
			return err
		}
		if reserved > locked.Qty {
			return ErrOverReserved
		}
		if placed.Status != types.OrderStatusComplete {
			return nil
		}
		return s.settleSell(ctx, r, placed)
	})
	if err != nil {
		return model.Order{}, err
	}
	s.log.Info("sell order settled",
		zap.String("order_id", placed.ID),
		zap.String("stock_code", placed.StockCode),
		zap.Int64("qty", placed.Qty),
		zap.String("status", string(placed.Status)))
	return placed, nil
}

// settleSell applies the economic effects of a completed sell: credit the
// proceeds, decrement the aggregate, and drop the row the moment it hits
// zero so stale cost basis never survives.
func (s *Service) settleSell(ctx context.Context, r storage.Repos, o model.Order) error {
	if err := r.Accounts().AdjustPoints(ctx, o.AccountID, o.TotalPrice); err != nil {
		return err
	}
	if err := r.Holdings().Adjust(ctx, o.AccountID, o.StockCode, -o.Qty, o.TotalPrice.Neg()); err != nil {
		return err
	}
	_, err := r.Holdings().DeleteIfEmpty(ctx, o.AccountID, o.StockCode)
	return err
}

// CompletePendingOrder is the fill path used by the pending-fill scanner:
// it transitions pending -> complete and applies the side's economic
// effects in one unit of work. The status compare-and-swap makes a
// concurrent cancel or sweep win cleanly.
func (s *Service) CompletePendingOrder(ctx context.Context, orderID string) (model.Order, error) {
	var filled model.Order
	err := s.db.WithinTx(ctx, func(r storage.Repos) error {
		o, err := r.Orders().Get(ctx, orderID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if o.Status != types.OrderStatusPending {
			return ErrOrderNotFound
		}
		ok, err := r.Orders().SetStatusIfPending(ctx, o.ID, types.OrderStatusComplete)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderNotFound
		}
		o.Status = types.OrderStatusComplete
		if o.Side == types.OrderSideBuy {
			// The debit happened at placement; only holdings move now.
			if err := s.addToHolding(ctx, r, o); err != nil {
				return err
			}
		} else {
			held, err := r.Holdings().Find(ctx, o.AccountID, o.StockCode)
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNoPosition
			}
			if err != nil {
				return err
			}
			if held.Qty < o.Qty {
				return ErrInsufficientHoldings
			}
			if err := s.settleSell(ctx, r, o); err != nil {
				return err
			}
		}
		filled = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	s.log.Info("pending order filled",
		zap.String("order_id", filled.ID),
		zap.String("side", string(filled.Side)),
		zap.String("stock_code", filled.StockCode))
	return filled, nil
}
