// Package storage defines the repositories the settlement engine works
// against and the unit-of-work boundary that keeps account balance, order
// ledger and holdings aggregate mutually consistent. Two backends implement
// it: postgres (pgx, serializable transactions) and memory (tests, dev).
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"pointstock/internal/model"
	"pointstock/internal/types"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Page is a 1-based pagination window for order listings.
type Page struct {
	Page int
	Take int
	Desc bool
}

func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Take < 1 {
		p.Take = 20
	}
	if p.Take > 200 {
		p.Take = 200
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Take
}

// Repos bundles the repositories bound to one database handle. Inside
// WithinTx every repository shares the same transaction.
type Repos interface {
	Accounts() AccountRepo
	Orders() OrderRepo
	Holdings() HoldingRepo
}

// DB is the transactional entry point. Every multi-row mutation goes
// through WithinTx: fn either commits as a whole or leaves no trace.
type DB interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// View returns auto-commit repositories for plain reads.
	View() Repos
}

type AccountRepo interface {
	Create(ctx context.Context, a model.Account) (model.Account, error)
	// FindByUser returns ErrNotFound when the user has no account.
	FindByUser(ctx context.Context, userID string) (model.Account, error)
	Get(ctx context.Context, accountID string) (model.Account, error)
	// AdjustPoints adds delta (negative for a debit) to the balance.
	AdjustPoints(ctx context.Context, accountID string, delta decimal.Decimal) error
}

type OrderRepo interface {
	Create(ctx context.Context, o model.Order) (model.Order, error)
	Get(ctx context.Context, orderID string) (model.Order, error)
	// GetPending looks up a pending order by id, owner and side; wrong id,
	// owner, side or a terminal status all come back as ErrNotFound.
	GetPending(ctx context.Context, orderID, userID, accountID string, side types.OrderSide) (model.Order, error)
	// SumPendingSellQty totals the quantity of still-pending sell orders
	// for one account and stock code.
	SumPendingSellQty(ctx context.Context, accountID, stockCode string) (int64, error)
	// SetStatusIfPending transitions status only when the order is still
	// pending, and reports whether the write happened. This is the guard
	// that keeps the reconciliation sweep idempotent.
	SetStatusIfPending(ctx context.Context, orderID string, next types.OrderStatus) (bool, error)
	// ListByAccount pages through an account's orders, optionally filtered
	// by stock code (empty means all), returning the page and the total
	// count before pagination.
	ListByAccount(ctx context.Context, userID, accountID, stockCode string, p Page) ([]model.Order, int, error)
	ListPendingByAccount(ctx context.Context, userID, accountID string) ([]model.Order, error)
	// ListAllPending returns every pending order system-wide, oldest first.
	ListAllPending(ctx context.Context) ([]model.Order, error)
	// CompletedBuyTotals sums quantity and cost of completed buy orders for
	// one account and stock code.
	CompletedBuyTotals(ctx context.Context, accountID, stockCode string) (int64, decimal.Decimal, error)
}

type HoldingRepo interface {
	Create(ctx context.Context, h model.Holding) (model.Holding, error)
	// Find returns the holding for (account, stock code), ErrNotFound when
	// none exists. Inside a transaction the row comes back locked so
	// concurrent sells against the same holding serialize.
	Find(ctx context.Context, accountID, stockCode string) (model.Holding, error)
	GetByID(ctx context.Context, holdingID, userID, accountID string) (model.Holding, error)
	// Adjust adds qtyDelta/priceDelta to the aggregate (negative to
	// decrement).
	Adjust(ctx context.Context, accountID, stockCode string, qtyDelta int64, priceDelta decimal.Decimal) error
	// DeleteIfEmpty removes the row only when its quantity is exactly zero,
	// in the same transaction as the decrement that may have emptied it.
	DeleteIfEmpty(ctx context.Context, accountID, stockCode string) (bool, error)
	ListByAccount(ctx context.Context, userID, accountID string) ([]model.Holding, error)
}
