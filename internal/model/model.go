package model

import (
	"time"

	"github.com/shopspring/decimal"

	"pointstock/internal/types"
)

// Account carries a user's point balance. Points are the only currency;
// every buy debits them and every sell or refund credits them.
type Account struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Points    decimal.Decimal `json:"points"`
	CreatedAt time.Time       `json:"created_at"`
}

// Order is one buy or sell attempt. Economic fields are immutable once the
// row exists; only Status moves (pending -> complete | canceled).
type Order struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	AccountID  string            `json:"account_id"`
	StockName  string            `json:"stock_name"`
	StockCode  string            `json:"stock_code"`
	Qty        int64             `json:"qty"`
	Price      decimal.Decimal   `json:"price"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	Side       types.OrderSide   `json:"side"`
	Status     types.OrderStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Holding is the per (account, stock_code) aggregate of completed orders:
// quantity held and running cost basis. It is a materialized view over the
// order ledger, maintained in the same transaction as each fill. Qty never
// goes negative and a row with Qty == 0 is deleted rather than kept.
type Holding struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	AccountID  string          `json:"account_id"`
	StockName  string          `json:"stock_name"`
	StockCode  string          `json:"stock_code"`
	Qty        int64           `json:"qty"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
