// Package postgres backs storage.DB with pgx. Units of work run as
// serializable transactions; the holdings row for one (account, stock code)
// is locked with select ... for update so concurrent sells serialize.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pointstock/internal/model"
	"pointstock/internal/storage"
	"pointstock/internal/types"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DB struct {
	pool *pgxpool.Pool
}

var _ storage.DB = (*DB)(nil)

func New(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

func (d *DB) WithinTx(ctx context.Context, fn func(r storage.Repos) error) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(repos{q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (d *DB) View() storage.Repos {
	return repos{q: d.pool}
}

type repos struct {
	q    querier
	inTx bool
}

func (r repos) Accounts() storage.AccountRepo { return accountRepo{r} }
func (r repos) Orders() storage.OrderRepo     { return orderRepo{r} }
func (r repos) Holdings() storage.HoldingRepo { return holdingRepo{r} }

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

type accountRepo struct{ repos }

func (r accountRepo) Create(ctx context.Context, a model.Account) (model.Account, error) {
	err := r.q.QueryRow(ctx,
		"insert into accounts (user_id, points) values ($1, $2) returning id, created_at",
		a.UserID, a.Points,
	).Scan(&a.ID, &a.CreatedAt)
	return a, err
}

func (r accountRepo) FindByUser(ctx context.Context, userID string) (model.Account, error) {
	var a model.Account
	err := r.q.QueryRow(ctx,
		"select id, user_id, points, created_at from accounts where user_id = $1",
		userID,
	).Scan(&a.ID, &a.UserID, &a.Points, &a.CreatedAt)
	return a, notFound(err)
}

func (r accountRepo) Get(ctx context.Context, accountID string) (model.Account, error) {
	var a model.Account
	q := "select id, user_id, points, created_at from accounts where id = $1"
	if r.inTx {
		q += " for update"
	}
	err := r.q.QueryRow(ctx, q, accountID).Scan(&a.ID, &a.UserID, &a.Points, &a.CreatedAt)
	return a, notFound(err)
}

func (r accountRepo) AdjustPoints(ctx context.Context, accountID string, delta decimal.Decimal) error {
	tag, err := r.q.Exec(ctx,
		"update accounts set points = points + $1 where id = $2",
		delta, accountID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type orderRepo struct{ repos }

const orderColumns = "id, user_id, account_id, stock_name, stock_code, qty, price, total_price, side, status, created_at"

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	var side, status string
	err := row.Scan(&o.ID, &o.UserID, &o.AccountID, &o.StockName, &o.StockCode,
		&o.Qty, &o.Price, &o.TotalPrice, &side, &status, &o.CreatedAt)
	if err != nil {
		return o, err
	}
	o.Side = types.OrderSide(side)
	o.Status = types.OrderStatus(status)
	return o, nil
}

func (r orderRepo) Create(ctx context.Context, o model.Order) (model.Order, error) {
	err := r.q.QueryRow(ctx,
		`insert into orders (user_id, account_id, stock_name, stock_code, qty, price, total_price, side, status)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9) returning id, created_at`,
		o.UserID, o.AccountID, o.StockName, o.StockCode, o.Qty, o.Price, o.TotalPrice,
		string(o.Side), string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	return o, err
}

func (r orderRepo) Get(ctx context.Context, orderID string) (model.Order, error) {
	q := "select " + orderColumns + " from orders where id = $1"
	if r.inTx {
		q += " for update"
	}
	o, err := scanOrder(r.q.QueryRow(ctx, q, orderID))
	return o, notFound(err)
}

func (r orderRepo) GetPending(ctx context.Context, orderID, userID, accountID string, side types.OrderSide) (model.Order, error) {
	q := "select " + orderColumns + ` from orders
		 where id = $1 and user_id = $2 and account_id = $3 and side = $4 and status = $5`
	if r.inTx {
		q += " for update"
	}
	o, err := scanOrder(r.q.QueryRow(ctx, q,
		orderID, userID, accountID, string(side), string(types.OrderStatusPending)))
	return o, notFound(err)
}

func (r orderRepo) SumPendingSellQty(ctx context.Context, accountID, stockCode string) (int64, error) {
	var sum int64
	err := r.q.QueryRow(ctx,
		`select coalesce(sum(qty), 0) from orders
		 where account_id = $1 and stock_code = $2 and side = 'sell' and status = $3`,
		accountID, stockCode, string(types.OrderStatusPending),
	).Scan(&sum)
	return sum, err
}

func (r orderRepo) SetStatusIfPending(ctx context.Context, orderID string, next types.OrderStatus) (bool, error) {
	tag, err := r.q.Exec(ctx,
		"update orders set status = $1 where id = $2 and status = $3",
		string(next), orderID, string(types.OrderStatusPending),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r orderRepo) ListByAccount(ctx context.Context, userID, accountID, stockCode string, p storage.Page) ([]model.Order, int, error) {
	p = p.Normalize()
	var total int
	err := r.q.QueryRow(ctx,
		`select count(*) from orders
		 where user_id = $1 and account_id = $2 and ($3 = '' or stock_code = $3)`,
		userID, accountID, stockCode,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	dir := "asc"
	if p.Desc {
		dir = "desc"
	}
	rows, err := r.q.Query(ctx,
		"select "+orderColumns+` from orders
		 where user_id = $1 and account_id = $2 and ($3 = '' or stock_code = $3)
		 order by created_at `+dir+`, id `+dir+` limit $4 offset $5`,
		userID, accountID, stockCode, p.Take, p.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectOrders(rows)
	return out, total, err
}

func (r orderRepo) ListPendingByAccount(ctx context.Context, userID, accountID string) ([]model.Order, error) {
	rows, err := r.q.Query(ctx,
		"select "+orderColumns+` from orders
		 where user_id = $1 and account_id = $2 and status = $3
		 order by created_at asc, id asc`,
		userID, accountID, string(types.OrderStatusPending),
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r orderRepo) ListAllPending(ctx context.Context) ([]model.Order, error) {
	rows, err := r.q.Query(ctx,
		"select "+orderColumns+" from orders where status = $1 order by created_at asc, id asc",
		string(types.OrderStatusPending),
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r orderRepo) CompletedBuyTotals(ctx context.Context, accountID, stockCode string) (int64, decimal.Decimal, error) {
	var qty int64
	var cost decimal.Decimal
	err := r.q.QueryRow(ctx,
		`select coalesce(sum(qty), 0), coalesce(sum(total_price), 0) from orders
		 where account_id = $1 and stock_code = $2 and side = 'buy' and status = $3`,
		accountID, stockCode, string(types.OrderStatusComplete),
	).Scan(&qty, &cost)
	return qty, cost, err
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()
	out := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type holdingRepo struct{ repos }

const holdingColumns = "id, user_id, account_id, stock_name, stock_code, qty, total_price, created_at, updated_at"

func scanHolding(row pgx.Row) (model.Holding, error) {
	var h model.Holding
	err := row.Scan(&h.ID, &h.UserID, &h.AccountID, &h.StockName, &h.StockCode,
		&h.Qty, &h.TotalPrice, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

func (r holdingRepo) Create(ctx context.Context, h model.Holding) (model.Holding, error) {
	err := r.q.QueryRow(ctx,
		`insert into stock_holdings (user_id, account_id, stock_name, stock_code, qty, total_price)
		 values ($1,$2,$3,$4,$5,$6) returning id, created_at, updated_at`,
		h.UserID, h.AccountID, h.StockName, h.StockCode, h.Qty, h.TotalPrice,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

func (r holdingRepo) Find(ctx context.Context, accountID, stockCode string) (model.Holding, error) {
	q := "select " + holdingColumns + " from stock_holdings where account_id = $1 and stock_code = $2"
	if r.inTx {
		q += " for update"
	}
	h, err := scanHolding(r.q.QueryRow(ctx, q, accountID, stockCode))
	return h, notFound(err)
}

func (r holdingRepo) GetByID(ctx context.Context, holdingID, userID, accountID string) (model.Holding, error) {
	h, err := scanHolding(r.q.QueryRow(ctx,
		"select "+holdingColumns+" from stock_holdings where id = $1 and user_id = $2 and account_id = $3",
		holdingID, userID, accountID,
	))
	return h, notFound(err)
}

func (r holdingRepo) Adjust(ctx context.Context, accountID, stockCode string, qtyDelta int64, priceDelta decimal.Decimal) error {
	tag, err := r.q.Exec(ctx,
		`update stock_holdings
		 set qty = qty + $1, total_price = total_price + $2, updated_at = now()
		 where account_id = $3 and stock_code = $4`,
		qtyDelta, priceDelta, accountID, stockCode,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r holdingRepo) DeleteIfEmpty(ctx context.Context, accountID, stockCode string) (bool, error) {
	tag, err := r.q.Exec(ctx,
		"delete from stock_holdings where account_id = $1 and stock_code = $2 and qty = 0",
		accountID, stockCode,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r holdingRepo) ListByAccount(ctx context.Context, userID, accountID string) ([]model.Holding, error) {
	rows, err := r.q.Query(ctx,
		"select "+holdingColumns+` from stock_holdings
		 where user_id = $1 and account_id = $2 order by stock_code asc`,
		userID, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Holding, 0)
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
