// Package memory is an in-memory storage.DB. A transaction takes the store
// lock, snapshots state, and restores the snapshot when the unit of work
// returns an error, so rollback semantics match the postgres backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pointstock/internal/model"
	"pointstock/internal/storage"
	"pointstock/internal/types"
)

type state struct {
	accounts map[string]model.Account // id -> account
	orders   map[string]model.Order   // id -> order
	orderSeq []string                 // insertion order, for stable listings
	holdings map[string]model.Holding // id -> holding
}

func newState() *state {
	return &state{
		accounts: make(map[string]model.Account),
		orders:   make(map[string]model.Order),
		holdings: make(map[string]model.Holding),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	c.orderSeq = append(c.orderSeq, st.orderSeq...)
	for k, v := range st.holdings {
		c.holdings[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ storage.DB = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// WithinTx serializes all units of work behind the store lock and restores
// the pre-transaction snapshot when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(r storage.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(repos{s: s, inTx: true}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) View() storage.Repos {
	return repos{s: s}
}

type repos struct {
	s    *Store
	inTx bool
}

func (r repos) Accounts() storage.AccountRepo { return accountRepo{r} }
func (r repos) Orders() storage.OrderRepo     { return orderRepo{r} }
func (r repos) Holdings() storage.HoldingRepo { return holdingRepo{r} }

// enter takes the store lock for auto-commit access; inside a transaction
// the lock is already held by WithinTx.
func (r repos) enter() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

type accountRepo struct{ repos }

func (r accountRepo) Create(ctx context.Context, a model.Account) (model.Account, error) {
	defer r.enter()()
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()
	r.s.st.accounts[a.ID] = a
	return a, nil
}

func (r accountRepo) FindByUser(ctx context.Context, userID string) (model.Account, error) {
	defer r.enter()()
	for _, a := range r.s.st.accounts {
		if a.UserID == userID {
			return a, nil
		}
	}
	return model.Account{}, storage.ErrNotFound
}

func (r accountRepo) Get(ctx context.Context, accountID string) (model.Account, error) {
	defer r.enter()()
	a, ok := r.s.st.accounts[accountID]
	if !ok {
		return model.Account{}, storage.ErrNotFound
	}
	return a, nil
}

func (r accountRepo) AdjustPoints(ctx context.Context, accountID string, delta decimal.Decimal) error {
	defer r.enter()()
	a, ok := r.s.st.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	a.Points = a.Points.Add(delta)
	r.s.st.accounts[accountID] = a
	return nil
}

type orderRepo struct{ repos }

func (r orderRepo) Create(ctx context.Context, o model.Order) (model.Order, error) {
	defer r.enter()()
	o.ID = uuid.NewString()
	o.CreatedAt = time.Now().UTC()
	r.s.st.orders[o.ID] = o
	r.s.st.orderSeq = append(r.s.st.orderSeq, o.ID)
	return o, nil
}

func (r orderRepo) Get(ctx context.Context, orderID string) (model.Order, error) {
	defer r.enter()()
	o, ok := r.s.st.orders[orderID]
	if !ok {
		return model.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (r orderRepo) GetPending(ctx context.Context, orderID, userID, accountID string, side types.OrderSide) (model.Order, error) {
	defer r.enter()()
	o, ok := r.s.st.orders[orderID]
	if !ok || o.UserID != userID || o.AccountID != accountID ||
		o.Side != side || o.Status != types.OrderStatusPending {
		return model.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (r orderRepo) SumPendingSellQty(ctx context.Context, accountID, stockCode string) (int64, error) {
	defer r.enter()()
	var sum int64
	for _, o := range r.s.st.orders {
		if o.AccountID == accountID && o.StockCode == stockCode &&
			o.Side == types.OrderSideSell && o.Status == types.OrderStatusPending {
			sum += o.Qty
		}
	}
	return sum, nil
}

func (r orderRepo) SetStatusIfPending(ctx context.Context, orderID string, next types.OrderStatus) (bool, error) {
	defer r.enter()()
	o, ok := r.s.st.orders[orderID]
	if !ok || o.Status != types.OrderStatusPending {
		return false, nil
	}
	o.Status = next
	r.s.st.orders[orderID] = o
	return true, nil
}

func (r orderRepo) ListByAccount(ctx context.Context, userID, accountID, stockCode string, p storage.Page) ([]model.Order, int, error) {
	defer r.enter()()
	matched := make([]model.Order, 0)
	for _, id := range r.s.st.orderSeq {
		o := r.s.st.orders[id]
		if o.UserID != userID || o.AccountID != accountID {
			continue
		}
		if stockCode != "" && o.StockCode != stockCode {
			continue
		}
		matched = append(matched, o)
	}
	if p.Desc {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	total := len(matched)
	p = p.Normalize()
	start := p.Offset()
	if start >= total {
		return []model.Order{}, total, nil
	}
	end := start + p.Take
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r orderRepo) ListPendingByAccount(ctx context.Context, userID, accountID string) ([]model.Order, error) {
	defer r.enter()()
	out := make([]model.Order, 0)
	for _, id := range r.s.st.orderSeq {
		o := r.s.st.orders[id]
		if o.UserID == userID && o.AccountID == accountID && o.Status == types.OrderStatusPending {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r orderRepo) ListAllPending(ctx context.Context) ([]model.Order, error) {
	defer r.enter()()
	out := make([]model.Order, 0)
	for _, id := range r.s.st.orderSeq {
		o := r.s.st.orders[id]
		if o.Status == types.OrderStatusPending {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r orderRepo) CompletedBuyTotals(ctx context.Context, accountID, stockCode string) (int64, decimal.Decimal, error) {
	defer r.enter()()
	var qty int64
	cost := decimal.Zero
	for _, o := range r.s.st.orders {
		if o.AccountID == accountID && o.StockCode == stockCode &&
			o.Side == types.OrderSideBuy && o.Status == types.OrderStatusComplete {
			qty += o.Qty
			cost = cost.Add(o.TotalPrice)
		}
	}
	return qty, cost, nil
}

type holdingRepo struct{ repos }

func (r holdingRepo) key(accountID, stockCode string) (model.Holding, bool) {
	for _, h := range r.s.st.holdings {
		if h.AccountID == accountID && h.StockCode == stockCode {
			return h, true
		}
	}
	return model.Holding{}, false
}

func (r holdingRepo) Create(ctx context.Context, h model.Holding) (model.Holding, error) {
	defer r.enter()()
	h.ID = uuid.NewString()
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now
	r.s.st.holdings[h.ID] = h
	return h, nil
}

func (r holdingRepo) Find(ctx context.Context, accountID, stockCode string) (model.Holding, error) {
	defer r.enter()()
	h, ok := r.key(accountID, stockCode)
	if !ok {
		return model.Holding{}, storage.ErrNotFound
	}
	return h, nil
}

func (r holdingRepo) GetByID(ctx context.Context, holdingID, userID, accountID string) (model.Holding, error) {
	defer r.enter()()
	h, ok := r.s.st.holdings[holdingID]
	if !ok || h.UserID != userID || h.AccountID != accountID {
		return model.Holding{}, storage.ErrNotFound
	}
	return h, nil
}

func (r holdingRepo) Adjust(ctx context.Context, accountID, stockCode string, qtyDelta int64, priceDelta decimal.Decimal) error {
	defer r.enter()()
	h, ok := r.key(accountID, stockCode)
	if !ok {
		return storage.ErrNotFound
	}
	h.Qty += qtyDelta
	h.TotalPrice = h.TotalPrice.Add(priceDelta)
	h.UpdatedAt = time.Now().UTC()
	r.s.st.holdings[h.ID] = h
	return nil
}

func (r holdingRepo) DeleteIfEmpty(ctx context.Context, accountID, stockCode string) (bool, error) {
	defer r.enter()()
	h, ok := r.key(accountID, stockCode)
	if !ok || h.Qty != 0 {
		return false, nil
	}
	delete(r.s.st.holdings, h.ID)
	return true, nil
}

func (r holdingRepo) ListByAccount(ctx context.Context, userID, accountID string) ([]model.Holding, error) {
	defer r.enter()()
	out := make([]model.Holding, 0)
	for _, h := range r.s.st.holdings {
		if h.UserID == userID && h.AccountID == accountID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockCode < out[j].StockCode })
	return out, nil
}
