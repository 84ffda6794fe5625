package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"pointstock/internal/model"
	"pointstock/internal/quotes"
	"pointstock/internal/storage/memory"
	"pointstock/internal/types"
)

// Random sequences of settled buys and sells must keep the aggregate in
// lockstep with the order ledger: holding qty equals buys minus sells,
// never goes negative, and the row disappears exactly at zero. The point
// balance mirrors the same flows against the opening amount.
func TestHoldingsAggregate_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		db := memoryWithAccount(rt)
		svc := NewService(db.store, quotes.NewStaticSource(), Config{AllowNegativeBalance: true}, nil)

		var heldQty, boughtQty, soldQty int64
		spent := decimal.Zero
		earned := decimal.Zero

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			qty := int64(rapid.IntRange(1, 20).Draw(rt, "qty"))
			price := decimal.NewFromInt(int64(rapid.IntRange(1, 500).Draw(rt, "price")))
			req := PlaceRequest{
				StockName: "Samsung Electronics",
				StockCode: "005930",
				Qty:       qty,
				Price:     price,
				Status:    types.OrderStatusComplete,
			}
			if rapid.Bool().Draw(rt, "sell") {
				_, err := svc.Sell(context.Background(), testUser, req)
				if qty > heldQty {
					if !errors.Is(err, ErrNoPosition) && !errors.Is(err, ErrInsufficientHoldings) {
						rt.Fatalf("oversell accepted: qty=%d held=%d err=%v", qty, heldQty, err)
					}
					continue
				}
				if err != nil {
					rt.Fatalf("sell failed: %v", err)
				}
				heldQty -= qty
				soldQty += qty
				earned = earned.Add(price.Mul(decimal.NewFromInt(qty)))
			} else {
				if _, err := svc.Buy(context.Background(), testUser, req); err != nil {
					rt.Fatalf("buy failed: %v", err)
				}
				heldQty += qty
				boughtQty += qty
				spent = spent.Add(price.Mul(decimal.NewFromInt(qty)))
			}
		}

		if heldQty != boughtQty-soldQty {
			rt.Fatalf("model drifted: held=%d bought=%d sold=%d", heldQty, boughtQty, soldQty)
		}
		h, ok := holdingState(rt, db, "005930")
		if heldQty == 0 {
			if ok {
				rt.Fatalf("zero position still has a holding row: %+v", h)
			}
		} else {
			if !ok {
				rt.Fatalf("open position has no holding row, want qty=%d", heldQty)
			}
			if h.Qty != heldQty {
				rt.Fatalf("holding qty = %d, want %d", h.Qty, heldQty)
			}
			if h.Qty < 0 {
				rt.Fatalf("holding qty went negative: %d", h.Qty)
			}
		}

		want := db.opening.Sub(spent).Add(earned)
		acc, err := db.store.View().Accounts().Get(context.Background(), db.accountID)
		if err != nil {
			rt.Fatalf("account lookup: %v", err)
		}
		if !acc.Points.Equal(want) {
			rt.Fatalf("balance = %s, want %s", acc.Points, want)
		}
	})
}

type propDB struct {
	store     *memory.Store
	accountID string
	opening   decimal.Decimal
}

func memoryWithAccount(rt *rapid.T) propDB {
	store := memory.New()
	opening := decimal.NewFromInt(int64(rapid.IntRange(0, 100000).Draw(rt, "opening")))
	acc, err := store.View().Accounts().Create(context.Background(), model.Account{
		UserID: testUser,
		Points: opening,
	})
	if err != nil {
		rt.Fatalf("account create: %v", err)
	}
	return propDB{store: store, accountID: acc.ID, opening: opening}
}

func holdingState(rt *rapid.T, db propDB, code string) (model.Holding, bool) {
	h, err := db.store.View().Holdings().Find(context.Background(), db.accountID, code)
	if err != nil {
		return model.Holding{}, false
	}
	return h, true
}
