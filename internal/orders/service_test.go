package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pointstock/internal/model"
	"pointstock/internal/quotes"
	"pointstock/internal/storage"
	"pointstock/internal/storage/memory"
	"pointstock/internal/types"
)

const testUser = "user-1"

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(t *testing.T, opening string) (*Service, *memory.Store, model.Account) {
	t.Helper()
	db := memory.New()
	acc, err := db.View().Accounts().Create(context.Background(), model.Account{
		UserID: testUser,
		Points: dec(opening),
	})
	require.NoError(t, err)
	svc := NewService(db, quotes.NewStaticSource(), Config{AllowNegativeBalance: true}, nil)
	return svc, db, acc
}

func balance(t *testing.T, db *memory.Store, accountID string) decimal.Decimal {
	t.Helper()
	acc, err := db.View().Accounts().Get(context.Background(), accountID)
	require.NoError(t, err)
	return acc.Points
}

func holding(t *testing.T, db *memory.Store, accountID, code string) (model.Holding, bool) {
	t.Helper()
	h, err := db.View().Holdings().Find(context.Background(), accountID, code)
	if err != nil {
		require.ErrorIs(t, err, storage.ErrNotFound)
		return model.Holding{}, false
	}
	return h, true
}

func buyReq(qty int64, price, status string) PlaceRequest {
	return PlaceRequest{
		StockName: "Samsung Electronics",
		StockCode: "005930",
		Qty:       qty,
		Price:     dec(price),
		Status:    types.OrderStatus(status),
	}
}

func TestBuy_CompleteDebitsAndCreatesHolding(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")

	o, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusComplete, o.Status)
	require.True(t, o.TotalPrice.Equal(dec("70000")), "total = %s", o.TotalPrice)

	require.True(t, balance(t, db, acc.ID).Equal(dec("30000")))
	h, ok := holding(t, db, acc.ID, "005930")
	require.True(t, ok)
	require.EqualValues(t, 10, h.Qty)
	require.True(t, h.TotalPrice.Equal(dec("70000")))
}

func TestBuy_SecondCompleteIncrementsHolding(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")

	_, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)
	_, err = svc.Buy(context.Background(), testUser, buyReq(5, "6000", "complete"))
	require.NoError(t, err)

	h, ok := holding(t, db, acc.ID, "005930")
	require.True(t, ok)
	require.EqualValues(t, 15, h.Qty)
	require.True(t, h.TotalPrice.Equal(dec("100000")))
	require.True(t, balance(t, db, acc.ID).Equal(dec("0")))
}

func TestBuy_PendingDebitsButLeavesHoldingsAlone(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")

	o, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "pending"))
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPending, o.Status)

	require.True(t, balance(t, db, acc.ID).Equal(dec("30000")))
	_, ok := holding(t, db, acc.ID, "005930")
	require.False(t, ok)
}

func TestBuy_BalanceMayGoNegativeByDefault(t *testing.T) {
	svc, db, acc := newTestService(t, "1000")

	_, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)
	require.True(t, balance(t, db, acc.ID).Equal(dec("-69000")))
}

func TestBuy_FloorEnforcedWhenConfigured(t *testing.T) {
	db := memory.New()
	acc, err := db.View().Accounts().Create(context.Background(), model.Account{
		UserID: testUser,
		Points: dec("1000"),
	})
	require.NoError(t, err)
	svc := NewService(db, quotes.NewStaticSource(), Config{AllowNegativeBalance: false}, nil)

	_, err = svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// Nothing moved: the rejected buy left no order and no debit.
	require.True(t, balance(t, db, acc.ID).Equal(dec("1000")))
	pending, err := db.View().Orders().ListAllPending(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestBuy_NoAccount(t *testing.T) {
	svc := NewService(memory.New(), quotes.NewStaticSource(), Config{AllowNegativeBalance: true}, nil)
	_, err := svc.Buy(context.Background(), "nobody", buyReq(1, "100", "complete"))
	require.ErrorIs(t, err, ErrAccountMissing)
}

func TestBuy_Validation(t *testing.T) {
	svc, _, _ := newTestService(t, "1000")
	cases := []struct {
		name string
		req  PlaceRequest
	}{
		{"zero qty", buyReq(0, "100", "complete")},
		{"negative qty", buyReq(-3, "100", "complete")},
		{"zero price", buyReq(1, "0", "complete")},
		{"bad status", buyReq(1, "100", "canceled")},
		{"missing code", PlaceRequest{StockName: "X", Qty: 1, Price: dec("1"), Status: types.OrderStatusComplete}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Buy(context.Background(), testUser, tc.req)
			require.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestSell_CompleteCreditsAndDecrements(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")
	_, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)

	o, err := svc.Sell(context.Background(), testUser, buyReq(4, "8000", "complete"))
	require.NoError(t, err)
	require.Equal(t, types.OrderSideSell, o.Side)
	require.True(t, o.TotalPrice.Equal(dec("32000")))

	require.True(t, balance(t, db, acc.ID).Equal(dec("62000")))
	h, ok := holding(t, db, acc.ID, "005930")
	require.True(t, ok)
	require.EqualValues(t, 6, h.Qty)
	require.True(t, h.TotalPrice.Equal(dec("38000")))
}

func TestSell_FullExitDeletesHolding(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")
	_, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)

	_, err = svc.Sell(context.Background(), testUser, buyReq(10, "8000", "complete"))
	require.NoError(t, err)

	_, ok := holding(t, db, acc.ID, "005930")
	require.False(t, ok, "holding must be deleted at zero qty")
}

func TestSell_NoPosition(t *testing.T) {
	svc, _, _ := newTestService(t, "100000")
	_, err := svc.Sell(context.Background(), testUser, buyReq(1, "8000", "complete"))
	require.ErrorIs(t, err, ErrNoPosition)
}

func TestSell_QtyExceedsHoldings(t *testing.T) {
	svc, _, _ := newTestService(t, "100000")
	_, err := svc.Buy(context.Background(), testUser, buyReq(5, "7000", "complete"))
	require.NoError(t, err)

	_, err = svc.Sell(context.Background(), testUser, buyReq(6, "8000", "complete"))
	require.ErrorIs(t, err, ErrInsufficientHoldings)
}

func TestSell_PendingReservationBlocksOversell(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")
	_, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)

	_, err = svc.Sell(context.Background(), testUser, buyReq(7, "8000", "pending"))
	require.NoError(t, err)

	// 7 of 10 already reserved: a second pending sell of 4 would reserve 11.
	_, err = svc.Sell(context.Background(), testUser, buyReq(4, "8000", "pending"))
	require.ErrorIs(t, err, ErrOverReserved)

	// The rejected order rolled back with the rest of the unit of work.
	reserved, err := db.View().Orders().SumPendingSellQty(context.Background(), acc.ID, "005930")
	require.NoError(t, err)
	require.EqualValues(t, 7, reserved)

	_, err = svc.Sell(context.Background(), testUser, buyReq(3, "8000", "pending"))
	require.NoError(t, err)
}

func TestSell_PendingMovesNoPoints(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")
	_, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)
	after := balance(t, db, acc.ID)

	_, err = svc.Sell(context.Background(), testUser, buyReq(5, "8000", "pending"))
	require.NoError(t, err)
	require.True(t, balance(t, db, acc.ID).Equal(after))

	h, ok := holding(t, db, acc.ID, "005930")
	require.True(t, ok)
	require.EqualValues(t, 10, h.Qty, "pending sell must not touch the aggregate")
}

func TestCompletePendingOrder_Buy(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")
	o, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "pending"))
	require.NoError(t, err)

	filled, err := svc.CompletePendingOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusComplete, filled.Status)

	// The debit happened at placement; the fill only moves holdings.
	require.True(t, balance(t, db, acc.ID).Equal(dec("30000")))
	h, ok := holding(t, db, acc.ID, "005930")
	require.True(t, ok)
	require.EqualValues(t, 10, h.Qty)
}

func TestCompletePendingOrder_Sell(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")
	_, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)
	o, err := svc.Sell(context.Background(), testUser, buyReq(10, "8000", "pending"))
	require.NoError(t, err)

	_, err = svc.CompletePendingOrder(context.Background(), o.ID)
	require.NoError(t, err)

	require.True(t, balance(t, db, acc.ID).Equal(dec("110000")))
	_, ok := holding(t, db, acc.ID, "005930")
	require.False(t, ok)
}

func TestCompletePendingOrder_AlreadyResolved(t *testing.T) {
	svc, _, _ := newTestService(t, "100000")
	o, err := svc.Buy(context.Background(), testUser, buyReq(1, "7000", "pending"))
	require.NoError(t, err)

	_, err = svc.CancelBuy(context.Background(), testUser, o.ID)
	require.NoError(t, err)

	_, err = svc.CompletePendingOrder(context.Background(), o.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelBuy_RefundsPoints(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")
	o, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "pending"))
	require.NoError(t, err)
	require.True(t, balance(t, db, acc.ID).Equal(dec("30000")))

	canceled, err := svc.CancelBuy(context.Background(), testUser, o.ID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusCanceled, canceled.Status)
	require.True(t, balance(t, db, acc.ID).Equal(dec("100000")))
}

func TestCancelBuy_CompleteOrderRejected(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")
	o, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)

	_, err = svc.CancelBuy(context.Background(), testUser, o.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
	require.True(t, balance(t, db, acc.ID).Equal(dec("30000")), "no refund for a settled order")
}

func TestCancelBuy_WrongOwner(t *testing.T) {
	svc, db, _ := newTestService(t, "100000")
	_, err := db.View().Accounts().Create(context.Background(), model.Account{
		UserID: "user-2",
		Points: dec("0"),
	})
	require.NoError(t, err)

	o, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "pending"))
	require.NoError(t, err)

	_, err = svc.CancelBuy(context.Background(), "user-2", o.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelSell_ReleasesReservation(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")
	_, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)
	o, err := svc.Sell(context.Background(), testUser, buyReq(10, "8000", "pending"))
	require.NoError(t, err)
	before := balance(t, db, acc.ID)

	canceled, err := svc.CancelSell(context.Background(), testUser, o.ID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusCanceled, canceled.Status)
	require.True(t, balance(t, db, acc.ID).Equal(before), "sell cancel moves no points")

	// Reservation is gone: the full position is sellable again.
	_, err = svc.Sell(context.Background(), testUser, buyReq(10, "8000", "pending"))
	require.NoError(t, err)
}

func TestCancel_WrongSideRejected(t *testing.T) {
	svc, _, _ := newTestService(t, "100000")
	o, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "pending"))
	require.NoError(t, err)

	_, err = svc.CancelSell(context.Background(), testUser, o.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListHoldings_EnrichedWithQuoteAndBuyTotals(t *testing.T) {
	db := memory.New()
	_, err := db.View().Accounts().Create(context.Background(), model.Account{
		UserID: testUser,
		Points: dec("1000000"),
	})
	require.NoError(t, err)
	src := quotes.NewStaticSource()
	svc := NewService(db, src, Config{AllowNegativeBalance: true}, nil)

	_, err = svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)
	src.Set("005930", dec("7150"))

	views, err := svc.ListHoldings(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].CurrentPrice)
	require.True(t, views[0].CurrentPrice.Equal(dec("7150")))
	require.EqualValues(t, 10, views[0].CompletedBuyQty)
	require.True(t, views[0].CompletedBuyCost.Equal(dec("70000")))
}

func TestListHoldings_QuoteOutageIsNotFatal(t *testing.T) {
	svc, _, _ := newTestService(t, "100000")
	_, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)

	views, err := svc.ListHoldings(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Nil(t, views[0].CurrentPrice)
}

func TestListOrders_PaginatesAndFilters(t *testing.T) {
	svc, _, _ := newTestService(t, "10000000")
	for i := 0; i < 5; i++ {
		_, err := svc.Buy(context.Background(), testUser, buyReq(1, "7000", "complete"))
		require.NoError(t, err)
	}
	other := buyReq(1, "500", "complete")
	other.StockCode = "035720"
	other.StockName = "Kakao"
	_, err := svc.Buy(context.Background(), testUser, other)
	require.NoError(t, err)

	page, err := svc.ListOrders(context.Background(), testUser, storage.Page{Page: 1, Take: 4})
	require.NoError(t, err)
	require.Equal(t, 6, page.Total)
	require.Len(t, page.Orders, 4)

	page, err = svc.ListOrders(context.Background(), testUser, storage.Page{Page: 2, Take: 4})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)

	filtered, err := svc.ListStockOrders(context.Background(), testUser, "035720", storage.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, filtered.Total)
	require.Equal(t, "035720", filtered.Orders[0].StockCode)
}

func TestGetHolding_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t, "100000")
	_, err := svc.GetHolding(context.Background(), testUser, "missing-id")
	require.ErrorIs(t, err, ErrHoldingNotFound)
}
