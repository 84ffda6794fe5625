package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pointstock/internal/types"
)

func TestRunSweep_CancelsPendingAndRefundsBuys(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")

	_, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)
	pendingBuy, err := svc.Buy(context.Background(), testUser, buyReq(2, "5000", "pending"))
	require.NoError(t, err)
	pendingSell, err := svc.Sell(context.Background(), testUser, buyReq(3, "8000", "pending"))
	require.NoError(t, err)
	// 100000 - 70000 - 10000
	require.True(t, balance(t, db, acc.ID).Equal(dec("20000")))

	res := svc.RunSweep(context.Background())
	require.True(t, res.Success)
	require.Equal(t, 2, res.Cancelled)
	require.Zero(t, res.Failed)

	// The buy debit came back; the sell cancel moved nothing.
	require.True(t, balance(t, db, acc.ID).Equal(dec("30000")))

	for _, id := range []string{pendingBuy.ID, pendingSell.ID} {
		o, err := db.View().Orders().Get(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, types.OrderStatusCanceled, o.Status)
	}
}

func TestRunSweep_LeavesSettledOrdersAlone(t *testing.T) {
	svc, db, _ := newTestService(t, "100000")
	done, err := svc.Buy(context.Background(), testUser, buyReq(10, "7000", "complete"))
	require.NoError(t, err)

	res := svc.RunSweep(context.Background())
	require.True(t, res.Success)
	require.Zero(t, res.Cancelled)

	o, err := db.View().Orders().Get(context.Background(), done.ID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusComplete, o.Status)
}

func TestRunSweep_SecondRunIsNoop(t *testing.T) {
	svc, db, acc := newTestService(t, "100000")
	_, err := svc.Buy(context.Background(), testUser, buyReq(2, "5000", "pending"))
	require.NoError(t, err)

	first := svc.RunSweep(context.Background())
	require.Equal(t, 1, first.Cancelled)
	after := balance(t, db, acc.ID)

	second := svc.RunSweep(context.Background())
	require.True(t, second.Success)
	require.Zero(t, second.Cancelled, "a swept order must not be swept twice")
	require.True(t, balance(t, db, acc.ID).Equal(after), "no double refund")
}

func TestRunSweep_EmptyLedger(t *testing.T) {
	svc, _, _ := newTestService(t, "0")
	res := svc.RunSweep(context.Background())
	require.True(t, res.Success)
	require.Zero(t, res.Cancelled)
	require.Zero(t, res.Failed)
}
