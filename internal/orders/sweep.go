package orders

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pointstock/internal/storage"
	"pointstock/internal/types"
)

// SweepResult summarizes one reconciliation run. The sweep never fails as
// a whole: orders it could not cancel are counted and the rest proceed.
type SweepResult struct {
	Success   bool   `json:"success"`
	Cancelled int    `json:"cancelled"`
	Failed    int    `json:"failed"`
	Message   string `json:"message"`
}

// RunSweep cancels every order still pending, refunding buy debits. Each
// order runs in its own unit of work so one failure cannot poison the
// batch, and the status compare-and-swap skips orders a concurrent fill
// or cancel already resolved.
func (s *Service) RunSweep(ctx context.Context) SweepResult {
	pending, err := s.db.View().Orders().ListAllPending(ctx)
	if err != nil {
		s.log.Error("sweep: listing pending orders failed", zap.Error(err))
		return SweepResult{Message: fmt.Sprintf("listing pending orders: %v", err)}
	}

	res := SweepResult{Success: true}
	for _, o := range pending {
		err := s.db.WithinTx(ctx, func(r storage.Repos) error {
			ok, err := r.Orders().SetStatusIfPending(ctx, o.ID, types.OrderStatusCanceled)
			if err != nil {
				return err
			}
			if !ok {
				// Resolved since the listing; nothing to undo.
				return nil
			}
			if o.Side == types.OrderSideBuy {
				return r.Accounts().AdjustPoints(ctx, o.AccountID, o.TotalPrice)
			}
			return nil
		})
		if err != nil {
			res.Failed++
			s.log.Error("sweep: cancel failed",
				zap.String("order_id", o.ID),
				zap.Error(err))
			continue
		}
		res.Cancelled++
	}
	if res.Failed > 0 {
		res.Success = false
	}
	res.Message = fmt.Sprintf("cancelled %d pending orders, %d failed", res.Cancelled, res.Failed)
	s.log.Info("sweep finished",
		zap.Int("cancelled", res.Cancelled),
		zap.Int("failed", res.Failed))
	return res
}
