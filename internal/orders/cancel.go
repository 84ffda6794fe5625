package orders

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pointstock/internal/model"
	"pointstock/internal/storage"
	"pointstock/internal/types"
)

// CancelBuy cancels a pending buy order owned by the user and refunds the
// debited total in the same unit of work. Already complete or canceled
// orders come back as ErrOrderNotFound.
func (s *Service) CancelBuy(ctx context.Context, userID, orderID string) (model.Order, error) {
	return s.cancel(ctx, userID, orderID, types.OrderSideBuy)
}

// CancelSell cancels a pending sell order. No points moved at placement,
// so only the status flips; the released quantity becomes sellable again
// simply because the pending reservation disappears.
func (s *Service) CancelSell(ctx context.Context, userID, orderID string) (model.Order, error) {
	return s.cancel(ctx, userID, orderID, types.OrderSideSell)
}

func (s *Service) cancel(ctx context.Context, userID, orderID string, side types.OrderSide) (model.Order, error) {
	acc, err := s.account(ctx, userID)
	if err != nil {
		return model.Order{}, err
	}
	var canceled model.Order
	err = s.db.WithinTx(ctx, func(r storage.Repos) error {
		o, err := r.Orders().GetPending(ctx, orderID, userID, acc.ID, side)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		ok, err := r.Orders().SetStatusIfPending(ctx, o.ID, types.OrderStatusCanceled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderNotFound
		}
		if side == types.OrderSideBuy {
			if err := r.Accounts().AdjustPoints(ctx, acc.ID, o.TotalPrice); err != nil {
				return err
			}
		}
		o.Status = types.OrderStatusCanceled
		canceled = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	s.log.Info("order canceled",
		zap.String("order_id", canceled.ID),
		zap.String("side", string(canceled.Side)),
		zap.String("user_id", userID))
	return canceled, nil
}
