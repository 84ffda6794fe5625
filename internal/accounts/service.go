// Package accounts manages point accounts: one per user, provisioned with
// the opening balance at registration.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pointstock/internal/model"
	"pointstock/internal/storage"
)

var ErrNotFound = errors.New("account not found")

type Service struct {
	db      storage.DB
	opening decimal.Decimal
	log     *zap.Logger
}

func NewService(db storage.DB, opening decimal.Decimal, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, opening: opening, log: log}
}

// Ensure creates the user's point account with the opening balance if it
// does not exist yet. Called on registration and safe to repeat.
func (s *Service) Ensure(ctx context.Context, userID string) (model.Account, error) {
	acc, err := s.db.View().Accounts().FindByUser(ctx, userID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.Account{}, err
	}
	acc, err = s.db.View().Accounts().Create(ctx, model.Account{
		UserID: userID,
		Points: s.opening,
	})
	if err != nil {
		return model.Account{}, fmt.Errorf("creating account: %w", err)
	}
	s.log.Info("account provisioned",
		zap.String("user_id", userID),
		zap.String("opening_points", s.opening.String()))
	return acc, nil
}

// Get returns the user's account with its current balance.
func (s *Service) Get(ctx context.Context, userID string) (model.Account, error) {
	acc, err := s.db.View().Accounts().FindByUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Account{}, ErrNotFound
	}
	return acc, err
}

// Deposit credits extra points onto the account.
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (model.Account, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.Account{}, errors.New("amount must be positive")
	}
	acc, err := s.Get(ctx, userID)
	if err != nil {
		return model.Account{}, err
	}
	err = s.db.WithinTx(ctx, func(r storage.Repos) error {
		return r.Accounts().AdjustPoints(ctx, acc.ID, amount)
	})
	if err != nil {
		return model.Account{}, err
	}
	return s.Get(ctx, userID)
}
