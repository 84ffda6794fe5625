// Package reconcile schedules the daily sweep that cancels every order
// still pending at the cutoff, refunding buy debits.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pointstock/internal/orders"
)

type Sweeper struct {
	svc    *orders.Service
	hour   int
	minute int
	loc    *time.Location
	log    *zap.Logger
}

// New parses sweepTime ("15:30") and the timezone the cutoff is anchored
// in.
func New(svc *orders.Service, sweepTime, tz string, log *zap.Logger) (*Sweeper, error) {
	if log == nil {
		log = zap.NewNop()
	}
	at, err := time.Parse("15:04", sweepTime)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep time %q: %w", sweepTime, err)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep timezone %q: %w", tz, err)
	}
	return &Sweeper{
		svc:    svc,
		hour:   at.Hour(),
		minute: at.Minute(),
		loc:    loc,
		log:    log,
	}, nil
}

// Start sleeps until each trading-day cutoff and runs the sweep. The run
// itself never returns an error; failures are counted in the result.
func (s *Sweeper) Start(ctx context.Context) {
	for {
		next := s.nextCutoff(time.Now().In(s.loc))
		s.log.Info("sweep scheduled", zap.Time("at", next))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			res := s.svc.RunSweep(ctx)
			s.log.Info("scheduled sweep done",
				zap.Int("cancelled", res.Cancelled),
				zap.Int("failed", res.Failed))
		}
	}
}

// nextCutoff returns the next weekday cutoff strictly after now.
func (s *Sweeper) nextCutoff(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
