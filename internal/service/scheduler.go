package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Completer completes bookings whose allocation has ended.
type Completer interface {
	CompleteExpired(ctx context.Context, today time.Time) (int, error)
}

// TokenPurger deletes refresh tokens that can no longer be used.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically completes ended allocations and purges dead
// refresh tokens.
type Sweeper struct {
	Bookings Completer
	Tokens   TokenPurger // optional
	Interval time.Duration
	Log      *zap.Logger
	Now      func() time.Time
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	s.Log.Info("sweeper started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass.  Failures are logged and retried on the
// next tick.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := s.Bookings.CompleteExpired(ctx, now())
	if err != nil {
		s.Log.Error("complete expired bookings failed", zap.Error(err))
	} else if n > 0 {
		s.Log.Info("completed expired bookings", zap.Int("count", n))
	}

	if s.Tokens == nil {
		return
	}
	purged, err := s.Tokens.PurgeExpired(ctx, now().UTC())
	if err != nil {
		s.Log.Error("purge refresh tokens failed", zap.Error(err))
	} else if purged > 0 {
		s.Log.Debug("purged refresh tokens", zap.Int64("count", purged))
	}
}
