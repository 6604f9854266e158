package artifactstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

const (
	sweepWorkers    = 8
	DefaultInterval = time.Hour
)

// Sweeper removes artifacts older than a TTL. Artifacts are otherwise kept
// forever, so a volume without a sweeper grows with every generation.
type Sweeper struct {
	evictor  Evictor
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
	onRemove func()
}

type SweeperOption func(*Sweeper)

func WithSweepLogger(logger *zap.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// WithRemoveHook registers a callback invoked once per removed artifact.
func WithRemoveHook(fn func()) SweeperOption {
	return func(s *Sweeper) {
		s.onRemove = fn
	}
}

func NewSweeper(evictor Evictor, ttl, interval time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		evictor:  evictor,
		ttl:      ttl,
		interval: interval,
		logger:   zap.NewNop(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run sweeps once per interval until ctx is done. A non-positive interval
// falls back to DefaultInterval.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.Error("artifact sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce removes every artifact last modified before now-ttl and returns
// how many were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	artifacts, err := s.evictor.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.ttl)
	wp := workerpool.New(sweepWorkers)
	defer wp.StopWait()

	var (
		removed atomic.Int64
		wg      sync.WaitGroup
	)
	for _, artifact := range artifacts {
		if !artifact.ModifiedAt.Before(cutoff) {
			continue
		}

		id := artifact.ID
		wg.Add(1)
		wp.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := s.evictor.Remove(ctx, id); err != nil {
				s.logger.Warn("failed to remove expired artifact", zap.String("id", id), zap.Error(err))
				return
			}

			removed.Add(1)
			if s.onRemove != nil {
				s.onRemove()
			}
		})
	}
	wg.Wait()

	count := int(removed.Load())
	if count > 0 {
		s.logger.Info("removed expired artifacts", zap.Int("count", count), zap.Duration("ttl", s.ttl))
	}

	return count, ctx.Err()
}
