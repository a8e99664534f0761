// Package sweeper runs the expiry sweep on an interval. The sweep itself is
// idempotent, so overlapping or repeated runs are harmless.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rezars19/rz-automedata/pkg/config"
)

// SweepRunner is the slice of the license manager the scheduler needs.
type SweepRunner interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type Sweeper struct {
	runner   SweepRunner
	interval time.Duration
	log      *zap.SugaredLogger

	stop chan struct{}
	done chan struct{}
}

func New(cfg *config.Config, runner SweepRunner, log *zap.SugaredLogger) *Sweeper {
	interval := cfg.License.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		runner:   runner,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. One sweep runs immediately so lapsed
// licenses are demoted right after a deploy rather than a full interval
// later.
func (s *Sweeper) Start() {
	go s.loop()
}

func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) loop() {
	defer close(s.done)

	s.runOnce()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := s.runner.SweepExpired(ctx)
	if err != nil {
		s.log.Errorw("expiry sweep failed", "err", err)
		return
	}
	if count > 0 {
		s.log.Infow("expiry sweep completed", "expired", count)
	}
}
