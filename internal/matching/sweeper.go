package matching

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/benty101/Meddycare-sub000/config"
	"github.com/benty101/Meddycare-sub000/internal/store"
)

// Sweeper periodically expires proposed matches whose request has sat in
// matched past the proposal TTL. Housekeeping only; single-winner
// correctness never depends on it.
type Sweeper struct {
	cfg   config.MatchingConfig
	store store.Store
	log   *zap.Logger
}

// NewSweeper creates a proposal sweeper.
func NewSweeper(cfg config.MatchingConfig, s store.Store, log *zap.Logger) *Sweeper {
	return &Sweeper{cfg: cfg, store: s, log: log}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("proposal sweeper starting",
		zap.Duration("interval", s.cfg.SweepInterval),
		zap.Duration("proposal_ttl", s.cfg.ProposalTTL))

	timer := time.NewTimer(s.cfg.SweepInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("proposal sweeper shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.SweepInterval)
		}
	}
}

// SweepOnce performs a single expiry pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	expired, err := s.store.ExpireStaleProposals(ctx, s.cfg.ProposalTTL)
	if err != nil {
		s.log.Warn("proposal sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		s.log.Info("expired stale proposals", zap.Int("requests", expired))
	}
}
