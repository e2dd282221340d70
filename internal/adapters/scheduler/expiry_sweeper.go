package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/config"

	"github.com/rs/zerolog"
)

// ExpirySettler settles every auction whose end time has passed
type ExpirySettler interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ExpirySweeper periodically settles auctions past their end time. It is a
// safety net behind lazy expiry on the bidding path, so a generous interval
// is fine.
type ExpirySweeper struct {
	settler  ExpirySettler
	interval time.Duration
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type ExpirySweeperParams struct {
	Settler ExpirySettler
	Config  *config.Config
	Logger  zerolog.Logger
}

func NewExpirySweeper(params ExpirySweeperParams) *ExpirySweeper {
	ctx, cancel := context.WithCancel(context.Background())

	return &ExpirySweeper{
		settler:  params.Settler,
		interval: params.Config.Sweep.Interval,
		logger:   params.Logger.With().Str("component", "expiry_sweeper").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the sweep loop
func (s *ExpirySweeper) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("Starting expiry sweeper")

	s.wg.Add(1)
	go s.sweepLoop()
}

// Stop gracefully stops the sweeper
func (s *ExpirySweeper) Stop() {
	s.logger.Info().Msg("Stopping expiry sweeper")
	s.cancel()
	s.wg.Wait()
}

func (s *ExpirySweeper) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Sweep loop stopped")
			return
		}
	}
}

func (s *ExpirySweeper) sweep() {
	settled, err := s.settler.SweepExpired(s.ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Expiry sweep failed")
		return
	}

	if settled > 0 {
		s.logger.Info().Int("settled", settled).Msg("Settled expired auctions")
	}
}
