package circulation

import (
	"context"
	"log/slog"
	"time"
)

// Job is extra housekeeping run on every sweep tick.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Sweeper runs Service.Sweep on a ticker until its context ends.
type Sweeper struct {
	service  *Service
	interval time.Duration
	jobs     []Job
	log      *slog.Logger
}

func NewSweeper(service *Service, interval time.Duration, log *slog.Logger, jobs ...Job) *Sweeper {
	return &Sweeper{service: service, interval: interval, jobs: jobs, log: log}
}

// Run sweeps once immediately and then on every tick. It blocks.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("sweeper disabled")
		return
	}
	s.log.Info("sweeper started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	res, err := s.service.Sweep(ctx)
	if err != nil {
		s.log.Error("sweep failed", "error", err)
	} else if res.Overdue > 0 || res.Expired > 0 {
		s.log.Info("sweep completed", "overdue", res.Overdue, "expired_reservations", res.Expired)
	}

	for _, j := range s.jobs {
		n, err := j.Run(ctx)
		if err != nil {
			s.log.Error("housekeeping job failed", "job", j.Name, "error", err)
			continue
		}
		if n > 0 {
			s.log.Debug("housekeeping job completed", "job", j.Name, "affected", n)
		}
	}
}
