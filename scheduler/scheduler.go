// Package scheduler drives the engine's periodic work: the high-frequency
// confirmation scan and the once-a-day matchmaking run.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/padeliga/matchday/services"
)

type Scheduler struct {
	confirmation services.ConfirmationService
	matchmaking  services.MatchmakingService
	scanInterval time.Duration
	dailyHour    int
	logger       *slog.Logger
}

func New(
	confirmation services.ConfirmationService,
	matchmaking services.MatchmakingService,
	scanInterval time.Duration,
	dailyHour int,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		confirmation: confirmation,
		matchmaking:  matchmaking,
		scanInterval: scanInterval,
		dailyHour:    dailyHour,
		logger:       logger,
	}
}

// Run blocks until the context is cancelled. The confirmation scan fires on
// every tick; the matchmaking run fires once per day at the configured hour,
// grouping players for the following day.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	now := time.Now()
	nextRun := s.nextDailyRun(now)
	s.logger.Info("scheduler started",
		slog.Duration("scan_interval", s.scanInterval),
		slog.Time("next_matchmaking_run", nextRun),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			if _, err := s.confirmation.Scan(ctx, now); err != nil {
				s.logger.Error("confirmation scan failed", slog.Any("error", err))
			}

			if !now.Before(nextRun) {
				targetDate := nextRun.AddDate(0, 0, 1)
				if _, err := s.matchmaking.RunDaily(ctx, now, targetDate); err != nil {
					s.logger.Error("matchmaking run failed", slog.Any("error", err))
				}
				nextRun = s.nextDailyRun(now)
			}
		}
	}
}

// nextDailyRun returns the next occurrence of the configured hour strictly
// after now.
func (s *Scheduler) nextDailyRun(now time.Time) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), s.dailyHour, 0, 0, 0, now.Location())
	if !run.After(now) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}
