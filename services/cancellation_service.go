package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/padeliga/matchday/config"
	"github.com/padeliga/matchday/live"
	"github.com/padeliga/matchday/models"
	"github.com/padeliga/matchday/notify"
	"github.com/padeliga/matchday/repositories"
)

// DepartureAssessment is the outcome of evaluating a player's exit from an
// active match. Recoverable means the caller should route the vacancy to the
// replacement resolver instead of cancelling outright.
type DepartureAssessment struct {
	MatchID     int  `json:"match_id"`
	PlayerID    int  `json:"player_id"`
	LastMinute  bool `json:"last_minute"`
	Remaining   int  `json:"remaining"`
	Recoverable bool `json:"recoverable"`
}

type CancellationService interface {
	// AssessDeparture classifies a departure without mutating the match.
	AssessDeparture(now time.Time, match *models.Match, playerID int) (*DepartureAssessment, error)
	// CancelMatch transitions the match to its terminal canceled state,
	// records the reason and, if configured, notifies the remaining members.
	CancelMatch(ctx context.Context, match *models.Match, reason models.CancellationReason) error
}

type cancellationService struct {
	matchRepo  repositories.MatchRepository
	playerRepo repositories.PlayerRepository
	sender     notify.Sender
	hub        *live.Hub
	cfg        config.EngineConfig
	logger     *slog.Logger
}

func NewCancellationService(
	matchRepo repositories.MatchRepository,
	playerRepo repositories.PlayerRepository,
	sender notify.Sender,
	hub *live.Hub,
	cfg config.EngineConfig,
	logger *slog.Logger,
) CancellationService {
	return &cancellationService{
		matchRepo:  matchRepo,
		playerRepo: playerRepo,
		sender:     sender,
		hub:        hub,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *cancellationService) AssessDeparture(now time.Time, match *models.Match, playerID int) (*DepartureAssessment, error) {
	if match.Status.Terminal() {
		return nil, ErrMatchAlreadyTerminal
	}
	if !match.HasPlayer(playerID) {
		return nil, ErrNotAMember
	}

	// A departure is last-minute when it falls inside the configured window
	// before the scheduled time, boundary included. Matches already in the
	// past are never last-minute.
	until := match.ScheduledAt.Sub(now)
	lastMinute := until >= 0 && until <= s.cfg.LastMinuteWindow

	// A match still gathering members only needs enough players to stay open;
	// once the group is formed it must keep enough members to be worth
	// repairing through the replacement resolver.
	keep := s.cfg.MinPlayersToKeep
	if match.Status == models.MatchStatusOpen || match.Status == models.MatchStatusFull {
		keep = s.cfg.MinPlayersToOpen
	}

	remaining := len(match.PlayerIDs) - 1
	return &DepartureAssessment{
		MatchID:     match.ID,
		PlayerID:    playerID,
		LastMinute:  lastMinute,
		Remaining:   remaining,
		Recoverable: remaining >= keep,
	}, nil
}

func (s *cancellationService) CancelMatch(ctx context.Context, match *models.Match, reason models.CancellationReason) error {
	if match.Status.Terminal() {
		return ErrMatchAlreadyTerminal
	}
	if !reason.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCancelReason, reason)
	}

	match.Status = models.MatchStatusCanceled
	match.Reason = &reason
	match.Proposal = nil
	if err := s.matchRepo.Update(ctx, match); err != nil {
		return fmt.Errorf("failed to cancel match %d: %w", match.ID, err)
	}

	s.logger.Info("match cancelled",
		slog.Int("match_id", match.ID),
		slog.String("reason", string(reason)),
	)
	s.hub.BroadcastEvent(live.EventMatchCanceled, match.ID, map[string]string{"reason": string(reason)})

	if s.cfg.NotifyOnCancellation {
		members, err := loadMembers(ctx, s.playerRepo, match.PlayerIDs)
		if err != nil {
			s.logger.Warn("failed to load members for cancellation notice",
				slog.Int("match_id", match.ID),
				slog.Any("error", err),
			)
			return nil
		}
		text := notify.CancellationMessage(reason, match.ScheduledAt)
		fanOut(ctx, s.logger, s.sender, members, func(*models.Player) string { return text })
	}
	return nil
}
