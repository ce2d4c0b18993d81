package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/padeliga/matchday/config"
	"github.com/padeliga/matchday/live"
	"github.com/padeliga/matchday/models"
	"github.com/padeliga/matchday/notify"
	"github.com/padeliga/matchday/repositories"
)

// LeaveOutcome reports how a departure was resolved: a vacancy routed to the
// replacement resolver, a reopened waiting match, or a cancellation.
type LeaveOutcome struct {
	MatchID     int                 `json:"match_id"`
	PlayerID    int                 `json:"player_id"`
	LastMinute  bool                `json:"last_minute"`
	MatchStatus models.MatchStatus  `json:"match_status"`
	Replacement *ReplacementOutcome `json:"replacement,omitempty"`
}

type MatchService interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListMatches(ctx context.Context, statuses ...models.MatchStatus) ([]*models.Match, error)
	// Join places a player into the open match for a court slot, creating the
	// match if none exists yet. The fourth join fills the match and sends the
	// confirmation requests.
	Join(ctx context.Context, now time.Time, playerID, courtID int, scheduledAt time.Time) (*models.Match, error)
	// Leave removes a player from an active match, replacing the seat when
	// enough players remain and cancelling otherwise.
	Leave(ctx context.Context, now time.Time, matchID, playerID int) (*LeaveOutcome, error)
}

type matchService struct {
	matchRepo    repositories.MatchRepository
	playerRepo   repositories.PlayerRepository
	courtRepo    repositories.CourtRepository
	cancellation CancellationService
	replacement  ReplacementService
	sender       notify.Sender
	hub          *live.Hub
	cfg          config.EngineConfig
	locks        *MatchLocks
	logger       *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	playerRepo repositories.PlayerRepository,
	courtRepo repositories.CourtRepository,
	cancellation CancellationService,
	replacement ReplacementService,
	sender notify.Sender,
	hub *live.Hub,
	cfg config.EngineConfig,
	locks *MatchLocks,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo:    matchRepo,
		playerRepo:   playerRepo,
		courtRepo:    courtRepo,
		cancellation: cancellation,
		replacement:  replacement,
		sender:       sender,
		hub:          hub,
		cfg:          cfg,
		locks:        locks,
		logger:       logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if err := s.decorate(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *matchService) ListMatches(ctx context.Context, statuses ...models.MatchStatus) ([]*models.Match, error) {
	var matches []*models.Match
	var err error
	if len(statuses) == 0 {
		matches, err = s.matchRepo.ListActive(ctx)
	} else {
		matches, err = s.matchRepo.ListByStatus(ctx, statuses...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	for _, m := range matches {
		if err := s.decorate(ctx, m); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

func (s *matchService) Join(ctx context.Context, now time.Time, playerID, courtID int, scheduledAt time.Time) (*models.Match, error) {
	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	if !player.Available {
		return nil, ErrPlayerUnavailable
	}

	court, err := s.courtRepo.GetByID(ctx, courtID)
	if err != nil {
		if errors.Is(err, repositories.ErrCourtNotFound) {
			return nil, ErrCourtNotFound
		}
		return nil, fmt.Errorf("failed to get court: %w", err)
	}
	if !court.Active {
		return nil, ErrCourtInactive
	}
	slot := scheduledAt.Format("15:04")
	if !court.OffersDay(scheduledAt.Weekday()) || !court.OffersSlot(slot) {
		return nil, ErrSlotNotOffered
	}

	if _, err := s.matchRepo.FindActiveByPlayer(ctx, playerID); err == nil {
		return nil, ErrAlreadyInMatch
	} else if !errors.Is(err, repositories.ErrMatchNotFound) {
		return nil, fmt.Errorf("failed to check player membership: %w", err)
	}

	match, err := s.matchRepo.FindOpen(ctx, courtID, scheduledAt)
	if err != nil {
		if !errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("failed to look up open match: %w", err)
		}
		return s.openMatch(ctx, player, court, scheduledAt)
	}

	unlock := s.locks.Lock(match.ID)
	defer unlock()

	match, err = s.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload match: %w", err)
	}
	if match.Status != models.MatchStatusOpen {
		return nil, ErrMatchFull
	}
	if match.HasPlayer(playerID) {
		return nil, ErrAlreadyInMatch
	}
	if len(match.PlayerIDs) >= s.cfg.PlayersPerMatch {
		return nil, ErrMatchFull
	}
	if !LevelsCompatible(player.Level, match.AverageLevel, s.cfg.DefaultTolerance) {
		return nil, ErrLevelIncompatible
	}

	match.PlayerIDs = append(match.PlayerIDs, playerID)
	members, err := loadMembers(ctx, s.playerRepo, match.PlayerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load members of match %d: %w", match.ID, err)
	}
	match.SetLevel(memberLevels(members))

	filled := len(match.PlayerIDs) == s.cfg.PlayersPerMatch
	if filled {
		match.Status = models.MatchStatusFull
	}
	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to join match %d: %w", match.ID, err)
	}

	s.logger.Info("player joined match",
		slog.Int("match_id", match.ID),
		slog.Int("player_id", playerID),
		slog.Int("players", len(match.PlayerIDs)),
	)
	s.hub.BroadcastEvent(live.EventPlayerJoined, match.ID, map[string]int{
		"player_id": playerID,
		"players":   len(match.PlayerIDs),
	})

	if filled {
		fanOut(ctx, s.logger, s.sender, members, func(p *models.Player) string {
			return notify.InvitationMessage(p.Name, court.Name, match.ScheduledAt, now.Add(s.cfg.ConfirmationWindow))
		})
	}
	return match, nil
}

// openMatch creates a fresh waiting match seeded with its first player.
func (s *matchService) openMatch(ctx context.Context, player *models.Player, court *models.Court, scheduledAt time.Time) (*models.Match, error) {
	match := &models.Match{
		CourtID:      court.ID,
		PlayerIDs:    []int{player.ID},
		ConfirmedIDs: []int{},
		ScheduledAt:  scheduledAt,
		Status:       models.MatchStatusOpen,
	}
	match.SetLevel([]float64{player.Level})

	if err := s.matchRepo.Create(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to open match on court %d: %w", court.ID, err)
	}

	s.logger.Info("match opened",
		slog.Int("match_id", match.ID),
		slog.Int("court_id", court.ID),
		slog.Time("scheduled_at", scheduledAt),
		slog.Int("player_id", player.ID),
	)
	s.hub.BroadcastEvent(live.EventMatchCreated, match.ID, map[string]interface{}{
		"court_id":     court.ID,
		"scheduled_at": scheduledAt,
	})
	return match, nil
}

func (s *matchService) Leave(ctx context.Context, now time.Time, matchID, playerID int) (*LeaveOutcome, error) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	assessment, err := s.cancellation.AssessDeparture(now, match, playerID)
	if err != nil {
		return nil, err
	}

	outcome := &LeaveOutcome{
		MatchID:    matchID,
		PlayerID:   playerID,
		LastMinute: assessment.LastMinute,
	}

	if !assessment.Recoverable {
		// The leaver is dropped first so the cancellation notice reaches only
		// the remaining members.
		s.removeDeparting(match, playerID, now)
		if err := s.cancellation.CancelMatch(ctx, match, models.ReasonInsufficientPlayers); err != nil {
			return nil, err
		}
		outcome.MatchStatus = match.Status
		return outcome, nil
	}

	if len(match.Notifications) > 0 {
		replacement, err := s.leaveNotified(ctx, now, match, playerID)
		if err != nil {
			return nil, err
		}
		outcome.Replacement = replacement
	} else if err := s.leaveWaiting(ctx, match, playerID); err != nil {
		return nil, err
	}

	outcome.MatchStatus = match.Status
	return outcome, nil
}

// removeDeparting takes the leaver out of the member views ahead of a full
// cancellation.
func (s *matchService) removeDeparting(match *models.Match, playerID int, now time.Time) {
	for i, pid := range match.PlayerIDs {
		if pid == playerID {
			match.PlayerIDs = append(match.PlayerIDs[:i], match.PlayerIDs[i+1:]...)
			break
		}
	}
	if len(match.Notifications) > 0 {
		if record := match.Record(playerID); record != nil {
			responded := now
			record.State = models.ConfirmationRejected
			record.RespondedAt = &responded
		}
		match.SyncConfirmed()
		return
	}
	for i, pid := range match.ConfirmedIDs {
		if pid == playerID {
			match.ConfirmedIDs = append(match.ConfirmedIDs[:i], match.ConfirmedIDs[i+1:]...)
			break
		}
	}
}

// leaveNotified marks the departing member's record rejected and routes the
// vacancy to the replacement resolver.
func (s *matchService) leaveNotified(ctx context.Context, now time.Time, match *models.Match, playerID int) (*ReplacementOutcome, error) {
	if record := match.Record(playerID); record != nil {
		responded := now
		record.State = models.ConfirmationRejected
		record.RespondedAt = &responded
	}
	match.SyncConfirmed()
	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to record departure from match %d: %w", match.ID, err)
	}

	s.logger.Info("player left match",
		slog.Int("match_id", match.ID),
		slog.Int("player_id", playerID),
	)
	return s.replacement.Drive(ctx, now, match, playerID, 1)
}

// leaveWaiting removes the player from a match that has not been notified yet
// and reopens it for new joins.
func (s *matchService) leaveWaiting(ctx context.Context, match *models.Match, playerID int) error {
	for i, pid := range match.PlayerIDs {
		if pid == playerID {
			match.PlayerIDs = append(match.PlayerIDs[:i], match.PlayerIDs[i+1:]...)
			break
		}
	}
	for i, pid := range match.ConfirmedIDs {
		if pid == playerID {
			match.ConfirmedIDs = append(match.ConfirmedIDs[:i], match.ConfirmedIDs[i+1:]...)
			break
		}
	}
	match.Status = models.MatchStatusOpen

	members, err := loadMembers(ctx, s.playerRepo, match.PlayerIDs)
	if err != nil {
		return fmt.Errorf("failed to load members of match %d: %w", match.ID, err)
	}
	match.SetLevel(memberLevels(members))

	if err := s.matchRepo.Update(ctx, match); err != nil {
		return fmt.Errorf("failed to record departure from match %d: %w", match.ID, err)
	}
	s.logger.Info("player left waiting match",
		slog.Int("match_id", match.ID),
		slog.Int("player_id", playerID),
	)
	return nil
}

// decorate populates the read-side court and member views.
func (s *matchService) decorate(ctx context.Context, match *models.Match) error {
	court, err := s.courtRepo.GetByID(ctx, match.CourtID)
	if err == nil {
		match.Court = court
	} else if !errors.Is(err, repositories.ErrCourtNotFound) {
		return fmt.Errorf("failed to load court %d: %w", match.CourtID, err)
	}

	members, err := loadMembers(ctx, s.playerRepo, match.PlayerIDs)
	if err != nil {
		return fmt.Errorf("failed to load members of match %d: %w", match.ID, err)
	}
	players := make([]models.Player, 0, len(members))
	for _, m := range members {
		players = append(players, *m)
	}
	match.Players = players
	return nil
}
