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

// ResponseOutcome reports what a player's accept/decline was applied to.
type ResponseOutcome struct {
	MatchID     int                      `json:"match_id"`
	PlayerID    int                      `json:"player_id"`
	Proposal    bool                     `json:"proposal"` // true when the reply answered a replacement proposal
	State       models.ConfirmationState `json:"state,omitempty"`
	MatchStatus models.MatchStatus       `json:"match_status"`
	Replacement *ReplacementOutcome      `json:"replacement,omitempty"`
}

// ScanResult summarizes one pass of the periodic confirmation scan.
type ScanResult struct {
	Scanned           int `json:"scanned"`
	TimedOut          int `json:"timed_out"`
	ProposalsExpired  int `json:"proposals_expired"`
	ReplacementsBegun int `json:"replacements_begun"`
	Canceled          int `json:"canceled"`
	WaitingExpired    int `json:"waiting_expired"`
	Inconsistent      int `json:"inconsistent"`
}

type ConfirmationService interface {
	// HandleResponse applies a normalized accept/decline reply from the
	// inbound bridge. Resolving which match the reply belongs to (a pending
	// replacement proposal first, then the player's active match) is this
	// service's job, not the bridge's.
	HandleResponse(ctx context.Context, now time.Time, phone string, accept bool) (*ResponseOutcome, error)
	// Scan detects expired confirmations and proposals, drives replacement
	// for timed-out seats, and retires matches that waited too long.
	// Invoking it repeatedly with the same time is a no-op.
	Scan(ctx context.Context, now time.Time) (*ScanResult, error)
}

type confirmationService struct {
	playerRepo   repositories.PlayerRepository
	matchRepo    repositories.MatchRepository
	courtRepo    repositories.CourtRepository
	replacement  ReplacementService
	cancellation CancellationService
	sender       notify.Sender
	hub          *live.Hub
	cfg          config.EngineConfig
	locks        *MatchLocks
	logger       *slog.Logger
}

func NewConfirmationService(
	playerRepo repositories.PlayerRepository,
	matchRepo repositories.MatchRepository,
	courtRepo repositories.CourtRepository,
	replacement ReplacementService,
	cancellation CancellationService,
	sender notify.Sender,
	hub *live.Hub,
	cfg config.EngineConfig,
	locks *MatchLocks,
	logger *slog.Logger,
) ConfirmationService {
	return &confirmationService{
		playerRepo:   playerRepo,
		matchRepo:    matchRepo,
		courtRepo:    courtRepo,
		replacement:  replacement,
		cancellation: cancellation,
		sender:       sender,
		hub:          hub,
		cfg:          cfg,
		locks:        locks,
		logger:       logger,
	}
}

func (s *confirmationService) HandleResponse(ctx context.Context, now time.Time, phone string, accept bool) (*ResponseOutcome, error) {
	player, err := s.playerRepo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to resolve player by phone: %w", err)
	}

	// A pending replacement proposal takes precedence: the candidate is not
	// a member yet, so the reply cannot belong to anything else.
	if match, err := s.matchRepo.FindByProposalCandidate(ctx, player.ID); err == nil {
		return s.handleProposalReply(ctx, now, match.ID, player, accept)
	} else if !errors.Is(err, repositories.ErrMatchNotFound) {
		return nil, fmt.Errorf("failed to look up proposals for player %d: %w", player.ID, err)
	}

	match, err := s.matchRepo.FindActiveByPlayer(ctx, player.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrNoPendingConfirmation
		}
		return nil, fmt.Errorf("failed to look up active match for player %d: %w", player.ID, err)
	}

	unlock := s.locks.Lock(match.ID)
	defer unlock()

	// Re-read under the lock: a concurrent scan may have advanced the match.
	match, err = s.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload match: %w", err)
	}
	if match.Status.Terminal() {
		return nil, ErrMatchAlreadyTerminal
	}
	if !match.HasPlayer(player.ID) {
		return nil, ErrNotAMember
	}

	if len(match.Notifications) > 0 {
		return s.applyRecordResponse(ctx, now, match, player, accept)
	}
	return s.applyLegacyResponse(ctx, now, match, player, accept)
}

func (s *confirmationService) handleProposalReply(ctx context.Context, now time.Time, matchID int, player *models.Player, accept bool) (*ResponseOutcome, error) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload match: %w", err)
	}

	outcome, err := s.replacement.HandleProposalResponse(ctx, now, match, player, accept)
	if err != nil {
		return nil, err
	}
	return &ResponseOutcome{
		MatchID:     match.ID,
		PlayerID:    player.ID,
		Proposal:    true,
		MatchStatus: match.Status,
		Replacement: outcome,
	}, nil
}

// applyRecordResponse advances the player's confirmation record in a match
// created by the batch matchmaking path.
func (s *confirmationService) applyRecordResponse(ctx context.Context, now time.Time, match *models.Match, player *models.Player, accept bool) (*ResponseOutcome, error) {
	if !match.RecordsConsistent() {
		s.logger.Error("notified match has malformed confirmation records",
			slog.Int("match_id", match.ID),
			slog.Int("players", len(match.PlayerIDs)),
			slog.Int("records", len(match.Notifications)),
		)
		return nil, ErrInconsistentRecords
	}

	record := match.Record(player.ID)
	if record.State != models.ConfirmationPending {
		return nil, ErrAlreadyConfirmed
	}

	responded := now
	record.RespondedAt = &responded

	if accept {
		record.State = models.ConfirmationConfirmed
		match.SyncConfirmed()

		promoted := false
		if match.Status == models.MatchStatusNotified && match.AllConfirmed(s.cfg.PlayersPerMatch) {
			match.Status = models.MatchStatusConfirmed
			promoted = true
		}
		if err := s.matchRepo.Update(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to store confirmation for match %d: %w", match.ID, err)
		}
		if promoted {
			s.announceAllConfirmed(ctx, match)
		}
		return &ResponseOutcome{
			MatchID:     match.ID,
			PlayerID:    player.ID,
			State:       record.State,
			MatchStatus: match.Status,
		}, nil
	}

	record.State = models.ConfirmationRejected
	match.SyncConfirmed()
	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to store rejection for match %d: %w", match.ID, err)
	}

	replacement, err := s.replacement.Drive(ctx, now, match, player.ID, 1)
	if err != nil {
		return nil, err
	}
	return &ResponseOutcome{
		MatchID:     match.ID,
		PlayerID:    player.ID,
		State:       record.State,
		MatchStatus: match.Status,
		Replacement: replacement,
	}, nil
}

// applyLegacyResponse handles matches from the player-initiated join path,
// which track only the confirmed-IDs view.
func (s *confirmationService) applyLegacyResponse(ctx context.Context, now time.Time, match *models.Match, player *models.Player, accept bool) (*ResponseOutcome, error) {
	if accept {
		if match.HasConfirmed(player.ID) {
			return nil, ErrAlreadyConfirmed
		}
		match.ConfirmedIDs = append(match.ConfirmedIDs, player.ID)

		promoted := false
		if match.Status == models.MatchStatusFull && len(match.ConfirmedIDs) == s.cfg.PlayersPerMatch {
			match.Status = models.MatchStatusConfirmed
			promoted = true
		}
		if err := s.matchRepo.Update(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to store confirmation for match %d: %w", match.ID, err)
		}
		if promoted {
			s.announceAllConfirmed(ctx, match)
		}
		return &ResponseOutcome{
			MatchID:     match.ID,
			PlayerID:    player.ID,
			State:       models.ConfirmationConfirmed,
			MatchStatus: match.Status,
		}, nil
	}

	for i, pid := range match.ConfirmedIDs {
		if pid == player.ID {
			match.ConfirmedIDs = append(match.ConfirmedIDs[:i], match.ConfirmedIDs[i+1:]...)
			break
		}
	}
	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to store rejection for match %d: %w", match.ID, err)
	}

	replacement, err := s.replacement.Drive(ctx, now, match, player.ID, 1)
	if err != nil {
		return nil, err
	}
	return &ResponseOutcome{
		MatchID:     match.ID,
		PlayerID:    player.ID,
		State:       models.ConfirmationRejected,
		MatchStatus: match.Status,
		Replacement: replacement,
	}, nil
}

func (s *confirmationService) Scan(ctx context.Context, now time.Time) (*ScanResult, error) {
	result := &ScanResult{}

	notified, err := s.matchRepo.ListByStatus(ctx, models.MatchStatusNotified)
	if err != nil {
		return nil, fmt.Errorf("failed to list notified matches: %w", err)
	}

	for _, match := range notified {
		s.scanNotified(ctx, now, match.ID, result)
	}

	if err := s.expireWaiting(ctx, now, result); err != nil {
		return nil, err
	}

	s.logger.Info("confirmation scan finished",
		slog.Int("scanned", result.Scanned),
		slog.Int("timed_out", result.TimedOut),
		slog.Int("proposals_expired", result.ProposalsExpired),
		slog.Int("replacements_begun", result.ReplacementsBegun),
		slog.Int("canceled", result.Canceled),
		slog.Int("waiting_expired", result.WaitingExpired),
		slog.Int("inconsistent", result.Inconsistent),
	)
	return result, nil
}

func (s *confirmationService) scanNotified(ctx context.Context, now time.Time, matchID int, result *ScanResult) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	// Re-read under the lock: a reply may have landed between the listing and
	// here, and its record transitions must not be clobbered.
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		s.logger.Error("failed to reload match for scan",
			slog.Int("match_id", matchID),
			slog.Any("error", err),
		)
		return
	}
	if match.Status != models.MatchStatusNotified {
		return
	}
	result.Scanned++

	// Malformed record sets are logged and skipped; the scan moves on to the
	// next match rather than aborting.
	if !match.RecordsConsistent() {
		s.logger.Error("skipping match with malformed confirmation records",
			slog.Int("match_id", match.ID),
			slog.Int("players", len(match.PlayerIDs)),
			slog.Int("records", len(match.Notifications)),
		)
		result.Inconsistent++
		return
	}

	changed := false
	for i := range match.Notifications {
		if match.Notifications[i].Expired(now) {
			match.Notifications[i].State = models.ConfirmationTimeout
			result.TimedOut++
			changed = true
		}
	}
	if changed {
		match.SyncConfirmed()
		if err := s.matchRepo.Update(ctx, match); err != nil {
			s.logger.Error("failed to persist timeouts",
				slog.Int("match_id", match.ID),
				slog.Any("error", err),
			)
			return
		}
	}

	// Every invitation dead with nobody confirmed: the match is not worth
	// repairing seat by seat.
	if allTimedOut(match) {
		if err := s.cancellation.CancelMatch(ctx, match, models.ReasonNoConfirmations); err != nil {
			s.logger.Error("failed to cancel unanswered match",
				slog.Int("match_id", match.ID),
				slog.Any("error", err),
			)
			return
		}
		result.Canceled++
		return
	}

	if outcome, err := s.replacement.ExpireProposal(ctx, now, match); err != nil {
		s.logger.Error("failed to expire proposal",
			slog.Int("match_id", match.ID),
			slog.Any("error", err),
		)
		return
	} else if outcome != nil {
		result.ProposalsExpired++
		if outcome.Status == ReplacementMatchCancelled {
			result.Canceled++
			return
		}
	}

	// Drive replacement for unresolved timeouts, one proposal at a time.
	if match.Status.Terminal() || match.Proposal != nil {
		return
	}
	for i := range match.Notifications {
		if match.Notifications[i].State != models.ConfirmationTimeout {
			continue
		}
		outcome, err := s.replacement.Drive(ctx, now, match, match.Notifications[i].PlayerID, 1)
		if err != nil {
			s.logger.Error("failed to drive replacement",
				slog.Int("match_id", match.ID),
				slog.Int("player_id", match.Notifications[i].PlayerID),
				slog.Any("error", err),
			)
			return
		}
		if outcome.Status == ReplacementMatchCancelled {
			result.Canceled++
		} else {
			result.ReplacementsBegun++
		}
		return
	}
}

// expireWaiting retires player-initiated matches that stayed incomplete
// beyond the configured waiting age.
func (s *confirmationService) expireWaiting(ctx context.Context, now time.Time, result *ScanResult) error {
	waiting, err := s.matchRepo.ListByStatus(ctx, models.MatchStatusOpen, models.MatchStatusFull)
	if err != nil {
		return fmt.Errorf("failed to list waiting matches: %w", err)
	}
	for _, listed := range waiting {
		if now.Sub(listed.CreatedAt) <= s.cfg.MaxWaitingAge {
			continue
		}
		unlock := s.locks.Lock(listed.ID)
		match, err := s.matchRepo.GetByID(ctx, listed.ID)
		if err != nil {
			s.logger.Error("failed to reload waiting match",
				slog.Int("match_id", listed.ID),
				slog.Any("error", err),
			)
			unlock()
			continue
		}
		// The listing is a snapshot; the match may have moved on since.
		if match.Status != models.MatchStatusOpen && match.Status != models.MatchStatusFull {
			unlock()
			continue
		}
		if err := s.cancellation.CancelMatch(ctx, match, models.ReasonWaitingExpired); err != nil {
			s.logger.Error("failed to expire waiting match",
				slog.Int("match_id", match.ID),
				slog.Any("error", err),
			)
			unlock()
			continue
		}
		unlock()
		result.WaitingExpired++
	}
	return nil
}

func (s *confirmationService) announceAllConfirmed(ctx context.Context, match *models.Match) {
	members, err := loadMembers(ctx, s.playerRepo, match.PlayerIDs)
	if err != nil {
		s.logger.Warn("failed to load members for confirmation announcement",
			slog.Int("match_id", match.ID),
			slog.Any("error", err),
		)
		return
	}
	text := notify.AllConfirmedMessage(courtDisplayName(ctx, s.courtRepo, match.CourtID), match.ScheduledAt)
	fanOut(ctx, s.logger, s.sender, members, func(*models.Player) string { return text })
	s.hub.BroadcastEvent(live.EventMatchConfirmed, match.ID, nil)
}

func allTimedOut(match *models.Match) bool {
	active := 0
	for i := range match.Notifications {
		if match.Notifications[i].State == models.ConfirmationReplaced {
			continue
		}
		active++
		if match.Notifications[i].State != models.ConfirmationTimeout {
			return false
		}
	}
	return active > 0
}
