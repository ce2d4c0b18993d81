package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/padeliga/matchday/config"
	"github.com/padeliga/matchday/live"
	"github.com/padeliga/matchday/models"
	"github.com/padeliga/matchday/notify"
	"github.com/padeliga/matchday/repositories"
)

type ReplacementStatus string

const (
	ReplacementFound          ReplacementStatus = "found"
	ReplacementNotFound       ReplacementStatus = "not_found"
	ReplacementMatchCancelled ReplacementStatus = "match_cancelled"
)

// ReplacementOutcome is the discriminated result of a resolver call.
type ReplacementOutcome struct {
	Status    ReplacementStatus `json:"status"`
	Candidate *models.Player    `json:"candidate,omitempty"`
	Attempt   int               `json:"attempt"`
}

type ReplacementService interface {
	// Resolve runs a single replacement attempt for a vacated seat. On
	// success it persists a pending proposal and invites the candidate; the
	// actual seat swap waits for the candidate's accept. Past the attempt
	// cap it cancels the match regardless of candidate availability.
	Resolve(ctx context.Context, now time.Time, match *models.Match, vacatedPlayerID, attempt int) (*ReplacementOutcome, error)
	// Drive advances attempts iteratively from startAttempt until a
	// candidate is proposed or the cap cancels the match.
	Drive(ctx context.Context, now time.Time, match *models.Match, vacatedPlayerID, startAttempt int) (*ReplacementOutcome, error)
	// HandleProposalResponse applies a candidate's accept (seat swap) or
	// decline (next attempt).
	HandleProposalResponse(ctx context.Context, now time.Time, match *models.Match, candidate *models.Player, accept bool) (*ReplacementOutcome, error)
	// ExpireProposal treats an unanswered proposal past its window as a
	// decline. Returns nil when there is nothing to expire.
	ExpireProposal(ctx context.Context, now time.Time, match *models.Match) (*ReplacementOutcome, error)
}

type replacementService struct {
	playerRepo   repositories.PlayerRepository
	matchRepo    repositories.MatchRepository
	courtRepo    repositories.CourtRepository
	cancellation CancellationService
	sender       notify.Sender
	hub          *live.Hub
	cfg          config.EngineConfig
	logger       *slog.Logger
}

func NewReplacementService(
	playerRepo repositories.PlayerRepository,
	matchRepo repositories.MatchRepository,
	courtRepo repositories.CourtRepository,
	cancellation CancellationService,
	sender notify.Sender,
	hub *live.Hub,
	cfg config.EngineConfig,
	logger *slog.Logger,
) ReplacementService {
	return &replacementService{
		playerRepo:   playerRepo,
		matchRepo:    matchRepo,
		courtRepo:    courtRepo,
		cancellation: cancellation,
		sender:       sender,
		hub:          hub,
		cfg:          cfg,
		logger:       logger,
	}
}

func (s *replacementService) Resolve(ctx context.Context, now time.Time, match *models.Match, vacatedPlayerID, attempt int) (*ReplacementOutcome, error) {
	if match.Status.Terminal() {
		return nil, ErrMatchAlreadyTerminal
	}

	if attempt > s.cfg.MaxReplacementAttempts {
		if err := s.cancellation.CancelMatch(ctx, match, models.ReasonNoReplacementFound); err != nil {
			return nil, fmt.Errorf("failed to cancel match %d after exhausting replacement attempts: %w", match.ID, err)
		}
		return &ReplacementOutcome{Status: ReplacementMatchCancelled, Attempt: attempt}, nil
	}

	candidate, err := s.findCandidate(ctx, match, vacatedPlayerID, attempt)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return &ReplacementOutcome{Status: ReplacementNotFound, Attempt: attempt}, nil
	}

	proposal := &models.ReplacementProposal{
		Token:           uuid.NewString(),
		VacatedPlayerID: vacatedPlayerID,
		CandidateID:     candidate.ID,
		Attempt:         attempt,
		ProposedAt:      now,
	}
	match.Proposal = proposal
	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to store replacement proposal for match %d: %w", match.ID, err)
	}

	s.logger.Info("replacement candidate proposed",
		slog.Int("match_id", match.ID),
		slog.Int("candidate_id", candidate.ID),
		slog.Int("attempt", attempt),
	)

	text := notify.ProposalMessage(candidate.Name, courtDisplayName(ctx, s.courtRepo, match.CourtID), match.ScheduledAt, match.AverageLevel)
	if err := s.sender.Send(ctx, candidate.Phone, text); err != nil {
		s.logger.Warn("failed to deliver proposal message",
			slog.Int("candidate_id", candidate.ID),
			slog.Any("error", err),
		)
	}

	return &ReplacementOutcome{Status: ReplacementFound, Candidate: candidate, Attempt: attempt}, nil
}

func (s *replacementService) Drive(ctx context.Context, now time.Time, match *models.Match, vacatedPlayerID, startAttempt int) (*ReplacementOutcome, error) {
	// Iterative on purpose: the attempt counter and the termination
	// condition (the cap check inside Resolve) are ordinary control flow.
	for attempt := startAttempt; ; attempt++ {
		outcome, err := s.Resolve(ctx, now, match, vacatedPlayerID, attempt)
		if err != nil {
			return nil, err
		}
		if outcome.Status != ReplacementNotFound {
			return outcome, nil
		}
	}
}

func (s *replacementService) HandleProposalResponse(ctx context.Context, now time.Time, match *models.Match, candidate *models.Player, accept bool) (*ReplacementOutcome, error) {
	if match.Status.Terminal() {
		return nil, ErrMatchAlreadyTerminal
	}
	proposal := match.Proposal
	if proposal == nil || proposal.CandidateID != candidate.ID {
		return nil, ErrNoPendingProposal
	}

	if !accept {
		match.Proposal = nil
		if err := s.matchRepo.Update(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to clear declined proposal for match %d: %w", match.ID, err)
		}
		return s.Drive(ctx, now, match, proposal.VacatedPlayerID, proposal.Attempt+1)
	}

	vacatedName := fmt.Sprintf("player %d", proposal.VacatedPlayerID)
	if vacated, err := s.playerRepo.GetByID(ctx, proposal.VacatedPlayerID); err == nil {
		vacatedName = vacated.Name
	}

	match.ReplacePlayer(proposal.VacatedPlayerID, candidate, now, s.cfg.ConfirmationWindow)

	members, err := loadMembers(ctx, s.playerRepo, match.PlayerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load members of match %d after replacement: %w", match.ID, err)
	}
	match.SetLevel(memberLevels(members))

	promoted := false
	if match.Status == models.MatchStatusNotified && match.AllConfirmed(s.cfg.PlayersPerMatch) {
		match.Status = models.MatchStatusConfirmed
		promoted = true
	}

	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to apply replacement to match %d: %w", match.ID, err)
	}

	s.logger.Info("replacement accepted",
		slog.Int("match_id", match.ID),
		slog.Int("candidate_id", candidate.ID),
		slog.Int("vacated_id", proposal.VacatedPlayerID),
	)
	s.hub.BroadcastEvent(live.EventPlayerReplaced, match.ID, map[string]int{
		"in":  candidate.ID,
		"out": proposal.VacatedPlayerID,
	})

	announcement := notify.ReplacementMessage(candidate.Name, vacatedName)
	others := make([]*models.Player, 0, len(members))
	for _, m := range members {
		if m.ID != candidate.ID {
			others = append(others, m)
		}
	}
	fanOut(ctx, s.logger, s.sender, others, func(*models.Player) string { return announcement })

	if promoted {
		s.announceConfirmed(ctx, match, members)
	}

	return &ReplacementOutcome{Status: ReplacementFound, Candidate: candidate, Attempt: proposal.Attempt}, nil
}

func (s *replacementService) ExpireProposal(ctx context.Context, now time.Time, match *models.Match) (*ReplacementOutcome, error) {
	proposal := match.Proposal
	if proposal == nil || !now.After(proposal.ProposedAt.Add(s.cfg.ConfirmationWindow)) {
		return nil, nil
	}

	s.logger.Info("replacement proposal expired",
		slog.Int("match_id", match.ID),
		slog.Int("candidate_id", proposal.CandidateID),
		slog.Int("attempt", proposal.Attempt),
	)

	match.Proposal = nil
	if err := s.matchRepo.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to clear expired proposal for match %d: %w", match.ID, err)
	}
	return s.Drive(ctx, now, match, proposal.VacatedPlayerID, proposal.Attempt+1)
}

// findCandidate builds the candidate pool for one attempt: generally
// available players who are not members of the match and not the vacated
// player, within tolerance of the match average. Attempts use the default
// tolerance; attempt 2 specifically retries once with the extended tolerance
// before giving up.
func (s *replacementService) findCandidate(ctx context.Context, match *models.Match, vacatedPlayerID, attempt int) (*models.Player, error) {
	available, err := s.playerRepo.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list available players: %w", err)
	}

	pool := make([]*models.Player, 0, len(available))
	for _, p := range available {
		if p.ID == vacatedPlayerID || match.HasPlayer(p.ID) {
			continue
		}
		pool = append(pool, p)
	}

	candidates := filterByTolerance(pool, match.AverageLevel, s.cfg.DefaultTolerance)
	if len(candidates) == 0 && attempt == 2 {
		candidates = filterByTolerance(pool, match.AverageLevel, s.cfg.ExtendedTolerance)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Deterministic selection: closest to the match average, ID as tiebreak.
	sort.Slice(candidates, func(i, j int) bool {
		di := levelDistance(candidates[i].Level, match.AverageLevel)
		dj := levelDistance(candidates[j].Level, match.AverageLevel)
		if di != dj {
			return di < dj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], nil
}

func (s *replacementService) announceConfirmed(ctx context.Context, match *models.Match, members []*models.Player) {
	text := notify.AllConfirmedMessage(courtDisplayName(ctx, s.courtRepo, match.CourtID), match.ScheduledAt)
	fanOut(ctx, s.logger, s.sender, members, func(*models.Player) string { return text })
	s.hub.BroadcastEvent(live.EventMatchConfirmed, match.ID, nil)
}

func filterByTolerance(pool []*models.Player, level, tolerance float64) []*models.Player {
	out := make([]*models.Player, 0, len(pool))
	for _, p := range pool {
		if LevelsCompatible(p.Level, level, tolerance) {
			out = append(out, p)
		}
	}
	return out
}
