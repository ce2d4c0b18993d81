package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/padeliga/matchday/config"
	"github.com/padeliga/matchday/live"
	"github.com/padeliga/matchday/models"
	"github.com/padeliga/matchday/notify"
	"github.com/padeliga/matchday/repositories"
)

// MatchmakingResult reports the business outcome of one daily run. Shortfalls
// (leftover players, groups without a court slot) are outcomes, not errors.
type MatchmakingResult struct {
	Created    []*models.Match  `json:"created"`
	Leftover   []*models.Player `json:"leftover"`
	Unassigned int              `json:"unassigned"` // groups formed after the slot pool ran out
}

type MatchmakingService interface {
	// RunDaily partitions eligible players into groups of four, assigns
	// court slots round-robin, creates the matches in the notified state and
	// sends the invitations. now and targetDate are explicit so runs are
	// deterministic and replayable.
	RunDaily(ctx context.Context, now time.Time, targetDate time.Time) (*MatchmakingResult, error)
}

type matchmakingService struct {
	playerRepo repositories.PlayerRepository
	matchRepo  repositories.MatchRepository
	courtRepo  repositories.CourtRepository
	sender     notify.Sender
	hub        *live.Hub
	cfg        config.EngineConfig
	logger     *slog.Logger
}

func NewMatchmakingService(
	playerRepo repositories.PlayerRepository,
	matchRepo repositories.MatchRepository,
	courtRepo repositories.CourtRepository,
	sender notify.Sender,
	hub *live.Hub,
	cfg config.EngineConfig,
	logger *slog.Logger,
) MatchmakingService {
	return &matchmakingService{
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
		courtRepo:  courtRepo,
		sender:     sender,
		hub:        hub,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *matchmakingService) RunDaily(ctx context.Context, now time.Time, targetDate time.Time) (*MatchmakingResult, error) {
	eligible, err := s.eligiblePlayers(ctx)
	if err != nil {
		return nil, err
	}

	if len(eligible) < s.cfg.PlayersPerMatch {
		s.logger.Info("matchmaking run skipped: not enough eligible players",
			slog.Int("eligible", len(eligible)),
		)
		return &MatchmakingResult{Created: []*models.Match{}, Leftover: eligible}, nil
	}

	courts, err := s.activeCourtsFor(ctx, targetDate)
	if err != nil {
		return nil, err
	}
	if len(courts) == 0 {
		s.logger.Info("matchmaking run skipped: no active courts for target date",
			slog.Time("target_date", targetDate),
		)
		return &MatchmakingResult{Created: []*models.Match{}, Leftover: eligible}, nil
	}

	slots := BuildSlotSequence(courts, CanonicalSlots(courts), targetDate)

	groups, leftover := groupByLevel(eligible, s.cfg)

	result := &MatchmakingResult{Created: []*models.Match{}, Leftover: leftover}
	for i, group := range groups {
		if i >= len(slots) {
			// Court slots ran out; report the shortfall and finish the run.
			result.Unassigned++
			continue
		}
		match, err := s.createMatch(ctx, now, group, slots[i])
		if err != nil {
			return nil, err
		}
		result.Created = append(result.Created, match)
	}

	s.logger.Info("matchmaking run finished",
		slog.Time("target_date", targetDate),
		slog.Int("eligible", len(eligible)),
		slog.Int("created", len(result.Created)),
		slog.Int("leftover", len(result.Leftover)),
		slog.Int("unassigned", result.Unassigned),
	)
	return result, nil
}

// eligiblePlayers returns available players not already in an active match.
func (s *matchmakingService) eligiblePlayers(ctx context.Context) ([]*models.Player, error) {
	available, err := s.playerRepo.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list available players: %w", err)
	}
	active, err := s.matchRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active matches: %w", err)
	}

	busy := make(map[int]bool)
	for _, m := range active {
		for _, pid := range m.PlayerIDs {
			busy[pid] = true
		}
		if m.Proposal != nil {
			busy[m.Proposal.CandidateID] = true
		}
	}

	eligible := make([]*models.Player, 0, len(available))
	for _, p := range available {
		if !busy[p.ID] {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}

func (s *matchmakingService) activeCourtsFor(ctx context.Context, targetDate time.Time) ([]*models.Court, error) {
	courts, err := s.courtRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active courts: %w", err)
	}
	day := targetDate.Weekday()
	open := make([]*models.Court, 0, len(courts))
	for _, c := range courts {
		if c.OffersDay(day) {
			open = append(open, c)
		}
	}
	return open, nil
}

func (s *matchmakingService) createMatch(ctx context.Context, now time.Time, group []*models.Player, slot CourtSlot) (*models.Match, error) {
	if s.cfg.BalancePairings {
		group = balancePairings(group)
	}

	ids := make([]int, 0, len(group))
	records := make([]models.ConfirmationRecord, 0, len(group))
	for _, p := range group {
		ids = append(ids, p.ID)
		records = append(records, models.NewConfirmationRecord(p.ID, now, s.cfg.ConfirmationWindow))
	}

	match := &models.Match{
		CourtID:       slot.Court.ID,
		PlayerIDs:     ids,
		ConfirmedIDs:  []int{},
		ScheduledAt:   slot.Time,
		Status:        models.MatchStatusNotified,
		Notifications: records,
	}
	match.SetLevel(memberLevels(group))

	if err := s.matchRepo.Create(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to create match on court %d at %s: %w", slot.Court.ID, slot.Time, err)
	}

	s.logger.Info("match created",
		slog.Int("match_id", match.ID),
		slog.Int("court_id", slot.Court.ID),
		slog.Time("scheduled_at", slot.Time),
		slog.Float64("average_level", match.AverageLevel),
	)
	s.hub.BroadcastEvent(live.EventMatchCreated, match.ID, map[string]interface{}{
		"court_id":     slot.Court.ID,
		"scheduled_at": slot.Time,
	})

	deadline := now.Add(s.cfg.ConfirmationWindow)
	fanOut(ctx, s.logger, s.sender, group, func(p *models.Player) string {
		return notify.InvitationMessage(p.Name, slot.Court.Name, slot.Time, deadline)
	})
	return match, nil
}

// groupByLevel partitions players into groups of four with a greedy nearest
// level window. Players are scanned ascending by level; each unused player
// anchors a window at the default tolerance, widened once to the extended
// tolerance if fewer than three companions qualify. An anchor that still
// cannot fill a group is skipped and not retried in this run, though a later
// anchor may still pick it up as a companion. Players never placed are
// returned as leftovers.
func groupByLevel(players []*models.Player, cfg config.EngineConfig) ([][]*models.Player, []*models.Player) {
	sorted := make([]*models.Player, len(players))
	copy(sorted, players)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Level != sorted[j].Level {
			return sorted[i].Level < sorted[j].Level
		}
		return sorted[i].ID < sorted[j].ID
	})

	companions := cfg.PlayersPerMatch - 1
	used := make([]bool, len(sorted))
	groups := make([][]*models.Player, 0, len(sorted)/cfg.PlayersPerMatch)

	for i, anchor := range sorted {
		if used[i] {
			continue
		}

		window := windowAround(sorted, used, i, cfg.DefaultTolerance)
		if len(window) < companions {
			window = windowAround(sorted, used, i, cfg.ExtendedTolerance)
		}
		if len(window) < companions {
			continue
		}

		// Closest companions first.
		sort.SliceStable(window, func(a, b int) bool {
			da := levelDistance(sorted[window[a]].Level, anchor.Level)
			db := levelDistance(sorted[window[b]].Level, anchor.Level)
			return da < db
		})

		group := []*models.Player{anchor}
		used[i] = true
		for _, idx := range window[:companions] {
			group = append(group, sorted[idx])
			used[idx] = true
		}
		groups = append(groups, group)
	}

	leftover := make([]*models.Player, 0)
	for i, p := range sorted {
		if !used[i] {
			leftover = append(leftover, p)
		}
	}
	return groups, leftover
}

// windowAround returns the indexes of unused non-anchor players within
// tolerance of the anchor's level.
func windowAround(sorted []*models.Player, used []bool, anchorIdx int, tolerance float64) []int {
	window := make([]int, 0)
	for j := range sorted {
		if j == anchorIdx || used[j] {
			continue
		}
		if LevelsCompatible(sorted[j].Level, sorted[anchorIdx].Level, tolerance) {
			window = append(window, j)
		}
	}
	return window
}

// balancePairings reorders a group of four so the partnership slots (0,3)
// and (1,2) each pair a lower- with a higher-level player: sorted ascending
// [w,x,y,z] becomes [w,y,x,z].
func balancePairings(group []*models.Player) []*models.Player {
	if len(group) != 4 {
		return group
	}
	sorted := make([]*models.Player, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Level < sorted[j].Level
	})
	return []*models.Player{sorted[0], sorted[2], sorted[1], sorted[3]}
}
