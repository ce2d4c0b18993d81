package services

import (
	"context"
	"testing"
	"time"

	"github.com/padeliga/matchday/live"
	"github.com/padeliga/matchday/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReplacementFixture(matchRepo *fakeMatchRepo, players ...*models.Player) (ReplacementService, *recordingSender) {
	playerRepo := newFakePlayerRepo(players...)
	sender := newRecordingSender()
	hub := live.NewHub()
	cfg := testEngineConfig()
	logger := testLogger()
	courtRepo := newFakeCourtRepo(&models.Court{ID: 1, Name: "Center", Active: true})

	cancellation := NewCancellationService(matchRepo, playerRepo, sender, hub, cfg, logger)
	svc := NewReplacementService(playerRepo, matchRepo, courtRepo, cancellation, sender, hub, cfg, logger)
	return svc, sender
}

func notifiedMatch(now time.Time, playerIDs ...int) *models.Match {
	records := make([]models.ConfirmationRecord, 0, len(playerIDs))
	for _, id := range playerIDs {
		records = append(records, models.NewConfirmationRecord(id, now, time.Hour))
	}
	return &models.Match{
		ID:            1,
		CourtID:       1,
		PlayerIDs:     playerIDs,
		ConfirmedIDs:  []int{},
		ScheduledAt:   now.Add(24 * time.Hour),
		Status:        models.MatchStatusNotified,
		AverageLevel:  4.5,
		Notifications: records,
		CreatedAt:     now,
	}
}

func TestResolveProposesClosestCandidate(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	match := notifiedMatch(now, 1, 2, 3, 4)
	matchRepo := newFakeMatchRepo(match)

	players := []*models.Player{
		{ID: 1, Phone: "+1", Level: 4.5, Available: true},
		{ID: 2, Phone: "+2", Level: 4.5, Available: true},
		{ID: 3, Phone: "+3", Level: 4.5, Available: true},
		{ID: 4, Phone: "+4", Level: 4.5, Available: true},
		{ID: 5, Phone: "+5", Level: 5.2, Available: true},
		{ID: 6, Phone: "+6", Level: 4.6, Available: true},
	}
	svc, sender := newReplacementFixture(matchRepo, players...)

	outcome, err := svc.Resolve(context.Background(), now, match, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, ReplacementFound, outcome.Status)
	require.NotNil(t, outcome.Candidate)
	assert.Equal(t, 6, outcome.Candidate.ID, "closest to the match average wins")

	require.NotNil(t, match.Proposal)
	assert.Equal(t, 6, match.Proposal.CandidateID)
	assert.Equal(t, 2, match.Proposal.VacatedPlayerID)
	assert.Equal(t, 1, match.Proposal.Attempt)
	assert.NotEmpty(t, match.Proposal.Token)

	// The seat swap waits for the candidate's accept.
	assert.True(t, match.HasPlayer(2))
	assert.False(t, match.HasPlayer(6))
	assert.Equal(t, 1, sender.count("+6"))
}

func TestResolveExtendsToleranceOnSecondAttempt(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	match := notifiedMatch(now, 1, 2, 3, 4)
	matchRepo := newFakeMatchRepo(match)

	// The only outside candidate sits between the default and the extended
	// tolerance of the 4.5 average.
	players := []*models.Player{
		{ID: 1, Phone: "+1", Level: 4.5, Available: true},
		{ID: 2, Phone: "+2", Level: 4.5, Available: true},
		{ID: 3, Phone: "+3", Level: 4.5, Available: true},
		{ID: 4, Phone: "+4", Level: 4.5, Available: true},
		{ID: 5, Phone: "+5", Level: 5.8, Available: true},
	}
	svc, _ := newReplacementFixture(matchRepo, players...)

	outcome, err := svc.Resolve(context.Background(), now, match, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, ReplacementNotFound, outcome.Status)

	outcome, err = svc.Resolve(context.Background(), now, match, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, ReplacementFound, outcome.Status)
	require.NotNil(t, outcome.Candidate)
	assert.Equal(t, 5, outcome.Candidate.ID)
}

func TestDriveCancelsPastAttemptCap(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	match := notifiedMatch(now, 1, 2, 3, 4)
	matchRepo := newFakeMatchRepo(match)

	// No candidates outside the match at all.
	players := []*models.Player{
		{ID: 1, Phone: "+1", Level: 4.5, Available: true},
		{ID: 2, Phone: "+2", Level: 4.5, Available: true},
		{ID: 3, Phone: "+3", Level: 4.5, Available: true},
		{ID: 4, Phone: "+4", Level: 4.5, Available: true},
	}
	svc, _ := newReplacementFixture(matchRepo, players...)

	outcome, err := svc.Drive(context.Background(), now, match, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, ReplacementMatchCancelled, outcome.Status)
	assert.Equal(t, 4, outcome.Attempt, "cancellation happens one past the cap")
	assert.Equal(t, models.MatchStatusCanceled, match.Status)
	require.NotNil(t, match.Reason)
	assert.Equal(t, models.ReasonNoReplacementFound, *match.Reason)
}

func TestResolveCancelsPastCapDespiteCandidates(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	match := notifiedMatch(now, 1, 2, 3, 4)
	matchRepo := newFakeMatchRepo(match)

	// A perfectly compatible candidate exists, but the cap has already been
	// exhausted, so the match cancels without inviting them.
	players := []*models.Player{
		{ID: 1, Phone: "+1", Level: 4.5, Available: true},
		{ID: 2, Phone: "+2", Level: 4.5, Available: true},
		{ID: 3, Phone: "+3", Level: 4.5, Available: true},
		{ID: 4, Phone: "+4", Level: 4.5, Available: true},
		{ID: 5, Phone: "+5", Level: 4.5, Available: true},
	}
	svc, sender := newReplacementFixture(matchRepo, players...)
	cfg := testEngineConfig()

	outcome, err := svc.Resolve(context.Background(), now, match, 2, cfg.MaxReplacementAttempts+1)
	require.NoError(t, err)

	assert.Equal(t, ReplacementMatchCancelled, outcome.Status)
	assert.Equal(t, models.MatchStatusCanceled, match.Status)
	require.NotNil(t, match.Reason)
	assert.Equal(t, models.ReasonNoReplacementFound, *match.Reason)
	assert.Zero(t, sender.count("+5"))
}

func TestHandleProposalResponseAcceptSwapsSeat(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	match := notifiedMatch(now, 1, 2, 3, 4)
	// Everyone else already confirmed; the accept should complete the match.
	for i := range match.Notifications {
		if match.Notifications[i].PlayerID != 2 {
			match.Notifications[i].State = models.ConfirmationConfirmed
		}
	}
	match.Proposal = &models.ReplacementProposal{
		Token: "tok", VacatedPlayerID: 2, CandidateID: 5, Attempt: 1, ProposedAt: now,
	}
	matchRepo := newFakeMatchRepo(match)

	players := []*models.Player{
		{ID: 1, Name: "Ana", Phone: "+1", Level: 4.5, Available: true},
		{ID: 2, Name: "Bea", Phone: "+2", Level: 4.5, Available: true},
		{ID: 3, Name: "Cris", Phone: "+3", Level: 4.5, Available: true},
		{ID: 4, Name: "Dani", Phone: "+4", Level: 4.5, Available: true},
		{ID: 5, Name: "Eva", Phone: "+5", Level: 4.7, Available: true},
	}
	svc, sender := newReplacementFixture(matchRepo, players...)

	candidate := players[4]
	outcome, err := svc.HandleProposalResponse(context.Background(), now, match, candidate, true)
	require.NoError(t, err)

	assert.Equal(t, ReplacementFound, outcome.Status)
	assert.True(t, match.HasPlayer(5))
	assert.False(t, match.HasPlayer(2))
	assert.Nil(t, match.Proposal)
	assert.Equal(t, models.MatchStatusConfirmed, match.Status)
	assert.True(t, match.RecordsConsistent())

	record := match.Record(5)
	require.NotNil(t, record)
	assert.Equal(t, models.ConfirmationConfirmed, record.State)

	// Remaining members hear about the swap (plus the all-confirmed notice).
	assert.GreaterOrEqual(t, sender.count("+1"), 1)
	assert.GreaterOrEqual(t, sender.count("+3"), 1)
	assert.GreaterOrEqual(t, sender.count("+4"), 1)
}

func TestHandleProposalResponseDeclineDrivesNextAttempt(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	match := notifiedMatch(now, 1, 2, 3, 4)
	match.Proposal = &models.ReplacementProposal{
		Token: "tok", VacatedPlayerID: 2, CandidateID: 5, Attempt: 1, ProposedAt: now,
	}
	matchRepo := newFakeMatchRepo(match)

	players := []*models.Player{
		{ID: 1, Phone: "+1", Level: 4.5, Available: true},
		{ID: 2, Phone: "+2", Level: 4.5, Available: true},
		{ID: 3, Phone: "+3", Level: 4.5, Available: true},
		{ID: 4, Phone: "+4", Level: 4.5, Available: true},
		{ID: 5, Phone: "+5", Level: 4.7, Available: true},
		{ID: 6, Phone: "+6", Level: 4.4, Available: true},
	}
	svc, sender := newReplacementFixture(matchRepo, players...)

	outcome, err := svc.HandleProposalResponse(context.Background(), now, match, players[4], false)
	require.NoError(t, err)

	assert.Equal(t, ReplacementFound, outcome.Status)
	assert.Equal(t, 2, outcome.Attempt)
	require.NotNil(t, match.Proposal)
	assert.Equal(t, 6, match.Proposal.CandidateID, "closest remaining candidate is proposed")
	assert.Equal(t, 1, sender.count("+6"))
}

func TestHandleProposalResponseRejectsStranger(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	match := notifiedMatch(now, 1, 2, 3, 4)
	match.Proposal = &models.ReplacementProposal{
		Token: "tok", VacatedPlayerID: 2, CandidateID: 5, Attempt: 1, ProposedAt: now,
	}
	matchRepo := newFakeMatchRepo(match)
	svc, _ := newReplacementFixture(matchRepo)

	_, err := svc.HandleProposalResponse(context.Background(), now, match, &models.Player{ID: 99}, true)
	assert.ErrorIs(t, err, ErrNoPendingProposal)
}

func TestExpireProposal(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	match := notifiedMatch(now, 1, 2, 3, 4)
	match.Proposal = &models.ReplacementProposal{
		Token: "tok", VacatedPlayerID: 2, CandidateID: 5, Attempt: 1, ProposedAt: now,
	}
	matchRepo := newFakeMatchRepo(match)

	players := []*models.Player{
		{ID: 1, Phone: "+1", Level: 4.5, Available: true},
		{ID: 2, Phone: "+2", Level: 4.5, Available: true},
		{ID: 3, Phone: "+3", Level: 4.5, Available: true},
		{ID: 4, Phone: "+4", Level: 4.5, Available: true},
		{ID: 5, Phone: "+5", Level: 4.7, Available: true},
		{ID: 6, Phone: "+6", Level: 4.4, Available: true},
	}
	svc, _ := newReplacementFixture(matchRepo, players...)

	// Still inside the window: nothing happens.
	outcome, err := svc.ExpireProposal(context.Background(), now.Add(30*time.Minute), match)
	require.NoError(t, err)
	assert.Nil(t, outcome)
	require.NotNil(t, match.Proposal)
	assert.Equal(t, 5, match.Proposal.CandidateID)

	// Past the window: treated as a decline, next candidate proposed.
	outcome, err = svc.ExpireProposal(context.Background(), now.Add(61*time.Minute), match)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, ReplacementFound, outcome.Status)
	assert.Equal(t, 2, outcome.Attempt)
	require.NotNil(t, match.Proposal)
	assert.Equal(t, 6, match.Proposal.CandidateID)
}
