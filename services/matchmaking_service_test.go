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

func TestGroupByLevelFormsCompatibleGroup(t *testing.T) {
	players := []*models.Player{
		{ID: 1, Level: 4.0},
		{ID: 2, Level: 4.2},
		{ID: 3, Level: 4.5},
		{ID: 4, Level: 4.8},
	}
	groups, leftover := groupByLevel(players, testEngineConfig())

	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 4)
	assert.Empty(t, leftover)
}

func TestGroupByLevelEscalatesTolerance(t *testing.T) {
	// The anchor has nobody within the default tolerance but a full group
	// within the extended one.
	players := []*models.Player{
		{ID: 1, Level: 3.0},
		{ID: 2, Level: 4.2},
		{ID: 3, Level: 4.3},
		{ID: 4, Level: 4.4},
	}
	groups, leftover := groupByLevel(players, testEngineConfig())

	require.Len(t, groups, 1)
	assert.Empty(t, leftover)
}

func TestGroupByLevelFailedAnchorStaysAvailable(t *testing.T) {
	// The lowest player cannot anchor a group, but a later anchor can still
	// pick them up as a companion.
	players := []*models.Player{
		{ID: 1, Level: 3.0},
		{ID: 2, Level: 4.0},
		{ID: 3, Level: 4.5},
		{ID: 4, Level: 4.8},
		{ID: 5, Level: 5.0},
	}
	groups, leftover := groupByLevel(players, testEngineConfig())

	require.Len(t, groups, 1)
	grouped := make(map[int]bool)
	for _, p := range groups[0] {
		grouped[p.ID] = true
	}
	assert.True(t, grouped[1], "failed anchor should be grouped as a companion")
	require.Len(t, leftover, 1)
	assert.Equal(t, 5, leftover[0].ID)
}

func TestGroupByLevelLeftover(t *testing.T) {
	players := []*models.Player{
		{ID: 1, Level: 4.0},
		{ID: 2, Level: 4.1},
		{ID: 3, Level: 4.2},
		{ID: 4, Level: 4.3},
		{ID: 5, Level: 7.0},
	}
	groups, leftover := groupByLevel(players, testEngineConfig())

	require.Len(t, groups, 1)
	require.Len(t, leftover, 1)
	assert.Equal(t, 5, leftover[0].ID)
}

func TestBalancePairings(t *testing.T) {
	group := []*models.Player{
		{ID: 1, Level: 3.0},
		{ID: 2, Level: 4.0},
		{ID: 3, Level: 5.0},
		{ID: 4, Level: 6.0},
	}
	balanced := balancePairings(group)

	// Ascending [w,x,y,z] becomes [w,y,x,z] so (0,3) and (1,2) are the
	// balanced partnerships.
	require.Len(t, balanced, 4)
	assert.Equal(t, []int{1, 3, 2, 4}, []int{balanced[0].ID, balanced[1].ID, balanced[2].ID, balanced[3].ID})
}

func TestRunDailyCreatesNotifiedMatch(t *testing.T) {
	players := []*models.Player{
		{ID: 1, Name: "Ana", Phone: "+111", Level: 4.0, Available: true},
		{ID: 2, Name: "Bea", Phone: "+222", Level: 4.2, Available: true},
		{ID: 3, Name: "Cris", Phone: "+333", Level: 4.4, Available: true},
		{ID: 4, Name: "Dani", Phone: "+444", Level: 4.6, Available: true},
	}
	targetDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) // a Tuesday
	court := &models.Court{
		ID: 1, Name: "Center", Active: true,
		Days:  []time.Weekday{time.Tuesday},
		Slots: []string{"19:00"},
	}

	playerRepo := newFakePlayerRepo(players...)
	matchRepo := newFakeMatchRepo()
	sender := newRecordingSender()
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	svc := NewMatchmakingService(playerRepo, matchRepo, newFakeCourtRepo(court), sender, live.NewHub(), testEngineConfig(), testLogger())
	result, err := svc.RunDaily(context.Background(), now, targetDate)
	require.NoError(t, err)

	require.Len(t, result.Created, 1)
	assert.Empty(t, result.Leftover)
	assert.Zero(t, result.Unassigned)

	match := result.Created[0]
	assert.Equal(t, models.MatchStatusNotified, match.Status)
	assert.Len(t, match.PlayerIDs, 4)
	require.Len(t, match.Notifications, 4)
	for _, rec := range match.Notifications {
		assert.Equal(t, models.ConfirmationPending, rec.State)
		assert.Equal(t, now.Add(time.Hour), rec.Deadline)
	}
	assert.Equal(t, 19, match.ScheduledAt.Hour())
	assert.InDelta(t, 4.3, match.AverageLevel, 1e-9)

	for _, p := range players {
		assert.Equal(t, 1, sender.count(p.Phone), "every member gets an invitation")
	}
}

func TestRunDailySkipsBusyPlayers(t *testing.T) {
	players := []*models.Player{
		{ID: 1, Phone: "+111", Level: 4.0, Available: true},
		{ID: 2, Phone: "+222", Level: 4.1, Available: true},
		{ID: 3, Phone: "+333", Level: 4.2, Available: true},
		{ID: 4, Phone: "+444", Level: 4.3, Available: true},
	}
	existing := &models.Match{
		ID: 50, CourtID: 1, PlayerIDs: []int{4},
		Status: models.MatchStatusOpen, ScheduledAt: time.Now().Add(24 * time.Hour),
	}
	targetDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	court := &models.Court{ID: 1, Active: true, Days: []time.Weekday{time.Tuesday}, Slots: []string{"19:00"}}

	svc := NewMatchmakingService(newFakePlayerRepo(players...), newFakeMatchRepo(existing), newFakeCourtRepo(court), newRecordingSender(), live.NewHub(), testEngineConfig(), testLogger())
	result, err := svc.RunDaily(context.Background(), time.Now(), targetDate)
	require.NoError(t, err)

	// Player 4 is in an active match, so only three players are eligible.
	assert.Empty(t, result.Created)
	assert.Len(t, result.Leftover, 3)
}

func TestRunDailyReportsUnassignedGroups(t *testing.T) {
	players := make([]*models.Player, 0, 8)
	phones := []string{"+1", "+2", "+3", "+4", "+5", "+6", "+7", "+8"}
	for i := 0; i < 8; i++ {
		players = append(players, &models.Player{
			ID: i + 1, Phone: phones[i], Level: 4.0 + float64(i)*0.1, Available: true,
		})
	}
	targetDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	court := &models.Court{ID: 1, Active: true, Days: []time.Weekday{time.Tuesday}, Slots: []string{"19:00"}}

	svc := NewMatchmakingService(newFakePlayerRepo(players...), newFakeMatchRepo(), newFakeCourtRepo(court), newRecordingSender(), live.NewHub(), testEngineConfig(), testLogger())
	result, err := svc.RunDaily(context.Background(), time.Now(), targetDate)
	require.NoError(t, err)

	// Two groups form but the single slot covers only one of them.
	assert.Len(t, result.Created, 1)
	assert.Equal(t, 1, result.Unassigned)
}

func TestRunDailyNoCourtsForWeekday(t *testing.T) {
	players := []*models.Player{
		{ID: 1, Phone: "+1", Level: 4.0, Available: true},
		{ID: 2, Phone: "+2", Level: 4.1, Available: true},
		{ID: 3, Phone: "+3", Level: 4.2, Available: true},
		{ID: 4, Phone: "+4", Level: 4.3, Available: true},
	}
	targetDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) // Tuesday
	court := &models.Court{ID: 1, Active: true, Days: []time.Weekday{time.Monday}, Slots: []string{"19:00"}}

	svc := NewMatchmakingService(newFakePlayerRepo(players...), newFakeMatchRepo(), newFakeCourtRepo(court), newRecordingSender(), live.NewHub(), testEngineConfig(), testLogger())
	result, err := svc.RunDaily(context.Background(), time.Now(), targetDate)
	require.NoError(t, err)

	assert.Empty(t, result.Created)
	assert.Len(t, result.Leftover, 4)
}
