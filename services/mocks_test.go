package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/padeliga/matchday/config"
	"github.com/padeliga/matchday/models"
	"github.com/padeliga/matchday/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		DefaultTolerance:       1.0,
		ExtendedTolerance:      1.5,
		MinPlayersToOpen:       1,
		MinPlayersToKeep:       3,
		PlayersPerMatch:        4,
		ConfirmationWindow:     time.Hour,
		LastMinuteWindow:       12 * time.Hour,
		MaxWaitingAge:          48 * time.Hour,
		MaxReplacementAttempts: 3,
		BalancePairings:        true,
		NotifyOnCancellation:   true,
	}
}

type fakePlayerRepo struct {
	mu      sync.Mutex
	players map[int]*models.Player
}

func newFakePlayerRepo(players ...*models.Player) *fakePlayerRepo {
	repo := &fakePlayerRepo{players: make(map[int]*models.Player)}
	for _, p := range players {
		repo.players[p.ID] = p
	}
	return repo
}

func (f *fakePlayerRepo) Create(_ context.Context, player *models.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if player.ID == 0 {
		player.ID = len(f.players) + 1
	}
	player.CreatedAt = time.Now()
	f.players[player.ID] = player
	return nil
}

func (f *fakePlayerRepo) GetByID(_ context.Context, id int) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	return p, nil
}

func (f *fakePlayerRepo) GetByPhone(_ context.Context, phone string) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.Phone == phone {
			return p, nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

func (f *fakePlayerRepo) List(_ context.Context) ([]*models.Player, error) {
	return f.sorted(func(*models.Player) bool { return true }), nil
}

func (f *fakePlayerRepo) ListAvailable(_ context.Context) ([]*models.Player, error) {
	return f.sorted(func(p *models.Player) bool { return p.Available }), nil
}

func (f *fakePlayerRepo) Update(_ context.Context, player *models.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.players[player.ID]; !ok {
		return repositories.ErrPlayerNotFound
	}
	f.players[player.ID] = player
	return nil
}

func (f *fakePlayerRepo) sorted(keep func(*models.Player) bool) []*models.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Player, 0, len(f.players))
	for _, p := range f.players {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.Match
}

func newFakeMatchRepo(matches ...*models.Match) *fakeMatchRepo {
	repo := &fakeMatchRepo{matches: make(map[int]*models.Match), nextID: 1}
	for _, m := range matches {
		if m.ID >= repo.nextID {
			repo.nextID = m.ID + 1
		}
		repo.matches[m.ID] = m
	}
	return repo
}

func (f *fakeMatchRepo) Create(_ context.Context, match *models.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	match.ID = f.nextID
	f.nextID++
	match.CreatedAt = time.Now()
	f.matches[match.ID] = match
	return nil
}

func (f *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return m, nil
}

func (f *fakeMatchRepo) Update(_ context.Context, match *models.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.matches[match.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	f.matches[match.ID] = match
	return nil
}

func (f *fakeMatchRepo) ListByStatus(_ context.Context, statuses ...models.MatchStatus) ([]*models.Match, error) {
	return f.sorted(func(m *models.Match) bool {
		for _, s := range statuses {
			if m.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (f *fakeMatchRepo) ListActive(_ context.Context) ([]*models.Match, error) {
	return f.sorted(func(m *models.Match) bool { return !m.Status.Terminal() }), nil
}

func (f *fakeMatchRepo) FindActiveByPlayer(_ context.Context, playerID int) (*models.Match, error) {
	for _, m := range f.sorted(func(m *models.Match) bool { return !m.Status.Terminal() }) {
		if m.HasPlayer(playerID) {
			return m, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) FindByProposalCandidate(_ context.Context, candidateID int) (*models.Match, error) {
	for _, m := range f.sorted(func(m *models.Match) bool { return !m.Status.Terminal() }) {
		if m.Proposal != nil && m.Proposal.CandidateID == candidateID {
			return m, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) FindOpen(_ context.Context, courtID int, scheduledAt time.Time) (*models.Match, error) {
	for _, m := range f.sorted(func(m *models.Match) bool { return m.Status == models.MatchStatusOpen }) {
		if m.CourtID == courtID && m.ScheduledAt.Equal(scheduledAt) {
			return m, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) sorted(keep func(*models.Match) bool) []*models.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Match, 0, len(f.matches))
	for _, m := range f.matches {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeCourtRepo struct {
	courts map[int]*models.Court
}

func newFakeCourtRepo(courts ...*models.Court) *fakeCourtRepo {
	repo := &fakeCourtRepo{courts: make(map[int]*models.Court)}
	for _, c := range courts {
		repo.courts[c.ID] = c
	}
	return repo
}

func (f *fakeCourtRepo) GetByID(_ context.Context, id int) (*models.Court, error) {
	c, ok := f.courts[id]
	if !ok {
		return nil, repositories.ErrCourtNotFound
	}
	return c, nil
}

func (f *fakeCourtRepo) ListActive(_ context.Context) ([]*models.Court, error) {
	out := make([]*models.Court, 0, len(f.courts))
	for _, c := range f.courts {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// recordingSender captures every outbound message keyed by phone.
type recordingSender struct {
	mu       sync.Mutex
	messages map[string][]string
}

func newRecordingSender() *recordingSender {
	return &recordingSender{messages: make(map[string][]string)}
}

func (s *recordingSender) Send(_ context.Context, address string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[address] = append(s.messages[address], text)
	return nil
}

func (s *recordingSender) count(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[address])
}
