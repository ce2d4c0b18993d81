package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/padeliga/matchday/models"
	"github.com/padeliga/matchday/notify"
	"github.com/padeliga/matchday/repositories"
	"golang.org/x/sync/errgroup"
)

// loadMembers resolves a match's member IDs to players, preserving order.
func loadMembers(ctx context.Context, playerRepo repositories.PlayerRepository, ids []int) ([]*models.Player, error) {
	members := make([]*models.Player, 0, len(ids))
	for _, id := range ids {
		p, err := playerRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		members = append(members, p)
	}
	return members, nil
}

// fanOut delivers one message per player concurrently. Delivery failures are
// logged and dropped; the engine never waits on or retries the channel.
func fanOut(ctx context.Context, logger *slog.Logger, sender notify.Sender, players []*models.Player, text func(*models.Player) string) {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range players {
		p := p
		g.Go(func() error {
			if err := sender.Send(gctx, p.Phone, text(p)); err != nil {
				logger.Warn("failed to deliver message",
					slog.Int("player_id", p.ID),
					slog.Any("error", err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// courtDisplayName returns the court's name for message rendering, falling
// back to the numeric ID if the lookup fails.
func courtDisplayName(ctx context.Context, courtRepo repositories.CourtRepository, courtID int) string {
	court, err := courtRepo.GetByID(ctx, courtID)
	if err != nil {
		return fmt.Sprintf("court %d", courtID)
	}
	return court.Name
}

// MatchLocks serializes work per match ID. Two different matches share no
// state and proceed independently; every path that mutates the same match
// (responses, scans, joins, departures) must take the same lock, so one
// instance is shared across services.
type MatchLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewMatchLocks() *MatchLocks {
	return &MatchLocks{locks: make(map[int]*sync.Mutex)}
}

func (k *MatchLocks) Lock(id int) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
