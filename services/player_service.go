package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/padeliga/matchday/models"
	"github.com/padeliga/matchday/repositories"
	"github.com/padeliga/matchday/storage"
)

type PlayerService interface {
	GetPlayer(ctx context.Context, id int) (*models.Player, error)
	ListPlayers(ctx context.Context) ([]*models.Player, error)
	CreatePlayer(ctx context.Context, player *models.Player) error
	// SetAvailability toggles whether the player enters future matchmaking
	// runs. Membership in already-created matches is not touched.
	SetAvailability(ctx context.Context, id int, available bool) (*models.Player, error)
	// UploadAvatar stores the image in object storage and records its key,
	// deleting the previous object if one exists.
	UploadAvatar(ctx context.Context, id int, contentType string, reader io.Reader) (*models.Player, error)
}

type playerService struct {
	playerRepo repositories.PlayerRepository
	uploader   storage.FileUploader
	logger     *slog.Logger
}

func NewPlayerService(playerRepo repositories.PlayerRepository, uploader storage.FileUploader, logger *slog.Logger) PlayerService {
	return &playerService{playerRepo: playerRepo, uploader: uploader, logger: logger}
}

func (s *playerService) GetPlayer(ctx context.Context, id int) (*models.Player, error) {
	player, err := s.playerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	s.resolveAvatar(player)
	return player, nil
}

func (s *playerService) ListPlayers(ctx context.Context) ([]*models.Player, error) {
	players, err := s.playerRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	for _, p := range players {
		s.resolveAvatar(p)
	}
	return players, nil
}

func (s *playerService) CreatePlayer(ctx context.Context, player *models.Player) error {
	if err := s.playerRepo.Create(ctx, player); err != nil {
		if errors.Is(err, repositories.ErrPlayerPhoneConflict) {
			return err
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	s.logger.Info("player created",
		slog.Int("player_id", player.ID),
		slog.Float64("level", player.Level),
	)
	return nil
}

func (s *playerService) SetAvailability(ctx context.Context, id int, available bool) (*models.Player, error) {
	player, err := s.playerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	player.Available = available
	if err := s.playerRepo.Update(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to update player %d: %w", id, err)
	}
	s.resolveAvatar(player)
	return player, nil
}

func (s *playerService) UploadAvatar(ctx context.Context, id int, contentType string, reader io.Reader) (*models.Player, error) {
	if s.uploader == nil {
		return nil, errors.New("avatar storage is not configured")
	}

	player, err := s.playerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	key := fmt.Sprintf("avatars/%d/%s", id, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	oldKey := player.AvatarKey
	player.AvatarKey = &result.Key
	if err := s.playerRepo.Update(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to store avatar key for player %d: %w", id, err)
	}

	if oldKey != nil && *oldKey != result.Key {
		if err := s.uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.Warn("failed to delete previous avatar",
				slog.Int("player_id", id),
				slog.String("key", *oldKey),
				slog.Any("error", err),
			)
		}
	}

	s.resolveAvatar(player)
	return player, nil
}

func (s *playerService) resolveAvatar(player *models.Player) {
	if s.uploader == nil || player.AvatarKey == nil {
		return
	}
	url := s.uploader.GetPublicURL(*player.AvatarKey)
	player.AvatarURL = &url
}
