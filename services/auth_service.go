package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/padeliga/matchday/models"
	"github.com/padeliga/matchday/repositories"
)

type AuthService interface {
	// Login verifies admin credentials and returns the admin on success.
	Login(ctx context.Context, email, password string) (*models.Admin, error)
}

type authService struct {
	adminRepo repositories.AdminRepository
	logger    *slog.Logger
}

func NewAuthService(adminRepo repositories.AdminRepository, logger *slog.Logger) AuthService {
	return &authService{adminRepo: adminRepo, logger: logger}
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.Admin, error) {
	admin, err := s.adminRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrAdminNotFound) {
			// Same error as a bad password so the endpoint does not leak which
			// emails exist.
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("admin logged in", slog.String("email", admin.Email))
	return admin, nil
}
