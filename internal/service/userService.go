package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ds124wfegd/gymbooker/internal/database"
	"github.com/ds124wfegd/gymbooker/internal/entity"

	"github.com/sirupsen/logrus"
)

type userService struct {
	users database.UserRepository
}

func NewUserService(users database.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) GetUser(ctx context.Context, id string) (*entity.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpsertProfile never changes the stored role.
func (s *userService) UpsertProfile(ctx context.Context, req *ProfileRequest) (*entity.User, error) {
	if req.UserID == "" || strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: user id and name are required", entity.ErrInvalidInput)
	}

	user := &entity.User{
		ID:          req.UserID,
		Name:        strings.TrimSpace(req.Name),
		Surname:     strings.TrimSpace(req.Surname),
		DNI:         strings.TrimSpace(req.DNI),
		Email:       strings.TrimSpace(req.Email),
		DeviceToken: req.DeviceToken,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return user, nil
}

// UpdateDeviceToken stores a refreshed push token. An empty token clears it.
func (s *userService) UpdateDeviceToken(ctx context.Context, userID, token string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", entity.ErrInvalidInput)
	}
	if err := s.users.UpdateDeviceToken(ctx, userID, strings.TrimSpace(token)); err != nil {
		return err
	}
	logrus.WithField("user_id", userID).Info("Device token updated")
	return nil
}
