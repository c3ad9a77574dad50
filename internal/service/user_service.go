package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/wellness_booking/internal/apperror"
	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/repository"
	"go.uber.org/zap"
)

// UserService чтение внешнего справочника пользователей
type UserService struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// GetByID возвращает NotFound, если пользователя нет
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, apperror.Validation("user id must be positive")
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperror.ErrUserNotFound
	}

	return user, nil
}

// RequireMentor проверяет, что пользователь существует и является ментором
func (s *UserService) RequireMentor(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsMentor() {
		s.logger.Debug("User is not a mentor", zap.Int64("user_id", id), zap.String("role", string(user.Role)))
		return nil, apperror.ErrNotMentor
	}
	return user, nil
}
