package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/assessly/assess-api/internal/dto"
	"github.com/assessly/assess-api/internal/models"
	"github.com/assessly/assess-api/internal/repository"
)

// ErrUserNotFound indicates a user could not be located.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken indicates the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// UserService manages accounts. All operations are super-admin only; role
// changes in particular have no other path.
type UserService interface {
	List(ctx context.Context, caller Identity) ([]dto.UserResponse, error)
	Create(ctx context.Context, caller Identity, payload dto.UserCreateRequest) (dto.UserResponse, error)
	UpdateRole(ctx context.Context, caller Identity, id uint, payload dto.UserRoleUpdateRequest) (dto.UserResponse, error)
	Delete(ctx context.Context, caller Identity, id uint) error
}

type userService struct {
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context, caller Identity) ([]dto.UserResponse, error) {
	if err := RequireSuperAdmin(caller); err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewUserResponseSlice(users), nil
}

func (s *userService) Create(ctx context.Context, caller Identity, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	if err := RequireSuperAdmin(caller); err != nil {
		return dto.UserResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	if _, err := s.users.GetByEmail(ctx, payload.Email); err == nil {
		return dto.UserResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Name:         payload.Name,
		Email:        payload.Email,
		PasswordHash: string(hash),
		Role:         payload.Role,
	}

	if err := s.users.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user created")

	return dto.NewUserResponse(user), nil
}

func (s *userService) UpdateRole(ctx context.Context, caller Identity, id uint, payload dto.UserRoleUpdateRequest) (dto.UserResponse, error) {
	if err := RequireSuperAdmin(caller); err != nil {
		return dto.UserResponse{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	if err := s.users.UpdateRole(ctx, id, payload.Role); err != nil {
		return dto.UserResponse{}, err
	}

	updated, err := s.users.GetByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", id).Str("role", payload.Role).Msg("user role updated")

	return dto.NewUserResponse(updated), nil
}

func (s *userService) Delete(ctx context.Context, caller Identity, id uint) error {
	if err := RequireSuperAdmin(caller); err != nil {
		return err
	}

	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	return s.users.Delete(ctx, id)
}
