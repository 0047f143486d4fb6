package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/assessly/assess-api/internal/dto"
	"github.com/assessly/assess-api/internal/models"
)

func newUserService(users *fakeUserRepo) UserService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewUserService(users, validate, testLogger())
}

func TestUserCreateSuperAdminOnly(t *testing.T) {
	users := newFakeUserRepo()
	svc := newUserService(users)

	payload := dto.UserCreateRequest{
		Name:     "New Student",
		Email:    "new@example.com",
		Password: "password123",
		Role:     models.RoleStudent,
	}

	_, err := svc.Create(context.Background(), Identity{ID: 5, Role: models.RoleCourseAdmin}, payload)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), Identity{}, payload)
	require.ErrorIs(t, err, ErrUnauthenticated)

	created, err := svc.Create(context.Background(), Identity{ID: 1, Role: models.RoleSuperAdmin}, payload)
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, created.Role)

	stored, err := users.GetByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	require.NotEqual(t, "password123", stored.PasswordHash)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	users := newFakeUserRepo()
	seedAccount(t, users, "taken@example.com", "password123", models.RoleStudent)
	svc := newUserService(users)

	_, err := svc.Create(context.Background(), Identity{ID: 1, Role: models.RoleSuperAdmin}, dto.UserCreateRequest{
		Name:     "Dup",
		Email:    "taken@example.com",
		Password: "password123",
		Role:     models.RoleStudent,
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserCreateRejectsUnknownRole(t *testing.T) {
	users := newFakeUserRepo()
	svc := newUserService(users)

	_, err := svc.Create(context.Background(), Identity{ID: 1, Role: models.RoleSuperAdmin}, dto.UserCreateRequest{
		Name:     "Odd",
		Email:    "odd@example.com",
		Password: "password123",
		Role:     "janitor",
	})
	require.Error(t, err)
}

func TestUserUpdateRole(t *testing.T) {
	users := newFakeUserRepo()
	account := seedAccount(t, users, "promote@example.com", "password123", models.RoleStudent)
	svc := newUserService(users)

	updated, err := svc.UpdateRole(context.Background(), Identity{ID: 99, Role: models.RoleSuperAdmin}, account.ID, dto.UserRoleUpdateRequest{
		Role: models.RoleCourseAdmin,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleCourseAdmin, updated.Role)

	_, err = svc.UpdateRole(context.Background(), Identity{ID: 99, Role: models.RoleSuperAdmin}, 404, dto.UserRoleUpdateRequest{
		Role: models.RoleStudent,
	})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserDelete(t *testing.T) {
	users := newFakeUserRepo()
	account := seedAccount(t, users, "gone@example.com", "password123", models.RoleStudent)
	svc := newUserService(users)

	require.ErrorIs(t, svc.Delete(context.Background(), Identity{ID: account.ID, Role: models.RoleStudent}, account.ID), ErrForbidden)

	require.NoError(t, svc.Delete(context.Background(), Identity{ID: 1, Role: models.RoleSuperAdmin}, account.ID))
	_, err := users.GetByID(context.Background(), account.ID)
	require.Error(t, err)
}
