package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

type mockUserRepo struct {
	users map[string]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User)}
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "u" + user.Email
	}
	m.users[user.ID] = user
	return nil
}

func newAuthFixture() (*mockUserRepo, *AuthService) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "booking-api",
	})
	return repo, svc
}

func TestRegisterAndLogin(t *testing.T) {
	_, svc := newAuthFixture()

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "ada@example.com",
		Password: "password",
		Name:     "Ada Instructor",
		Role:     "instructor",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleInstructor, user.Role)
	assert.True(t, user.Active)
	assert.NotEqual(t, "password", user.PasswordHash)

	res, err := svc.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.RoleInstructor, res.Role)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleInstructor, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	_, svc := newAuthFixture()

	req := RegisterRequest{Email: "dup@example.com", Password: "password", Name: "Dup", Role: "student"}
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	_, svc := newAuthFixture()

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "admin@example.com",
		Password: "password",
		Name:     "Admin",
		Role:     "admin",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoginWrongPassword(t *testing.T) {
	repo, svc := newAuthFixture()
	hash, _ := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.DefaultCost)
	repo.users["u1"] = &models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(hash), Role: models.RoleStudent, Active: true}

	_, err := svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	_, svc := newAuthFixture()

	_, err := svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	require.Error(t, err)
	// Unknown accounts and bad passwords are indistinguishable to callers.
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo, svc := newAuthFixture()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo.users["u1"] = &models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(hash), Role: models.RoleStudent, Active: false}

	_, err := svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	_, svc := newAuthFixture()
	other := NewAuthService(newMockUserRepo(), validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Hour,
	})

	token, _, err := other.generateAccessToken(&models.User{ID: "u1", Email: "user@example.com", Role: models.RoleStudent})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
