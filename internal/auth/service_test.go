package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/schoolstock/stockroom-backend/internal/users"
	pkgAuth "github.com/schoolstock/stockroom-backend/pkg/auth"
	"github.com/schoolstock/stockroom-backend/pkg/auth/session"
	"github.com/schoolstock/stockroom-backend/pkg/config"
	"github.com/schoolstock/stockroom-backend/pkg/db/models"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	pkgerrors "github.com/schoolstock/stockroom-backend/pkg/errors"
	"github.com/schoolstock/stockroom-backend/pkg/security"
)

type stubUserRepo struct {
	byEmail map[string]*models.User
	created []users.CreateUserDTO
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byEmail: make(map[string]*models.User)}
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserRepo) Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error) {
	s.created = append(s.created, dto)
	user := dto.ToModel()
	s.byEmail[user.Email] = user
	return user, nil
}

type stubSessionManager struct {
	sessions map[string]string
	revoked  []string
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{sessions: make(map[string]string)}
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.sessions[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := s.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.sessions, oldAccessID)
	newID := uuid.NewString()
	newToken := "refresh-" + newID
	s.sessions[newID] = newToken
	return newID, newToken, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	delete(s.sessions, accessID)
	s.revoked = append(s.revoked, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "stockroom",
		ExpirationMinutes: 30,
	}
}

func newAuthService(t *testing.T, repo *stubUserRepo, sessions *stubSessionManager) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
		PasswordConfig: config.PasswordConfig{},
	})
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, repo *stubUserRepo, email, password string, role enums.Role) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test User",
		Role:         role,
		PasswordHash: hash,
	}
	repo.byEmail[email] = user
	return user
}

func TestLoginSuccess(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	svc := newAuthService(t, repo, sessions)

	user := seedUser(t, repo, "manager@school.test", "correct horse", enums.RoleStockManager)

	result, err := svc.Login(context.Background(), LoginRequest{
		Email:    "Manager@School.Test",
		Password: "correct horse",
	})
	require.NoError(t, err)

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, enums.RoleStockManager, claims.Role)
	assert.NotEmpty(t, result.RefreshToken)
	require.NotNil(t, result.User)
	assert.Equal(t, user.Email, result.User.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(t, repo, newStubSessionManager())
	seedUser(t, repo, "t@school.test", "right", enums.RoleTeacher)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "t@school.test", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newAuthService(t, newStubUserRepo(), newStubSessionManager())

	_, err := svc.Login(context.Background(), LoginRequest{Email: "nobody@school.test", Password: "x"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshRotatesSession(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	svc := newAuthService(t, repo, sessions)
	seedUser(t, repo, "t@school.test", "pw123456", enums.RoleTeacher)

	login, err := svc.Login(context.Background(), LoginRequest{Email: "t@school.test", Password: "pw123456"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the old pair must be dead after rotation
	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshRejectsBogusToken(t *testing.T) {
	svc := newAuthService(t, newStubUserRepo(), newStubSessionManager())

	_, err := svc.Refresh(context.Background(), RefreshRequest{AccessToken: "garbage", RefreshToken: "x"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := newStubSessionManager()
	svc := newAuthService(t, newStubUserRepo(), sessions)

	require.NoError(t, svc.Logout(context.Background(), "session-1"))
	assert.Equal(t, []string{"session-1"}, sessions.revoked)

	err := svc.Logout(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(t, repo, newStubSessionManager())

	result, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "New.Teacher@School.Test",
		Name:     "New Teacher",
		Role:     enums.RoleTeacher,
		Password: "pw123456",
	})
	require.NoError(t, err)

	assert.Equal(t, "new.teacher@school.test", result.User.Email)
	require.Len(t, repo.created, 1)
	assert.NotEqual(t, "pw123456", repo.created[0].PasswordHash)

	ok, err := security.VerifyPassword("pw123456", repo.created[0].PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterRejectsInvalidRole(t *testing.T) {
	svc := newAuthService(t, newStubUserRepo(), newStubSessionManager())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "x@school.test",
		Name:     "X",
		Role:     "principal",
		Password: "pw123456",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
