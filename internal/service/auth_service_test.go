package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	refreshTokens    map[string]*models.RefreshToken
	createErr        error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
	revokedAllFor    []string
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: map[string]*models.User{}, refreshTokens: map[string]*models.RefreshToken{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "generated-id"
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = &passwordHash
	}
	return nil
}

func (m *mockAuthRepo) UpdateEmail(ctx context.Context, id, email string, updatedAt time.Time) error {
	if u, ok := m.users[id]; ok {
		u.Email = email
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type fakeVerifier struct {
	token *auth.Token
	err   error
}

func (f fakeVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	return f.token, f.err
}

type recordingPublisher struct {
	events []realtime.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt realtime.Event) error {
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) topics() []string {
	out := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.Topic)
	}
	return out
}

func hashed(t *testing.T, password string) *string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s := string(h)
	return &s
}

func testAuthConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: 24 * time.Hour}
}

func TestAuthServiceRegisterCreatesMember(t *testing.T) {
	repo := newMockAuthRepo()
	pub := &recordingPublisher{}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig()).WithPublisher(pub)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Name: " Budi ", Email: "Budi@UPI.edu ", Password: "rahasia"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "budi@upi.edu", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)

	created := repo.users["generated-id"]
	require.NotNil(t, created)
	assert.Equal(t, models.VerificationNotSubmitted, created.VerificationStatus)
	assert.True(t, created.IsActive)
	assert.Equal(t, "Budi", created.Name)
	assert.Contains(t, pub.topics(), realtime.TopicUsers)
}

func TestAuthServiceRegisterRejectsTakenEmail(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "budi@upi.edu"})
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Budi", Email: "budi@upi.edu", Password: "rahasia"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterMapsUniqueViolation(t *testing.T) {
	repo := newMockAuthRepo()
	repo.createErr = &pq.Error{Code: "23505"}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Budi", Email: "budi@upi.edu", Password: "rahasia"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "123", Email: "admin@upi.edu", PasswordHash: hashed(t, "password"), IsActive: true, Role: models.RoleAdmin})
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ADMIN@upi.edu", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.True(t, repo.lastLoginUpdated)
	assert.Len(t, repo.refreshTokens, 1)
}

func TestAuthServiceLoginAllowsBannedAccounts(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "banned@upi.edu", PasswordHash: hashed(t, "password"), IsBanned: true})
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "banned@upi.edu", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "budi@upi.edu", PasswordHash: hashed(t, "password")})
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "budi@upi.edu", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginFederatedAccountHasNoPassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "fb-1", Email: "budi@upi.edu", AuthProvider: models.AuthProviderFirebase})
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "budi@upi.edu", Password: "anything"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceFederatedLoginCreatesUserKeyedByUID(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig()).
		WithIDTokenVerifier(fakeVerifier{token: &auth.Token{UID: "fb-42", Claims: map[string]interface{}{"email": "Sari@UPI.edu", "name": "Sari"}}})

	res, err := svc.FederatedLogin(context.Background(), models.FederatedLoginRequest{IDToken: "id-token"})
	require.NoError(t, err)
	assert.Equal(t, "fb-42", res.User.ID)

	created := repo.users["fb-42"]
	require.NotNil(t, created)
	assert.Equal(t, "sari@upi.edu", created.Email)
	assert.Equal(t, models.AuthProviderFirebase, created.AuthProvider)
	assert.Nil(t, created.PasswordHash)
}

func TestAuthServiceFederatedLoginWithoutProvider(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.FederatedLogin(context.Background(), models.FederatedLoginRequest{IDToken: "id-token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrProviderUnavailable.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceFederatedLoginInvalidToken(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), validator.New(), zap.NewNop(), testAuthConfig()).
		WithIDTokenVerifier(fakeVerifier{err: errors.New("expired")})

	_, err := svc.FederatedLogin(context.Background(), models.FederatedLoginRequest{IDToken: "id-token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@upi.edu", Role: models.RoleUser}
	repo := newMockAuthRepo(user)
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1"})
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(-time.Minute)}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "owner", Token: "token"}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), "token", "intruder", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceMeDefaultsMissingRole(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "budi@upi.edu", FullName: "Budi Santoso"})
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	info, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, info.Role)
	assert.Equal(t, "Budi Santoso", info.Name)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashed(t, "old-password")
	repo := newMockAuthRepo(&models.User{ID: "u1", PasswordHash: oldHash, IsActive: true})
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old-password", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*repo.users["u1"].PasswordHash), []byte("newpassword")))
	assert.Equal(t, []string{"u1"}, repo.revokedAllFor)
}

func TestAuthServiceChangeEmailRequiresPassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "old@upi.edu", PasswordHash: hashed(t, "password")})
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.ChangeEmail(context.Background(), "u1", models.ChangeEmailRequest{NewEmail: "new@upi.edu", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "old@upi.edu", repo.users["u1"].Email)

	info, err := svc.ChangeEmail(context.Background(), "u1", models.ChangeEmailRequest{NewEmail: "New@UPI.edu", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "new@upi.edu", info.Email)
	assert.Equal(t, "new@upi.edu", repo.users["u1"].Email)
}

func TestAuthServiceChangeEmailTaken(t *testing.T) {
	repo := newMockAuthRepo(
		&models.User{ID: "u1", Email: "old@upi.edu", PasswordHash: hashed(t, "password")},
		&models.User{ID: "u2", Email: "taken@upi.edu"},
	)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.ChangeEmail(context.Background(), "u1", models.ChangeEmailRequest{NewEmail: "taken@upi.edu", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, appErrors.FromError(err).Code)
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), validator.New(), zap.NewNop(), testAuthConfig())
	user := &models.User{ID: "u1", Email: "user@upi.edu", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	other := NewAuthService(newMockAuthRepo(), validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}
