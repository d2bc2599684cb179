package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"keerthanaapi/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(User), args.Error(1)
}

func (m *mockUserStore) GetByID(ctx context.Context, id string) (User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Error(1)
}

type fakeSessions struct {
	mu      sync.Mutex
	opened  []string
	closed  []string
	openErr error
}

func (f *fakeSessions) Engine(_ context.Context, userID string) (*catalog.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, userID)
	return nil, f.openErr
}

func (f *fakeSessions) Close(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, userID)
}

func testUser(t *testing.T) User {
	t.Helper()
	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)
	return User{ID: "user-1", Email: "vidya@example.com", Name: "Vidya", PasswordHash: hash}
}

func TestService_SignIn(t *testing.T) {
	u := testUser(t)

	t.Run("valid credentials", func(t *testing.T) {
		users := new(mockUserStore)
		users.On("GetByEmail", mock.Anything, "vidya@example.com").Return(u, nil)
		sessions := &fakeSessions{}
		svc := NewService(testSecret, time.Hour, users, sessions)

		token, expiresAt, got, err := svc.SignIn(context.Background(), " vidya@example.com ", "correct-horse")
		require.NoError(t, err)

		assert.NotEmpty(t, token)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, []string{"user-1"}, sessions.opened)

		p, err := svc.VerifyToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", p.UserID)
		assert.Equal(t, "vidya@example.com", p.Email)
		assert.NotEmpty(t, p.TokenID)
		users.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		users := new(mockUserStore)
		users.On("GetByEmail", mock.Anything, "vidya@example.com").Return(u, nil)
		sessions := &fakeSessions{}
		svc := NewService(testSecret, time.Hour, users, sessions)

		_, _, _, err := svc.SignIn(context.Background(), "vidya@example.com", "nope")
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Empty(t, sessions.opened)
	})

	t.Run("unknown user", func(t *testing.T) {
		users := new(mockUserStore)
		users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(User{}, ErrUserNotFound)
		svc := NewService(testSecret, time.Hour, users, &fakeSessions{})

		_, _, _, err := svc.SignIn(context.Background(), "ghost@example.com", "x")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("store failure is not unauthorized", func(t *testing.T) {
		users := new(mockUserStore)
		users.On("GetByEmail", mock.Anything, "vidya@example.com").Return(User{}, errors.New("connection refused"))
		svc := NewService(testSecret, time.Hour, users, &fakeSessions{})

		_, _, _, err := svc.SignIn(context.Background(), "vidya@example.com", "correct-horse")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("session load failure does not block sign in", func(t *testing.T) {
		users := new(mockUserStore)
		users.On("GetByEmail", mock.Anything, "vidya@example.com").Return(u, nil)
		svc := NewService(testSecret, time.Hour, users, &fakeSessions{openErr: errors.New("db down")})

		token, _, _, err := svc.SignIn(context.Background(), "vidya@example.com", "correct-horse")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})
}

func TestService_SignOut(t *testing.T) {
	sessions := &fakeSessions{}
	svc := NewService(testSecret, time.Hour, new(mockUserStore), sessions)

	token, _, err := GenerateToken(testSecret, "user-1", "vidya@example.com", time.Hour)
	require.NoError(t, err)

	_, err = svc.VerifyToken(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(context.Background(), token))
	assert.Equal(t, []string{"user-1"}, sessions.closed)

	_, err = svc.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized, "revoked token must be rejected")

	other, _, err := GenerateToken(testSecret, "user-1", "vidya@example.com", time.Hour)
	require.NoError(t, err)
	_, err = svc.VerifyToken(context.Background(), other)
	assert.NoError(t, err, "revocation is per token")

	assert.ErrorIs(t, svc.SignOut(context.Background(), "garbage"), ErrUnauthorized)
}

func TestService_Authenticate(t *testing.T) {
	u := testUser(t)
	users := new(mockUserStore)
	users.On("GetByID", mock.Anything, "user-1").Return(u, nil)
	users.On("GetByID", mock.Anything, "deleted").Return(User{}, ErrUserNotFound)
	svc := NewService(testSecret, time.Hour, users, nil)

	token, _, err := GenerateToken(testSecret, "user-1", u.Email, time.Hour)
	require.NoError(t, err)
	got, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Vidya", got.Name)

	gone, _, err := GenerateToken(testSecret, "deleted", "x@example.com", time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), gone)
	assert.ErrorIs(t, err, ErrUnauthorized)

	foreign, _, err := GenerateToken("other-secret", "user-1", u.Email, time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), foreign)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
