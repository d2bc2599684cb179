package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"keerthanaapi/internal/catalog"
	"keerthanaapi/internal/httpx"
	"keerthanaapi/internal/logging"

	gocache "github.com/patrickmn/go-cache"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUserNotFound = errors.New("user not found")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

// Sessions owns the per-user catalog state that lives between sign-in and
// sign-out.
type Sessions interface {
	catalog.EngineSource
	Close(userID string)
}

type Service struct {
	secret   string
	ttl      time.Duration
	users    UserStore
	sessions Sessions
	revoked  *gocache.Cache
}

func NewService(secret string, ttl time.Duration, users UserStore, sessions Sessions) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		secret:   secret,
		ttl:      ttl,
		users:    users,
		sessions: sessions,
		revoked:  gocache.New(ttl, 10*time.Minute),
	}
}

// SignIn checks the credentials and issues an access token. The user's
// catalog session is opened eagerly; a load failure is logged and retried on
// the first catalog request.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, time.Time, User, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", time.Time{}, User{}, ErrUnauthorized
		}
		return "", time.Time{}, User{}, err
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return "", time.Time{}, User{}, ErrUnauthorized
	}

	token, _, err := GenerateToken(s.secret, u.ID, u.Email, s.ttl)
	if err != nil {
		return "", time.Time{}, User{}, err
	}
	expiresAt := time.Now().Add(s.ttl)

	logger := logging.FromContext(ctx)
	if s.sessions != nil {
		if _, err := s.sessions.Engine(ctx, u.ID); err != nil {
			logger.Warn().Err(err).Str("user_id", u.ID).Msg("session load deferred")
		}
	}
	logger.Info().Str("user_id", u.ID).Msg("signed in")

	return token, expiresAt, u, nil
}

// SignOut revokes the token until it would have expired and discards the
// user's session, including any pending gated action.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return ErrUnauthorized
	}

	ttl := s.ttl
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl > 0 {
		s.revoked.Set(claims.ID, claims.Sub, ttl)
	}

	if s.sessions != nil {
		s.sessions.Close(claims.Sub)
	}
	logging.FromContext(ctx).Info().Str("user_id", claims.Sub).Msg("signed out")
	return nil
}

// VerifyToken implements httpx.TokenVerifier.
func (s *Service) VerifyToken(_ context.Context, token string) (httpx.Principal, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return httpx.Principal{}, ErrUnauthorized
	}
	if _, revoked := s.revoked.Get(claims.ID); revoked {
		return httpx.Principal{}, ErrUnauthorized
	}
	return httpx.Principal{UserID: claims.Sub, Email: claims.Email, TokenID: claims.ID}, nil
}

// Authenticate resolves a token to the signed-in user.
func (s *Service) Authenticate(ctx context.Context, token string) (User, error) {
	p, err := s.VerifyToken(ctx, token)
	if err != nil {
		return User{}, err
	}
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}
	return u, nil
}
