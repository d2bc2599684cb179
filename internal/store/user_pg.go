package store

import (
	"context"
	"errors"
	"strings"

	"keerthanaapi/internal/auth"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserPG struct {
	db *pgxpool.Pool
}

func NewUserPG(db *pgxpool.Pool) *UserPG {
	return &UserPG{db: db}
}

func (r *UserPG) Create(ctx context.Context, u *auth.User) error {
	const query = `
		INSERT INTO users (email, name, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash
		RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, strings.ToLower(u.Email), u.Name, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
}

func (r *UserPG) GetByEmail(ctx context.Context, email string) (auth.User, error) {
	const query = `SELECT id, email, name, password_hash, created_at FROM users WHERE email = $1`
	return r.getOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserPG) GetByID(ctx context.Context, id string) (auth.User, error) {
	const query = `SELECT id, email, name, password_hash, created_at FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *UserPG) getOne(ctx context.Context, query string, arg string) (auth.User, error) {
	var u auth.User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, err
	}
	return u, nil
}
