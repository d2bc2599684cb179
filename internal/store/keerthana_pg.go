package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keerthanaapi/internal/keerthana"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreError wraps every failure reported by the record store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("keerthana store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is maps constraint violations to keerthana.ErrInvalid.
func (e *StoreError) Is(target error) bool {
	if target != keerthana.ErrInvalid {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		switch pgErr.Code {
		case "23502", "23514": // not_null_violation, check_violation
			return true
		}
	}
	return false
}

const keerthanaColumns = `id, name, raga, tala, composer, deity, date_taught, lyrics, meaning, notation_files, created_at`

type KeerthanaPG struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewKeerthanaPG(db *pgxpool.Pool, timeout time.Duration) *KeerthanaPG {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KeerthanaPG{db: db, timeout: timeout}
}

func (r *KeerthanaPG) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// List returns every keerthana, newest first.
func (r *KeerthanaPG) List(ctx context.Context) ([]keerthana.Entry, error) {
	query := `SELECT ` + keerthanaColumns + ` FROM keerthanas ORDER BY created_at DESC, id`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	out := []keerthana.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return out, nil
}

// Insert stores a new keerthana and returns the confirmed row.
func (r *KeerthanaPG) Insert(ctx context.Context, f keerthana.Fields) (keerthana.Entry, error) {
	row, err := toRow(f)
	if err != nil {
		return keerthana.Entry{}, &StoreError{Op: "insert", Err: err}
	}

	query := `
		INSERT INTO keerthanas (name, raga, tala, composer, deity, date_taught, lyrics, meaning, notation_files)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + keerthanaColumns

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	e, err := scanEntry(r.db.QueryRow(timeoutCtx, query,
		row.Name, row.Raga, row.Tala, row.Composer, row.Deity,
		row.DateTaught, row.Lyrics, row.Meaning, row.NotationFiles,
	))
	if err != nil {
		return keerthana.Entry{}, &StoreError{Op: "insert", Err: err}
	}
	return e, nil
}

// Update replaces every mutable column of the keerthana with the given id.
func (r *KeerthanaPG) Update(ctx context.Context, id string, f keerthana.Fields) (keerthana.Entry, error) {
	row, err := toRow(f)
	if err != nil {
		return keerthana.Entry{}, &StoreError{Op: "update", Err: err}
	}

	query := `
		UPDATE keerthanas SET
			name = $2,
			raga = $3,
			tala = $4,
			composer = $5,
			deity = $6,
			date_taught = $7,
			lyrics = $8,
			meaning = $9,
			notation_files = $10,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + keerthanaColumns

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	e, err := scanEntry(r.db.QueryRow(timeoutCtx, query, id,
		row.Name, row.Raga, row.Tala, row.Composer, row.Deity,
		row.DateTaught, row.Lyrics, row.Meaning, row.NotationFiles,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return keerthana.Entry{}, &StoreError{Op: "update", Err: keerthana.ErrNotFound}
		}
		return keerthana.Entry{}, &StoreError{Op: "update", Err: err}
	}
	return e, nil
}

// Delete removes the keerthana with the given id. Deleting an absent id is not an error.
func (r *KeerthanaPG) Delete(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, `DELETE FROM keerthanas WHERE id = $1`, id)
	if err != nil && !isInvalidID(err) {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

// Count returns the number of stored keerthanas.
func (r *KeerthanaPG) Count(ctx context.Context) (int, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var n int
	if err := r.db.QueryRow(timeoutCtx, `SELECT COUNT(*) FROM keerthanas`).Scan(&n); err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return n, nil
}

func scanEntry(row pgx.Row) (keerthana.Entry, error) {
	var r keerthanaRow
	if err := row.Scan(
		&r.ID, &r.Name, &r.Raga, &r.Tala, &r.Composer, &r.Deity,
		&r.DateTaught, &r.Lyrics, &r.Meaning, &r.NotationFiles, &r.CreatedAt,
	); err != nil {
		return keerthana.Entry{}, err
	}
	return fromRow(r)
}

// isInvalidID reports a malformed uuid, which can never match a row.
func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
