// users.go - Credential store: user records backed by Postgres.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by the stores when a user, file record, or blob
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned by Create when the email is already taken.
// Signup checks first, but two concurrent signups can both pass the check
// and only the unique constraint decides the loser.
var ErrAlreadyExists = errors.New("already exists")

// User is a stored account. IsVerified starts false at signup and is only
// ever flipped to true by SetVerified.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	IsVerified   bool
	CreatedAt    time.Time
}

// UserStore persists user records. Implementations must support concurrent
// reads; SetVerified is the single mutation and must be atomic per user.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, email, passwordHash, role string) (User, error)
	SetVerified(ctx context.Context, email string) error
}

type postgresUserStore struct {
	db *sql.DB
}

// NewUserStore returns a Postgres-backed UserStore.
func NewUserStore(db *sql.DB) UserStore {
	return &postgresUserStore{db: db}
}

func (s *postgresUserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, is_verified, created_at
		 FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsVerified, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *postgresUserStore) Create(ctx context.Context, email, passwordHash, role string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, email, password_hash, role, is_verified, created_at`,
		email, passwordHash, role,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsVerified, &u.CreatedAt)
	if err != nil {
		// 23505 = unique_violation
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrAlreadyExists
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SetVerified flips is_verified to true. The update is idempotent, so
// concurrent verification of the same user is benign.
func (s *postgresUserStore) SetVerified(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_verified = TRUE WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
