package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veloshop/veloshop_auth/internal/apperr"
)

// Repository persists users. Emails are stored lowercase; lookups are
// case-insensitive because callers normalize before calling.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	MarkVerified(ctx context.Context, id string) error
}

const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed user repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the users table when it does not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS users (
        id UUID PRIMARY KEY,
        name TEXT NOT NULL,
        email TEXT NOT NULL UNIQUE,
        phone_number TEXT NOT NULL DEFAULT '',
        password_hash TEXT NOT NULL,
        store_id TEXT NOT NULL,
        email_verified BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL
    )`)
	return err
}

// Create inserts a new user. The unique index on email resolves concurrent
// duplicate registrations to exactly one success.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid user id", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, name, email, phone_number, password_hash, store_id, email_verified, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, user.Name, user.Email, user.PhoneNumber, user.PasswordHash, user.StoreID, user.EmailVerified, user.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.E(apperr.KindConflict, "user with this email already exists")
		}
		return apperr.Wrap(apperr.KindTransient, "create user", err)
	}
	return nil
}

// FindByEmail fetches a user by normalized email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, email, phone_number, password_hash, store_id, email_verified, created_at
        FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, apperr.E(apperr.KindNotFound, "user not found")
	}
	row := r.db.QueryRow(ctx, `SELECT id, name, email, phone_number, password_hash, store_id, email_verified, created_at
        FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// UpdatePasswordHash replaces the stored credential for a user.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.updateOne(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
}

// MarkVerified flips the email verified flag.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	return r.updateOne(ctx, `UPDATE users SET email_verified = TRUE WHERE id = $1`, id)
}

// updateOne runs an UPDATE whose $1 is the user id; extra placeholders take
// args in order.
func (r *PostgresRepository) updateOne(ctx context.Context, query, id string, args ...any) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return apperr.E(apperr.KindNotFound, "user not found")
	}

	cmd, err := r.db.Exec(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "update user", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.E(apperr.KindNotFound, "user not found")
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		u         User
	)
	if err := row.Scan(&id, &u.Name, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.StoreID, &u.EmailVerified, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.E(apperr.KindNotFound, "user not found")
		}
		return User{}, apperr.Wrap(apperr.KindTransient, "scan user", err)
	}
	u.ID = id.String()
	u.CreatedAt = createdAt.UTC()
	return u, nil
}
