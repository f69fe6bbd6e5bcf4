package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/abhi-yo/quilly-sub000/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error
	// RecordLoginFailure atomically increments the failure counter and, once
	// it reaches threshold, sets locked_until to lockUntil. Returns the new
	// counter value and the current lockout, if any.
	RecordLoginFailure(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error)
	// RecordLoginSuccess clears the failure counter and lockout and stamps
	// last_login_at.
	RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
	CompleteProfile(ctx context.Context, id uuid.UUID, role model.Role, name string) (model.User, error)
	LinkWallet(ctx context.Context, id uuid.UUID, address string) error
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, name, role, password_hash, verified_at, failed_logins,
	locked_until, needs_role_selection, wallet_address, last_login_at, created_at`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var idStr string
	var role string
	err := row.Scan(
		&idStr,
		&u.Email,
		&u.Name,
		&role,
		&u.PasswordHash,
		&u.VerifiedAt,
		&u.FailedLogins,
		&u.LockedUntil,
		&u.NeedsRoleSelection,
		&u.WalletAddress,
		&u.LastLoginAt,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	u.Role = model.Role(role)
	u.Verified = u.VerifiedAt != nil
	return u, nil
}

// Create inserts a new user. A duplicate email surfaces as ErrDuplicateEmail,
// whether caught by the caller's existence check or by the unique index during
// a concurrent signup race.
func (r *userRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	query := `
		INSERT INTO users (email, name, role, password_hash, needs_role_selection, wallet_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	var idStr string
	err := r.db.QueryRowContext(ctx, query,
		u.Email, u.Name, string(u.Role), u.PasswordHash, u.NeedsRoleSelection, u.WalletAddress,
	).Scan(&idStr, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by case-folded email
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// MarkVerified sets verified_at for the user
func (r *userRepo) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET verified_at = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) RecordLoginFailure(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	var count int
	var locked *time.Time
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET failed_logins = failed_logins + 1,
		    locked_until = CASE WHEN failed_logins + 1 >= $2 THEN $3 ELSE locked_until END
		WHERE id = $1
		RETURNING failed_logins, locked_until
	`, id, threshold, lockUntil).Scan(&count, &locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, fmt.Errorf("record login failure: %w", err)
	}
	return count, locked, nil
}

func (r *userRepo) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_logins = 0, locked_until = NULL, last_login_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteProfile sets the role chosen after federated login and clears the
// needs_role_selection flag.
func (r *userRepo) CompleteProfile(ctx context.Context, id uuid.UUID, role model.Role, name string) (model.User, error) {
	query := `
		UPDATE users
		SET role = $2,
		    name = CASE WHEN $3 <> '' THEN $3 ELSE name END,
		    needs_role_selection = FALSE
		WHERE id = $1
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, query, id, string(role), name)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("complete profile: %w", err)
	}
	return u, nil
}

func (r *userRepo) LinkWallet(ctx context.Context, id uuid.UUID, address string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET wallet_address = $2 WHERE id = $1
	`, id, address)
	if err != nil {
		return fmt.Errorf("link wallet: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
