package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhi-yo/quilly-sub000/internal/model"
)

// OTPRepo defines the interface for verification-code repository operations
type OTPRepo interface {
	// Replace atomically deletes any outstanding codes for the user and
	// inserts a new one, so at most one code is ever active.
	Replace(ctx context.Context, userID uuid.UUID, codeHash []byte, expiresAt time.Time, requestIP *string) (uuid.UUID, error)
	// GetActive returns the non-expired code for the user as of now.
	// Expired rows are excluded by the query, not eagerly deleted.
	GetActive(ctx context.Context, userID uuid.UUID, now time.Time) (model.OTPCode, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type otpRepo struct {
	db *sql.DB
}

// NewOTPRepo creates a new OTPRepo instance
func NewOTPRepo(db *sql.DB) OTPRepo {
	return &otpRepo{db: db}
}

func (r *otpRepo) Replace(ctx context.Context, userID uuid.UUID, codeHash []byte, expiresAt time.Time, requestIP *string) (uuid.UUID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM otp_codes WHERE user_id = $1`, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("delete outstanding codes: %w", err)
	}

	var idStr string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO otp_codes (user_id, code_hash, expires_at, request_ip)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, userID, codeHash, expiresAt, requestIP).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse code ID: %w", err)
	}
	return id, nil
}

func (r *otpRepo) GetActive(ctx context.Context, userID uuid.UUID, now time.Time) (model.OTPCode, error) {
	query := `
		SELECT id, user_id, code_hash, attempts, request_ip, created_at, expires_at
		FROM otp_codes
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var code model.OTPCode
	var idStr, userIDStr string
	err := r.db.QueryRowContext(ctx, query, userID, now).Scan(
		&idStr,
		&userIDStr,
		&code.CodeHash,
		&code.Attempts,
		&code.RequestIP,
		&code.CreatedAt,
		&code.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OTPCode{}, ErrNotFound
		}
		return model.OTPCode{}, fmt.Errorf("query code: %w", err)
	}
	code.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.OTPCode{}, fmt.Errorf("parse code ID: %w", err)
	}
	code.UserID, _ = uuid.Parse(userIDStr)
	return code, nil
}

// IncrementAttempts adds one to the attempt counter and returns the new value.
func (r *otpRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var newCount int
	err := r.db.QueryRowContext(ctx, `
		UPDATE otp_codes SET attempts = attempts + 1 WHERE id = $1
		RETURNING attempts
	`, id).Scan(&newCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return newCount, nil
}

func (r *otpRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
