package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhi-yo/quilly-sub000/internal/model"
)

// MemoryUserRepo is a mutex-guarded in-memory UserRepo used by tests.
type MemoryUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

// NewMemoryUserRepo creates an empty in-memory user repo.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[uuid.UUID]model.User)}
}

func (r *MemoryUserRepo) Create(_ context.Context, u model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.User{}, ErrDuplicateEmail
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (r *MemoryUserRepo) MarkVerified(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Verified = true
	u.VerifiedAt = &at
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepo) RecordLoginFailure(_ context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, nil, ErrNotFound
	}
	u.FailedLogins++
	if u.FailedLogins >= threshold {
		u.LockedUntil = &lockUntil
	}
	r.users[id] = u
	return u.FailedLogins, u.LockedUntil, nil
}

func (r *MemoryUserRepo) RecordLoginSuccess(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.FailedLogins = 0
	u.LockedUntil = nil
	u.LastLoginAt = &at
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepo) CompleteProfile(_ context.Context, id uuid.UUID, role model.Role, name string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	u.Role = role
	if name != "" {
		u.Name = name
	}
	u.NeedsRoleSelection = false
	r.users[id] = u
	return u, nil
}

func (r *MemoryUserRepo) LinkWallet(_ context.Context, id uuid.UUID, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.WalletAddress = &address
	r.users[id] = u
	return nil
}

// MemoryOTPRepo is a mutex-guarded in-memory OTPRepo used by tests.
type MemoryOTPRepo struct {
	mu    sync.Mutex
	codes map[uuid.UUID]model.OTPCode
}

// NewMemoryOTPRepo creates an empty in-memory OTP repo.
func NewMemoryOTPRepo() *MemoryOTPRepo {
	return &MemoryOTPRepo{codes: make(map[uuid.UUID]model.OTPCode)}
}

func (r *MemoryOTPRepo) Replace(_ context.Context, userID uuid.UUID, codeHash []byte, expiresAt time.Time, requestIP *string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.codes {
		if c.UserID == userID {
			delete(r.codes, id)
		}
	}
	id := uuid.New()
	r.codes[id] = model.OTPCode{
		ID:        id,
		UserID:    userID,
		CodeHash:  codeHash,
		RequestIP: requestIP,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	return id, nil
}

func (r *MemoryOTPRepo) GetActive(_ context.Context, userID uuid.UUID, now time.Time) (model.OTPCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.UserID == userID && now.Before(c.ExpiresAt) {
			return c, nil
		}
	}
	return model.OTPCode{}, ErrNotFound
}

func (r *MemoryOTPRepo) IncrementAttempts(_ context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok {
		return 0, ErrNotFound
	}
	c.Attempts++
	r.codes[id] = c
	return c.Attempts, nil
}

func (r *MemoryOTPRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[id]; !ok {
		return ErrNotFound
	}
	delete(r.codes, id)
	return nil
}
