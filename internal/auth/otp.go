package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhi-yo/quilly-sub000/internal/mail"
	"github.com/abhi-yo/quilly-sub000/internal/model"
	"github.com/abhi-yo/quilly-sub000/internal/repo"
)

const (
	otpTTL         = 10 * time.Minute
	otpMaxAttempts = 3
	// OTP codes are short-lived, so the bcrypt cost is far below the
	// password cost.
	otpHashCost      = 6
	otpMismatchDelay = time.Second
)

// OTPService issues and verifies email verification codes. Issuing
// supersedes any outstanding code for the user; verification is bounded to
// otpMaxAttempts per code.
type OTPService struct {
	otps   repo.OTPRepo
	users  repo.UserRepo
	mailer mail.Mailer
	now    func() time.Time
	sleep  func(time.Duration)
}

// OTPOption configures an OTPService.
type OTPOption func(*OTPService)

// WithOTPClock overrides the clock. Used by tests.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *OTPService) { s.now = now }
}

// WithOTPSleep overrides the mismatch delay. Used by tests.
func WithOTPSleep(sleep func(time.Duration)) OTPOption {
	return func(s *OTPService) { s.sleep = sleep }
}

// NewOTPService creates a new OTP service
func NewOTPService(otps repo.OTPRepo, users repo.UserRepo, mailer mail.Mailer, opts ...OTPOption) *OTPService {
	s := &OTPService{
		otps:   otps,
		users:  users,
		mailer: mailer,
		now:    time.Now,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a fresh 6-digit code for the user, replaces any prior
// outstanding code, and dispatches it by email. A failed dispatch is logged
// but does not roll back the stored code; the user can request a resend.
func (s *OTPService) Issue(ctx context.Context, user model.User, requestIP string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), otpHashCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	var ip *string
	if requestIP != "" {
		ip = &requestIP
	}

	if _, err := s.otps.Replace(ctx, user.ID, hash, s.now().Add(otpTTL), ip); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	subject := "Your Quilly verification code"
	body := fmt.Sprintf("<p>Your verification code is <strong>%s</strong>. It expires in 10 minutes.</p>", code)
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		log.Printf("failed to send verification email to %s: %v", mail.MaskEmail(user.Email), err)
	}
	return nil
}

// Verify checks the submitted code against the active record for the user.
// Missing or expired codes fail with ErrOTPExpired; an exhausted code is
// deleted and fails with ErrOTPLocked regardless of the submitted value; a
// mismatch increments the attempt counter and delays the response to blunt
// brute force. On match the record is deleted and the user marked verified.
func (s *OTPService) Verify(ctx context.Context, userID uuid.UUID, submitted string) error {
	rec, err := s.otps.GetActive(ctx, userID, s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOTPExpired
		}
		return fmt.Errorf("load code: %w", err)
	}

	if rec.Attempts >= otpMaxAttempts {
		_ = s.otps.Delete(ctx, rec.ID)
		return ErrOTPLocked
	}

	if bcrypt.CompareHashAndPassword(rec.CodeHash, []byte(submitted)) != nil {
		if _, err := s.otps.IncrementAttempts(ctx, rec.ID); err != nil {
			return fmt.Errorf("record attempt: %w", err)
		}
		s.sleep(otpMismatchDelay)
		return ErrOTPInvalid
	}

	if err := s.otps.Delete(ctx, rec.ID); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if err := s.users.MarkVerified(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// generateCode returns a cryptographically random 6-digit code, uniform in
// [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
