package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhi-yo/quilly-sub000/internal/model"
	"github.com/abhi-yo/quilly-sub000/internal/password"
	"github.com/abhi-yo/quilly-sub000/internal/repo"
)

const (
	passwordHashCost = 14
	lockoutThreshold = 5
	lockoutDuration  = 30 * time.Minute
	// Fixed extra delay on the invalid-credential paths so "no such user"
	// and "wrong password" are not distinguishable by timing.
	invalidCredentialDelay = time.Second
	maxEmailLength         = 254
	maxNameLength          = 100
	maxWalletLength        = 128
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service orchestrates signup, verification, sign-in, lockout, and profile
// completion.
type Service struct {
	users    repo.UserRepo
	otp      *OTPService
	tokens   *TokenService
	now      func() time.Time
	sleep    func(time.Duration)
	hashCost int

	// dummyHash keeps the no-such-user path doing the same bcrypt work as
	// the wrong-password path.
	dummyHash []byte
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSleep overrides the credential-failure delay. Used by tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Service) { s.sleep = sleep }
}

// WithHashCost overrides the bcrypt cost. Used by tests to keep hashing fast.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// NewService creates a new account lifecycle service
func NewService(users repo.UserRepo, otp *OTPService, tokens *TokenService, opts ...Option) *Service {
	s := &Service{
		users:    users,
		otp:      otp,
		tokens:   tokens,
		now:      time.Now,
		sleep:    time.Sleep,
		hashCost: passwordHashCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("quilly-timing-pad"), s.hashCost)
	return s
}

// SignupInput is the set of fields accepted at signup.
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
}

// Signup validates input, creates the unverified user, and issues the first
// verification code. The duplicate-email check is advisory; the unique index
// in the store is the backstop for concurrent signups with the same email.
func (s *Service) Signup(ctx context.Context, in SignupInput, requestIP string) (model.User, error) {
	email := NormalizeEmail(in.Email)
	name := SanitizeName(in.Name)

	var msgs []string
	if email == "" || len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		msgs = append(msgs, "a valid email address is required")
	}
	if !model.ValidSignupRole(in.Role) {
		msgs = append(msgs, "role must be reader or writer")
	}
	if res := password.Validate(in.Password); !res.Valid {
		for _, e := range res.Errors {
			msgs = append(msgs, "password "+e)
		}
	}
	if len(msgs) > 0 {
		return model.User{}, &ValidationError{Messages: msgs}
	}

	// This check intentionally reports existence in the response; sign-in
	// keeps its error generic instead.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return model.User{}, ErrAccountExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return model.User{}, fmt.Errorf("check existing account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, model.User{
		Email:        email,
		Name:         name,
		Role:         in.Role,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return model.User{}, ErrAccountExists
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.otp.Issue(ctx, u, requestIP); err != nil {
		return model.User{}, fmt.Errorf("issue verification code: %w", err)
	}
	return u, nil
}

// SignInResult is the outcome of a successful credential check.
type SignInResult struct {
	User  model.User
	Token string
	// RequiresVerification is set when credentials were correct but the
	// account is unverified; a fresh code has been issued and no session
	// token is returned.
	RequiresVerification bool
}

// SignIn checks credentials, enforces lockout, and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, pw, requestIP string) (SignInResult, error) {
	email = NormalizeEmail(email)
	now := s.now()

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Burn the same bcrypt work and delay as a wrong password.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(pw))
			s.sleep(invalidCredentialDelay)
			return SignInResult{}, ErrInvalidCredentials
		}
		return SignInResult{}, fmt.Errorf("look up account: %w", err)
	}

	if u.Locked(now) {
		return SignInResult{}, &LockedError{Until: *u.LockedUntil}
	}

	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pw)) != nil {
		if _, _, err := s.users.RecordLoginFailure(ctx, u.ID, lockoutThreshold, now.Add(lockoutDuration)); err != nil {
			return SignInResult{}, fmt.Errorf("record login failure: %w", err)
		}
		s.sleep(invalidCredentialDelay)
		return SignInResult{}, ErrInvalidCredentials
	}

	if err := s.users.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		return SignInResult{}, fmt.Errorf("record login success: %w", err)
	}
	u.FailedLogins = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now

	if !u.Verified {
		if err := s.otp.Issue(ctx, u, requestIP); err != nil {
			return SignInResult{}, fmt.Errorf("issue verification code: %w", err)
		}
		return SignInResult{User: u, RequiresVerification: true}, nil
	}

	token, err := s.tokens.Sign(u)
	if err != nil {
		return SignInResult{}, fmt.Errorf("sign session token: %w", err)
	}
	return SignInResult{User: u, Token: token}, nil
}

// VerifyEmail resolves the account and runs OTP verification. An unknown
// email reports the same generic error as an expired code.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (model.User, error) {
	email = NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, ErrOTPExpired
		}
		return model.User{}, fmt.Errorf("look up account: %w", err)
	}

	if err := s.otp.Verify(ctx, u.ID, code); err != nil {
		return model.User{}, err
	}

	return s.users.GetByID(ctx, u.ID)
}

// ResendOTP issues a fresh verification code for an unverified account.
func (s *Service) ResendOTP(ctx context.Context, email, requestIP string) error {
	email = NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("look up account: %w", err)
	}
	if u.Verified {
		return nil
	}
	return s.otp.Issue(ctx, u, requestIP)
}

// CompleteProfile sets the role chosen by a federated-login user, clears the
// needs-role-selection flag, and re-issues the session token so the new
// claims take effect immediately.
func (s *Service) CompleteProfile(ctx context.Context, userID uuid.UUID, role model.Role, name string) (model.User, string, error) {
	if !model.ValidSignupRole(role) {
		return model.User{}, "", &ValidationError{Messages: []string{"role must be reader or writer"}}
	}

	u, err := s.users.CompleteProfile(ctx, userID, role, SanitizeName(name))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, "", ErrNotFound
		}
		return model.User{}, "", fmt.Errorf("complete profile: %w", err)
	}

	token, err := s.tokens.Sign(u)
	if err != nil {
		return model.User{}, "", fmt.Errorf("sign session token: %w", err)
	}
	return u, token, nil
}

// LinkWallet attaches a wallet address to the account and re-issues the
// session token so the wallet claim is carried immediately.
func (s *Service) LinkWallet(ctx context.Context, userID uuid.UUID, address string) (model.User, string, error) {
	address = stripUnsafe(strings.TrimSpace(address))
	if address == "" || len(address) > maxWalletLength {
		return model.User{}, "", &ValidationError{Messages: []string{"a wallet address is required"}}
	}

	if err := s.users.LinkWallet(ctx, userID, address); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, "", ErrNotFound
		}
		return model.User{}, "", fmt.Errorf("link wallet: %w", err)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, "", fmt.Errorf("reload account: %w", err)
	}
	token, err := s.tokens.Sign(u)
	if err != nil {
		return model.User{}, "", fmt.Errorf("sign session token: %w", err)
	}
	return u, token, nil
}

// NormalizeEmail trims, lowercases, and strips characters with markup or
// quoting significance.
func NormalizeEmail(email string) string {
	return stripUnsafe(strings.ToLower(strings.TrimSpace(email)))
}

// SanitizeName trims, strips unsafe characters, and bounds the length.
func SanitizeName(name string) string {
	name = stripUnsafe(strings.TrimSpace(name))
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}

func stripUnsafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '\'', '"', '`':
			return -1
		}
		return r
	}, s)
}
