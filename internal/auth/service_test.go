package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhi-yo/quilly-sub000/internal/model"
	"github.com/abhi-yo/quilly-sub000/internal/repo"
)

type serviceFixture struct {
	svc    *Service
	users  *repo.MemoryUserRepo
	mailer *captureMailer
	now    time.Time
	slept  int
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		users:  repo.NewMemoryUserRepo(),
		mailer: &captureMailer{},
		now:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	otp := NewOTPService(
		repo.NewMemoryOTPRepo(),
		f.users,
		f.mailer,
		WithOTPClock(clock),
		WithOTPSleep(func(time.Duration) {}),
	)
	tokens := NewTokenService("test-secret-test-secret-test-sec")
	f.svc = NewService(
		f.users,
		otp,
		tokens,
		WithClock(clock),
		WithSleep(func(time.Duration) { f.slept++ }),
		WithHashCost(4),
	)
	return f
}

const goodPassword = "Aa1!abcd"

func (f *serviceFixture) signup(t *testing.T, email string) model.User {
	t.Helper()
	u, err := f.svc.Signup(context.Background(), SignupInput{
		Email:    email,
		Password: goodPassword,
		Name:     "Ann",
		Role:     model.RoleReader,
	}, "1.2.3.4")
	require.NoError(t, err)
	return u
}

func (f *serviceFixture) signupVerified(t *testing.T, email string) model.User {
	t.Helper()
	f.signup(t, email)
	code := f.mailer.LastCode(t)
	verified, err := f.svc.VerifyEmail(context.Background(), email, code)
	require.NoError(t, err)
	return verified
}

func TestSignup_createsUnverifiedUserAndSendsCode(t *testing.T) {
	f := newServiceFixture(t)

	u := f.signup(t, "a@x.com")
	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, model.RoleReader, u.Role)
	assert.False(t, u.Verified)
	assert.NotEmpty(t, f.mailer.LastCode(t))
}

func TestSignup_normalizesAndSanitizesInput(t *testing.T) {
	f := newServiceFixture(t)

	u, err := f.svc.Signup(context.Background(), SignupInput{
		Email:    "  Ann@X.COM ",
		Password: goodPassword,
		Name:     `Ann <script>"hi"</script>`,
		Role:     model.RoleWriter,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", u.Email)
	assert.NotContains(t, u.Name, "<")
	assert.NotContains(t, u.Name, `"`)
}

func TestSignup_validationErrors(t *testing.T) {
	f := newServiceFixture(t)
	tests := []struct {
		name string
		in   SignupInput
	}{
		{"bad email", SignupInput{Email: "not-an-email", Password: goodPassword, Role: model.RoleReader}},
		{"bad role", SignupInput{Email: "a@x.com", Password: goodPassword, Role: model.RoleAdmin}},
		{"weak password", SignupInput{Email: "a@x.com", Password: "password1", Role: model.RoleReader}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Signup(context.Background(), tc.in, "")
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.NotEmpty(t, vErr.Messages)
		})
	}
}

func TestSignup_weakPasswordReportsAllRules(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Signup(context.Background(), SignupInput{
		Email:    "b@x.com",
		Password: "password1",
		Role:     model.RoleReader,
	}, "")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Messages, "password is too common")
	assert.Contains(t, vErr.Messages, "password must not contain the word password")
}

func TestSignup_duplicateEmailConflicts(t *testing.T) {
	f := newServiceFixture(t)

	f.signup(t, "b@x.com")
	_, err := f.svc.Signup(context.Background(), SignupInput{
		Email:    "B@x.com",
		Password: goodPassword,
		Role:     model.RoleReader,
	}, "")
	assert.ErrorIs(t, err, ErrAccountExists)

	// Still exactly one account.
	_, err = f.users.GetByEmail(context.Background(), "b@x.com")
	assert.NoError(t, err)
}

func TestSignIn_unknownUserIsGenericAndDelayed(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.SignIn(context.Background(), "ghost@x.com", goodPassword, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, f.slept, "missing-user path must burn the same delay")
}

func TestSignIn_wrongPasswordThenSuccess(t *testing.T) {
	f := newServiceFixture(t)
	f.signupVerified(t, "a@x.com")

	_, err := f.svc.SignIn(context.Background(), "a@x.com", "Wrong1!aa", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := f.svc.SignIn(context.Background(), "a@x.com", goodPassword, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, 0, res.User.FailedLogins)
	assert.NotNil(t, res.User.LastLoginAt)
}

func TestSignIn_unverifiedUserGetsFreshCodeNotSession(t *testing.T) {
	f := newServiceFixture(t)
	f.signup(t, "a@x.com")

	res, err := f.svc.SignIn(context.Background(), "a@x.com", goodPassword, "")
	require.NoError(t, err)
	assert.True(t, res.RequiresVerification)
	assert.Empty(t, res.Token)

	// A fresh code was issued and is the one that verifies.
	code := f.mailer.LastCode(t)
	_, err = f.svc.VerifyEmail(context.Background(), "a@x.com", code)
	assert.NoError(t, err)
}

func TestSignIn_lockoutAfterFiveFailures(t *testing.T) {
	f := newServiceFixture(t)
	f.signupVerified(t, "a@x.com")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.SignIn(ctx, "a@x.com", "Wrong1!aa", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
	}

	// Locked now, even with the correct password.
	_, err := f.svc.SignIn(ctx, "a@x.com", goodPassword, "")
	var lErr *LockedError
	require.ErrorAs(t, err, &lErr)
	assert.Equal(t, f.now.Add(30*time.Minute), lErr.Until)

	// After the lockout passes, the correct password works and counters clear.
	f.now = f.now.Add(31 * time.Minute)
	res, err := f.svc.SignIn(ctx, "a@x.com", goodPassword, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	u, err := f.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 0, u.FailedLogins)
	assert.Nil(t, u.LockedUntil)
}

func TestVerifyEmail_unknownEmailReportsExpired(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.VerifyEmail(context.Background(), "ghost@x.com", "123456")
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestResendOTP(t *testing.T) {
	f := newServiceFixture(t)
	f.signup(t, "a@x.com")

	require.NoError(t, f.svc.ResendOTP(context.Background(), "a@x.com", ""))
	code := f.mailer.LastCode(t)
	_, err := f.svc.VerifyEmail(context.Background(), "a@x.com", code)
	assert.NoError(t, err)

	// Verified accounts are a no-op; unknown accounts surface ErrNotFound
	// for the handler to mask.
	assert.NoError(t, f.svc.ResendOTP(context.Background(), "a@x.com", ""))
	assert.ErrorIs(t, f.svc.ResendOTP(context.Background(), "ghost@x.com", ""), ErrNotFound)
}

func TestCompleteProfile(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	u, err := f.users.Create(ctx, model.User{
		Email:              "fed@x.com",
		Role:               model.RoleReader,
		NeedsRoleSelection: true,
	})
	require.NoError(t, err)

	updated, token, err := f.svc.CompleteProfile(ctx, u.ID, model.RoleWriter, "Fed")
	require.NoError(t, err)
	assert.Equal(t, model.RoleWriter, updated.Role)
	assert.Equal(t, "Fed", updated.Name)
	assert.False(t, updated.NeedsRoleSelection)
	assert.NotEmpty(t, token)

	_, _, err = f.svc.CompleteProfile(ctx, u.ID, model.RoleAdmin, "")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestLinkWallet(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.signupVerified(t, "a@x.com")

	updated, token, err := f.svc.LinkWallet(ctx, u.ID, " 0xabc123 ")
	require.NoError(t, err)
	require.NotNil(t, updated.WalletAddress)
	assert.Equal(t, "0xabc123", *updated.WalletAddress)
	assert.NotEmpty(t, token)

	_, _, err = f.svc.LinkWallet(ctx, u.ID, "   ")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestEndToEnd_signupVerifySignIn(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	u := f.signup(t, "a@x.com")
	require.NotEqual(t, "", u.ID.String())

	code := f.mailer.LastCode(t)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err := f.svc.VerifyEmail(ctx, "a@x.com", wrong)
	assert.ErrorIs(t, err, ErrOTPInvalid)

	verified, err := f.svc.VerifyEmail(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	res, err := f.svc.SignIn(ctx, "a@x.com", goodPassword, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}
