package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview-digital/showcase/internal/auth/cache"
	"github.com/harborview-digital/showcase/internal/auth/domain"
	"github.com/harborview-digital/showcase/internal/auth/store"
	"github.com/harborview-digital/showcase/internal/auth/store/drivers/sqlite"
)

// capturingNotifier records every message so tests can fish out the tokens
// that would normally arrive by email.
type capturingNotifier struct {
	mu sync.Mutex

	verificationTokens map[string]string // email -> token
	resetTokens        map[string]string
	passwordChanged    []string
	loginAlerts        []string
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{
		verificationTokens: make(map[string]string),
		resetTokens:        make(map[string]string),
	}
}

func (n *capturingNotifier) SendVerification(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verificationTokens[email] = token
	return nil
}

func (n *capturingNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetTokens[email] = token
	return nil
}

func (n *capturingNotifier) SendPasswordChanged(_ context.Context, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.passwordChanged = append(n.passwordChanged, email)
	return nil
}

func (n *capturingNotifier) SendLoginAlert(_ context.Context, email, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loginAlerts = append(n.loginAlerts, email)
	return nil
}

func (n *capturingNotifier) verificationToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verificationTokens[email]
}

func (n *capturingNotifier) resetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resetTokens[email]
}

// testClock is a settable clock shared by the services and the cache so
// tests can cross lockout and token-expiry boundaries instantly.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc      *SessionService
	notifier *capturingNotifier
	clock    *testClock
	cache    *cache.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clock := newTestClock()
	mem := cache.NewMemoryAt(clock.Now)
	notifier := newCapturingNotifier()

	tokens, err := NewTokenService(TokenConfig{
		Issuer:        "showcase-auth",
		Audience:      "showcase",
		AccessSecret:  []byte("test-access-secret-0123456789abcdef"),
		RefreshSecret: []byte("test-refresh-secret-0123456789abcdef"),
	})
	require.NoError(t, err)
	tokens.now = clock.Now

	svc := NewSessionService(st, mem, tokens, notifier)
	svc.now = clock.Now

	return &fixture{svc: svc, notifier: notifier, clock: clock, cache: mem}
}

func (f *fixture) register(t *testing.T, email, password string) domain.AccountView {
	t.Helper()
	view, err := f.svc.Register(context.Background(), email, password, "Test", "User")
	require.NoError(t, err)
	return view
}

var testDevice = domain.DeviceInfo{Type: "desktop", Browser: "Firefox", OS: "Linux", IP: "192.0.2.1"}

func TestRegisterAndVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")
	assert.Equal(t, "a@x.com", view.Email)
	assert.Equal(t, "user", view.Role)
	assert.False(t, view.EmailVerified)

	token := f.notifier.verificationToken("a@x.com")
	require.NotEmpty(t, token)

	require.NoError(t, f.svc.VerifyEmail(ctx, token))

	account, err := f.svc.GetAccount(ctx, view.ID)
	require.NoError(t, err)
	assert.True(t, account.EmailVerified)

	// The token was consumed: replaying it fails.
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, token), ErrInvalidOrExpiredToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)

	f.register(t, "a@x.com", "P@ssw0rd1")

	_, err := f.svc.Register(context.Background(), "A@X.com", "Different9!", "Other", "Person")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	f := newFixture(t)

	f.register(t, "a@x.com", "P@ssw0rd1")
	token := f.notifier.verificationToken("a@x.com")

	f.clock.Advance(VerificationTTL + time.Minute)

	assert.ErrorIs(t, f.svc.VerifyEmail(context.Background(), token), ErrInvalidOrExpiredToken)
}

func TestVerifyEmailRejectsResetToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))

	// A reset token presented to the verification flow is kind-confused.
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, f.notifier.resetToken("a@x.com")), ErrInvalidOrExpiredToken)
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")

	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)
	assert.False(t, result.TwoFactorRequired)
	require.NotNil(t, result.Pair)
	require.NotNil(t, result.Account)
	assert.NotNil(t, result.Account.LastLoginAt)

	claims, err := f.svc.VerifyAccess(ctx, result.Pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.Account.ID, claims.Subject)
	assert.Equal(t, result.Pair.SessionID, claims.SessionID)
}

func TestLoginDoesNotRevealAccountExistence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")

	_, unknownErr := f.svc.Login(ctx, "nobody@x.com", "P@ssw0rd1", "", false, testDevice)
	_, wrongErr := f.svc.Login(ctx, "a@x.com", "wrong-password", "", false, testDevice)

	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr, wrongErr)
}

func TestLoginLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")

	// Four wrong guesses leave the account open.
	for range 4 {
		_, err := f.svc.Login(ctx, "a@x.com", "wrong", "", false, testDevice)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// The fifth trips the lock.
	_, err := f.svc.Login(ctx, "a@x.com", "wrong", "", false, testDevice)
	assert.ErrorIs(t, err, ErrAccountLocked)

	// Even the correct password is refused while locked.
	_, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	assert.ErrorIs(t, err, ErrAccountLocked)

	// After the lockout window the correct password works and the counter
	// resets, so four more failures do not re-lock.
	f.clock.Advance(domain.LockoutDuration + time.Minute)

	_, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)

	for range 4 {
		_, err := f.svc.Login(ctx, "a@x.com", "wrong", "", false, testDevice)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")
	require.NoError(t, f.svc.Store.Accounts().SetActive(ctx, view.ID, false))

	_, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestLoginRememberMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")

	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", true, testDevice)
	require.NoError(t, err)
	assert.WithinDuration(t, f.clock.Now().Add(DefaultRememberMeTTL), result.Pair.RefreshExpiresAt, time.Second)
}

func TestRefreshKeepsRememberMeWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")

	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", true, testDevice)
	require.NoError(t, err)

	// Rotation keeps minting 30-day refresh tokens for a remember-me
	// session instead of shrinking the window to the default.
	pair, err := f.svc.Refresh(ctx, result.Pair.RefreshToken)
	require.NoError(t, err)
	assert.WithinDuration(t, f.clock.Now().Add(DefaultRememberMeTTL), pair.RefreshExpiresAt, time.Second)
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")
	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)
	first := *result.Pair

	rotated, err := f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, rotated.SessionID)
	assert.NotEqual(t, first.RefreshToken, rotated.RefreshToken)

	// The consumed refresh token cannot mint a second live pair.
	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	// The superseded access token is blacklisted until its own expiry.
	_, err = f.svc.VerifyAccess(ctx, first.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// The freshly rotated pair works.
	_, err = f.svc.VerifyAccess(ctx, rotated.AccessToken)
	assert.NoError(t, err)
	_, err = f.svc.Refresh(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")
	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, result.Pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshInactiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")
	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)

	require.NoError(t, f.svc.Store.Accounts().SetActive(ctx, view.ID, false))

	_, err = f.svc.Refresh(ctx, result.Pair.RefreshToken)
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")
	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)

	// Garbage never errors; logout leaks nothing about token validity.
	f.svc.Logout(ctx, "not-a-token")

	f.svc.Logout(ctx, result.Pair.RefreshToken)

	_, err = f.svc.Refresh(ctx, result.Pair.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = f.svc.VerifyAccess(ctx, result.Pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// Logging out twice is fine.
	f.svc.Logout(ctx, result.Pair.RefreshToken)
}

func TestForgotPasswordAntiEnumeration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")

	// Unknown email and known email both report success.
	assert.NoError(t, f.svc.ForgotPassword(ctx, "nobody@x.com"))
	assert.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))

	// Only the real account got a token.
	assert.Empty(t, f.notifier.resetToken("nobody@x.com"))
	assert.NotEmpty(t, f.notifier.resetToken("a@x.com"))
}

func TestResetPasswordKillsAllSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")

	// Two concurrent devices.
	first, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, domain.DeviceInfo{Type: "mobile", IP: "192.0.2.9"})
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	token := f.notifier.resetToken("a@x.com")
	require.NotEmpty(t, token)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "N3w-P@ssword"))

	// Every session is dead and every outstanding access token rejected.
	for _, pair := range []*domain.TokenPair{first.Pair, second.Pair} {
		_, err = f.svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, ErrSessionInvalid)
		_, err = f.svc.VerifyAccess(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	}

	// Old password is gone, new one works.
	_, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "a@x.com", "N3w-P@ssword", "", false, testDevice)
	assert.NoError(t, err)

	assert.Contains(t, f.notifier.passwordChanged, "a@x.com")
}

func TestResetPasswordTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	token := f.notifier.resetToken("a@x.com")

	require.NoError(t, f.svc.ResetPassword(ctx, token, "N3w-P@ssword"))

	// Replay is rejected: the stored fingerprint was cleared on use.
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "Third-P@ss9"), ErrInvalidOrExpiredToken)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	token := f.notifier.resetToken("a@x.com")

	f.clock.Advance(PasswordResetTTL + time.Minute)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "N3w-P@ssword"), ErrInvalidOrExpiredToken)
}

func TestResetPasswordSupersededToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	older := f.notifier.resetToken("a@x.com")
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))
	newer := f.notifier.resetToken("a@x.com")
	require.NotEqual(t, older, newer)

	// Only the most recently issued token matches the stored fingerprint.
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, older, "N3w-P@ssword"), ErrInvalidOrExpiredToken)
	assert.NoError(t, f.svc.ResetPassword(ctx, newer, "N3w-P@ssword"))
}

func TestTwoFactorLoginFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")

	setup, err := f.svc.SetupTwoFactor(ctx, view.ID, "P@ssw0rd1")
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.NotEmpty(t, setup.OTPAuthURL)

	codes, err := f.svc.VerifyTwoFactor(ctx, view.ID, totpCode(t, setup.Secret, f.clock.Now()))
	require.NoError(t, err)
	assert.Len(t, codes, backupCodeCount)

	// Password alone now yields a challenge, not tokens.
	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)
	assert.True(t, result.TwoFactorRequired)
	assert.Nil(t, result.Pair)

	// Wrong code is rejected.
	_, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "000000", false, testDevice)
	assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)

	// Live code completes the login.
	result, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", totpCode(t, setup.Secret, f.clock.Now()), false, testDevice)
	require.NoError(t, err)
	require.NotNil(t, result.Pair)
}

func TestTwoFactorClockSkew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")
	setup := f.enableTwoFactor(t, view.ID, "P@ssw0rd1")

	// A code from one step in the past is still accepted.
	stale := totpCode(t, setup.Secret, f.clock.Now().Add(-30*time.Second))
	_, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", stale, false, testDevice)
	assert.NoError(t, err)

	// Three steps out is beyond the skew window.
	tooOld := totpCode(t, setup.Secret, f.clock.Now().Add(-3*30*time.Second))
	_, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", tooOld, false, testDevice)
	assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)
}

func TestTwoFactorBackupCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")

	setup, err := f.svc.SetupTwoFactor(ctx, view.ID, "P@ssw0rd1")
	require.NoError(t, err)
	codes, err := f.svc.VerifyTwoFactor(ctx, view.ID, totpCode(t, setup.Secret, f.clock.Now()))
	require.NoError(t, err)

	// A backup code logs in once.
	_, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", codes[0], false, testDevice)
	require.NoError(t, err)

	// And never again.
	_, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", codes[0], false, testDevice)
	assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)
}

func TestTwoFactorFailuresCountTowardLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")
	f.enableTwoFactor(t, view.ID, "P@ssw0rd1")

	for range 4 {
		_, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "000000", false, testDevice)
		assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)
	}

	_, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "000000", false, testDevice)
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestSetupTwoFactorRequiresPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")

	_, err := f.svc.SetupTwoFactor(ctx, view.ID, "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDisableTwoFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")
	f.enableTwoFactor(t, view.ID, "P@ssw0rd1")

	assert.ErrorIs(t, f.svc.DisableTwoFactor(ctx, view.ID, "wrong", ""), ErrInvalidCredentials)
	assert.ErrorIs(t, f.svc.DisableTwoFactor(ctx, view.ID, "", "000000"), ErrInvalidCredentials)
	require.NoError(t, f.svc.DisableTwoFactor(ctx, view.ID, "P@ssw0rd1", ""))

	// Re-enroll and disable with a live code instead of the password.
	setup := f.enableTwoFactor(t, view.ID, "P@ssw0rd1")
	require.NoError(t, f.svc.DisableTwoFactor(ctx, view.ID, "", totpCode(t, setup.Secret, f.clock.Now())))

	// Password alone is enough again.
	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)
	assert.False(t, result.TwoFactorRequired)
	require.NotNil(t, result.Pair)
}

func (f *fixture) enableTwoFactor(t *testing.T, accountID, password string) domain.TwoFactorSetup {
	t.Helper()

	setup, err := f.svc.SetupTwoFactor(context.Background(), accountID, password)
	require.NoError(t, err)
	_, err = f.svc.VerifyTwoFactor(context.Background(), accountID, totpCode(t, setup.Secret, f.clock.Now()))
	require.NoError(t, err)
	return setup
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()

	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@x.com", "P@ssw0rd1")
	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Refresh(ctx, result.Pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrSessionInvalid)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestLoginStorageFailureOnBadTwoFactorCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")
	f.enableTwoFactor(t, view.ID, "P@ssw0rd1")

	f.svc.Store = &flakyStore{
		Store:           f.svc.Store,
		loginFailureErr: errors.New("database unreachable"),
	}

	// Correct password, wrong code, dead database: the caller must see the
	// storage failure, not a guess-again policy error.
	_, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "000000", false, testDevice)
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidTwoFactorCode)

	// Same taxonomy on the wrong-password path.
	_, err = f.svc.Login(ctx, "a@x.com", "wrong-password", "", false, testDevice)
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLeavesNoSessionOnAuditFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")

	real := f.svc.Store
	f.svc.Store = &flakyStore{
		Store:           real,
		loginSuccessErr: errors.New("database unreachable"),
	}

	_, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.ErrorIs(t, err, ErrStorageUnavailable)

	// The session row rolled back with the failed audit update.
	sessions, err := real.Sessions().ListActiveForAccount(ctx, view.ID, f.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")

	result, err := f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, view.ID, "wrong", "NewP@ss99"), ErrInvalidCredentials)
	require.NoError(t, f.svc.ChangePassword(ctx, view.ID, "P@ssw0rd1", "NewP@ss99"))

	_, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", "", false, testDevice)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "a@x.com", "NewP@ss99", "", false, testDevice)
	require.NoError(t, err)

	// Unlike a reset, the session held before the change stays usable.
	_, err = f.svc.Refresh(ctx, result.Pair.RefreshToken)
	require.NoError(t, err)

	assert.Contains(t, f.notifier.passwordChanged, "a@x.com")
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Unknown emails get the same silent success as known ones.
	require.NoError(t, f.svc.ResendVerification(ctx, "nobody@x.com"))

	f.register(t, "a@x.com", "P@ssw0rd1")
	first := f.notifier.verificationToken("a@x.com")

	require.NoError(t, f.svc.ResendVerification(ctx, "a@x.com"))
	second := f.notifier.verificationToken("a@x.com")
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)

	// Only the latest token redeems.
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, first), ErrInvalidOrExpiredToken)
	require.NoError(t, f.svc.VerifyEmail(ctx, second))

	// An already-verified account is not reissued anything.
	require.NoError(t, f.svc.ResendVerification(ctx, "a@x.com"))
	assert.Equal(t, second, f.notifier.verificationToken("a@x.com"))
}

func TestTwoFactorStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.register(t, "a@x.com", "P@ssw0rd1")

	status, err := f.svc.TwoFactorStatus(ctx, view.ID)
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.Zero(t, status.BackupCodesRemaining)

	setup, err := f.svc.SetupTwoFactor(ctx, view.ID, "P@ssw0rd1")
	require.NoError(t, err)
	codes, err := f.svc.VerifyTwoFactor(ctx, view.ID, totpCode(t, setup.Secret, f.clock.Now()))
	require.NoError(t, err)

	status, err = f.svc.TwoFactorStatus(ctx, view.ID)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Equal(t, len(codes), status.BackupCodesRemaining)

	// Spending a backup code at login shrinks the count.
	_, err = f.svc.Login(ctx, "a@x.com", "P@ssw0rd1", codes[0], false, testDevice)
	require.NoError(t, err)

	status, err = f.svc.TwoFactorStatus(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, len(codes)-1, status.BackupCodesRemaining)
}

// flakyStore wraps a real store and injects failures into chosen account
// operations, both directly and inside transactions.
type flakyStore struct {
	store.Store
	loginFailureErr error
	loginSuccessErr error
}

func (s *flakyStore) Accounts() store.Accounts {
	return &flakyAccounts{Accounts: s.Store.Accounts(), parent: s}
}

func (s *flakyStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(&flakyTx{storeTx: tx, parent: s})
	})
}

// storeTx aliases store.Tx so embedding it doesn't name the field "Tx",
// which would shadow the promoted Tx method required by store.Store.
type storeTx = store.Tx

type flakyTx struct {
	storeTx
	parent *flakyStore
}

func (t *flakyTx) Accounts() store.Accounts {
	return &flakyAccounts{Accounts: t.storeTx.Accounts(), parent: t.parent}
}

type flakyAccounts struct {
	store.Accounts
	parent *flakyStore
}

func (a *flakyAccounts) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, at time.Time) (int, *time.Time, error) {
	if err := a.parent.loginFailureErr; err != nil {
		return 0, nil, err
	}
	return a.Accounts.RecordLoginFailure(ctx, id, threshold, lockFor, at)
}

func (a *flakyAccounts) RecordLoginSuccess(ctx context.Context, id string, at time.Time, ip string) error {
	if err := a.parent.loginSuccessErr; err != nil {
		return err
	}
	return a.Accounts.RecordLoginSuccess(ctx, id, at, ip)
}
