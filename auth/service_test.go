package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-identity-core/apierrors"
	"github.com/jrsteele09/go-identity-core/auth"
	"github.com/jrsteele09/go-identity-core/sessions/repofakes"
	"github.com/jrsteele09/go-identity-core/users/repofake"
)

// countingLimiter admits everything up to its limit, mimicking a fixed
// window that never resets.
type countingLimiter struct {
	calls map[string]int64
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{calls: make(map[string]int64)}
}

func (l *countingLimiter) Check(_ context.Context, identifier string, limit int64, window time.Duration) error {
	l.calls[identifier]++
	if l.calls[identifier] > limit {
		return apierrors.RateLimited(window)
	}
	return nil
}

type serviceFixture struct {
	service      *auth.Service
	users        *repofake.FakeUserRepo
	sessionRepo  *repofakes.FakeSessionRepo
	fingerprints *repofakes.FakeFingerprintRepo
	limiter      *countingLimiter
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := newResolverFixture(t)
	limiter := newCountingLimiter()

	cfg := auth.DefaultServiceConfig("issuer")
	cfg.EmailTokenSecret = "email-signing-secret"
	cfg.EmailTokenTTL = time.Hour

	service, err := auth.NewService(cfg, f.users, f.sessionRepo, f.fingerprints, f.codec, f.resolver,
		auth.WithLimiter(limiter),
	)
	require.NoError(t, err)

	return &serviceFixture{
		service:      service,
		users:        f.users,
		sessionRepo:  f.sessionRepo,
		fingerprints: f.fingerprints,
		limiter:      limiter,
	}
}

func TestServiceSignUpAndSignIn(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	signedUp, err := f.service.SignUp(ctx, "alice", "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)
	require.NotEmpty(t, signedUp.SessionToken)
	require.True(t, signedUp.Session.Active)

	signedIn, err := f.service.SignIn(ctx, "alice", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)
	assert.Equal(t, signedUp.User.ID, signedIn.User.ID)

	// Same owner, ip and device: the active session is reused, not duplicated.
	assert.Equal(t, signedUp.Session.ID, signedIn.Session.ID)

	// A different device opens a fresh session.
	other, err := f.service.SignIn(ctx, "alice", "s3cret", "10.0.0.1", "phone-browser")
	require.NoError(t, err)
	assert.NotEqual(t, signedUp.Session.ID, other.Session.ID)
}

func TestServiceSignInByEmail(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.SignUp(ctx, "alice", "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)

	_, err = f.service.SignIn(ctx, "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)
}

func TestServiceSignInWrongPassword(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.SignUp(ctx, "alice", "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)

	_, err = f.service.SignIn(ctx, "alice", "wrong", "10.0.0.1", "home-browser")
	require.True(t, apierrors.IsCode(err, apierrors.CodeInvalidCredentials))

	_, err = f.service.SignIn(ctx, "nobody", "wrong", "10.0.0.1", "home-browser")
	require.True(t, apierrors.IsCode(err, apierrors.CodeInvalidCredentials))
}

func TestServiceSignUpDuplicate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.SignUp(ctx, "alice", "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)

	_, err = f.service.SignUp(ctx, "alice", "other@example.com", "s3cret", "10.0.0.2", "home-browser")
	require.True(t, apierrors.IsCode(err, apierrors.CodeAlreadyExists))
}

func TestServiceSignInRateLimited(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.SignUp(ctx, "alice", "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)

	// The default signin rule allows 3 attempts per window per ip.
	for i := 0; i < 3; i++ {
		_, err = f.service.SignIn(ctx, "alice", "s3cret", "10.0.0.1", "home-browser")
		require.NoError(t, err)
	}
	_, err = f.service.SignIn(ctx, "alice", "s3cret", "10.0.0.1", "home-browser")
	require.True(t, apierrors.IsCode(err, apierrors.CodeRateLimited))

	// Another ip keeps its own counter.
	_, err = f.service.SignIn(ctx, "alice", "s3cret", "10.0.0.9", "home-browser")
	require.NoError(t, err)
}

func TestServiceLogout(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result, err := f.service.SignUp(ctx, "alice", "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, result.SessionToken, "10.0.0.1", "home-browser"))

	stored, err := f.sessionRepo.GetByID(ctx, result.Session.ID)
	require.NoError(t, err)
	require.False(t, stored.Active)

	// A closed session rejects its own token.
	err = f.service.Logout(ctx, result.SessionToken, "10.0.0.1", "home-browser")
	require.True(t, apierrors.IsCode(err, apierrors.CodeInvalidToken))
}

func TestServiceLogoutForeignClient(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result, err := f.service.SignUp(ctx, "alice", "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)

	err = f.service.Logout(ctx, result.SessionToken, "203.0.113.7", "other-browser")
	require.True(t, apierrors.IsCode(err, apierrors.CodeInvalidToken))
}

func TestServiceEmailConfirmation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result, err := f.service.SignUp(ctx, "alice", "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)
	require.False(t, result.User.EmailVerified)

	raw, err := f.service.IssueEmailConfirmation(ctx, result.User.ID)
	require.NoError(t, err)

	confirmed, err := f.service.ConfirmEmail(ctx, raw)
	require.NoError(t, err)
	require.True(t, confirmed.EmailVerified)

	stored, err := f.users.GetByID(ctx, result.User.ID)
	require.NoError(t, err)
	require.True(t, stored.EmailVerified)
}

func TestServiceConfirmEmailRejectsSessionToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result, err := f.service.SignUp(ctx, "alice", "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)

	_, err = f.service.ConfirmEmail(ctx, result.SessionToken)
	require.True(t, apierrors.IsCode(err, apierrors.CodeInvalidToken))
}

func TestServiceEmailConfirmationRateLimited(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	result, err := f.service.SignUp(ctx, "alice", "alice@example.com", "s3cret", "10.0.0.1", "home-browser")
	require.NoError(t, err)

	_, err = f.service.IssueEmailConfirmation(ctx, result.User.ID)
	require.NoError(t, err)
	_, err = f.service.IssueEmailConfirmation(ctx, result.User.ID)
	require.True(t, apierrors.IsCode(err, apierrors.CodeRateLimited))
}
