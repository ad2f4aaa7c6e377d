package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-identity-core/apierrors"
	"github.com/jrsteele09/go-identity-core/sessions"
	"github.com/jrsteele09/go-identity-core/token"
	"github.com/jrsteele09/go-identity-core/users"
)

// AdmissionLimiter gates issuance-sensitive operations. A nil limiter
// disables gating (tests, local development).
type AdmissionLimiter interface {
	Check(ctx context.Context, identifier string, limit int64, window time.Duration) error
}

// LimitRule is an admission-control rule for one use site.
type LimitRule struct {
	Limit  int64
	Window time.Duration
}

// ServiceConfig configures the session service.
type ServiceConfig struct {
	Issuer           string
	SessionTokenTTL  time.Duration
	EmailTokenTTL    time.Duration
	EmailTokenSecret string

	SignInLimit       LimitRule
	SignUpLimit       LimitRule
	EmailConfirmLimit LimitRule
}

// DefaultServiceConfig returns production defaults for the rate rules.
func DefaultServiceConfig(issuer string) ServiceConfig {
	return ServiceConfig{
		Issuer:            issuer,
		SessionTokenTTL:   240 * time.Hour,
		EmailTokenTTL:     time.Hour,
		SignInLimit:       LimitRule{Limit: 3, Window: 5 * time.Second},
		SignUpLimit:       LimitRule{Limit: 3, Window: 12 * time.Hour},
		EmailConfirmLimit: LimitRule{Limit: 1, Window: time.Minute},
	}
}

// Service implements signin, signup, logout and email confirmation on top of
// the resolver and the session store.
type Service struct {
	cfg          ServiceConfig
	users        users.Repo
	sessionRepo  sessions.Repo
	fingerprints sessions.FingerprintRepo
	codec        *token.Codec
	resolver     *Resolver
	limiter      AdmissionLimiter
	log          zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the service logger.
func WithServiceLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// WithLimiter gates issuance endpoints with an admission limiter.
func WithLimiter(limiter AdmissionLimiter) ServiceOption {
	return func(s *Service) {
		s.limiter = limiter
	}
}

// NewService creates the session service.
func NewService(
	cfg ServiceConfig,
	userRepo users.Repo,
	sessionRepo sessions.Repo,
	fingerprints sessions.FingerprintRepo,
	codec *token.Codec,
	resolver *Resolver,
	options ...ServiceOption,
) (*Service, error) {
	if userRepo == nil || sessionRepo == nil || fingerprints == nil {
		return nil, errors.New("[NewService] repos are required")
	}
	if codec == nil {
		return nil, errors.New("[NewService] codec is required")
	}
	if resolver == nil {
		return nil, errors.New("[NewService] resolver is required")
	}

	s := &Service{
		cfg:          cfg,
		users:        userRepo,
		sessionRepo:  sessionRepo,
		fingerprints: fingerprints,
		codec:        codec,
		resolver:     resolver,
		log:          zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// SignInResult is a freshly published session with its session token.
type SignInResult struct {
	User         *users.User
	Session      *sessions.Session
	SessionToken string
}

// SignUp registers a new user and publishes a session for the requesting
// device.
func (s *Service) SignUp(ctx context.Context, username, email, password, ipAddress, userAgent string) (*SignInResult, error) {
	if err := s.admit(ctx, "signup:"+ipAddress, s.cfg.SignUpLimit); err != nil {
		return nil, err
	}
	if username == "" || email == "" || password == "" {
		return nil, apierrors.New(apierrors.CodeInvalidRequest, "username, email and password are required")
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "Service.SignUp HashPassword")
	}
	user, err := s.users.Create(ctx, &users.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	})
	if errors.Is(err, users.ErrAlreadyExists) {
		return nil, apierrors.New(apierrors.CodeAlreadyExists, "username or email already taken")
	}
	if err != nil {
		return nil, errors.Wrap(err, "Service.SignUp users.Create")
	}

	return s.publishSession(ctx, user, ipAddress, userAgent)
}

// SignIn authenticates credentials and publishes a session for the
// requesting device, reusing an active session opened from the same
// (owner, ip, fingerprint) triple.
func (s *Service) SignIn(ctx context.Context, login, password, ipAddress, userAgent string) (*SignInResult, error) {
	if err := s.admit(ctx, "signin:"+ipAddress, s.cfg.SignInLimit); err != nil {
		return nil, err
	}

	user, err := s.users.GetByLogin(ctx, login)
	if errors.Is(err, users.ErrNotFound) {
		return nil, apierrors.New(apierrors.CodeInvalidCredentials, "invalid login or password")
	}
	if err != nil {
		return nil, errors.Wrap(err, "Service.SignIn users.GetByLogin")
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		s.log.Debug().Str("ip", ipAddress).Int64("user_id", user.ID).Msg("failed signin attempt")
		return nil, apierrors.New(apierrors.CodeInvalidCredentials, "invalid login or password")
	}
	if !user.Active {
		return nil, apierrors.New(apierrors.CodeUserDeactivated, "user account deactivated")
	}

	return s.publishSession(ctx, user, ipAddress, userAgent)
}

// Logout resolves the presented session token and deactivates its session,
// invalidating every token bound to it.
func (s *Service) Logout(ctx context.Context, rawSessionToken, ipAddress, userAgent string) error {
	authData, err := s.resolver.Resolve(ctx, rawSessionToken,
		SessionTokenOnly(),
		WithClient(ipAddress, userAgent),
	)
	if err != nil {
		return err
	}
	if err := s.sessionRepo.Deactivate(ctx, authData.Session.ID); err != nil {
		return errors.Wrap(err, "Service.Logout sessions.Deactivate")
	}
	return nil
}

// IssueEmailConfirmation mints a one-time confirmation token for the user.
// Email tokens are the only kind not bound to a session; they are signed
// with a service-wide secret and always TTL-bounded.
func (s *Service) IssueEmailConfirmation(ctx context.Context, userID int64) (string, error) {
	if err := s.admit(ctx, fmt.Sprintf("emailconfirm:%d", userID), s.cfg.EmailConfirmLimit); err != nil {
		return "", err
	}
	raw, err := s.codec.Encode(
		token.NewEmailConfirmation(s.cfg.Issuer, s.cfg.EmailTokenTTL, userID),
		[]byte(s.cfg.EmailTokenSecret),
	)
	if err != nil {
		return "", errors.Wrap(err, "Service.IssueEmailConfirmation Encode")
	}
	return raw, nil
}

// ConfirmEmail verifies a confirmation token and marks the subject's email
// address as verified.
func (s *Service) ConfirmEmail(ctx context.Context, rawToken string) (*users.User, error) {
	tok, err := s.codec.Decode(rawToken, token.KindEmail, []byte(s.cfg.EmailTokenSecret))
	if err != nil {
		return nil, mapTokenError(err)
	}
	user, err := s.users.GetByID(ctx, tok.Subject)
	if errors.Is(err, users.ErrNotFound) {
		return nil, apierrors.New(apierrors.CodeInvalidCredentials, "user with given token does not exist")
	}
	if err != nil {
		return nil, errors.Wrap(err, "Service.ConfirmEmail users.GetByID")
	}
	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		return nil, errors.Wrap(err, "Service.ConfirmEmail users.SetEmailVerified")
	}
	user.EmailVerified = true
	return user, nil
}

func (s *Service) publishSession(ctx context.Context, user *users.User, ipAddress, userAgent string) (*SignInResult, error) {
	fp, err := s.fingerprints.GetOrCreate(ctx, userAgent)
	if err != nil {
		return nil, errors.Wrap(err, "Service.publishSession fingerprints.GetOrCreate")
	}

	session, err := s.sessionRepo.FindActive(ctx, user.ID, ipAddress, fp.ID)
	if errors.Is(err, sessions.ErrNotFound) {
		session, err = s.sessionRepo.Create(ctx, user.ID, ipAddress, fp.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "Service.publishSession session lookup/create")
	}

	raw, err := s.codec.Encode(
		token.NewSession(s.cfg.Issuer, s.cfg.SessionTokenTTL, user.ID, session.ID),
		[]byte(session.TokenSecret),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Service.publishSession Encode")
	}

	return &SignInResult{User: user, Session: session, SessionToken: raw}, nil
}

func (s *Service) admit(ctx context.Context, identifier string, rule LimitRule) error {
	if s.limiter == nil || rule.Limit <= 0 {
		return nil
	}
	return s.limiter.Check(ctx, identifier, rule.Limit, rule.Window)
}
