// Package auth converts bearer strings into verified identities and hosts
// the signin/signup session service.
//
// No service-wide signing secret exists for session-bound tokens: a token is
// first decoded without verification to learn its session id, the session
// supplies its private secret, and only then is the signature checked. A
// compromised session secret therefore cannot forge tokens for any other
// session, and deactivating a session invalidates every token bound to it.
package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-identity-core/apierrors"
	"github.com/jrsteele09/go-identity-core/scopes"
	"github.com/jrsteele09/go-identity-core/sessions"
	"github.com/jrsteele09/go-identity-core/token"
	"github.com/jrsteele09/go-identity-core/users"
)

// Repos holds the repository dependencies of the Resolver.
type Repos struct {
	Sessions sessions.Repo
	Users    users.Repo
}

// AuthData is a verified (user, session, permission-set) triple.
type AuthData struct {
	User        *users.User
	Session     *sessions.Session
	Token       *token.Token
	Permissions scopes.Set
}

// Resolver turns inbound bearer strings into AuthData.
type Resolver struct {
	repos   Repos
	codec   *token.Codec
	guard   *Guard
	parser  scopes.Parser
	log     zerolog.Logger
	nowFunc func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger used for anomaly reporting.
func WithResolverLogger(log zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = log
	}
}

// WithScopeParser overrides the scope parser (e.g. a trimming one).
func WithScopeParser(parser scopes.Parser) ResolverOption {
	return func(r *Resolver) {
		r.parser = parser
	}
}

// WithResolverNowFunc sets the clock (primarily for testing).
func WithResolverNowFunc(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.nowFunc = now
	}
}

// NewResolver creates a Resolver. All dependencies are required.
func NewResolver(repos Repos, codec *token.Codec, guard *Guard, options ...ResolverOption) (*Resolver, error) {
	if repos.Sessions == nil {
		return nil, errors.New("[NewResolver] Sessions repo is required")
	}
	if repos.Users == nil {
		return nil, errors.New("[NewResolver] Users repo is required")
	}
	if codec == nil {
		return nil, errors.New("[NewResolver] codec is required")
	}
	if guard == nil {
		return nil, errors.New("[NewResolver] guard is required")
	}

	r := &Resolver{
		repos:   repos,
		codec:   codec,
		guard:   guard,
		log:     zerolog.Nop(),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

type resolveConfig struct {
	sessionToken         bool
	required             []scopes.Permission
	allowDeactivated     bool
	allowExternalClients bool
	updateLastSeen       bool
	clientIP             string
	userAgent            string
	hasClient            bool
}

// ResolveOption adjusts a single Resolve call.
type ResolveOption func(*resolveConfig)

// SessionTokenOnly resolves a session token instead of an access token.
// Session tokens carry no scope; permission requirements cannot be satisfied.
func SessionTokenOnly() ResolveOption {
	return func(c *resolveConfig) {
		c.sessionToken = true
	}
}

// WithRequiredPermissions fails resolution unless the token's scope grants
// every listed permission.
func WithRequiredPermissions(permissions ...scopes.Permission) ResolveOption {
	return func(c *resolveConfig) {
		c.required = permissions
	}
}

// AllowDeactivated permits deactivated users to resolve. Used by a few
// read-only diagnostic calls.
func AllowDeactivated() ResolveOption {
	return func(c *resolveConfig) {
		c.allowDeactivated = true
	}
}

// AllowExternalClients skips the session-binding guard.
func AllowExternalClients() ResolveOption {
	return func(c *resolveConfig) {
		c.allowExternalClients = true
	}
}

// WithOnlineUpdate refreshes the user's last-seen timestamp on success. The
// update is best-effort and never fails the resolution.
func WithOnlineUpdate() ResolveOption {
	return func(c *resolveConfig) {
		c.updateLastSeen = true
	}
}

// WithClient supplies the requesting client's IP and user-agent for the
// session-binding check. Without it the guard is not invoked.
func WithClient(ipAddress, userAgent string) ResolveOption {
	return func(c *resolveConfig) {
		c.clientIP = ipAddress
		c.userAgent = userAgent
		c.hasClient = true
	}
}

// Resolve verifies a bearer string and returns the authenticated identity.
func (r *Resolver) Resolve(ctx context.Context, rawToken string, options ...ResolveOption) (*AuthData, error) {
	var cfg resolveConfig
	for _, opt := range options {
		opt(&cfg)
	}

	if rawToken == "" {
		return nil, apierrors.New(apierrors.CodeAuthRequired, "authentication required")
	}

	kind := token.KindAccess
	if cfg.sessionToken {
		kind = token.KindSession
	}

	// Phase one: learn the session id without trusting anything else.
	unsigned, err := r.codec.DecodeUnsigned(rawToken, kind)
	if err != nil {
		return nil, mapTokenError(err)
	}

	permissions := r.parser.Parse(unsigned.Scope())
	if len(cfg.required) > 0 {
		if missing := permissions.Missing(cfg.required); len(missing) > 0 {
			return nil, apierrors.InsufficientPermissions(permissionStrings(missing))
		}
	}

	// Tokens granted the noexpire permission are exempt from the client
	// binding check, as are calls that explicitly allow external clients.
	allowExternal := cfg.allowExternalClients || permissions.Has(scopes.PermissionNoExpire)

	sid, ok := unsigned.SessionID()
	if !ok {
		return nil, apierrors.New(apierrors.CodeInvalidToken, "token carries no session")
	}

	session, err := r.repos.Sessions.GetByID(ctx, sid)
	if errors.Is(err, sessions.ErrNotFound) {
		// The token was syntactically fine but points at a session that does
		// not exist. This never happens under correct operation, so it is
		// reported as a system anomaly rather than a plain auth failure.
		r.log.Error().
			Int64("session_id", sid).
			Int64("subject", unsigned.Subject).
			Msg("integrity failure: token session does not resolve")
		return nil, apierrors.New(apierrors.CodeInvalidToken, "token invalid")
	}
	if err != nil {
		return nil, errors.Wrap(err, "Resolver.Resolve sessions.GetByID")
	}
	if !session.Active {
		return nil, apierrors.New(apierrors.CodeInvalidToken, "session closed")
	}

	if cfg.hasClient && !allowExternal {
		if err := r.guard.Check(ctx, session, cfg.clientIP, cfg.userAgent); err != nil {
			return nil, err
		}
	}

	// Phase two: verify the signature with the session's private secret.
	signed, err := r.codec.Decode(rawToken, kind, []byte(session.TokenSecret))
	if err != nil {
		return nil, mapTokenError(err)
	}

	user, err := r.repos.Users.GetByID(ctx, signed.Subject)
	if errors.Is(err, users.ErrNotFound) {
		return nil, apierrors.New(apierrors.CodeInvalidCredentials, "user with given token does not exist")
	}
	if err != nil {
		return nil, errors.Wrap(err, "Resolver.Resolve users.GetByID")
	}
	if !cfg.allowDeactivated && !user.Active {
		return nil, apierrors.New(apierrors.CodeUserDeactivated, "user account deactivated")
	}
	if session.OwnerID != user.ID {
		return nil, apierrors.New(apierrors.CodeInvalidToken, "token session was linked to another user")
	}

	if cfg.updateLastSeen {
		if err := r.repos.Users.UpdateLastSeen(ctx, user.ID, r.nowFunc()); err != nil {
			r.log.Debug().Err(err).Int64("user_id", user.ID).Msg("last-seen update failed")
		}
	}

	return &AuthData{
		User:        user,
		Session:     session,
		Token:       signed,
		Permissions: permissions,
	}, nil
}

// mapTokenError translates codec failures into the caller-visible taxonomy.
func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return apierrors.New(apierrors.CodeExpiredToken, "token expired")
	case errors.Is(err, token.ErrWrongType),
		errors.Is(err, token.ErrInvalidSignature),
		errors.Is(err, token.ErrInvalid):
		return apierrors.New(apierrors.CodeInvalidToken, "token invalid")
	default:
		return err
	}
}

func permissionStrings(permissions []scopes.Permission) []string {
	out := make([]string, 0, len(permissions))
	for _, p := range permissions {
		out = append(out, string(p))
	}
	return out
}
