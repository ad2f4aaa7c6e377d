// Package oauth implements the OAuth2 grant engine: the authorization
// redirect, the post-consent allow-client flows (authorization code and
// implicit) and grant exchange.
package oauth

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-identity-core/apierrors"
	"github.com/jrsteele09/go-identity-core/clients"
	"github.com/jrsteele09/go-identity-core/scopes"
	"github.com/jrsteele09/go-identity-core/sessions"
	"github.com/jrsteele09/go-identity-core/token"
	"github.com/jrsteele09/go-identity-core/users"
)

// ResponseType selects the allow-client flow.
type ResponseType string

const (
	// ResponseTypeCode is the authorization-code flow: a short-lived
	// one-time code is minted and resolved server-side with the client
	// secret.
	ResponseTypeCode ResponseType = "code"

	// ResponseTypeToken is the implicit flow: the access token is returned
	// directly in the redirect fragment.
	ResponseTypeToken ResponseType = "token"
)

// Config holds the engine settings.
type Config struct {
	// Issuer is stamped into every minted token.
	Issuer string

	// ScreenURL is the interactive authorization screen the authorize
	// entry point redirects to. The screen lives outside this core.
	ScreenURL string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// CodeTTL bounds authorization-code tokens. Codes are resolved
	// immediately server-side, so this is on the order of minutes.
	CodeTTL time.Duration
}

// Repos holds the repository dependencies of the Engine.
type Repos struct {
	Clients   clients.Repo
	Users     users.Repo
	Sessions  sessions.Repo
	Codes     CodeRepo
	ClientUse ClientUseRepo
}

// Engine drives the OAuth2 flows.
type Engine struct {
	cfg    Config
	repos  Repos
	codec  *token.Codec
	parser scopes.Parser
	log    zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// WithEngineScopeParser overrides the scope parser.
func WithEngineScopeParser(parser scopes.Parser) EngineOption {
	return func(e *Engine) {
		e.parser = parser
	}
}

// NewEngine creates the grant engine. All repositories and the codec are
// required.
func NewEngine(cfg Config, repos Repos, codec *token.Codec, options ...EngineOption) (*Engine, error) {
	if repos.Clients == nil || repos.Users == nil || repos.Sessions == nil {
		return nil, errors.New("[NewEngine] clients, users and sessions repos are required")
	}
	if repos.Codes == nil || repos.ClientUse == nil {
		return nil, errors.New("[NewEngine] codes and client-use repos are required")
	}
	if codec == nil {
		return nil, errors.New("[NewEngine] codec is required")
	}

	e := &Engine{
		cfg:   cfg,
		repos: repos,
		codec: codec,
		log:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// Authorize validates the client and returns the authorization-screen URL
// the user agent should be redirected to. The interactive consent surface
// itself lives outside this core.
func (e *Engine) Authorize(ctx context.Context, clientID int64, state, redirectURI, scope string, responseType ResponseType) (string, error) {
	if responseType != ResponseTypeCode && responseType != ResponseTypeToken {
		return "", apierrors.New(apierrors.CodeInvalidRequest, "unknown response_type, allowed: code, token")
	}
	if _, err := e.activeClient(ctx, clientID); err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("client_id", fmt.Sprintf("%d", clientID))
	query.Set("state", state)
	query.Set("redirect_uri", redirectURI)
	query.Set("scope", scope)
	query.Set("response_type", string(responseType))
	return e.cfg.ScreenURL + "?" + query.Encode(), nil
}

// AllowRequest is the post-consent allow-client call.
type AllowRequest struct {
	ClientID     int64
	State        string
	RedirectURI  string
	Scope        string
	ResponseType ResponseType
}

// AllowResult carries the minted credential and the URL the user agent must
// be redirected to in order to finish the flow.
type AllowResult struct {
	RedirectTo string

	// Code is set for the authorization-code flow.
	Code string

	// AccessToken and ExpiresIn are set for the implicit flow. ExpiresIn of
	// zero means the token never expires.
	AccessToken string
	ExpiresIn   time.Duration
}

// AllowClient grants the client access on behalf of an authenticated session.
// The caller resolves the session token first; user and session come from
// that resolution.
func (e *Engine) AllowClient(ctx context.Context, user *users.User, session *sessions.Session, req AllowRequest) (*AllowResult, error) {
	client, err := e.activeClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	var result *AllowResult
	switch req.ResponseType {
	case ResponseTypeCode:
		result, err = e.allowCode(ctx, user, session, req)
	case ResponseTypeToken:
		result, err = e.allowImplicit(user, session, req)
	default:
		return nil, apierrors.New(apierrors.CodeInvalidRequest, "unknown response_type, allowed: code, token")
	}
	if err != nil {
		return nil, err
	}

	e.recordClientUse(ctx, user.ID, client.ID, e.parser.Normalize(req.Scope))
	return result, nil
}

// allowCode persists the one-time record first, then mints the code token
// carrying the record id.
func (e *Engine) allowCode(ctx context.Context, user *users.User, session *sessions.Session, req AllowRequest) (*AllowResult, error) {
	stored, err := e.repos.Codes.Create(ctx, user.ID, req.ClientID, session.ID)
	if err != nil {
		return nil, errors.Wrap(err, "Engine.allowCode codes.Create")
	}

	scope := e.parser.Normalize(req.Scope)
	code, err := e.codec.Encode(
		token.NewOAuthCode(e.cfg.Issuer, e.cfg.CodeTTL, user.ID, session.ID, scope, req.RedirectURI, req.ClientID, stored.ID),
		[]byte(session.TokenSecret),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Engine.allowCode Encode")
	}

	query := url.Values{}
	query.Set("code", code)
	query.Set("state", req.State)
	return &AllowResult{
		RedirectTo: req.RedirectURI + "?" + query.Encode(),
		Code:       code,
	}, nil
}

// allowImplicit mints the access token directly and embeds it in the
// redirect fragment. The user's email rides along only when the granted
// scope includes the email permission.
func (e *Engine) allowImplicit(user *users.User, session *sessions.Session, req AllowRequest) (*AllowResult, error) {
	permissions := e.parser.Parse(req.Scope)
	ttl := scopes.TTLFor(permissions, e.cfg.AccessTokenTTL)

	accessToken, err := e.codec.Encode(
		token.NewAccess(e.cfg.Issuer, ttl, user.ID, session.ID, e.parser.Normalize(req.Scope)),
		[]byte(session.TokenSecret),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Engine.allowImplicit Encode")
	}

	fragment := url.Values{}
	fragment.Set("token", accessToken)
	fragment.Set("user_id", fmt.Sprintf("%d", user.ID))
	fragment.Set("state", req.State)
	fragment.Set("expires_in", fmt.Sprintf("%d", int64(ttl.Seconds())))
	if permissions.Has(scopes.PermissionEmail) {
		fragment.Set("email", user.Email)
	}

	return &AllowResult{
		RedirectTo:  req.RedirectURI + "#" + fragment.Encode(),
		AccessToken: accessToken,
		ExpiresIn:   ttl,
	}, nil
}

// recordClientUse writes the usage statistic and the durable user-client
// link. Both are bookkeeping; failures are logged, never surfaced.
func (e *Engine) recordClientUse(ctx context.Context, userID, clientID int64, scope string) {
	if err := e.repos.ClientUse.RecordUse(ctx, userID, clientID); err != nil {
		e.log.Warn().Err(err).Int64("client_id", clientID).Msg("client-use record failed")
	}
	if err := e.repos.ClientUse.LinkIfAbsent(ctx, userID, clientID, scope); err != nil {
		e.log.Warn().Err(err).Int64("client_id", clientID).Msg("client-user link failed")
	}
}

// activeClient loads a client and rejects missing or deactivated ones.
func (e *Engine) activeClient(ctx context.Context, clientID int64) (*clients.Client, error) {
	client, err := e.repos.Clients.GetByID(ctx, clientID)
	if errors.Is(err, clients.ErrNotFound) {
		return nil, apierrors.New(apierrors.CodeClientNotFound, "client not found or deactivated")
	}
	if err != nil {
		return nil, errors.Wrap(err, "Engine.activeClient clients.GetByID")
	}
	if !client.Active {
		return nil, apierrors.New(apierrors.CodeClientNotFound, "client not found or deactivated")
	}
	return client, nil
}
