package oauth

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-identity-core/apierrors"
	"github.com/jrsteele09/go-identity-core/scopes"
	"github.com/jrsteele09/go-identity-core/sessions"
	"github.com/jrsteele09/go-identity-core/token"
	"github.com/jrsteele09/go-identity-core/users"
)

// GrantType selects the token-exchange path.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantPassword          GrantType = "password"
	GrantClientCredentials GrantType = "client_credentials"
)

// GrantRequest is a token-exchange call.
type GrantRequest struct {
	GrantType    GrantType
	ClientID     int64
	ClientSecret string

	// Code and RedirectURI are required for the authorization_code grant.
	Code        string
	RedirectURI string

	// RefreshToken is required for the refresh_token grant.
	RefreshToken string
}

// GrantResult is a freshly minted token pair. ExpiresIn of zero means the
// access token never expires. Email is set only when the granted scope
// includes the email permission.
type GrantResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	UserID       int64
	Email        string
}

// ResolveGrant exchanges a grant for an access+refresh token pair.
func (e *Engine) ResolveGrant(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	switch req.GrantType {
	case GrantAuthorizationCode:
		return e.resolveAuthorizationCode(ctx, req)
	case GrantRefreshToken:
		return e.resolveRefreshToken(ctx, req)
	case GrantPassword:
		return nil, apierrors.New(apierrors.CodeNotImplemented, "password grant_type is not implemented")
	case GrantClientCredentials:
		return nil, apierrors.New(apierrors.CodeNotImplemented, "client_credentials grant_type is not implemented")
	}
	return nil, apierrors.New(apierrors.CodeInvalidRequest,
		"unknown grant_type, allowed: authorization_code, refresh_token, password, client_credentials")
}

// resolveAuthorizationCode verifies a one-time code and mints the pair. The
// checks run in a fixed order: redirect and client id against the values
// embedded at issuance, then the client secret, then the subject, and only
// then is the code consumed. A mismatch therefore never burns the code.
func (e *Engine) resolveAuthorizationCode(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	if req.Code == "" {
		return nil, apierrors.New(apierrors.CodeInvalidRequest, "code is required for the authorization_code grant type")
	}
	if req.RedirectURI == "" {
		return nil, apierrors.New(apierrors.CodeInvalidRequest, "redirect_uri is required for the authorization_code grant type")
	}

	signed, session, err := e.decodeWithSession(ctx, req.Code, token.KindOAuthCode)
	if err != nil {
		return nil, err
	}
	payload, ok := signed.Payload.(*token.OAuthCodePayload)
	if !ok {
		return nil, apierrors.New(apierrors.CodeInvalidToken, "token invalid")
	}

	if req.RedirectURI != payload.RedirectURI {
		return nil, apierrors.New(apierrors.CodeRedirectURIMismatch, "redirect_uri must match the one the code was issued with")
	}
	if req.ClientID != payload.ClientID {
		return nil, apierrors.New(apierrors.CodeClientIDMismatch, "given code was obtained with a different client")
	}
	if err := e.verifyClientSecret(ctx, req.ClientID, req.ClientSecret); err != nil {
		return nil, err
	}
	user, err := e.subjectUser(ctx, session, signed.Subject)
	if err != nil {
		return nil, err
	}

	switch err := e.repos.Codes.Consume(ctx, payload.CodeID); {
	case errors.Is(err, ErrCodeUsed):
		return nil, apierrors.New(apierrors.CodeExpiredToken, "code has expired or was already used")
	case errors.Is(err, ErrCodeNotFound):
		return nil, apierrors.New(apierrors.CodeInvalidToken, "token invalid")
	case err != nil:
		return nil, errors.Wrap(err, "Engine.resolveAuthorizationCode codes.Consume")
	}

	return e.mintPair(user, session, payload.Scope, req.ClientID)
}

// resolveRefreshToken mints a fresh pair from a refresh token. Refresh
// tokens carry no one-time-use record and the presented token stays valid
// after the exchange; the exchange does not rotate it.
func (e *Engine) resolveRefreshToken(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	if req.RefreshToken == "" {
		return nil, apierrors.New(apierrors.CodeInvalidRequest, "refresh_token is required for the refresh_token grant type")
	}

	signed, session, err := e.decodeWithSession(ctx, req.RefreshToken, token.KindRefresh)
	if err != nil {
		return nil, err
	}
	payload, ok := signed.Payload.(*token.RefreshPayload)
	if !ok {
		return nil, apierrors.New(apierrors.CodeInvalidToken, "token invalid")
	}

	if req.ClientID != payload.ClientID {
		return nil, apierrors.New(apierrors.CodeClientIDMismatch, "given refresh token was obtained with a different client")
	}
	if err := e.verifyClientSecret(ctx, req.ClientID, req.ClientSecret); err != nil {
		return nil, err
	}
	user, err := e.subjectUser(ctx, session, signed.Subject)
	if err != nil {
		return nil, err
	}

	return e.mintPair(user, session, payload.Scope, req.ClientID)
}

// decodeWithSession performs the two-phase decode: unsigned to learn the
// session, then verified with the session's secret.
func (e *Engine) decodeWithSession(ctx context.Context, raw string, kind token.Kind) (*token.Token, *sessions.Session, error) {
	unsigned, err := e.codec.DecodeUnsigned(raw, kind)
	if err != nil {
		return nil, nil, mapGrantTokenError(err)
	}
	sid, ok := unsigned.SessionID()
	if !ok {
		return nil, nil, apierrors.New(apierrors.CodeInvalidToken, "token carries no session")
	}

	session, err := e.repos.Sessions.GetByID(ctx, sid)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, nil, apierrors.New(apierrors.CodeInvalidToken, "token has not been linked to any session")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "Engine.decodeWithSession sessions.GetByID")
	}
	if !session.Active {
		return nil, nil, apierrors.New(apierrors.CodeInvalidToken, "session closed")
	}

	signed, err := e.codec.Decode(raw, kind, []byte(session.TokenSecret))
	if err != nil {
		return nil, nil, mapGrantTokenError(err)
	}
	return signed, session, nil
}

func (e *Engine) verifyClientSecret(ctx context.Context, clientID int64, clientSecret string) error {
	client, err := e.activeClient(ctx, clientID)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
		return apierrors.New(apierrors.CodeClientSecretMismatch, "invalid client secret")
	}
	return nil
}

func (e *Engine) subjectUser(ctx context.Context, session *sessions.Session, userID int64) (*users.User, error) {
	user, err := e.repos.Users.GetByID(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, apierrors.New(apierrors.CodeInvalidCredentials, "unable to find the user this grant belongs to")
	}
	if err != nil {
		return nil, errors.Wrap(err, "Engine.subjectUser users.GetByID")
	}
	if session.OwnerID != user.ID {
		return nil, apierrors.New(apierrors.CodeInvalidToken, "grant session was linked to another user")
	}
	return user, nil
}

// mintPair encodes the access+refresh pair bound to the session.
func (e *Engine) mintPair(user *users.User, session *sessions.Session, scope string, clientID int64) (*GrantResult, error) {
	permissions := e.parser.Parse(scope)
	ttl := scopes.TTLFor(permissions, e.cfg.AccessTokenTTL)
	normalized := e.parser.Normalize(scope)

	accessToken, err := e.codec.Encode(
		token.NewAccess(e.cfg.Issuer, ttl, user.ID, session.ID, normalized),
		[]byte(session.TokenSecret),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Engine.mintPair access Encode")
	}
	refreshToken, err := e.codec.Encode(
		token.NewRefresh(e.cfg.Issuer, e.cfg.RefreshTokenTTL, user.ID, session.ID, normalized, clientID),
		[]byte(session.TokenSecret),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Engine.mintPair refresh Encode")
	}

	result := &GrantResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    ttl,
		UserID:       user.ID,
	}
	if permissions.Has(scopes.PermissionEmail) {
		result.Email = user.Email
	}
	return result, nil
}

// mapGrantTokenError translates codec failures into the grant taxonomy.
func mapGrantTokenError(err error) error {
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
