// Package token implements the signed-token machinery shared by every token
// kind the platform issues: a generic JWT envelope (typ/iss/sub/iat/exp) with
// a kind-specific payload, signed with HMAC-SHA256 under a caller-supplied
// key. Session, access, refresh and authorization-code tokens are signed with
// the per-session secret; email confirmation tokens with a service-wide key.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-identity-core/internal/utils"
)

// Kind is the application-level type tag of a token. The tag is embedded in
// the payload and validated on decode, so a token of one kind can never be
// presented where another is required.
type Kind string

const (
	KindSession   Kind = "session"
	KindAccess    Kind = "access"
	KindRefresh   Kind = "refresh"
	KindOAuthCode Kind = "oauth"
	KindEmail     Kind = "email"
)

// Payload holds the kind-specific claims of a token.
type Payload interface {
	Kind() Kind

	inject(claims jwt.MapClaims)
	parse(claims jwt.MapClaims) error
}

// Token is a decoded or to-be-encoded token. TTL of exactly zero means the
// token never expires: no expiry claim is emitted or checked. This is a
// deliberate escape hatch used by the noexpire permission and must not be
// approximated with a large TTL.
type Token struct {
	Issuer  string
	Subject int64
	TTL     time.Duration

	// IssuedAt and ExpiresAt are populated on decode. ExpiresAt is zero for
	// non-expiring tokens.
	IssuedAt  time.Time
	ExpiresAt time.Time

	// SignatureValid is true only after a verified decode. Unsigned decodes
	// always report false and must never be trusted for authorization.
	SignatureValid bool

	Payload Payload
}

// SessionID returns the session id carried by the payload, if the kind has
// one. Email confirmation tokens are the only kind without a session binding.
func (t *Token) SessionID() (int64, bool) {
	switch p := t.Payload.(type) {
	case *SessionPayload:
		return p.SessionID, true
	case *AccessPayload:
		return p.SessionID, true
	case *RefreshPayload:
		return p.SessionID, true
	case *OAuthCodePayload:
		return p.SessionID, true
	}
	return 0, false
}

// Scope returns the normalized scope string of scoped kinds, or "" for kinds
// that carry no scope (session and email tokens).
func (t *Token) Scope() string {
	switch p := t.Payload.(type) {
	case *AccessPayload:
		return p.Scope
	case *RefreshPayload:
		return p.Scope
	case *OAuthCodePayload:
		return p.Scope
	}
	return ""
}

// SessionPayload binds a session token to its issuing session.
type SessionPayload struct {
	SessionID int64
}

func (p *SessionPayload) Kind() Kind { return KindSession }

func (p *SessionPayload) inject(claims jwt.MapClaims) {
	claims["sid"] = p.SessionID
}

func (p *SessionPayload) parse(claims jwt.MapClaims) error {
	var err error
	p.SessionID, err = claimInt64(claims, "sid")
	return err
}

// AccessPayload carries the session binding and the granted scope.
type AccessPayload struct {
	SessionID int64
	Scope     string
}

func (p *AccessPayload) Kind() Kind { return KindAccess }

func (p *AccessPayload) inject(claims jwt.MapClaims) {
	claims["sid"] = p.SessionID
	claims["scope"] = p.Scope
}

func (p *AccessPayload) parse(claims jwt.MapClaims) error {
	var err error
	if p.SessionID, err = claimInt64(claims, "sid"); err != nil {
		return err
	}
	p.Scope, err = claimString(claims, "scope")
	return err
}

// RefreshPayload carries the session binding, the granted scope and the
// client that obtained the token.
type RefreshPayload struct {
	SessionID int64
	Scope     string
	ClientID  int64
}

func (p *RefreshPayload) Kind() Kind { return KindRefresh }

func (p *RefreshPayload) inject(claims jwt.MapClaims) {
	claims["sid"] = p.SessionID
	claims["scope"] = p.Scope
	claims["cid"] = p.ClientID
}

func (p *RefreshPayload) parse(claims jwt.MapClaims) error {
	var err error
	if p.SessionID, err = claimInt64(claims, "sid"); err != nil {
		return err
	}
	if p.Scope, err = claimString(claims, "scope"); err != nil {
		return err
	}
	p.ClientID, err = claimInt64(claims, "cid")
	return err
}

// OAuthCodePayload is the authorization-code token. CodeID references the
// persisted one-time-use record; RedirectURI and ClientID are verified
// against the exchange request at resolve time.
type OAuthCodePayload struct {
	SessionID   int64
	Scope       string
	RedirectURI string
	ClientID    int64
	CodeID      int64
}

func (p *OAuthCodePayload) Kind() Kind { return KindOAuthCode }

func (p *OAuthCodePayload) inject(claims jwt.MapClaims) {
	claims["sid"] = p.SessionID
	claims["scope"] = p.Scope
	claims["ruri"] = p.RedirectURI
	claims["cid"] = p.ClientID
	claims["id"] = p.CodeID
}

func (p *OAuthCodePayload) parse(claims jwt.MapClaims) error {
	var err error
	if p.SessionID, err = claimInt64(claims, "sid"); err != nil {
		return err
	}
	if p.Scope, err = claimString(claims, "scope"); err != nil {
		return err
	}
	if p.RedirectURI, err = claimString(claims, "ruri"); err != nil {
		return err
	}
	if p.ClientID, err = claimInt64(claims, "cid"); err != nil {
		return err
	}
	p.CodeID, err = claimInt64(claims, "id")
	return err
}

// EmailPayload has no fields beyond the envelope subject.
type EmailPayload struct{}

func (p *EmailPayload) Kind() Kind { return KindEmail }

func (p *EmailPayload) inject(jwt.MapClaims) {}

func (p *EmailPayload) parse(jwt.MapClaims) error { return nil }

// NewSession constructs a session token for encoding.
func NewSession(issuer string, ttl time.Duration, userID, sessionID int64) *Token {
	return &Token{
		Issuer:  issuer,
		Subject: userID,
		TTL:     ttl,
		Payload: &SessionPayload{SessionID: sessionID},
	}
}

// NewAccess constructs an access token for encoding.
func NewAccess(issuer string, ttl time.Duration, userID, sessionID int64, scope string) *Token {
	return &Token{
		Issuer:  issuer,
		Subject: userID,
		TTL:     ttl,
		Payload: &AccessPayload{SessionID: sessionID, Scope: scope},
	}
}

// NewRefresh constructs a refresh token for encoding.
func NewRefresh(issuer string, ttl time.Duration, userID, sessionID int64, scope string, clientID int64) *Token {
	return &Token{
		Issuer:  issuer,
		Subject: userID,
		TTL:     ttl,
		Payload: &RefreshPayload{SessionID: sessionID, Scope: scope, ClientID: clientID},
	}
}

// NewOAuthCode constructs an authorization-code token for encoding.
func NewOAuthCode(issuer string, ttl time.Duration, userID, sessionID int64, scope, redirectURI string, clientID, codeID int64) *Token {
	return &Token{
		Issuer:  issuer,
		Subject: userID,
		TTL:     ttl,
		Payload: &OAuthCodePayload{
			SessionID:   sessionID,
			Scope:       scope,
			RedirectURI: redirectURI,
			ClientID:    clientID,
			CodeID:      codeID,
		},
	}
}

// NewEmailConfirmation constructs an email confirmation token for encoding.
func NewEmailConfirmation(issuer string, ttl time.Duration, userID int64) *Token {
	return &Token{
		Issuer:  issuer,
		Subject: userID,
		TTL:     ttl,
		Payload: &EmailPayload{},
	}
}

func payloadFor(kind Kind) (Payload, error) {
	switch kind {
	case KindSession:
		return &SessionPayload{}, nil
	case KindAccess:
		return &AccessPayload{}, nil
	case KindRefresh:
		return &RefreshPayload{}, nil
	case KindOAuthCode:
		return &OAuthCodePayload{}, nil
	case KindEmail:
		return &EmailPayload{}, nil
	}
	return nil, errors.Wrapf(ErrInvalid, "unknown token kind %q", kind)
}

func claimInt64(claims jwt.MapClaims, name string) (int64, error) {
	v, ok := claims[name]
	if !ok {
		return 0, errors.Wrapf(ErrInvalid, "missing %q claim", name)
	}
	n, ok := utils.ToInt64(v)
	if !ok {
		return 0, errors.Wrapf(ErrInvalid, "claim %q is not a number", name)
	}
	return n, nil
}

func claimString(claims jwt.MapClaims, name string) (string, error) {
	v, ok := claims[name]
	if !ok {
		return "", errors.Wrapf(ErrInvalid, "missing %q claim", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Wrapf(ErrInvalid, "claim %q is not a string", name)
	}
	return s, nil
}
