package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Codec encodes and decodes tokens. The signing key is supplied per call:
// session-bound kinds use the per-session secret, so no service-wide signing
// key exists for them and revoking a session invalidates every token bound
// to it without a blacklist.
type Codec struct {
	nowFunc func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

// NewCodec creates a Codec.
func NewCodec(options ...CodecOption) *Codec {
	c := &Codec{nowFunc: time.Now}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Encode signs the token with the supplied symmetric key and returns the
// compact JWT string. Issuer must be non-empty, subject non-negative and TTL
// >= 0; a TTL of zero emits no expiry claim.
func (c *Codec) Encode(tok *Token, key []byte) (string, error) {
	if tok.Payload == nil {
		return "", errors.Wrap(ErrEncoding, "token has no payload")
	}
	if tok.Issuer == "" {
		return "", errors.Wrap(ErrEncoding, "issuer is required")
	}
	if tok.Subject < 0 {
		return "", errors.Wrap(ErrEncoding, "subject must be non-negative")
	}
	if tok.TTL < 0 {
		return "", errors.Wrap(ErrEncoding, "ttl must be >= 0")
	}
	if len(key) == 0 {
		return "", errors.Wrap(ErrEncoding, "signing key is required")
	}

	issuedAt := c.nowFunc()
	claims := jwt.MapClaims{
		"typ": string(tok.Payload.Kind()),
		"iss": tok.Issuer,
		"sub": tok.Subject,
		"iat": issuedAt.Unix(),
	}
	if tok.TTL > 0 {
		claims["exp"] = issuedAt.Add(tok.TTL).Unix()
	}
	tok.Payload.inject(claims)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", errors.Wrap(ErrEncoding, err.Error())
	}
	return signed, nil
}

// Decode parses the string, verifies the MAC against key and validates the
// expiry claim. On success the returned token reports SignatureValid.
func (c *Codec) Decode(raw string, kind Kind, key []byte) (*Token, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.nowFunc),
	)
	parsed, err := parser.Parse(raw, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, mapDecodeError(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrInvalid, "unexpected claims type")
	}
	tok, err := c.tokenFromClaims(claims, kind)
	if err != nil {
		return nil, err
	}
	tok.SignatureValid = true
	return tok, nil
}

// DecodeUnsigned parses the payload without verifying the signature or the
// expiry claim. The result always reports SignatureValid false; it exists
// only to learn routing fields (the session id) before the real key is known
// and must never be trusted for authorization decisions.
func (c *Codec) DecodeUnsigned(raw string, kind Kind) (*Token, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrInvalid, "unexpected claims type")
	}
	return c.tokenFromClaims(claims, kind)
}

func (c *Codec) tokenFromClaims(claims jwt.MapClaims, kind Kind) (*Token, error) {
	gotType, _ := claims["typ"].(string)
	if Kind(gotType) != kind {
		return nil, errors.Wrapf(ErrWrongType, "expected %q, got %q", kind, gotType)
	}

	issuer, err := claimString(claims, "iss")
	if err != nil {
		return nil, err
	}
	subject, err := claimInt64(claims, "sub")
	if err != nil {
		return nil, err
	}
	issuedAt, err := claimInt64(claims, "iat")
	if err != nil {
		return nil, err
	}

	tok := &Token{
		Issuer:   issuer,
		Subject:  subject,
		IssuedAt: time.Unix(issuedAt, 0),
	}
	if _, ok := claims["exp"]; ok {
		expiresAt, err := claimInt64(claims, "exp")
		if err != nil {
			return nil, err
		}
		tok.ExpiresAt = time.Unix(expiresAt, 0)
		tok.TTL = tok.ExpiresAt.Sub(tok.IssuedAt)
	}

	payload, err := payloadFor(kind)
	if err != nil {
		return nil, err
	}
	if err := payload.parse(claims); err != nil {
		return nil, err
	}
	tok.Payload = payload
	return tok, nil
}

// mapDecodeError translates jwt library failures into the package taxonomy.
// Signature failures take precedence over expiry, matching the order the
// verification runs in.
func mapDecodeError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return errors.Wrap(ErrInvalidSignature, err.Error())
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.Wrap(ErrExpired, err.Error())
	default:
		return errors.Wrap(ErrInvalid, err.Error())
	}
}
