package token

import "errors"

var (
	// ErrEncoding is returned when a token cannot be encoded (missing issuer,
	// negative subject or TTL, absent signing key).
	ErrEncoding = errors.New("token encoding failed")

	// ErrWrongType is returned when a payload's type tag does not match the
	// kind requested by the decoder.
	ErrWrongType = errors.New("token has wrong type")

	// ErrExpired is returned when wall-clock time exceeds the token's
	// expiry claim.
	ErrExpired = errors.New("token expired")

	// ErrInvalidSignature is returned when the MAC does not verify against
	// the supplied key.
	ErrInvalidSignature = errors.New("token signature invalid")

	// ErrInvalid is returned for any other malformed token.
	ErrInvalid = errors.New("token invalid")
)
