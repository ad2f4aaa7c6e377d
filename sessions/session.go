// Package sessions defines the durable per-device authentication context
// every session-bound token is cryptographically tied to. A session carries
// its own signing secret, generated once at creation and never regenerated:
// flipping the active flag instantly invalidates every token bound to the
// session without a revocation list.
package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
)

const secretLength = 32 // 256 bits

// Session is a per-device authentication context.
type Session struct {
	ID            int64     `json:"id"`
	OwnerID       int64     `json:"owner_id"`
	TokenSecret   string    `json:"-"` // per-session signing secret, never serialized
	IPAddress     string    `json:"ip_address"`
	FingerprintID int64     `json:"fingerprint_id"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Fingerprint is a derived identifier for a requesting client, keyed by its
// raw user-agent string.
type Fingerprint struct {
	ID        int64  `json:"id"`
	UserAgent string `json:"user_agent"`
}

// GenerateSecret returns a new session signing secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "sessions.GenerateSecret rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
