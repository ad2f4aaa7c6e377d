// Package clients holds the OAuth relying-party model. Clients are
// authenticated by the grant engine during token exchange; the core never
// mutates them beyond secret rotation.
package clients

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

const secretLength = 24

// Client is a registered OAuth relying party.
type Client struct {
	ID          int64     `json:"id"`
	Secret      string    `json:"-"` // never serialize
	OwnerID     int64     `json:"owner_id"`
	Active      bool      `json:"active"`
	Verified    bool      `json:"verified"`
	RedirectURI string    `json:"redirect_uri"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// GenerateSecret returns a new client secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "clients.GenerateSecret rand.Read")
	}
	return hex.EncodeToString(buf), nil
}
