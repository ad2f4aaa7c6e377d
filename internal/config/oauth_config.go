package config

import "time"

type OAuthConfig interface {
	GetScreenURL() string
	GetAuthCodeExpiry() time.Duration
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetScreenURL returns the interactive authorization screen the authorize
// endpoint redirects to.
func (OAuth) GetScreenURL() string {
	return GetEnv("OAUTH_SCREEN_URL", "http://localhost:3000/oauth/authorize")
}

func (OAuth) GetAuthCodeExpiry() time.Duration {
	return 15 * time.Minute
}

func (OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (OAuth) GetDefaultRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}
