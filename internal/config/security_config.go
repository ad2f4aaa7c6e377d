package config

import "time"

type SecurityConfig interface {
	GetSessionTokenExpiry() time.Duration
	GetEmailTokenExpiry() time.Duration
	GetEmailTokenSecret() string
	GetRejectWrongIP() bool
	GetRejectWrongUserAgent() bool
	GetRejectFast() bool
	GetEnableRateLimiting() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetSessionTokenExpiry() time.Duration {
	return 10 * 24 * time.Hour
}

func (Security) GetEmailTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (Security) GetEmailTokenSecret() string {
	return GetEnv("EMAIL_TOKEN_SECRET", "")
}

func (Security) GetRejectWrongIP() bool {
	return GetEnv("REJECT_WRONG_IP", "true") == "true"
}

func (Security) GetRejectWrongUserAgent() bool {
	return GetEnv("REJECT_WRONG_UA", "true") == "true"
}

func (Security) GetRejectFast() bool {
	return GetEnv("REJECT_FAST", "true") == "true"
}

func (Security) GetEnableRateLimiting() bool {
	return GetEnv("RATE_LIMITING", "true") == "true"
}
