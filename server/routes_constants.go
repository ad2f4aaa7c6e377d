package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Session Routes
	RouteSignUp = "/session/signup"
	RouteSignIn = "/session/signin"
	RouteLogout = "/session/logout"
	RouteMe     = "/session/me"

	// Email Verification Routes
	RouteEmailRequestConfirmation = "/email/request"
	RouteEmailConfirm             = "/email/confirm"

	// OAuth2 Routes
	RouteOAuthAuthorize = "/oauth/authorize"
	RouteOAuthAllow     = "/oauth/allow"
	RouteOAuthToken     = "/oauth/token"
)
