// Package server is the HTTP transport over the identity core. Handlers stay
// thin: parse the request, call the service, translate typed failures to
// status codes.
package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-identity-core/auth"
	"github.com/jrsteele09/go-identity-core/internal/config"
	"github.com/jrsteele09/go-identity-core/oauth"
	"github.com/jrsteele09/go-identity-core/ratelimit"
)

// Services holds the core components the server fronts.
type Services struct {
	Sessions *auth.Service
	Resolver *auth.Resolver
	OAuth    *oauth.Engine
	Limiter  *ratelimit.Limiter
}

type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	services Services
	log      zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

func New(cfg config.Config, services Services, options ...Option) (*Server, error) {
	if services.Sessions == nil || services.Resolver == nil || services.OAuth == nil {
		return nil, fmt.Errorf("[Server New] sessions, resolver and oauth services are required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		services: services,
		env:      cfg.GetEnv(),
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	// SESSION
	s.RegisterRouteFunc("POST "+RouteSignUp, ChainMiddleware(s.SignUpHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteSignIn, ChainMiddleware(s.SignInHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware()...))

	// EMAIL CONFIRMATION
	s.RegisterRouteFunc("POST "+RouteEmailRequestConfirmation, ChainMiddleware(s.RequestEmailConfirmationHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteEmailConfirm, ChainMiddleware(s.ConfirmEmailHandler(), s.APIMiddleware()...))

	// OAUTH2
	s.RegisterRouteFunc("GET "+RouteOAuthAuthorize, ChainMiddleware(s.AuthorizeHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteOAuthAllow, ChainMiddleware(s.AllowClientHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteOAuthToken, ChainMiddleware(s.TokenHandler(), s.APIMiddleware()...))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// clientIP extracts the originating address, honouring the first entry of
// X-Forwarded-For when a proxy sits in front.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// bearerToken pulls the credential from the Authorization header, accepting
// both "Bearer x" and a bare token.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
