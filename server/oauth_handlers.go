package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-identity-core/apierrors"
	"github.com/jrsteele09/go-identity-core/auth"
	"github.com/jrsteele09/go-identity-core/oauth"
	"github.com/jrsteele09/go-identity-core/ratelimit"
)

// AuthorizeHandler validates the client and redirects the user agent to the
// authorization screen.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		clientID, err := strconv.ParseInt(query.Get("client_id"), 10, 64)
		if err != nil {
			s.writeError(w, r, apierrors.New(apierrors.CodeInvalidRequest, "client_id must be an integer"))
			return
		}

		redirect, err := s.services.OAuth.Authorize(r.Context(),
			clientID,
			query.Get("state"),
			query.Get("redirect_uri"),
			query.Get("scope"),
			oauth.ResponseType(query.Get("response_type")),
		)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
	}
}

// AllowClientHandler grants a client access on behalf of the session token
// presented in the Authorization header.
func (s *Server) AllowClientHandler() http.HandlerFunc {
	type request struct {
		ClientID     int64  `json:"client_id"`
		State        string `json:"state"`
		RedirectURI  string `json:"redirect_uri"`
		Scope        string `json:"scope"`
		ResponseType string `json:"response_type"`
	}
	type response struct {
		RedirectTo  string `json:"redirect_to"`
		Code        string `json:"code,omitempty"`
		AccessToken string `json:"access_token,omitempty"`
		ExpiresIn   int64  `json:"expires_in,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, apierrors.New(apierrors.CodeInvalidRequest, "malformed request body"))
			return
		}

		authData, err := s.services.Resolver.Resolve(r.Context(), bearerToken(r),
			auth.SessionTokenOnly(),
			auth.WithClient(clientIP(r), r.UserAgent()),
		)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.services.OAuth.AllowClient(r.Context(), authData.User, authData.Session, oauth.AllowRequest{
			ClientID:     req.ClientID,
			State:        req.State,
			RedirectURI:  req.RedirectURI,
			Scope:        req.Scope,
			ResponseType: oauth.ResponseType(req.ResponseType),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, response{
			RedirectTo:  result.RedirectTo,
			Code:        result.Code,
			AccessToken: result.AccessToken,
			ExpiresIn:   int64(result.ExpiresIn.Seconds()),
		})
	}
}

// TokenHandler exchanges a grant for an access+refresh pair. Exchange is one
// of the rate-limited admission points.
func (s *Server) TokenHandler() http.HandlerFunc {
	type response struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		UserID       int64  `json:"user_id"`
		Email        string `json:"email,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.writeError(w, r, apierrors.New(apierrors.CodeInvalidRequest, "malformed form body"))
			return
		}

		if s.services.Limiter != nil && s.config.GetEnableRateLimiting() {
			identifier := ratelimit.Identifier(clientIP(r), r.URL.Path)
			if err := s.services.Limiter.Check(r.Context(), identifier, 10, time.Minute); err != nil {
				s.writeError(w, r, err)
				return
			}
		}

		clientID, err := strconv.ParseInt(r.Form.Get("client_id"), 10, 64)
		if err != nil {
			s.writeError(w, r, apierrors.New(apierrors.CodeInvalidRequest, "client_id must be an integer"))
			return
		}

		result, err := s.services.OAuth.ResolveGrant(r.Context(), oauth.GrantRequest{
			GrantType:    oauth.GrantType(r.Form.Get("grant_type")),
			ClientID:     clientID,
			ClientSecret: r.Form.Get("client_secret"),
			Code:         r.Form.Get("code"),
			RedirectURI:  r.Form.Get("redirect_uri"),
			RefreshToken: r.Form.Get("refresh_token"),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, response{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			ExpiresIn:    int64(result.ExpiresIn.Seconds()),
			UserID:       result.UserID,
			Email:        result.Email,
		})
	}
}
