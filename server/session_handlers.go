package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-identity-core/apierrors"
	"github.com/jrsteele09/go-identity-core/auth"
)

type sessionResponse struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	SessionToken string `json:"session_token"`
}

func sessionResponseFrom(result *auth.SignInResult) sessionResponse {
	return sessionResponse{
		UserID:       result.User.ID,
		Username:     result.User.Username,
		Email:        result.User.Email,
		SessionToken: result.SessionToken,
	}
}

func (s *Server) SignUpHandler() http.HandlerFunc {
	type request struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, apierrors.New(apierrors.CodeInvalidRequest, "malformed request body"))
			return
		}

		result, err := s.services.Sessions.SignUp(r.Context(),
			req.Username, req.Email, req.Password, clientIP(r), r.UserAgent())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponseFrom(result))
	}
}

func (s *Server) SignInHandler() http.HandlerFunc {
	type request struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, apierrors.New(apierrors.CodeInvalidRequest, "malformed request body"))
			return
		}

		result, err := s.services.Sessions.SignIn(r.Context(),
			req.Login, req.Password, clientIP(r), r.UserAgent())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponseFrom(result))
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.services.Sessions.Logout(r.Context(), bearerToken(r), clientIP(r), r.UserAgent())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// MeHandler resolves the presented session token and echoes the identity.
func (s *Server) MeHandler() http.HandlerFunc {
	type response struct {
		UserID        int64  `json:"user_id"`
		Username      string `json:"username"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		SessionID     int64  `json:"session_id"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		authData, err := s.services.Resolver.Resolve(r.Context(), bearerToken(r),
			auth.SessionTokenOnly(),
			auth.WithClient(clientIP(r), r.UserAgent()),
			auth.WithOnlineUpdate(),
		)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, response{
			UserID:        authData.User.ID,
			Username:      authData.User.Username,
			Email:         authData.User.Email,
			EmailVerified: authData.User.EmailVerified,
			SessionID:     authData.Session.ID,
		})
	}
}

func (s *Server) RequestEmailConfirmationHandler() http.HandlerFunc {
	type response struct {
		ConfirmationToken string `json:"confirmation_token"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		authData, err := s.services.Resolver.Resolve(r.Context(), bearerToken(r),
			auth.SessionTokenOnly(),
			auth.WithClient(clientIP(r), r.UserAgent()),
		)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		confirmationToken, err := s.services.Sessions.IssueEmailConfirmation(r.Context(), authData.User.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		// The token is returned directly; mail delivery is a separate
		// concern owned by the notification service.
		writeJSON(w, http.StatusOK, response{ConfirmationToken: confirmationToken})
	}
}

func (s *Server) ConfirmEmailHandler() http.HandlerFunc {
	type request struct {
		Token string `json:"token"`
	}
	type response struct {
		UserID        int64 `json:"user_id"`
		EmailVerified bool  `json:"email_verified"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, apierrors.New(apierrors.CodeInvalidRequest, "malformed request body"))
			return
		}

		user, err := s.services.Sessions.ConfirmEmail(r.Context(), req.Token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, response{UserID: user.ID, EmailVerified: user.EmailVerified})
	}
}
