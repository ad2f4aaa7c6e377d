package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/jrsteele09/go-identity-core/apierrors"
)

type errorBody struct {
	Code         string   `json:"code"`
	Message      string   `json:"message"`
	MissingScope []string `json:"missing_scope,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the typed failure taxonomy onto HTTP. Unknown errors are
// reported as a bare 500 without leaking internals.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierrors.From(err)
	if apiErr == nil {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    "internal",
			Message: "internal server error",
		})
		return
	}

	if apiErr.Code == apierrors.CodeRateLimited && apiErr.RetryAfter > 0 {
		seconds := int64(math.Ceil(apiErr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	writeJSON(w, statusFor(apiErr.Code), errorBody{
		Code:         string(apiErr.Code),
		Message:      apiErr.Message,
		MissingScope: apiErr.MissingScope,
	})
}

func statusFor(code apierrors.Code) int {
	switch code {
	case apierrors.CodeAuthRequired, apierrors.CodeInvalidToken,
		apierrors.CodeExpiredToken, apierrors.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case apierrors.CodeInsufficientPermissions, apierrors.CodeUserDeactivated,
		apierrors.CodeRedirectURIMismatch, apierrors.CodeClientIDMismatch,
		apierrors.CodeClientSecretMismatch:
		return http.StatusForbidden
	case apierrors.CodeClientNotFound:
		return http.StatusNotFound
	case apierrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case apierrors.CodeNotImplemented:
		return http.StatusNotImplemented
	case apierrors.CodeInvalidRequest:
		return http.StatusBadRequest
	case apierrors.CodeAlreadyExists:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
