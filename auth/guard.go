package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-identity-core/apierrors"
	"github.com/jrsteele09/go-identity-core/sessions"
)

// GuardConfig controls the session-binding checks.
type GuardConfig struct {
	// RejectWrongIP enables the originating-IP check. When disabled the
	// signal is never computed and never contributes to rejection.
	RejectWrongIP bool

	// RejectWrongUserAgent enables the device-fingerprint check.
	RejectWrongUserAgent bool

	// RejectFast selects the dual-check mode. With both checks enabled and
	// RejectFast set, a mismatch on either signal alone rejects. Only when
	// both checks are enabled and RejectFast is forced off does rejection
	// require both signals to be wrong simultaneously. With a single check
	// enabled, RejectFast has no effect.
	RejectFast bool
}

// DefaultGuardConfig matches production defaults: both checks on, fast
// rejection.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RejectWrongIP:        true,
		RejectWrongUserAgent: true,
		RejectFast:           true,
	}
}

// Guard decides whether a structurally valid token is being replayed from a
// device other than the one its session was opened on.
type Guard struct {
	cfg          GuardConfig
	fingerprints sessions.FingerprintRepo
}

// NewGuard creates a session security guard.
func NewGuard(cfg GuardConfig, fingerprints sessions.FingerprintRepo) *Guard {
	return &Guard{cfg: cfg, fingerprints: fingerprints}
}

// Check validates the requesting client against the session's recorded
// origin. It returns an invalid-token failure when the policy decides the
// session was opened from another client.
func (g *Guard) Check(ctx context.Context, session *sessions.Session, ipAddress, userAgent string) error {
	if !g.cfg.RejectWrongIP && !g.cfg.RejectWrongUserAgent {
		return nil
	}

	var ipWrong, uaWrong bool
	if g.cfg.RejectWrongIP {
		ipWrong = ipAddress != session.IPAddress
	}
	if g.cfg.RejectWrongUserAgent {
		fp, err := g.fingerprints.GetByUserAgent(ctx, userAgent)
		switch {
		case errors.Is(err, sessions.ErrNotFound):
			uaWrong = true
		case err != nil:
			return errors.Wrap(err, "Guard.Check fingerprints.GetByUserAgent")
		default:
			uaWrong = fp.ID != session.FingerprintID
		}
	}

	var reject bool
	if g.cfg.RejectWrongIP && g.cfg.RejectWrongUserAgent && !g.cfg.RejectFast {
		reject = ipWrong && uaWrong
	} else {
		reject = ipWrong || uaWrong
	}
	if reject {
		return apierrors.New(apierrors.CodeInvalidToken, "session opened from another client")
	}
	return nil
}
