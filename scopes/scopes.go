// Package scopes parses and normalizes permission scope strings. A scope is a
// comma-separated list of capability tokens, or the single wildcard character
// which grants every known capability.
package scopes

import (
	"strings"
	"time"
)

// Permission is a single capability token.
type Permission string

const (
	PermissionNoExpire     Permission = "noexpire"
	PermissionEdit         Permission = "edit"
	PermissionSessions     Permission = "sessions"
	PermissionOAuthClients Permission = "oauth_clients"
	PermissionEmail        Permission = "email"
	PermissionSecurity     Permission = "security"
	PermissionAdmin        Permission = "admin"
	PermissionMessenger    Permission = "messenger"
	PermissionGatey        Permission = "gatey"
	PermissionCC           Permission = "cc"
	PermissionAds          Permission = "ads"
)

const (
	// GrantAllTag anywhere in a scope string grants every permission.
	GrantAllTag = "*"
	// Separator splits a scope string into permission tokens.
	Separator = ","
)

// allPermissions is the canonical enumeration order. Normalize emits
// permissions in this order so it is deterministic and idempotent.
var allPermissions = []Permission{
	PermissionNoExpire,
	PermissionEdit,
	PermissionSessions,
	PermissionOAuthClients,
	PermissionEmail,
	PermissionSecurity,
	PermissionAdmin,
	PermissionMessenger,
	PermissionGatey,
	PermissionCC,
	PermissionAds,
}

var knownPermissions = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(allPermissions))
	for _, p := range allPermissions {
		m[p] = struct{}{}
	}
	return m
}()

// Set is a parsed permission set.
type Set map[Permission]struct{}

// All returns the full permission set.
func All() Set {
	s := make(Set, len(allPermissions))
	for _, p := range allPermissions {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the permission.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Missing returns the required permissions absent from the set, in the order
// they were requested.
func (s Set) Missing(required []Permission) []Permission {
	var missing []Permission
	for _, p := range required {
		if !s.Has(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// Strings returns the set as a string slice in canonical order.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for _, p := range allPermissions {
		if s.Has(p) {
			out = append(out, string(p))
		}
	}
	return out
}

// String returns the canonical scope string for the set.
func (s Set) String() string {
	return strings.Join(s.Strings(), Separator)
}

// Parser converts scope strings into permission sets. The zero value is the
// default parser, which performs no whitespace trimming: tokens must match
// capability names byte for byte. TrimSpace enables the lenient variant that
// strips surrounding whitespace from each token before matching; the two
// behaviors existed side by side upstream, so the choice is an explicit
// configuration rather than a guess.
type Parser struct {
	TrimSpace bool
}

// Parse parses a scope string into a permission set. Unrecognized tokens are
// silently dropped.
func (p Parser) Parse(scope string) Set {
	if strings.Contains(scope, GrantAllTag) {
		return All()
	}
	set := make(Set)
	for _, raw := range strings.Split(scope, Separator) {
		if p.TrimSpace {
			raw = strings.TrimSpace(raw)
		}
		if raw == "" {
			continue
		}
		perm := Permission(raw)
		if _, ok := knownPermissions[perm]; ok {
			set[perm] = struct{}{}
		}
	}
	return set
}

// Normalize returns the canonical form of a scope string: recognized
// permissions only, no duplicates, canonical order.
func (p Parser) Normalize(scope string) string {
	return p.Parse(scope).String()
}

// Parse parses a scope string with the default (non-trimming) parser.
func Parse(scope string) Set {
	return Parser{}.Parse(scope)
}

// Normalize normalizes a scope string with the default parser.
func Normalize(scope string) string {
	return Parser{}.Normalize(scope)
}

// TTLFor resolves the token time-to-live for a permission set. A set holding
// the noexpire permission forces TTL 0, which encodes as "never expires".
// Every token-minting site must use this function rather than re-deriving the
// rule.
func TTLFor(permissions Set, defaultTTL time.Duration) time.Duration {
	if permissions.Has(PermissionNoExpire) {
		return 0
	}
	return defaultTTL
}
