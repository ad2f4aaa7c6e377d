package extoauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testProvider(t *testing.T, tokenURL string) *Provider {
	t.Helper()
	p, err := NewProvider("testprov", &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://provider.example.com/authorize",
			TokenURL: tokenURL,
		},
		RedirectURL: "https://self.example.com/callback",
		Scopes:      []string{"email"},
	})
	require.NoError(t, err)
	return p
}

func TestAuthURL(t *testing.T) {
	p := testProvider(t, "https://provider.example.com/token")

	raw := p.AuthURL("state-123")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "state-123", query.Get("state"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "https://self.example.com/callback", query.Get("redirect_uri"))
}

func TestExchangePlainProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access-token",
			"token_type":   "bearer",
		})
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL)
	identity, err := p.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "testprov", identity.Provider)
	assert.Equal(t, "provider-access-token", identity.Token.AccessToken)

	// No OIDC verifier: identity fields come from a later provider API call.
	assert.Empty(t, identity.Subject)
}

func TestExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad code", http.StatusBadRequest)
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL)
	_, err := p.Exchange(context.Background(), "wrong")
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	p := testProvider(t, "https://provider.example.com/token")
	registry := NewRegistry(p)

	got, err := registry.Get("testprov")
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = registry.Get("unknown")
	require.Error(t, err)
}
