package oauth_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-identity-core/apierrors"
	"github.com/jrsteele09/go-identity-core/clients"
	clientfakes "github.com/jrsteele09/go-identity-core/clients/fakerepo"
	"github.com/jrsteele09/go-identity-core/oauth"
	oauthfakes "github.com/jrsteele09/go-identity-core/oauth/repofakes"
	"github.com/jrsteele09/go-identity-core/scopes"
	"github.com/jrsteele09/go-identity-core/sessions"
	sessionfakes "github.com/jrsteele09/go-identity-core/sessions/repofakes"
	"github.com/jrsteele09/go-identity-core/token"
	"github.com/jrsteele09/go-identity-core/users"
	userfakes "github.com/jrsteele09/go-identity-core/users/repofake"
)

type engineFixture struct {
	engine      *oauth.Engine
	codec       *token.Codec
	clients     *clientfakes.FakeClientRepo
	users       *userfakes.FakeUserRepo
	sessionRepo *sessionfakes.FakeSessionRepo
	codes       *oauthfakes.FakeCodeRepo
	clientUse   *oauthfakes.FakeClientUseRepo

	user    *users.User
	session *sessions.Session
	client  *clients.Client
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		codec:       token.NewCodec(),
		clients:     clientfakes.NewFakeClientRepo(),
		users:       userfakes.NewFakeUserRepo(),
		sessionRepo: sessionfakes.NewFakeSessionRepo(),
		codes:       oauthfakes.NewFakeCodeRepo(),
		clientUse:   oauthfakes.NewFakeClientUseRepo(),
	}

	cfg := oauth.Config{
		Issuer:          "issuer",
		ScreenURL:       "https://auth.example.com/oauth/screen",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 240 * time.Hour,
		CodeTTL:         5 * time.Minute,
	}
	engine, err := oauth.NewEngine(cfg, oauth.Repos{
		Clients:   f.clients,
		Users:     f.users,
		Sessions:  f.sessionRepo,
		Codes:     f.codes,
		ClientUse: f.clientUse,
	}, f.codec)
	require.NoError(t, err)
	f.engine = engine

	f.user = f.users.Upsert(&users.User{Username: "alice", Email: "alice@example.com", Active: true})
	session, err := f.sessionRepo.Create(context.Background(), f.user.ID, "10.0.0.1", 1)
	require.NoError(t, err)
	f.session = session

	client, err := f.clients.Create(context.Background(), f.user.ID, "Test App", "https://app.example.com/callback")
	require.NoError(t, err)
	f.client = client

	return f
}

func TestAuthorizeBuildsScreenURL(t *testing.T) {
	f := newEngineFixture(t)

	redirect, err := f.engine.Authorize(context.Background(), f.client.ID, "xyz",
		"https://app.example.com/callback", "edit,email", oauth.ResponseTypeCode)
	require.NoError(t, err)

	parsed, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/oauth/screen", parsed.Scheme+"://"+parsed.Host+parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "xyz", query.Get("state"))
	assert.Equal(t, "edit,email", query.Get("scope"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "https://app.example.com/callback", query.Get("redirect_uri"))
}

func TestAuthorizeRejectsUnknownResponseType(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Authorize(context.Background(), f.client.ID, "xyz",
		"https://app.example.com/callback", "edit", oauth.ResponseType("id_token"))
	require.True(t, apierrors.IsCode(err, apierrors.CodeInvalidRequest))
}

func TestAuthorizeUnknownClient(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Authorize(context.Background(), 999, "xyz",
		"https://app.example.com/callback", "edit", oauth.ResponseTypeCode)
	require.True(t, apierrors.IsCode(err, apierrors.CodeClientNotFound))
}

func TestAllowClientCodeFlow(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.AllowClient(context.Background(), f.user, f.session, oauth.AllowRequest{
		ClientID:     f.client.ID,
		State:        "xyz",
		RedirectURI:  f.client.RedirectURI,
		Scope:        "email,edit",
		ResponseType: oauth.ResponseTypeCode,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Code)
	require.Empty(t, result.AccessToken)

	parsed, err := url.Parse(result.RedirectTo)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.RedirectTo, f.client.RedirectURI+"?"))
	assert.Equal(t, result.Code, parsed.Query().Get("code"))
	assert.Equal(t, "xyz", parsed.Query().Get("state"))

	// The code token verifies with the session secret and carries the
	// persisted record id and the normalized scope.
	decoded, err := f.codec.Decode(result.Code, token.KindOAuthCode, []byte(f.session.TokenSecret))
	require.NoError(t, err)
	payload := decoded.Payload.(*token.OAuthCodePayload)
	assert.Equal(t, "edit,email", payload.Scope)
	assert.Equal(t, f.client.ID, payload.ClientID)
	assert.Equal(t, f.client.RedirectURI, payload.RedirectURI)

	stored, err := f.codes.GetByID(context.Background(), payload.CodeID)
	require.NoError(t, err)
	assert.False(t, stored.WasUsed)

	// Bookkeeping writes happened.
	require.Len(t, f.clientUse.Uses(), 1)
	require.Len(t, f.clientUse.Links(), 1)
	assert.Equal(t, "edit,email", f.clientUse.Links()[0].Scope)
}

func TestAllowClientImplicitFlow(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.AllowClient(context.Background(), f.user, f.session, oauth.AllowRequest{
		ClientID:     f.client.ID,
		State:        "xyz",
		RedirectURI:  f.client.RedirectURI,
		Scope:        "edit,email",
		ResponseType: oauth.ResponseTypeToken,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	assert.Equal(t, time.Hour, result.ExpiresIn)

	frag, err := url.ParseQuery(strings.TrimPrefix(result.RedirectTo, f.client.RedirectURI+"#"))
	require.NoError(t, err)
	assert.Equal(t, result.AccessToken, frag.Get("token"))
	assert.Equal(t, "xyz", frag.Get("state"))
	assert.Equal(t, "3600", frag.Get("expires_in"))

	// Email rides along because the email permission was granted.
	assert.Equal(t, f.user.Email, frag.Get("email"))

	decoded, err := f.codec.Decode(result.AccessToken, token.KindAccess, []byte(f.session.TokenSecret))
	require.NoError(t, err)
	assert.Equal(t, "edit,email", decoded.Scope())
}

func TestAllowClientImplicitWithoutEmailPermission(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.AllowClient(context.Background(), f.user, f.session, oauth.AllowRequest{
		ClientID:     f.client.ID,
		State:        "xyz",
		RedirectURI:  f.client.RedirectURI,
		Scope:        "edit",
		ResponseType: oauth.ResponseTypeToken,
	})
	require.NoError(t, err)

	frag, err := url.ParseQuery(strings.TrimPrefix(result.RedirectTo, f.client.RedirectURI+"#"))
	require.NoError(t, err)
	assert.False(t, frag.Has("email"))
}

func TestAllowClientNoExpireScope(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.AllowClient(context.Background(), f.user, f.session, oauth.AllowRequest{
		ClientID:     f.client.ID,
		State:        "xyz",
		RedirectURI:  f.client.RedirectURI,
		Scope:        "edit,noexpire",
		ResponseType: oauth.ResponseTypeToken,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), result.ExpiresIn)

	// The minted token carries no expiry at all and decodes with the full
	// granted permission set.
	decoded, err := f.codec.Decode(result.AccessToken, token.KindAccess, []byte(f.session.TokenSecret))
	require.NoError(t, err)
	assert.True(t, decoded.ExpiresAt.IsZero())

	granted := scopes.Parse(decoded.Scope())
	assert.True(t, granted.Has(scopes.PermissionEdit))
	assert.True(t, granted.Has(scopes.PermissionNoExpire))
}

func TestAllowClientDeactivatedClient(t *testing.T) {
	f := newEngineFixture(t)
	f.client.Active = false
	f.clients.Upsert(f.client)

	_, err := f.engine.AllowClient(context.Background(), f.user, f.session, oauth.AllowRequest{
		ClientID:     f.client.ID,
		RedirectURI:  f.client.RedirectURI,
		Scope:        "edit",
		ResponseType: oauth.ResponseTypeToken,
	})
	require.True(t, apierrors.IsCode(err, apierrors.CodeClientNotFound))
}
