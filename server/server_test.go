package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-identity-core/auth"
	"github.com/jrsteele09/go-identity-core/clients"
	clientfakes "github.com/jrsteele09/go-identity-core/clients/fakerepo"
	"github.com/jrsteele09/go-identity-core/internal/config"
	"github.com/jrsteele09/go-identity-core/oauth"
	oauthfakes "github.com/jrsteele09/go-identity-core/oauth/repofakes"
	"github.com/jrsteele09/go-identity-core/scopes"
	sessionfakes "github.com/jrsteele09/go-identity-core/sessions/repofakes"
	"github.com/jrsteele09/go-identity-core/server"
	"github.com/jrsteele09/go-identity-core/token"
	userfakes "github.com/jrsteele09/go-identity-core/users/repofake"
)

type serverFixture struct {
	srv         *server.Server
	codec       *token.Codec
	sessionRepo *sessionfakes.FakeSessionRepo
	clients     *clientfakes.FakeClientRepo
	client      *clients.Client
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	codec := token.NewCodec()
	userRepo := userfakes.NewFakeUserRepo()
	sessionRepo := sessionfakes.NewFakeSessionRepo()
	fingerprints := sessionfakes.NewFakeFingerprintRepo()
	clientRepo := clientfakes.NewFakeClientRepo()

	guard := auth.NewGuard(auth.DefaultGuardConfig(), fingerprints)
	resolver, err := auth.NewResolver(auth.Repos{Sessions: sessionRepo, Users: userRepo}, codec, guard)
	require.NoError(t, err)

	serviceCfg := auth.DefaultServiceConfig("http://localhost:8080")
	serviceCfg.EmailTokenSecret = "test-email-secret"
	sessionService, err := auth.NewService(serviceCfg, userRepo, sessionRepo, fingerprints, codec, resolver)
	require.NoError(t, err)

	engine, err := oauth.NewEngine(oauth.Config{
		Issuer:          "http://localhost:8080",
		ScreenURL:       "http://localhost:3000/oauth/authorize",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 240 * time.Hour,
		CodeTTL:         5 * time.Minute,
	}, oauth.Repos{
		Clients:   clientRepo,
		Users:     userRepo,
		Sessions:  sessionRepo,
		Codes:     oauthfakes.NewFakeCodeRepo(),
		ClientUse: oauthfakes.NewFakeClientUseRepo(),
	}, codec)
	require.NoError(t, err)

	srv, err := server.New(config.New(), server.Services{
		Sessions: sessionService,
		Resolver: resolver,
		OAuth:    engine,
	})
	require.NoError(t, err)

	client, err := clientRepo.Create(context.Background(), 1, "Test App", "https://app.example.com/callback")
	require.NoError(t, err)

	return &serverFixture{
		srv:         srv,
		codec:       codec,
		sessionRepo: sessionRepo,
		clients:     clientRepo,
		client:      client,
	}
}

func (f *serverFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:51234"
	req.Header.Set("User-Agent", "test-browser")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type sessionBody struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	SessionToken string `json:"session_token"`
}

func (f *serverFixture) signUp(t *testing.T) sessionBody {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/session/signup", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody[sessionBody](t, rec)
}

func TestSignUpAndMe(t *testing.T) {
	f := newServerFixture(t)
	session := f.signUp(t)
	require.NotEmpty(t, session.SessionToken)

	rec := f.do(t, http.MethodGet, "/session/me", session.SessionToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	me := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "alice", me["username"])
}

func TestSignInWrongPassword(t *testing.T) {
	f := newServerFixture(t)
	f.signUp(t)

	rec := f.do(t, http.MethodPost, "/session/signin", "", map[string]string{
		"login":    "alice",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "invalid_credentials", body["code"])
}

func TestLogoutInvalidatesSession(t *testing.T) {
	f := newServerFixture(t)
	session := f.signUp(t)

	rec := f.do(t, http.MethodPost, "/session/logout", session.SessionToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/session/me", session.SessionToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEmailConfirmationRoundTrip(t *testing.T) {
	f := newServerFixture(t)
	session := f.signUp(t)

	rec := f.do(t, http.MethodPost, "/email/request", session.SessionToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	issued := decodeBody[map[string]string](t, rec)

	rec = f.do(t, http.MethodPost, "/email/confirm", "", map[string]string{
		"token": issued["confirmation_token"],
	})
	require.Equal(t, http.StatusOK, rec.Code)

	confirmed := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, confirmed["email_verified"])
}

func TestAuthorizeRedirectsToScreen(t *testing.T) {
	f := newServerFixture(t)

	path := "/oauth/authorize?client_id=" + strconv.FormatInt(f.client.ID, 10) +
		"&state=xyz&redirect_uri=" + url.QueryEscape(f.client.RedirectURI) +
		"&scope=edit&response_type=code"
	rec := f.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "http://localhost:3000/oauth/authorize?"))
}

// Signing in, allowing a client with an edit+noexpire scope through the
// implicit flow and decoding the result must yield a token with no expiry
// and exactly the granted permission set.
func TestImplicitFlowWithNoExpireScope(t *testing.T) {
	f := newServerFixture(t)
	session := f.signUp(t)

	rec := f.do(t, http.MethodPost, "/oauth/allow", session.SessionToken, map[string]any{
		"client_id":     f.client.ID,
		"state":         "xyz",
		"redirect_uri":  f.client.RedirectURI,
		"scope":         "edit,noexpire",
		"response_type": "token",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	accessToken, _ := body["access_token"].(string)
	require.NotEmpty(t, accessToken)

	stored, err := f.sessionRepo.GetByID(context.Background(), 1)
	require.NoError(t, err)

	decoded, err := f.codec.Decode(accessToken, token.KindAccess, []byte(stored.TokenSecret))
	require.NoError(t, err)
	assert.True(t, decoded.ExpiresAt.IsZero())

	granted := scopes.Parse(decoded.Scope())
	assert.True(t, granted.Has(scopes.PermissionEdit))
	assert.True(t, granted.Has(scopes.PermissionNoExpire))
	assert.False(t, granted.Has(scopes.PermissionAdmin))
}

func TestTokenExchangeOverHTTP(t *testing.T) {
	f := newServerFixture(t)
	session := f.signUp(t)

	rec := f.do(t, http.MethodPost, "/oauth/allow", session.SessionToken, map[string]any{
		"client_id":     f.client.ID,
		"state":         "xyz",
		"redirect_uri":  f.client.RedirectURI,
		"scope":         "edit",
		"response_type": "code",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	allowBody := decodeBody[map[string]any](t, rec)
	code, _ := allowBody["code"].(string)
	require.NotEmpty(t, code)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", strconv.FormatInt(f.client.ID, 10))
	form.Set("client_secret", f.client.Secret)
	form.Set("code", code)
	form.Set("redirect_uri", f.client.RedirectURI)

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "10.0.0.1:51234"

	tokenRec := httptest.NewRecorder()
	f.srv.ServeHTTP(tokenRec, req)
	require.Equal(t, http.StatusOK, tokenRec.Code)

	exchanged := decodeBody[map[string]any](t, tokenRec)
	assert.NotEmpty(t, exchanged["access_token"])
	assert.NotEmpty(t, exchanged["refresh_token"])

	// Unimplemented grant types answer 501 with a stable code.
	form.Set("grant_type", "password")
	req = httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "10.0.0.1:51234"
	tokenRec = httptest.NewRecorder()
	f.srv.ServeHTTP(tokenRec, req)
	require.Equal(t, http.StatusNotImplemented, tokenRec.Code)
}
