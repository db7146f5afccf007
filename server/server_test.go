package server_test

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-authenticator/auth"
	"github.com/jrsteele09/go-authenticator/authcodes"
	authcoderepofakes "github.com/jrsteele09/go-authenticator/authcodes/repofakes"
	"github.com/jrsteele09/go-authenticator/clients"
	fakeclientrepo "github.com/jrsteele09/go-authenticator/clients/fakerepo"
	"github.com/jrsteele09/go-authenticator/directory"
	"github.com/jrsteele09/go-authenticator/directory/memory"
	"github.com/jrsteele09/go-authenticator/federation"
	"github.com/jrsteele09/go-authenticator/federation/github/githubtest"
	"github.com/jrsteele09/go-authenticator/federation/providers"
	"github.com/jrsteele09/go-authenticator/internal/config"
	"github.com/jrsteele09/go-authenticator/internal/metrics"
	"github.com/jrsteele09/go-authenticator/server"
	"github.com/jrsteele09/go-authenticator/sessions"
	sessionmemory "github.com/jrsteele09/go-authenticator/sessions/memory"
	"github.com/jrsteele09/go-authenticator/tenants"
	tenantrepofakes "github.com/jrsteele09/go-authenticator/tenants/repofakes"
	"github.com/jrsteele09/go-authenticator/token"
	"github.com/jrsteele09/go-authenticator/token/keys"
	"github.com/jrsteele09/go-authenticator/token/tokenfakes"
	"github.com/stretchr/testify/require"
)

const (
	testTenantID    = "t1"
	otherTenantID   = "t2"
	githubTenantID  = "gh"
	testBaseURL     = "https://t1.example.org"
	githubBaseURL   = "https://gh.example.org"
	testClientID    = "c1"
	testClientKey   = "k1"
	testCallbackURL = "https://app/cb"
	testOwner       = "owner"
	testUsername    = "alice"
	testPassword    = "alice-pw"
	adminUsername   = "admin"
	identitySecret  = "identity-test-secret"
	allowedOrigin   = "https://portal.example.org"
	webappClientID  = "authenticator-webapp"
)

// testFixture holds all test dependencies
type testFixture struct {
	server   *server.Server
	tenants  *tenants.Registry
	clients  *clients.Store
	issuer   *tokenfakes.FakeIssuer
	github   *githubtest.Server
	signer   keys.Signer
	registry *federation.Registry
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("APP_NAME", "Authenticator")
	t.Setenv("DEFAULT_TENANT_ID", "")
	t.Setenv("LOCAL_DEVELOPMENT", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", allowedOrigin)
	t.Setenv("WEBAPP_CLIENT_ID", webappClientID)
	t.Setenv("WEBAPP_CLIENT_KEY", "")

	gh := githubtest.NewServer(t, "octocat")
	tenantRepo := tenantrepofakes.NewFakeTenantRepo(
		&tenants.Tenant{ID: testTenantID, BaseURL: testBaseURL, UseTokenWebapp: true, Admins: []string{adminUsername}},
		&tenants.Tenant{ID: otherTenantID, BaseURL: "https://t2.example.org"},
		&tenants.Tenant{ID: githubTenantID, BaseURL: githubBaseURL, CustomIdpConfiguration: gh.Configuration()},
	)
	registry, err := tenants.NewRegistry(tenantRepo)
	require.NoError(t, err)
	require.NoError(t, registry.Init(context.Background()))

	clientStore, err := clients.NewStore(fakeclientrepo.NewFakeClientRepo())
	require.NoError(t, err)
	for _, tenantID := range []string{testTenantID, githubTenantID} {
		_, err := clientStore.Create(context.Background(), tenantID, testOwner, clients.Registration{
			ClientID:    testClientID,
			ClientKey:   testClientKey,
			CallbackURL: testCallbackURL,
			DisplayName: "Test App",
		})
		require.NoError(t, err)
	}
	codeStore, err := authcodes.NewStore(authcoderepofakes.NewFakeCodeRepo())
	require.NoError(t, err)

	dir := memory.New()
	for _, name := range []string{testUsername, "bob", "carol"} {
		require.NoError(t, dir.AddUser(testTenantID, directory.User{Username: name, Email: name + "@example.org"}, name+"-pw"))
	}
	require.NoError(t, dir.AddUser(otherTenantID, directory.User{Username: "dave"}, "dave-pw"))
	gate, err := auth.NewGate(dir)
	require.NoError(t, err)

	providerRegistry := providers.Default(nil)
	federator, err := federation.NewFederator(registry, providerRegistry)
	require.NoError(t, err)

	issuer := tokenfakes.NewFakeIssuer()
	engine, err := auth.NewEngine(auth.Services{
		Tenants:   registry,
		Clients:   clientStore,
		Codes:     codeStore,
		Gate:      gate,
		Federator: federator,
		Issuer:    issuer,
	})
	require.NoError(t, err)

	manager, err := sessions.NewManager(sessionmemory.New(0), 0)
	require.NoError(t, err)
	signer := keys.NewHMACSigner(identitySecret)
	verifier, err := token.NewVerifier(signer)
	require.NoError(t, err)
	m, err := metrics.New()
	require.NoError(t, err)

	s, err := server.New(config.New(), server.Services{
		Engine:    engine,
		Tenants:   registry,
		Clients:   clientStore,
		Directory: dir,
		Sessions:  manager,
		Verifier:  verifier,
		Providers: providerRegistry,
		Metrics:   m,
		Version:   "test",
	})
	require.NoError(t, err)

	return &testFixture{
		server:   s,
		tenants:  registry,
		clients:  clientStore,
		issuer:   issuer,
		github:   gh,
		signer:   signer,
		registry: providerRegistry,
	}
}

// identityToken mints a request identity JWT.
func (f *testFixture) identityToken(t *testing.T, tenantID, username, accountType string) string {
	t.Helper()
	raw, err := f.signer.Sign(jwt.MapClaims{
		token.ClaimTenantID:    tenantID,
		token.ClaimUsername:    username,
		token.ClaimAccountType: accountType,
		"exp":                  time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	return raw
}

// api sends a JSON API request with an optional identity token.
func (f *testFixture) api(t *testing.T, method, target, identity string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != "" {
		req.Header.Set("X-Tapis-Token", identity)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
	Version string          `json:"version"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.Equal(t, "error", env.Status)
	var result struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &result))
	return result.Error
}

// browser carries cookies between requests like a user agent.
type browser struct {
	t       *testing.T
	server  http.Handler
	cookies map[string]*http.Cookie
}

func (f *testFixture) browser(t *testing.T) *browser {
	return &browser{t: t, server: f.server, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.server.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func authorizeURL(base, state string) string {
	q := url.Values{
		"client_id":     {testClientID},
		"redirect_uri":  {testCallbackURL},
		"response_type": {"code"},
	}
	if state != "" {
		q.Set("state", state)
	}
	return base + "/v3/oauth2/authorize?" + q.Encode()
}

// login drives a browser through tenant selection and password login for
// the authorize request at base, ending on the consent page.
func (b *browser) login(base string) *httptest.ResponseRecorder {
	b.t.Helper()
	rec := b.get(authorizeURL(base, "xyz"))
	require.Equal(b.t, http.StatusOK, rec.Code)
	rec = b.post(base+"/v3/oauth2/tenant", url.Values{"tenant": {testTenantID}})
	require.Equal(b.t, http.StatusOK, rec.Code)
	require.Contains(b.t, rec.Body.String(), `name="password"`)
	rec = b.post(base+"/v3/oauth2/login", url.Values{"username": {testUsername}, "password": {testPassword}})
	require.Equal(b.t, http.StatusOK, rec.Code)
	require.Contains(b.t, rec.Body.String(), `value="approve"`)
	return rec
}

var consentField = regexp.MustCompile(`name="(client_id|consent_nonce)" value="([^"]*)"`)

// consentAnswer fills in the consent form rendered on page.
func consentAnswer(t *testing.T, page *httptest.ResponseRecorder, decision string) url.Values {
	t.Helper()
	form := url.Values{}
	for _, m := range consentField.FindAllStringSubmatch(page.Body.String(), -1) {
		form.Set(m[1], html.UnescapeString(m[2]))
	}
	require.NotEmpty(t, form.Get("consent_nonce"), "page is not a consent form")
	if decision != "" {
		form.Set("decision", decision)
	}
	return form
}

func tokenRequest(t *testing.T, clientID, clientKey string, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, testBaseURL+"/v3/oauth2/tokens", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if clientID != "" {
		req.SetBasicAuth(clientID, clientKey)
	}
	return req
}

func (f *testFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresServices(t *testing.T) {
	_, err := server.New(config.New(), server.Services{})
	require.Error(t, err)
	_, err = server.New(nil, server.Services{})
	require.Error(t, err)
}

func TestAuthorizationCodeFlowOverHTTP(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	rec := b.get(authorizeURL(testBaseURL, "xyz"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `value="t1"`, "the host tenant is pre-filled")
	require.NotEmpty(t, b.cookies["authenticator_session"])
	require.True(t, b.cookies["authenticator_session"].HttpOnly)

	page := b.login(testBaseURL)
	rec = b.post(testBaseURL+"/v3/oauth2/authorize", consentAnswer(t, page, "approve"))
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "https", location.Scheme)
	require.Equal(t, "app", location.Host)
	require.Equal(t, "/cb", location.Path)
	require.Equal(t, "xyz", location.Query().Get("state"))
	code := location.Query().Get("code")
	require.NotEmpty(t, code)

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testCallbackURL},
	}
	rec = f.serve(tokenRequest(t, testClientID, testClientKey, form))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	env := decodeEnvelope(t, rec)
	require.Equal(t, "success", env.Status)
	require.Equal(t, "test", env.Version)
	var result struct {
		AccessToken struct {
			AccessToken string `json:"access_token"`
		} `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &result))
	require.Equal(t, "fake-token-for-alice", result.AccessToken.AccessToken)

	grants := f.issuer.Grants()
	require.Len(t, grants, 1)
	require.Equal(t, testTenantID, grants[0].TenantID)
	require.Equal(t, testUsername, grants[0].Username)
	require.Equal(t, token.ServiceAccountType, grants[0].AccountType)

	rec = f.serve(tokenRequest(t, testClientID, testClientKey, form))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_grant", errorKind(t, rec))
}

func TestConsentDeny(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	page := b.login(testBaseURL)

	rec := b.post(testBaseURL+"/v3/oauth2/authorize", consentAnswer(t, page, "deny"))
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", location.Query().Get("error"))
	require.Empty(t, location.Query().Get("code"))
}

func TestConsentWithoutDecisionRedisplays(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	page := b.login(testBaseURL)

	rec := b.post(testBaseURL+"/v3/oauth2/authorize", consentAnswer(t, page, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "You must approve the request to continue.")
}

func TestConsentIsBoundToTheDisplayedRequest(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.clients.Create(context.Background(), testTenantID, testOwner, clients.Registration{
		ClientID:    "c2",
		ClientKey:   "k2",
		CallbackURL: "https://other.example/cb",
		DisplayName: "Other App",
	})
	require.NoError(t, err)
	b := f.browser(t)
	first := b.login(testBaseURL)
	require.Contains(t, first.Body.String(), "Test App")

	// A second authorize in the same browser replaces the pending request.
	q := url.Values{"client_id": {"c2"}, "redirect_uri": {"https://other.example/cb"}, "response_type": {"code"}}
	second := b.get(testBaseURL + "/v3/oauth2/authorize?" + q.Encode())
	require.Equal(t, http.StatusOK, second.Code)
	require.Contains(t, second.Body.String(), "Other App")

	// Approving the first page must not issue a code for c2.
	rec := b.post(testBaseURL+"/v3/oauth2/authorize", consentAnswer(t, first, "approve"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Location"))
	require.Contains(t, rec.Body.String(), "Other App")
	require.Contains(t, rec.Body.String(), "The authorization request changed.")

	// A form naming the wrong client is rejected even with the current nonce.
	forged := consentAnswer(t, rec, "approve")
	forged.Set("client_id", testClientID)
	rec2 := b.post(testBaseURL+"/v3/oauth2/authorize", forged)
	require.Equal(t, http.StatusOK, rec2.Code)
	require.Empty(t, rec2.Header().Get("Location"))

	rec = b.post(testBaseURL+"/v3/oauth2/authorize", consentAnswer(t, rec2, "approve"))
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "other.example", location.Host)
	require.NotEmpty(t, location.Query().Get("code"))
}

func TestLoginRotatesSessionCookie(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	b.get(authorizeURL(testBaseURL, "xyz"))
	b.post(testBaseURL+"/v3/oauth2/tenant", url.Values{"tenant": {testTenantID}})
	planted := b.cookies["authenticator_session"].Value
	require.NotEmpty(t, planted)

	rec := b.post(testBaseURL+"/v3/oauth2/login", url.Values{"username": {testUsername}, "password": {testPassword}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEqual(t, planted, b.cookies["authenticator_session"].Value)

	// The pre-login id no longer carries the session.
	other := f.browser(t)
	other.cookies["authenticator_session"] = &http.Cookie{Name: "authenticator_session", Value: planted}
	rec = other.get(testBaseURL + "/v3/oauth2/login")
	require.Contains(t, rec.Body.String(), `name="tenant"`)
}

func TestAuthorizeRejectsBadRequests(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	rec := b.get(testBaseURL + "/v3/oauth2/authorize?client_id=c1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "redirect_uri")

	b.login(testBaseURL)
	q := url.Values{"client_id": {testClientID}, "redirect_uri": {"https://evil/cb"}, "response_type": {"code"}}
	rec = b.get(testBaseURL + "/v3/oauth2/authorize?" + q.Encode())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginWithWrongPasswordRedisplaysForm(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	b.get(authorizeURL(testBaseURL, ""))
	b.post(testBaseURL+"/v3/oauth2/tenant", url.Values{"tenant": {testTenantID}})

	rec := b.post(testBaseURL+"/v3/oauth2/login", url.Values{"username": {testUsername}, "password": {"wrong"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `name="password"`)
	require.Contains(t, rec.Body.String(), `class="error"`)
}

func TestTenantSubmissionUnknownTenant(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	rec := b.post(testBaseURL+"/v3/oauth2/tenant", url.Values{"tenant": {"nope"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid tenant id")
	require.Contains(t, rec.Body.String(), `<option value="t1">`)
}

func TestLoginPageWithoutTenantShowsTenantSelection(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	rec := b.get(testBaseURL + "/v3/oauth2/login")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `name="tenant"`)
}

func TestLoginWithoutPendingRequestShowsLoggedIn(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	b.post(testBaseURL+"/v3/oauth2/tenant", url.Values{"tenant": {testTenantID}})

	rec := b.post(testBaseURL+"/v3/oauth2/login", url.Values{"username": {testUsername}, "password": {testPassword}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "You are logged in as alice.")
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)
	b.login(testBaseURL)

	rec := b.get(testBaseURL + "/v3/oauth2/logout")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "alice")

	rec = b.post(testBaseURL+"/v3/oauth2/logout", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "You have been logged out.")

	rec = b.get(testBaseURL + "/v3/oauth2/login")
	require.Contains(t, rec.Body.String(), `name="tenant"`, "the session no longer has a tenant")
}

func TestFederatedLoginOverHTTP(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	b.get(authorizeURL(githubBaseURL, "xyz"))
	rec := b.post(githubBaseURL+"/v3/oauth2/tenant", url.Values{"tenant": {githubTenantID}})
	require.Equal(t, http.StatusFound, rec.Code)
	target, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(target.String(), f.github.URL+"/login/oauth/authorize"))
	require.Equal(t, githubtest.ClientID, target.Query().Get("client_id"))
	require.Equal(t, githubBaseURL+federation.CallbackPath, target.Query().Get("redirect_uri"))
	state := target.Query().Get("state")
	require.NotEmpty(t, state)

	rec = b.get(githubBaseURL + federation.CallbackPath + "?" + url.Values{"code": {"gh-code"}, "state": {state}}.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "octocat@github.com")
	require.Contains(t, rec.Body.String(), `value="approve"`)
	require.Equal(t, "gh-code", f.github.TokenForm().Get("code"))
}

func TestFederatedCallbackStateMismatch(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	b.post(githubBaseURL+"/v3/oauth2/tenant", url.Values{"tenant": {githubTenantID}})
	rec := b.get(githubBaseURL + federation.CallbackPath + "?code=gh-code&state=forged")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 0, f.github.Requests(), "no provider call on a state mismatch")
}

func TestFederatedCallbackProviderError(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	b.post(githubBaseURL+"/v3/oauth2/tenant", url.Values{"tenant": {githubTenantID}})
	rec := b.get(githubBaseURL + federation.CallbackPath + "?error=access_denied&error_description=user+cancelled")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "user cancelled")
}

func TestFederatedCallbackWithoutSession(t *testing.T) {
	f := setupTestFixture(t)
	b := f.browser(t)

	rec := b.get(githubBaseURL + federation.CallbackPath + "?code=gh-code&state=abc")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
