// Package github federates login to GitHub. GitHub issues no ID token, so
// the identity comes from the authenticated /user endpoint.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-authenticator/federation"
	"golang.org/x/oauth2"
)

// Type is the ext_type value selecting this provider.
const Type = "github"

const (
	DefaultAuthURL  = "https://github.com/login/oauth/authorize"
	DefaultTokenURL = "https://github.com/login/oauth/access_token"
	DefaultAPIURL   = "https://api.github.com"

	// IdentityDomain suffixes every GitHub login to keep it apart from
	// directory usernames.
	IdentityDomain = "github.com"
)

var _ federation.Provider = (*Provider)(nil)

// Config is the "github" section of a tenant's custom IdP configuration.
// The URL fields are optional and exist for GitHub Enterprise and tests.
type Config struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURL      string `json:"auth_url,omitempty"`
	TokenURL     string `json:"token_url,omitempty"`
	APIURL       string `json:"api_url,omitempty"`
}

type Provider struct {
	oauth  *oauth2.Config
	apiURL string
	client *http.Client
}

// Factory builds a Provider from raw configuration JSON.
func Factory(raw json.RawMessage, callbackURL string, client *http.Client) (federation.Provider, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("[github.Factory] %w", err)
	}
	return New(cfg, callbackURL, client)
}

func New(cfg Config, callbackURL string, client *http.Client) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("[github.New] client_id and client_secret are required")
	}
	if client == nil {
		client = &http.Client{Timeout: federation.DefaultProviderTimeout}
	}
	authURL := valueOr(cfg.AuthURL, DefaultAuthURL)
	tokenURL := valueOr(cfg.TokenURL, DefaultTokenURL)
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  callbackURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL: strings.TrimRight(valueOr(cfg.APIURL, DefaultAPIURL), "/"),
		client: client,
	}, nil
}

func (p *Provider) Type() string { return Type }

func (p *Provider) Settings() federation.Settings {
	return federation.Settings{
		ClientID:            p.oauth.ClientID,
		ClientKey:           p.oauth.ClientSecret,
		IdentityRedirectURL: p.oauth.Endpoint.AuthURL,
		TokenURL:            p.oauth.Endpoint.TokenURL,
		CallbackURL:         p.oauth.RedirectURL,
	}
}

func (p *Provider) AuthorizeURL(_ context.Context, state string) (string, error) {
	return p.oauth.AuthCodeURL(state), nil
}

// ExchangeCodeForToken posts client_id, client_secret, code and redirect_uri
// to the token URL.
func (p *Provider) ExchangeCodeForToken(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("[github.ExchangeCodeForToken] %w", err)
	}
	return tok, nil
}

type user struct {
	Login string `json:"login"`
}

// ResolveIdentity reads the authenticated user and returns {login}@github.com.
func (p *Provider) ResolveIdentity(ctx context.Context, tok *oauth2.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/user", nil)
	if err != nil {
		return "", fmt.Errorf("[github.ResolveIdentity] %w", err)
	}
	req.Header.Set("Authorization", "token "+tok.AccessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("[github.ResolveIdentity] %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("[github.ResolveIdentity] github api error: status %d", resp.StatusCode)
	}
	var u user
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return "", fmt.Errorf("[github.ResolveIdentity] failed to decode user: %w", err)
	}
	if strings.TrimSpace(u.Login) == "" {
		return "", fmt.Errorf("[github.ResolveIdentity] no login in user response")
	}
	return u.Login + "@" + IdentityDomain, nil
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
