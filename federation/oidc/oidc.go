// Package oidc federates login to any OpenID Connect provider. Discovery is
// deferred until the first login so tenant configuration can be checked
// offline.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-authenticator/federation"
	"golang.org/x/oauth2"
)

// Type is the ext_type value selecting this provider.
const Type = "oidc"

var _ federation.Provider = (*Provider)(nil)

// Config is the "oidc" section of a tenant's custom IdP configuration.
type Config struct {
	Issuer       string   `json:"issuer"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes,omitempty"`
}

type Provider struct {
	cfg         Config
	callbackURL string
	client      *http.Client
	domain      string

	mu       sync.Mutex
	oauth    *oauth2.Config
	verifier *gooidc.IDTokenVerifier
}

// Factory builds a Provider from raw configuration JSON.
func Factory(raw json.RawMessage, callbackURL string, client *http.Client) (federation.Provider, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("[oidc.Factory] %w", err)
	}
	return New(cfg, callbackURL, client)
}

func New(cfg Config, callbackURL string, client *http.Client) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("[oidc.New] client_id and client_secret are required")
	}
	issuer, err := url.Parse(cfg.Issuer)
	if err != nil || issuer.Scheme == "" || issuer.Host == "" {
		return nil, fmt.Errorf("[oidc.New] issuer must be an absolute URL")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}
	if client == nil {
		client = &http.Client{Timeout: federation.DefaultProviderTimeout}
	}
	return &Provider{
		cfg:         cfg,
		callbackURL: callbackURL,
		client:      client,
		domain:      issuer.Hostname(),
	}, nil
}

func (p *Provider) Type() string { return Type }

func (p *Provider) Settings() federation.Settings {
	s := federation.Settings{
		ClientID:    p.cfg.ClientID,
		ClientKey:   p.cfg.ClientSecret,
		CallbackURL: p.callbackURL,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.oauth != nil {
		s.IdentityRedirectURL = p.oauth.Endpoint.AuthURL
		s.TokenURL = p.oauth.Endpoint.TokenURL
	}
	return s
}

// discover runs provider discovery once it succeeds. Failed discovery is
// attempted again on the next login.
func (p *Provider) discover(ctx context.Context) (*oauth2.Config, *gooidc.IDTokenVerifier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.oauth != nil {
		return p.oauth, p.verifier, nil
	}
	provider, err := gooidc.NewProvider(gooidc.ClientContext(ctx, p.client), p.cfg.Issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("[oidc.discover] %w", err)
	}
	p.oauth = &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.callbackURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       p.cfg.Scopes,
	}
	p.verifier = provider.Verifier(&gooidc.Config{ClientID: p.cfg.ClientID})
	return p.oauth, p.verifier, nil
}

func (p *Provider) AuthorizeURL(ctx context.Context, state string) (string, error) {
	oauthCfg, _, err := p.discover(ctx)
	if err != nil {
		return "", err
	}
	return oauthCfg.AuthCodeURL(state), nil
}

func (p *Provider) ExchangeCodeForToken(ctx context.Context, code string) (*oauth2.Token, error) {
	oauthCfg, _, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}
	tok, err := oauthCfg.Exchange(context.WithValue(ctx, oauth2.HTTPClient, p.client), code)
	if err != nil {
		return nil, fmt.Errorf("[oidc.ExchangeCodeForToken] %w", err)
	}
	return tok, nil
}

// ResolveIdentity verifies the ID token and returns
// {preferred_username or sub}@{issuer host}.
func (p *Provider) ResolveIdentity(ctx context.Context, tok *oauth2.Token) (string, error) {
	_, verifier, err := p.discover(ctx)
	if err != nil {
		return "", err
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", fmt.Errorf("[oidc.ResolveIdentity] no id_token in token response")
	}
	idToken, err := verifier.Verify(gooidc.ClientContext(ctx, p.client), rawIDToken)
	if err != nil {
		return "", fmt.Errorf("[oidc.ResolveIdentity] id token verification failed: %w", err)
	}
	var claims struct {
		Sub               string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("[oidc.ResolveIdentity] failed to extract claims: %w", err)
	}
	name := claims.PreferredUsername
	if name == "" {
		name = claims.Sub
	}
	if name == "" {
		return "", fmt.Errorf("[oidc.ResolveIdentity] id token has no subject")
	}
	return name + "@" + p.domain, nil
}
