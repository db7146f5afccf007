package tenants

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Tenant is an isolated namespace of clients, users and configuration.
// CustomIdpConfiguration is the raw JSON document that decides whether the
// tenant delegates authentication to a third-party identity provider.
type Tenant struct {
	ID                     string   `json:"tenant_id" yaml:"tenant_id"`
	BaseURL                string   `json:"base_url" yaml:"base_url"`
	CustomIdpConfiguration string   `json:"custom_idp_configuration,omitempty" yaml:"custom_idp_configuration,omitempty"`
	AllowableGrantTypes    []string `json:"allowable_grant_types,omitempty" yaml:"allowable_grant_types,omitempty"`
	UseTokenWebapp         bool     `json:"use_token_webapp" yaml:"use_token_webapp"`
	DefaultAccessTokenTTL  int      `json:"default_access_token_ttl,omitempty" yaml:"default_access_token_ttl,omitempty"` // seconds
	MaxAccessTokenTTL      int      `json:"max_access_token_ttl,omitempty" yaml:"max_access_token_ttl,omitempty"`         // seconds
	Admins                 []string `json:"admins,omitempty" yaml:"admins,omitempty"`
}

const defaultAccessTokenTTL = 4 * time.Hour

// Validate checks the fields required to route requests to the tenant.
func (t *Tenant) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("[Tenant.Validate] tenant_id is required")
	}
	u, err := url.Parse(t.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("[Tenant.Validate] tenant %s: base_url must be an absolute URL", t.ID)
	}
	if t.CustomIdpConfiguration != "" && !json.Valid([]byte(t.CustomIdpConfiguration)) {
		return fmt.Errorf("[Tenant.Validate] tenant %s: custom_idp_configuration is not valid JSON", t.ID)
	}
	if t.MaxAccessTokenTTL > 0 && t.DefaultAccessTokenTTL > t.MaxAccessTokenTTL {
		return fmt.Errorf("[Tenant.Validate] tenant %s: default_access_token_ttl exceeds max_access_token_ttl", t.ID)
	}
	return nil
}

// Host returns the host portion of the tenant base URL, without a port.
func (t *Tenant) Host() string {
	u, err := url.Parse(t.BaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ExtensionType returns the lower cased federation provider type configured
// for the tenant, or an empty string when the tenant authenticates locally.
func (t *Tenant) ExtensionType() (string, error) {
	if strings.TrimSpace(t.CustomIdpConfiguration) == "" {
		return "", nil
	}
	var cfg struct {
		ExtType string `json:"ext_type"`
	}
	if err := json.Unmarshal([]byte(t.CustomIdpConfiguration), &cfg); err != nil {
		return "", fmt.Errorf("[Tenant.ExtensionType] tenant %s: %w", t.ID, err)
	}
	return strings.ToLower(strings.TrimSpace(cfg.ExtType)), nil
}

// AllowsGrantType reports whether the tenant accepts grantType at the token
// endpoint. An empty allow list accepts every supported grant type.
func (t *Tenant) AllowsGrantType(grantType string) bool {
	if len(t.AllowableGrantTypes) == 0 {
		return true
	}
	return slices.Contains(t.AllowableGrantTypes, grantType)
}

// IsAdmin reports whether username may administer the tenant configuration.
func (t *Tenant) IsAdmin(username string) bool {
	return username != "" && slices.Contains(t.Admins, username)
}

// AccessTokenTTL returns the default lifetime for access tokens minted for
// the tenant.
func (t *Tenant) AccessTokenTTL() time.Duration {
	if t.DefaultAccessTokenTTL <= 0 {
		return defaultAccessTokenTTL
	}
	return time.Duration(t.DefaultAccessTokenTTL) * time.Second
}

// Clone returns a deep copy so cached tenants are never mutated by callers.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	c.AllowableGrantTypes = slices.Clone(t.AllowableGrantTypes)
	c.Admins = slices.Clone(t.Admins)
	return &c
}
