// Package federation lets a tenant delegate end-user authentication to a
// third-party OAuth2 identity provider.
//
// A tenant opts in through its custom IdP configuration, a JSON document
// whose "ext_type" names the provider and whose matching section holds the
// provider settings:
//
//	{"ext_type": "github", "github": {"client_id": "...", "client_secret": "..."}}
//
// Each supported provider type is one Provider implementation registered in
// a Registry under its type string. Adding a provider means writing a new
// Provider with its Factory and registering it, see federation/providers.
package federation

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"golang.org/x/oauth2"
)

// Settings are the resolved provider endpoints and credentials for a tenant.
type Settings struct {
	ClientID            string
	ClientKey           string
	IdentityRedirectURL string
	TokenURL            string
	CallbackURL         string
}

// Provider is one supported identity provider type.
type Provider interface {
	// Type is the ext_type string the provider is registered under.
	Type() string
	// Settings returns the resolved endpoints and credentials.
	Settings() Settings
	// AuthorizeURL is where the user agent is sent to sign in.
	AuthorizeURL(ctx context.Context, state string) (string, error)
	// ExchangeCodeForToken redeems the callback code at the provider.
	ExchangeCodeForToken(ctx context.Context, code string) (*oauth2.Token, error)
	// ResolveIdentity returns the normalised local username for the token.
	ResolveIdentity(ctx context.Context, token *oauth2.Token) (string, error)
}

// Factory builds a Provider from its configuration section. It must not make
// network calls.
type Factory func(raw json.RawMessage, callbackURL string, client *http.Client) (Provider, error)

// Registry maps provider type strings to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	client    *http.Client
}

// NewRegistry returns an empty registry. client is handed to every provider
// for its outbound calls and must carry a timeout.
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: DefaultProviderTimeout}
	}
	return &Registry{factories: make(map[string]Factory), client: client}
}

// Register adds or replaces the factory for extType.
func (r *Registry) Register(extType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(extType)] = factory
}

// Types lists the registered provider types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build resolves the provider for a custom IdP configuration document. The
// type is matched case insensitively, and so is its configuration section.
func (r *Registry) Build(extType, configuration, callbackURL string) (Provider, error) {
	extType = strings.ToLower(strings.TrimSpace(extType))
	r.mu.RLock()
	factory, ok := r.factories[extType]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrConfiguration, "unsupported identity provider type %q", extType)
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal([]byte(configuration), &sections); err != nil {
		return nil, errors.WithCause(errors.ErrConfiguration, "custom idp configuration is not valid JSON", err)
	}
	var section json.RawMessage
	for name, raw := range sections {
		if strings.EqualFold(name, extType) {
			section, ok = raw, true
			break
		}
	}
	if !ok {
		return nil, errors.Newf(errors.ErrConfiguration, "custom idp configuration has no %q section", extType)
	}
	provider, err := factory(section, callbackURL, r.client)
	if err != nil {
		return nil, errors.WithCause(errors.ErrConfiguration, "invalid "+extType+" configuration", err)
	}
	return provider, nil
}
