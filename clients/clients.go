package clients

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jrsteele09/go-authenticator/internal/errors"
)

// Client is a registered application permitted to request tokens on behalf
// of users. (TenantID, ClientID) is unique and ClientKey is only known to the
// owner and the server.
type Client struct {
	TenantID       string    `json:"tenant_id"`
	ClientID       string    `json:"client_id"`
	ClientKey      string    `json:"client_key"`
	CallbackURL    string    `json:"callback_url"`
	DisplayName    string    `json:"display_name"`
	Description    string    `json:"description"`
	Owner          string    `json:"owner"`
	CreateTime     time.Time `json:"create_time"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

// Registration holds the caller supplied fields for a new client. ClientID and
// ClientKey are generated when left empty.
type Registration struct {
	ClientID    string `json:"client_id"`
	ClientKey   string `json:"client_key"`
	CallbackURL string `json:"callback_url"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Validate reports missing or malformed registration fields.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.CallbackURL) == "" {
		return errors.New(errors.ErrValidation, "callback_url is required")
	}
	u, err := url.Parse(r.CallbackURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New(errors.ErrValidation, "callback_url must be an absolute http or https URL")
	}
	if u.Fragment != "" {
		return errors.New(errors.ErrValidation, "callback_url must not contain a fragment")
	}
	if r.ClientID != "" && !clientIDPattern.MatchString(r.ClientID) {
		return errors.New(errors.ErrValidation, "client_id may only contain letters, digits, '.', '_' and '-'")
	}
	if len(r.DisplayName) > 256 {
		return errors.New(errors.ErrValidation, "display_name is too long")
	}
	return nil
}

// Public returns the client without its secret, for listings that are not
// addressed to the owner.
func (c *Client) Public() *Client {
	cp := *c
	cp.ClientKey = ""
	return &cp
}
