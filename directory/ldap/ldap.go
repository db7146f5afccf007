// Package ldap reads tenant users from an LDAP server. Each tenant lives in
// its own subtree, selected by substituting the tenant id into BaseDN.
package ldap

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/jrsteele09/go-authenticator/directory"
	"github.com/rs/zerolog/log"
)

var _ directory.Directory = (*Directory)(nil)

const (
	tenantPlaceholder = "{tenant}"
	defaultTimeout    = 5 * time.Second
	defaultUserAttr   = "uid"
)

var userAttributes = []string{"uid", "givenName", "sn", "mail", "mobile", "uidNumber"}

type Config struct {
	URL          string        // ldaps://ldap.example.org:636
	BindDN       string        // service account used for searches
	BindPassword string        //
	BaseDN       string        // e.g. ou=tenants.{tenant},dc=example,dc=org
	UserAttr     string        // defaults to uid
	Timeout      time.Duration // applies to dial and each operation
}

type Directory struct {
	cfg Config
}

func New(cfg Config) (*Directory, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("[ldap.New] url is required")
	}
	if !strings.Contains(cfg.BaseDN, tenantPlaceholder) {
		return nil, fmt.Errorf("[ldap.New] base dn must contain %s", tenantPlaceholder)
	}
	if cfg.UserAttr == "" {
		cfg.UserAttr = defaultUserAttr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Directory{cfg: cfg}, nil
}

func (d *Directory) baseDN(tenantID string) string {
	return strings.ReplaceAll(d.cfg.BaseDN, tenantPlaceholder, goldap.EscapeDN(tenantID))
}

func (d *Directory) userDN(tenantID, username string) string {
	return fmt.Sprintf("%s=%s,%s", d.cfg.UserAttr, goldap.EscapeDN(username), d.baseDN(tenantID))
}

func (d *Directory) dial(ctx context.Context) (*goldap.Conn, error) {
	timeout := d.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: deadline exceeded before dial", directory.ErrUnavailable)
	}
	conn, err := goldap.DialURL(d.cfg.URL, goldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", directory.ErrUnavailable, err)
	}
	conn.SetTimeout(timeout)
	return conn, nil
}

func (d *Directory) Authenticate(ctx context.Context, tenantID, username, password string) error {
	// An empty password would be an unauthenticated bind, which LDAP accepts.
	if username == "" || password == "" {
		return directory.ErrInvalidCredentials
	}
	conn, err := d.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Bind(d.userDN(tenantID, username), password); err != nil {
		return classify(err)
	}
	return nil
}

func (d *Directory) search(ctx context.Context, tenantID, filter string) ([]*goldap.Entry, error) {
	conn, err := d.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if d.cfg.BindDN != "" {
		if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			log.Err(err).Msg("ldap service bind failed")
			return nil, fmt.Errorf("%w: service bind failed", directory.ErrUnavailable)
		}
	}

	req := goldap.NewSearchRequest(
		d.baseDN(tenantID), goldap.ScopeSingleLevel, goldap.NeverDerefAliases,
		0, int(d.cfg.Timeout.Seconds()), false, filter, userAttributes, nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return res.Entries, nil
}

func (d *Directory) ListUsers(ctx context.Context, tenantID string, limit, offset int) ([]*directory.User, int, error) {
	entries, err := d.search(ctx, tenantID, fmt.Sprintf("(%s=*)", d.cfg.UserAttr))
	if err != nil {
		return nil, 0, err
	}
	users := make([]*directory.User, 0, len(entries))
	for _, e := range entries {
		users = append(users, toUser(e, d.cfg.UserAttr))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return directory.Paginate(users, limit, offset)
}

func (d *Directory) GetUser(ctx context.Context, tenantID, username string) (*directory.User, error) {
	entries, err := d.search(ctx, tenantID, fmt.Sprintf("(%s=%s)", d.cfg.UserAttr, goldap.EscapeFilter(username)))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, directory.ErrUserNotFound
	}
	return toUser(entries[0], d.cfg.UserAttr), nil
}

func toUser(e *goldap.Entry, userAttr string) *directory.User {
	u := &directory.User{
		Username:    e.GetAttributeValue(userAttr),
		GivenName:   e.GetAttributeValue("givenName"),
		LastName:    e.GetAttributeValue("sn"),
		Email:       e.GetAttributeValue("mail"),
		MobilePhone: e.GetAttributeValue("mobile"),
	}
	if uid, err := strconv.Atoi(e.GetAttributeValue("uidNumber")); err == nil {
		u.UID = uid
	}
	return u
}

func classify(err error) error {
	switch {
	case goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials),
		goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject):
		return directory.ErrInvalidCredentials
	default:
		return fmt.Errorf("%w: %v", directory.ErrUnavailable, err)
	}
}
