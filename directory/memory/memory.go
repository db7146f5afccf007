// Package memory is a directory held in process, loaded from a YAML file of
// bcrypt-hashed users. It backs local development and tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/jrsteele09/go-authenticator/directory"
	"gopkg.in/yaml.v3"
)

var _ directory.Directory = (*Directory)(nil)

type entry struct {
	user         directory.User
	passwordHash string
}

// Directory maps tenant -> username -> entry.
type Directory struct {
	tenants map[string]map[string]*entry
	lock    sync.RWMutex
}

func New() *Directory {
	return &Directory{tenants: make(map[string]map[string]*entry)}
}

type fileUser struct {
	directory.User `yaml:",inline"`
	PasswordHash   string `yaml:"password_hash"`
}

type fileDocument struct {
	Tenants map[string][]fileUser `yaml:"tenants"`
}

// Load reads a users file of the form
//
//	tenants:
//	  t1:
//	    - username: alice
//	      password_hash: $2a$10$...
func Load(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[memory.Load] read %s: %w", path, err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("[memory.Load] parse %s: %w", path, err)
	}
	d := New()
	for tenantID, list := range doc.Tenants {
		for _, u := range list {
			if u.Username == "" || u.PasswordHash == "" {
				return nil, fmt.Errorf("[memory.Load] tenant %s: username and password_hash are required", tenantID)
			}
			d.put(tenantID, u.User, u.PasswordHash)
		}
	}
	return d, nil
}

// AddUser stores user with a bcrypt hash of password.
func (d *Directory) AddUser(tenantID string, user directory.User, password string) error {
	hash, err := directory.HashPassword(password)
	if err != nil {
		return fmt.Errorf("[Directory.AddUser] %w", err)
	}
	d.put(tenantID, user, hash)
	return nil
}

func (d *Directory) put(tenantID string, user directory.User, hash string) {
	d.lock.Lock()
	defer d.lock.Unlock()
	users, ok := d.tenants[tenantID]
	if !ok {
		users = make(map[string]*entry)
		d.tenants[tenantID] = users
	}
	users[user.Username] = &entry{user: user, passwordHash: hash}
}

func (d *Directory) Authenticate(_ context.Context, tenantID, username, password string) error {
	d.lock.RLock()
	e, ok := d.tenants[tenantID][username]
	d.lock.RUnlock()
	if !ok || !directory.CheckPasswordHash(password, e.passwordHash) {
		return directory.ErrInvalidCredentials
	}
	return nil
}

func (d *Directory) ListUsers(_ context.Context, tenantID string, limit, offset int) ([]*directory.User, int, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	all := make([]*directory.User, 0, len(d.tenants[tenantID]))
	for _, e := range d.tenants[tenantID] {
		u := e.user
		all = append(all, &u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	return directory.Paginate(all, limit, offset)
}

func (d *Directory) GetUser(_ context.Context, tenantID, username string) (*directory.User, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	e, ok := d.tenants[tenantID][username]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	u := e.user
	return &u, nil
}
