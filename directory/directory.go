// Package directory is the end-user directory the server authenticates
// against and reads profiles from. The server never manages users itself;
// implementations adapt an existing store such as LDAP.
package directory

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials means the directory rejected the username and password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound means the user does not exist in the tenant.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnavailable means the directory could not be reached or timed out.
	ErrUnavailable = errors.New("directory unavailable")
)

// User is the profile the directory publishes for a tenant member.
type User struct {
	Username    string `json:"username" yaml:"username"`
	GivenName   string `json:"given_name,omitempty" yaml:"given_name,omitempty"`
	LastName    string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Email       string `json:"email,omitempty" yaml:"email,omitempty"`
	MobilePhone string `json:"mobile_phone,omitempty" yaml:"mobile_phone,omitempty"`
	UID         int    `json:"uid,omitempty" yaml:"uid,omitempty"`
}

// Directory authenticates and lists the users of a tenant.
//
// ListUsers returns at most limit users starting at offset together with the
// offset of the next page. A limit of zero or less means no limit.
type Directory interface {
	Authenticate(ctx context.Context, tenantID, username, password string) error
	ListUsers(ctx context.Context, tenantID string, limit, offset int) ([]*User, int, error)
	GetUser(ctx context.Context, tenantID, username string) (*User, error)
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Paginate returns the window of an ordered list selected by limit and
// offset, and the offset at which the next page starts.
func Paginate(all []*User, limit, offset int) ([]*User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*User{}, len(all), nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], end, nil
}
