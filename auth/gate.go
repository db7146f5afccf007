package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-authenticator/directory"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDirectoryTimeout = 5 * time.Second

	// InvalidCombinationMessage is the only feedback a failed login gets, so
	// it cannot be used to discover which usernames exist.
	InvalidCombinationMessage = "Invalid username/password combination."
)

// Gate authenticates end users against the tenant directory.
type Gate struct {
	directory directory.Directory
	timeout   time.Duration
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithDirectoryTimeout bounds each directory call.
func WithDirectoryTimeout(timeout time.Duration) GateOption {
	return func(g *Gate) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

func NewGate(dir directory.Directory, options ...GateOption) (*Gate, error) {
	if dir == nil {
		return nil, fmt.Errorf("[NewGate] directory is required")
	}
	g := &Gate{directory: dir, timeout: DefaultDirectoryTimeout}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Authenticate returns nil when the directory accepts the credentials.
// Rejections are InvalidCredentials, an unreachable or slow directory is
// ServiceUnavailable.
func (g *Gate) Authenticate(ctx context.Context, tenantID, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return errors.New(errors.ErrInvalidCredentials, InvalidCombinationMessage)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.directory.Authenticate(ctx, tenantID, username, password)
	switch {
	case err == nil:
		log.Debug().Str("tenant_id", tenantID).Str("username", username).Msg("directory accepted credentials")
		return nil
	case stderrors.Is(err, directory.ErrInvalidCredentials), stderrors.Is(err, directory.ErrUserNotFound):
		log.Info().Str("tenant_id", tenantID).Str("username", username).Msg("directory rejected credentials")
		return errors.New(errors.ErrInvalidCredentials, InvalidCombinationMessage)
	default:
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("directory unavailable")
		return errors.WithCause(errors.ErrServiceUnavailable, "the user directory is unavailable, please try again later", err)
	}
}
