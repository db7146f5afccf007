// Package memory keeps sessions in process. Sessions are lost on restart and
// are not shared between instances.
package memory

import (
	"context"
	"maps"
	"time"

	"github.com/jrsteele09/go-authenticator/sessions"
	gocache "github.com/patrickmn/go-cache"
)

var _ sessions.Store = (*Store)(nil)

type Store struct {
	c *gocache.Cache
}

func New(defaultTTL time.Duration) *Store {
	return &Store{c: gocache.New(defaultTTL, time.Minute)}
}

func (s *Store) Load(_ context.Context, id string) (map[string]string, error) {
	v, ok := s.c.Get(id)
	if !ok {
		return map[string]string{}, nil
	}
	values, _ := v.(map[string]string)
	return maps.Clone(values), nil
}

func (s *Store) Save(_ context.Context, id string, values map[string]string, ttl time.Duration) error {
	s.c.Set(id, maps.Clone(values), ttl)
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.c.Delete(id)
	return nil
}
