// Package authcodestest holds the behaviour every authcodes.Repo backend must
// show, run against each backend from its own tests.
package authcodestest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-authenticator/authcodes"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	TenantID    = "t1"
	ClientID    = "c1"
	ClientKey   = "k1"
	CallbackURL = "https://app/cb"
	Username    = "alice"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(t *testing.T, repo authcodes.Repo) (*authcodes.Store, *clock) {
	t.Helper()
	clk := &clock{now: time.Now().UTC().Truncate(time.Millisecond)}
	store, err := authcodes.NewStore(repo, authcodes.WithTTL(time.Minute), authcodes.WithNowTime(clk.Now))
	require.NoError(t, err)
	return store, clk
}

// RunRepoConformance exercises single use, expiry, credential binding,
// tenant scoping and concurrent redemption against repos built by newRepo.
func RunRepoConformance(t *testing.T, newRepo func(t *testing.T) authcodes.Repo) {
	t.Run("single use", func(t *testing.T) {
		store, _ := newStore(t, newRepo(t))
		ctx := context.Background()

		ac, err := store.Issue(ctx, TenantID, ClientID, ClientKey, CallbackURL, Username)
		require.NoError(t, err)

		got, err := store.ValidateAndConsume(ctx, TenantID, ac.Code, ClientID, ClientKey)
		require.NoError(t, err)
		require.Equal(t, Username, got.Username)
		require.Equal(t, CallbackURL, got.RedirectURL)
		require.True(t, got.Consumed)

		_, err = store.ValidateAndConsume(ctx, TenantID, ac.Code, ClientID, ClientKey)
		require.True(t, errors.Is(err, errors.ErrInvalidGrant), err)
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		store, clk := newStore(t, newRepo(t))
		ctx := context.Background()

		ac, err := store.Issue(ctx, TenantID, ClientID, ClientKey, CallbackURL, Username)
		require.NoError(t, err)
		clk.Advance(time.Minute)

		_, err = store.ValidateAndConsume(ctx, TenantID, ac.Code, ClientID, ClientKey)
		require.True(t, errors.Is(err, errors.ErrInvalidGrant), err)
	})

	t.Run("bound to client credentials", func(t *testing.T) {
		store, _ := newStore(t, newRepo(t))
		ctx := context.Background()

		ac, err := store.Issue(ctx, TenantID, ClientID, ClientKey, CallbackURL, Username)
		require.NoError(t, err)

		_, err = store.ValidateAndConsume(ctx, TenantID, ac.Code, ClientID, "wrong")
		require.True(t, errors.Is(err, errors.ErrInvalidGrant))
		_, err = store.ValidateAndConsume(ctx, TenantID, ac.Code, "c2", ClientKey)
		require.True(t, errors.Is(err, errors.ErrInvalidGrant))
		_, err = store.ValidateAndConsume(ctx, "t2", ac.Code, ClientID, ClientKey)
		require.True(t, errors.Is(err, errors.ErrInvalidGrant))

		// A mismatched attempt does not burn the code for its rightful client.
		_, err = store.ValidateAndConsume(ctx, TenantID, ac.Code, ClientID, ClientKey)
		require.NoError(t, err)
	})

	t.Run("unknown code", func(t *testing.T) {
		store, _ := newStore(t, newRepo(t))
		_, err := store.ValidateAndConsume(context.Background(), TenantID, "does-not-exist", ClientID, ClientKey)
		require.True(t, errors.Is(err, errors.ErrInvalidGrant))
	})

	t.Run("concurrent redemption has one winner", func(t *testing.T) {
		store, _ := newStore(t, newRepo(t))
		ctx := context.Background()

		ac, err := store.Issue(ctx, TenantID, ClientID, ClientKey, CallbackURL, Username)
		require.NoError(t, err)

		const callers = 32
		var successes, rejections atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := store.ValidateAndConsume(ctx, TenantID, ac.Code, ClientID, ClientKey)
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, errors.ErrInvalidGrant):
					rejections.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, int32(1), successes.Load())
		require.Equal(t, int32(callers-1), rejections.Load())
	})
}
