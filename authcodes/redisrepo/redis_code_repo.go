// Package redisrepo stores authorization codes in Redis so several server
// instances can share them.
package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-authenticator/authcodes"
	"github.com/redis/go-redis/v9"
)

var _ authcodes.Repo = (*RedisCodeRepo)(nil)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Config holds the connection settings for a standalone Redis server.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// storedCode is the JSON shape kept under each key. The consume script reads
// and rewrites it with cjson, so field names are part of the script contract.
type storedCode struct {
	TenantID    string `json:"tenant_id"`
	ClientID    string `json:"client_id"`
	ClientKey   string `json:"client_key"`
	RedirectURL string `json:"redirect_url"`
	Code        string `json:"code"`
	Username    string `json:"username"`
	CreateTime  int64  `json:"create_time"` // unix ms
	ExpiryTime  int64  `json:"expiry_time"` // unix ms
	Consumed    bool   `json:"consumed"`
}

type RedisCodeRepo struct {
	client    redis.UniversalClient
	keyPrefix string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*RedisCodeRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redisrepo.New] failed to connect to redis: %w", err)
	}
	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client, e.g. one pointed at miniredis.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *RedisCodeRepo {
	return &RedisCodeRepo{client: client, keyPrefix: keyPrefix}
}

func (r *RedisCodeRepo) key(tenantID, code string) string {
	return fmt.Sprintf("%sauthcode:%s:%s", r.keyPrefix, tenantID, code)
}

func (r *RedisCodeRepo) Insert(ctx context.Context, c *authcodes.AuthorizationCode) error {
	data, err := json.Marshal(storedCode{
		TenantID:    c.TenantID,
		ClientID:    c.ClientID,
		ClientKey:   c.ClientKey,
		RedirectURL: c.RedirectURL,
		Code:        c.Code,
		Username:    c.Username,
		CreateTime:  c.CreateTime.UnixMilli(),
		ExpiryTime:  c.ExpiryTime.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("[RedisCodeRepo.Insert] marshal: %w", err)
	}

	ttl := c.ExpiryTime.Sub(c.CreateTime)
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := r.client.SetNX(ctx, r.key(c.TenantID, c.Code), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("[RedisCodeRepo.Insert] %w", err)
	}
	if !ok {
		return authcodes.ErrCodeExists
	}
	return nil
}

// consumeScript checks the client credentials, expiry and consumed flag and
// flips the flag in a single server-side step. It returns {1, json} on
// success and {0, reason} otherwise.
var consumeScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
	return {0, 'code not found'}
end
local c = cjson.decode(data)
if c.client_id ~= ARGV[1] or c.client_key ~= ARGV[2] then
	return {0, 'client credentials do not match code'}
end
if tonumber(c.expiry_time) <= tonumber(ARGV[3]) then
	return {0, 'code expired'}
end
if c.consumed then
	return {0, 'code already consumed'}
end
c.consumed = true
local encoded = cjson.encode(c)
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
	redis.call('SET', KEYS[1], encoded, 'PX', ttl)
else
	redis.call('SET', KEYS[1], encoded)
end
return {1, encoded}
`)

func (r *RedisCodeRepo) Consume(ctx context.Context, tenantID, code, clientID, clientKey string, now time.Time) (*authcodes.AuthorizationCode, error) {
	res, err := consumeScript.Run(ctx, r.client, []string{r.key(tenantID, code)}, clientID, clientKey, now.UnixMilli()).Slice()
	if err != nil {
		return nil, fmt.Errorf("[RedisCodeRepo.Consume] %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("[RedisCodeRepo.Consume] unexpected script result %v", res)
	}
	payload, _ := res[1].(string)
	if ok, _ := res[0].(int64); ok != 1 {
		return nil, authcodes.Rejected(payload)
	}

	var stored storedCode
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		return nil, fmt.Errorf("[RedisCodeRepo.Consume] unmarshal: %w", err)
	}
	return &authcodes.AuthorizationCode{
		TenantID:    stored.TenantID,
		ClientID:    stored.ClientID,
		ClientKey:   stored.ClientKey,
		RedirectURL: stored.RedirectURL,
		Code:        stored.Code,
		Username:    stored.Username,
		CreateTime:  time.UnixMilli(stored.CreateTime).UTC(),
		ExpiryTime:  time.UnixMilli(stored.ExpiryTime).UTC(),
		Consumed:    stored.Consumed,
	}, nil
}
