// Package reset manages the request/consume two-step password recovery
// flow. Pending reset tokens live in Redis with a native TTL, so expiry
// needs no sweeping and the registry stays correct across server
// instances and restarts.
package reset

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/staffdesk/apiserver/config"
	"github.com/staffdesk/apiserver/types"
)

const (
	defaultTokenTTL = time.Hour
	tokenBytes      = 20
	keyPrefix       = "pwreset"
)

// ErrInvalidOrExpired is returned when a token is unknown, already
// consumed, or past its validity window. The three cases are deliberately
// indistinguishable.
var ErrInvalidOrExpired = errors.New("invalid or expired reset token")

type entry struct {
	PrincipalID int        `json:"principal_id"`
	Role        types.Role `json:"role"`
}

// Registry holds pending password-reset requests keyed by token.
type Registry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRegistry connects to Redis and returns a Registry with the default
// 1h token validity.
func NewRegistry(cfg config.RedisConfig) (*Registry, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Registry{client: client, ttl: defaultTokenTTL}, nil
}

// NewRegistryWithClient wraps an existing Redis client. Used by tests and
// by callers that manage the client lifecycle themselves.
func NewRegistryWithClient(client *redis.Client, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Registry{client: client, ttl: ttl}
}

// Create stores a pending reset for the principal and returns the opaque
// token. The token is the only key to the entry; it must reach the
// account owner through an out-of-band channel and is never echoed in an
// HTTP response.
func (r *Registry) Create(ctx context.Context, principalID int, role types.Role) (string, time.Time, error) {
	token, err := newToken()
	if err != nil {
		return "", time.Time{}, err
	}

	payload, err := json.Marshal(entry{PrincipalID: principalID, Role: role})
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := time.Now().Add(r.ttl)
	if err := r.client.Set(ctx, key(token), payload, r.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("redis set failed: %w", err)
	}
	return token, expiresAt, nil
}

// Consume fetches and deletes the entry for the token in one atomic step,
// guaranteeing single use. Unknown and expired tokens both fail with
// ErrInvalidOrExpired.
func (r *Registry) Consume(ctx context.Context, token string) (int, types.Role, error) {
	data, err := r.client.GetDel(ctx, key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, "", ErrInvalidOrExpired
	}
	if err != nil {
		return 0, "", fmt.Errorf("redis getdel failed: %w", err)
	}

	var e entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return 0, "", ErrInvalidOrExpired
	}
	return e.PrincipalID, e.Role, nil
}

// TokenTTL returns the configured validity window for new tokens.
func (r *Registry) TokenTTL() time.Duration {
	return r.ttl
}

// Close closes the underlying Redis client.
func (r *Registry) Close() error {
	return r.client.Close()
}

func key(token string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, token)
}

func newToken() (string, error) {
	var buf [tokenBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
