package databases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/consulthub/consulthub-api/config"
)

// PresenceStore mirrors who is connected to the chat gateway so that other
// services can ask whether a user is online. The gateway never reads it back.
type PresenceStore interface {
	Online(ctx context.Context, userID, connID string) error
	Offline(ctx context.Context, userID, connID string) error
	Lookup(ctx context.Context, userID string) (connID string, online bool, err error)
	Close() error
}

// presence key: chat:presence:<user>
// Value: connection id, TTL controls the online validity period
func presenceKey(userID string) string { return "chat:presence:" + userID }

// deletes the key only while it still belongs to the given connection
var offlineScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisPresence struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPresenceStore returns a redis backed store when REDIS_ADDR is configured
// and a no-op store otherwise
func NewPresenceStore(ctx context.Context, conf *config.Config) (PresenceStore, error) {
	if conf.RedisAddr == "" {
		return NoopPresence{}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisPresence(rdb, conf.PresenceTTL), nil
}

// NewRedisPresence wraps an existing redis client
func NewRedisPresence(rdb *redis.Client, ttl time.Duration) PresenceStore {
	return &redisPresence{rdb: rdb, ttl: ttl}
}

// Online sets the user as online and renews the TTL
func (p *redisPresence) Online(ctx context.Context, userID, connID string) error {
	return p.rdb.Set(ctx, presenceKey(userID), connID, p.ttl).Err()
}

// Offline removes the user unless a newer connection took over the key
func (p *redisPresence) Offline(ctx context.Context, userID, connID string) error {
	return offlineScript.Run(ctx, p.rdb, []string{presenceKey(userID)}, connID).Err()
}

// Lookup checks whether the user is online
func (p *redisPresence) Lookup(ctx context.Context, userID string) (string, bool, error) {
	val, err := p.rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (p *redisPresence) Close() error {
	return p.rdb.Close()
}

// NoopPresence is used when no redis is configured
type NoopPresence struct{}

func (NoopPresence) Online(context.Context, string, string) error  { return nil }
func (NoopPresence) Offline(context.Context, string, string) error { return nil }
func (NoopPresence) Lookup(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (NoopPresence) Close() error { return nil }
