package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// agentsKey is a sorted set of agent ids scored by expiry (unix ms).
const agentsKey = "presence:agents"

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a Tracker shared by every API instance.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig, ttl time.Duration) (*Redis, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl, now: time.Now}, nil
}

func (r *Redis) expiry() float64 {
	return float64(r.now().Add(r.ttl).UnixMilli())
}

func (r *Redis) nowScore() string {
	return strconv.FormatInt(r.now().UnixMilli(), 10)
}

// SetOnline marks the agent online for one TTL, or removes them.
func (r *Redis) SetOnline(ctx context.Context, agentID string, online bool) error {
	if online {
		return r.rdb.ZAdd(ctx, agentsKey, redis.Z{Score: r.expiry(), Member: agentID}).Err()
	}
	return r.rdb.ZRem(ctx, agentsKey, agentID).Err()
}

// Heartbeat extends the TTL only for agents that are still online.
func (r *Redis) Heartbeat(ctx context.Context, agentID string) error {
	online, err := r.IsOnline(ctx, agentID)
	if err != nil || !online {
		return err
	}
	return r.rdb.ZAddXX(ctx, agentsKey, redis.Z{Score: r.expiry(), Member: agentID}).Err()
}

// IsOnline reports whether the agent is online and not expired.
func (r *Redis) IsOnline(ctx context.Context, agentID string) (bool, error) {
	score, err := r.rdb.ZScore(ctx, agentsKey, agentID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis zscore: %w", err)
	}
	return int64(score) > r.now().UnixMilli(), nil
}

// Online sweeps expired members and returns the rest.
func (r *Redis) Online(ctx context.Context) ([]string, error) {
	now := r.nowScore()
	pipe := r.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, agentsKey, "-inf", now)
	members := pipe.ZRangeByScore(ctx, agentsKey, &redis.ZRangeBy{Min: "(" + now, Max: "+inf"})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis presence sweep: %w", err)
	}
	return members.Val(), nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
