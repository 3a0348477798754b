package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address  string        `json:"address"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	PoolSize int           `json:"pool_size"`
	Timeout  time.Duration `json:"timeout"`
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.Timeout == 0 {
		config.Timeout = 250 * time.Millisecond
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// WindowCount is the result of a sliding-window read: the number of events
// currently inside the window and the timestamp of the oldest surviving one.
type WindowCount struct {
	Count    int
	OldestAt time.Time
}

// opContext bounds every window operation so a slow Redis never stalls an
// admission decision beyond the configured timeout.
func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.config.Timeout)
}

// IncrementWindow records one event for key and returns the count of events
// in the trailing window, including the one just recorded.
//
// The window is a sorted set scored by unix milliseconds. One transaction
// prunes aged-out events, appends the new one under a unique member, counts
// what survives, and refreshes the TTL to twice the window so idle keys
// expire on their own.
func (c *Client) IncrementWindow(ctx context.Context, key string, window time.Duration) (WindowCount, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	now := time.Now().UnixMilli()
	cutoff := now - window.Milliseconds()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now), Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.Expire(ctx, key, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return WindowCount{}, fmt.Errorf("failed to increment window: %w", err)
	}

	return WindowCount{
		Count:    int(countCmd.Val()),
		OldestAt: oldestAt(oldestCmd.Val()),
	}, nil
}

// CountWindow reads the current in-window count for key without recording an
// event. Aged-out members are excluded by score, not removed, so repeated
// reads never perturb the window.
func (c *Client) CountWindow(ctx context.Context, key string, window time.Duration) (WindowCount, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	now := time.Now().UnixMilli()
	min := "(" + strconv.FormatInt(now-window.Milliseconds(), 10)

	pipe := c.rdb.TxPipeline()
	countCmd := pipe.ZCount(ctx, key, min, "+inf")
	oldestCmd := pipe.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   min,
		Max:   "+inf",
		Count: 1,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return WindowCount{}, fmt.Errorf("failed to count window: %w", err)
	}

	return WindowCount{
		Count:    int(countCmd.Val()),
		OldestAt: oldestAt(oldestCmd.Val()),
	}, nil
}

// ForgiveWindow removes the newest event from key's window. Used when a
// policy opts out of counting successful or failed requests.
func (c *Client) ForgiveWindow(ctx context.Context, key string) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.rdb.ZRemRangeByRank(ctx, key, -1, -1).Err(); err != nil {
		return fmt.Errorf("failed to forgive window event: %w", err)
	}
	return nil
}

// ClearWindow deletes key's window entirely, restoring full quota.
func (c *Client) ClearWindow(ctx context.Context, key string) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear window: %w", err)
	}
	return nil
}

// CountKeys reports how many keys match the given pattern, for stats.
func (c *Client) CountKeys(ctx context.Context, pattern string) (int, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	var cursor uint64
	total := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan keys: %w", err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func oldestAt(members []redis.Z) time.Time {
	if len(members) == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(members[0].Score))
}
