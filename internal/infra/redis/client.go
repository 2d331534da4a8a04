package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the report heartbeat.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks if Redis is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// heartbeatTTL bounds how long a stale heartbeat survives a dead agent.
const heartbeatTTL = 24 * time.Hour

// Key helpers
func reportKey(nodeUUID string) string {
	return fmt.Sprintf("nodepulse:last_report:%s", nodeUUID)
}

func generationKey(nodeUUID string) string {
	return fmt.Sprintf("nodepulse:generation:%s", nodeUUID)
}

// RecordReport stores the time and provider generation of the last
// successful report for a node.
func (c *Client) RecordReport(ctx context.Context, nodeUUID string, generation int64, at time.Time) error {
	if err := c.rdb.Set(ctx, reportKey(nodeUUID), at.UTC().Format(time.RFC3339), heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	if err := c.rdb.Set(ctx, generationKey(nodeUUID), strconv.FormatInt(generation, 10), heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// LastReport returns the time of the last successful report, or zero time if
// none was recorded.
func (c *Client) LastReport(ctx context.Context, nodeUUID string) (time.Time, error) {
	val, err := c.rdb.Get(ctx, reportKey(nodeUUID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get failed: %w", err)
	}
	return time.Parse(time.RFC3339, val)
}

// LastGeneration returns the provider generation seen at the last report, or
// 0 if none was recorded.
func (c *Client) LastGeneration(ctx context.Context, nodeUUID string) (int64, error) {
	val, err := c.rdb.Get(ctx, generationKey(nodeUUID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get failed: %w", err)
	}
	return strconv.ParseInt(val, 10, 64)
}
