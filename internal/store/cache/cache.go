// Package cache keeps the latest build reports in Redis and relays live log
// lines over Redis pub/sub so other processes can follow a running build.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// DefaultTTL is how long a cached report survives without updates.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned when no report is cached for a build.
var ErrNotFound = errors.New("report not cached")

const (
	reportKeyPrefix = "codebuild:report:"
	recentKey       = "codebuild:reports:recent"
	logChannel      = "codebuild:logs:"
)

// Cache stores reports and relays log lines through Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the report expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New connects to the Redis server at redisURL.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewWithClient(client, opts...), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetReport caches rec and records it in the recent index.
func (c *Cache) SetReport(ctx context.Context, rec *models.ReportRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, reportKeyPrefix+rec.BuildID, data, c.ttl)
	pipe.ZAdd(ctx, recentKey, redis.Z{Score: float64(updated.Unix()), Member: rec.BuildID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("caching report: %w", err)
	}
	return nil
}

// GetReport returns the cached report of buildID.
func (c *Cache) GetReport(ctx context.Context, buildID string) (*models.ReportRecord, error) {
	data, err := c.client.Get(ctx, reportKeyPrefix+buildID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	var rec models.ReportRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	return &rec, nil
}

// RecentBuildIDs returns up to n build ids, most recently updated first.
// Ids whose report has expired are pruned from the index.
func (c *Cache) RecentBuildIDs(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := c.client.ZRevRange(ctx, recentKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading recent reports: %w", err)
	}

	live := ids[:0]
	for _, id := range ids {
		exists, err := c.client.Exists(ctx, reportKeyPrefix+id).Result()
		if err != nil {
			return nil, fmt.Errorf("checking report %s: %w", id, err)
		}
		if exists == 0 {
			c.client.ZRem(ctx, recentKey, id)
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

// PublishLines relays log lines of buildID to subscribers in other processes.
func (c *Cache) PublishLines(ctx context.Context, buildID string, lines []string) error {
	for _, line := range lines {
		if err := c.client.Publish(ctx, logChannel+buildID, line).Err(); err != nil {
			return fmt.Errorf("publishing log line: %w", err)
		}
	}
	return nil
}

// SubscribeLines follows the log lines of buildID until ctx is done. The
// returned channel is closed when the subscription ends.
func (c *Cache) SubscribeLines(ctx context.Context, buildID string) (<-chan string, error) {
	pubsub := c.client.Subscribe(ctx, logChannel+buildID)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribing to logs: %w", err)
	}

	out := make(chan string, 100)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					c.logger.Warn("log subscriber full, dropping line", "build_id", buildID)
				}
			}
		}
	}()
	return out, nil
}

// Ping verifies the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
