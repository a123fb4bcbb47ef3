package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/njoerd114/prayerrelay/internal/cache"
	"github.com/njoerd114/prayerrelay/internal/model"
)

const redisKeyPrefix = "prayerrelay:cache:"

// RedisConfig selects the Redis server used by [OpenRedis].
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// RedisSnapshots stores month snapshots as JSON blobs in Redis so several
// daemons (one per signage screen, say) can share one warm cache.
type RedisSnapshots struct {
	rdb redis.Cmdable
}

// snapshotJSON is the stored form. Dates and times are ISO strings so the
// blob stays readable from redis-cli.
type snapshotJSON struct {
	Region    string   `json:"region"`
	YearMonth string   `json:"year_month"`
	FetchedAt string   `json:"fetched_at"`
	Days      []dayRow `json:"days"`
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisSnapshots, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis %s: %w", cfg.Addr, err)
	}
	return NewRedisSnapshots(client), client, nil
}

// NewRedisSnapshots wraps an existing client.
func NewRedisSnapshots(rdb redis.Cmdable) *RedisSnapshots {
	return &RedisSnapshots{rdb: rdb}
}

// SaveSnapshot overwrites the region's snapshot.
func (r *RedisSnapshots) SaveSnapshot(ctx context.Context, snap cache.Snapshot) error {
	blob := snapshotJSON{
		Region:    snap.Region,
		YearMonth: snap.YearMonth.String(),
		FetchedAt: formatTime(snap.FetchedAt),
	}
	for _, d := range snap.Days {
		blob.Days = append(blob.Days, toDayRow(d))
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("encoding snapshot for %q: %w", snap.Region, err)
	}
	if err := r.rdb.Set(ctx, redisKeyPrefix+snap.Region, data, 0).Err(); err != nil {
		return fmt.Errorf("saving snapshot for %q: %w", snap.Region, err)
	}
	return nil
}

// LoadSnapshot returns the region's snapshot, or (nil, nil) if none exists.
func (r *RedisSnapshots) LoadSnapshot(ctx context.Context, region string) (*cache.Snapshot, error) {
	data, err := r.rdb.Get(ctx, redisKeyPrefix+region).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %q: %w", region, err)
	}

	var blob snapshotJSON
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("decoding snapshot for %q: %w", region, err)
	}
	ym, err := model.ParseYearMonth(blob.YearMonth)
	if err != nil {
		return nil, fmt.Errorf("snapshot for %q: %w", region, err)
	}
	fetchedAt, err := parseTime(blob.FetchedAt)
	if err != nil {
		return nil, fmt.Errorf("snapshot for %q: %w", region, err)
	}

	snap := &cache.Snapshot{Region: blob.Region, YearMonth: ym, FetchedAt: fetchedAt}
	for _, row := range blob.Days {
		d, err := fromDayRow(row)
		if err != nil {
			return nil, fmt.Errorf("snapshot for %q: %w", region, err)
		}
		snap.Days = append(snap.Days, d)
	}
	return snap, nil
}
