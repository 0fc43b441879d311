package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/msi-products/capwatch/internal/config"
	"github.com/msi-products/capwatch/internal/model"
)

// RedisStore persists the collection, settings and notification feed as JSON
// values in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string

	mu          sync.RWMutex
	subscribers []func(key string)
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.RedisPrefix,
	}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) GetEntries(ctx context.Context) ([]model.Entry, error) {
	data, err := r.client.Get(ctx, r.prefix+KeyEntries).Bytes()
	if err == redis.Nil {
		return []model.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get entries: %w", err)
	}

	var entries []model.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal entries: %w", err)
	}
	return entries, nil
}

func (r *RedisStore) SetEntries(ctx context.Context, entries []model.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+KeyEntries, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set entries: %w", err)
	}
	r.notify(KeyEntries)
	return nil
}

func (r *RedisStore) GetSettings(ctx context.Context) (model.Settings, error) {
	data, err := r.client.Get(ctx, r.prefix+KeySettings).Bytes()
	if err == redis.Nil {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("redis get settings: %w", err)
	}

	settings := model.DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return model.Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return settings, nil
}

func (r *RedisStore) SetSettings(ctx context.Context, settings model.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+KeySettings, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set settings: %w", err)
	}
	r.notify(KeySettings)
	return nil
}

func (r *RedisStore) AppendNotification(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := r.prefix + KeyNotifications
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, notificationLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append notification: %w", err)
	}
	r.notify(KeyNotifications)
	return nil
}

func (r *RedisStore) Notifications(ctx context.Context) ([]model.Notification, error) {
	values, err := r.client.LRange(ctx, r.prefix+KeyNotifications, 0, notificationLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list notifications: %w", err)
	}

	notifications := make([]model.Notification, 0, len(values))
	for _, v := range values {
		var n model.Notification
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			return nil, fmt.Errorf("unmarshal notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func (r *RedisStore) Subscribe(fn func(key string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

func (r *RedisStore) notify(key string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fn := range r.subscribers {
		fn(key)
	}
}
