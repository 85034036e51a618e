// Package redis implements Redis-backed caching for Clinic Notify. The bot
// settings row is read on every inbound message (auto-responder flag), so it
// is served from a short-TTL cache in front of PostgreSQL; writes invalidate.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinichub/clinic-notify/internal/domain/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// NewClient creates a go-redis client from a URL and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to parse URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to ping: %w", err)
	}
	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS CACHE
// ══════════════════════════════════════════════════════════════════════════════

const (
	settingsKey       = "clinic-notify:bot-settings"
	defaultSettingsTTL = 30 * time.Second
)

// SettingsCache is a read-through cache implementing messaging.SettingsStore.
// Cache failures degrade to the inner store; they are never surfaced.
type SettingsCache struct {
	inner  messaging.SettingsStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSettingsCache wraps a settings store. ttl <= 0 selects the default.
func NewSettingsCache(inner messaging.SettingsStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *SettingsCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultSettingsTTL
	}
	return &SettingsCache{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "settings_cache"),
	}
}

// Get serves the settings from cache, falling back to the inner store.
func (c *SettingsCache) Get(ctx context.Context) (*messaging.BotSettings, error) {
	data, err := c.client.Get(ctx, settingsKey).Bytes()
	if err == nil {
		var s messaging.BotSettings
		if err := json.Unmarshal(data, &s); err == nil {
			return &s, nil
		}
		// Corrupt entry, drop it and re-read.
		c.client.Del(ctx, settingsKey)
	}

	s, err := c.inner.Get(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, s)
	return s, nil
}

// Update writes through and invalidates.
func (c *SettingsCache) Update(ctx context.Context, s *messaging.BotSettings) error {
	if err := c.inner.Update(ctx, s); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// SetActive writes through and invalidates.
func (c *SettingsCache) SetActive(ctx context.Context, active bool) error {
	if err := c.inner.SetActive(ctx, active); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *SettingsCache) set(ctx context.Context, s *messaging.BotSettings) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, settingsKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("settings cache set failed", "error", err)
	}
}

func (c *SettingsCache) invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, settingsKey).Err(); err != nil {
		c.logger.Warn("settings cache invalidate failed", "error", err)
	}
}
