package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinicbook/internal/config"
	"github.com/wolfman30/clinicbook/internal/session"
	"github.com/wolfman30/clinicbook/internal/slots"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, sessions will not survive restarts", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore picks Redis when a client is available and an in-memory
// store otherwise.
func BuildSessionStore(redisClient *redis.Client) session.Store {
	if redisClient == nil {
		return session.NewMemoryStore()
	}
	return session.NewRedisStore(redisClient)
}

// BuildCatalog turns the configured slot window into a catalog.
func BuildCatalog(cfg *appconfig.Config) (slots.Catalog, error) {
	if cfg == nil {
		return slots.DefaultCatalog(), nil
	}
	start, err := slots.ParseTimeOfDay(cfg.SlotStart)
	if err != nil {
		return slots.Catalog{}, fmt.Errorf("bootstrap: slot start: %w", err)
	}
	end, err := slots.ParseTimeOfDay(cfg.SlotEnd)
	if err != nil {
		return slots.Catalog{}, fmt.Errorf("bootstrap: slot end: %w", err)
	}
	catalog, err := slots.NewCatalog(start, end, cfg.SlotStep)
	if err != nil {
		return slots.Catalog{}, fmt.Errorf("bootstrap: slot catalog: %w", err)
	}
	return catalog, nil
}
