package config

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ConnectRedis establishes connection to Redis. It returns nil when Redis is not
// configured or unreachable; the run lock then falls back to the execution record.
func ConnectRedis(cfg RedisConfig, log *logrus.Logger) *redis.Client {
	if cfg.Addr == "" {
		log.Info("REDIS_ADDR not set, distributed run lock disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.WithError(err).Warn("Redis connection failed, distributed run lock disabled")
		client.Close()
		return nil
	}

	log.WithField("addr", cfg.Addr).Info("connected to Redis")
	return client
}
