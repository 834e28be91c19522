package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Probe reports whether a backing dependency is reachable.
type Probe func(ctx context.Context) error

// SQLProbe pings the connection pool behind db.
func SQLProbe(db *gorm.DB) Probe {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("database handle: %w", err)
		}
		return sqlDB.PingContext(ctx)
	}
}

// RedisProbe issues PING against client.
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// NATSProbe fails while the connection is reconnecting or closed.
func NATSProbe(conn *nats.Conn) Probe {
	return func(context.Context) error {
		if !conn.IsConnected() {
			return errors.New("nats " + conn.Status().String())
		}
		return nil
	}
}
