package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// DBCheck pings the database behind db.
func DBCheck(db *gorm.DB) Check {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// RedisCheck pings rdb.
func RedisCheck(rdb *redis.Client) Check {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

// Health returns a JSON health check response with one "connected"/"error" entry per check.
// Never exposes credentials or internals.
func Health(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		body := gin.H{}
		status := http.StatusOK
		for name, check := range checks {
			if check(ctx) != nil {
				body[name] = "error"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "connected"
		}
		body["ok"] = status == http.StatusOK
		c.JSON(status, body)
	}
}
