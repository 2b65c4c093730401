package middleware

import (
	"net/http"
	"time"

	"labcaja/internal/apierror"
	"labcaja/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	idempotencyPrefix = "idem:"
	idempotencyTTL    = 24 * time.Hour
)

// Idempotency rejects a mutating request whose Idempotency-Key was already seen with 409.
// The key is claimed with SETNX before the handler runs and released when the handler
// answers 5xx, so a failed submission can be retried with the same key. Requests without
// the header pass through. metrics may be nil.
func Idempotency(rdb *redis.Client, metrics *infra.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if len(key) > 128 {
			c.AbortWithStatusJSON(http.StatusBadRequest, apierror.New("Idempotency-Key demasiado largo"))
			return
		}

		redisKey := idempotencyPrefix + key
		ok, err := rdb.SetNX(c.Request.Context(), redisKey, c.Request.Method+" "+c.Request.URL.Path, idempotencyTTL).Result()
		if err != nil {
			// Redis down: the database invariants still hold, so the request proceeds.
			log.Warn().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("idempotency store unavailable")
			c.Next()
			return
		}
		if !ok {
			if metrics != nil {
				metrics.IdempotentHits.Inc()
			}
			c.AbortWithStatusJSON(http.StatusConflict, apierror.New("La solicitud ya fue procesada"))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			if err := rdb.Del(c.Request.Context(), redisKey).Err(); err != nil {
				log.Warn().Err(err).Str("key", redisKey).Msg("idempotency key not released")
			}
		}
	}
}
