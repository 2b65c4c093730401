package middleware

import (
	"net/http"

	"labcaja/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	limitergin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiter limits requests per client IP. rate uses the ulule format, e.g. "300-M".
// Counters live in process memory.
func RateLimiter(rate string) (gin.HandlerFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(memory.NewStore(), r)

	return limitergin.NewMiddleware(instance,
		limitergin.WithLimitReachedHandler(func(c *gin.Context) {
			log.Warn().
				Str("request_id", c.GetString(RequestIDKey)).
				Str("ip", c.ClientIP()).
				Msg("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
		}),
		limitergin.WithErrorHandler(func(c *gin.Context, err error) {
			log.Error().Err(err).Msg("rate limiter store failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
		}),
	), nil
}
