package middleware

import (
	"net/http"
	"strconv"

	"telecare-sos/internal/utils"
	"telecare-sos/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit throttles a route group per caller, keyed by user ID when
// authenticated and by client IP otherwise. rate uses the limiter format,
// e.g. "30-M". A store error lets the request through.
func RateLimit(rate string, log *logger.Logger) (gin.HandlerFunc, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	lim := limiter.New(memory.NewStore(), parsed)

	return func(c *gin.Context) {
		key := c.GetString(ContextUserID)
		if key == "" {
			key = c.ClientIP()
		}
		key = routePath(c) + "|" + key

		result, err := lim.Get(c.Request.Context(), key)
		if err != nil {
			log.WithError(err).Warn("Rate limiter unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))

		if result.Reached {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}, nil
}
