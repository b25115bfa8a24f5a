package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	limitergin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimit builds a redis-backed rate limiting middleware. The format
// follows limiter's notation, e.g. "300-M" for 300 requests per minute.
func RateLimit(client *redis.Client, format string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit format: %w", err)
	}

	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "storefront:ratelimit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}

	return limitergin.NewMiddleware(limiter.New(store, rate)), nil
}
