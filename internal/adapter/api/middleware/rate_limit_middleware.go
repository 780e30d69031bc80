package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"holachat/internal/infrastructure/ratelimit"
	"holachat/pkg/errors"
	"holachat/pkg/logger"
	"holachat/pkg/response"
)

// RateLimit throttles requests per client IP with the limiter's policy for
// action.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			allowed, wait := limiter.Allow(ip, action)
			if !allowed {
				logger.Warn("RATE LIMIT: blocked %s from IP %s (reset in %v)", action, ip, wait)
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", wait))
			}

			return next(c)
		}
	}
}
