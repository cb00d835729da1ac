package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			args = append(args, "error", errs.String())
		}

		if status >= http.StatusInternalServerError {
			s.logger.Error(ctx, "request", args...)
		} else {
			s.logger.Info(ctx, "request", args...)
		}
	}
}

// throttle rejects requests over the limit of the client IP. Limiter
// failures let the request through.
func (s *HTTPServer) throttle() gin.HandlerFunc {
	type limited interface{ Limit() int }

	return func(c *gin.Context) {
		ok, err := s.limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.logger.Warn(c.Request.Context(), "throttle check failed", "error", err)
			c.Next()
			return
		}

		if l, has := s.limiter.(limited); has {
			c.Header("X-RateLimit-Limit", strconv.Itoa(l.Limit()))
		}

		if !ok {
			abortWith(c, http.StatusTooManyRequests, "ThrottlerException: Too Many Requests")
			return
		}
		c.Next()
	}
}
