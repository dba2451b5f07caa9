package middleware

import (
	"strconv"
	"time"

	"rewards-settlement/monitoring"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestMetrics records every request in prometheus and the access log.
func RequestMetrics(log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		path := c.Route().Path
		elapsed := time.Since(start)
		monitoring.HttpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		monitoring.ResponseTimeHistogram.WithLabelValues(c.Method(), path).Observe(elapsed.Seconds())

		log.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		)
		return err
	}
}
