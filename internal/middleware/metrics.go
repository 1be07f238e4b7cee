package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/okapi-pay/okapi_pay/internal/metrics"
)

// HTTPMetrics records per-route response times. The route template (not the
// raw path) is used as the label so wallet names do not explode cardinality.
func HTTPMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		metrics.ResponseTime.WithLabelValues(route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}
