package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"github.com/ligth279/xilov5-overhual/internal/observability"
)

// Upper bounds for the latency_bucket log field. Model backed routes can take
// up to the model timeout, so the tail stays coarse.
var latencyBuckets = []struct {
	limit time.Duration
	label string
}{
	{25 * time.Millisecond, "<=25ms"},
	{50 * time.Millisecond, "<=50ms"},
	{100 * time.Millisecond, "<=100ms"},
	{250 * time.Millisecond, "<=250ms"},
	{500 * time.Millisecond, "<=500ms"},
	{5 * time.Second, "<=5s"},
}

// Observability records request metrics and one structured log line for every
// /api request. Infra routes such as /health and /metrics are not observed.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()
	inFlight := observability.HTTPInFlight()

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), "/api/") {
			return c.Next()
		}

		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		// fiber strings alias fasthttp buffers that are reused after the request.
		route := utils.CopyString(routeTemplate(c))
		method := utils.CopyString(c.Method())
		status := c.Response().StatusCode()

		observability.HTTPRequests().WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		observability.HTTPLatency().WithLabelValues(method, route).Observe(duration.Seconds())

		event := requestEvent(logger, status)
		if event == nil {
			return err
		}
		event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
			Str("latency_bucket", latencyBucket(duration))
		if user := UserID(c); user != "" {
			event.Str("user_id", user)
		}
		event.Msg("api request")

		return err
	}
}

func requestEvent(logger zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= fiber.StatusInternalServerError:
		return logger.Error()
	case status >= fiber.StatusBadRequest:
		return logger.Warn()
	default:
		return logger.Debug()
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	for _, bucket := range latencyBuckets {
		if duration <= bucket.limit {
			return bucket.label
		}
	}
	return ">5s"
}
