package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ligth279/xilov5-overhual/internal/config"
	"github.com/ligth279/xilov5-overhual/internal/utils"
)

const healthProbeTimeout = 2 * time.Second

// HealthProbe names one dependency check reported by /health.
type HealthProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Provider    string            `json:"provider"`
	Components  map[string]string `json:"components,omitempty"`
}

// HealthCheck reports liveness and the reachability of storage dependencies.
// The model backend is reported by /api/status instead.
func HealthCheck(cfg config.Config, probes ...HealthProbe) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Provider:    cfg.AIProvider,
		}

		if len(probes) > 0 {
			ctx, cancel := context.WithTimeout(requestContext(c), healthProbeTimeout)
			defer cancel()

			payload.Components = make(map[string]string, len(probes))
			for _, probe := range probes {
				if probe.Check == nil {
					continue
				}
				if err := probe.Check(ctx); err != nil {
					payload.Components[probe.Name] = "down: " + err.Error()
					payload.Status = "degraded"
					continue
				}
				payload.Components[probe.Name] = "up"
			}
		}

		if payload.Status != "ok" {
			return utils.SendFailure(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
