package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ligth279/xilov5-overhual/internal/service"
	"github.com/ligth279/xilov5-overhual/internal/utils"
)

// StatusHandler exposes model readiness.
type StatusHandler struct {
	service service.StatusService
	logger  zerolog.Logger
}

// NewStatusHandler builds a status handler.
func NewStatusHandler(service service.StatusService, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		service: service,
		logger:  logger.With().Str("component", "status_handler").Logger(),
	}
}

// Register binds the status route.
func (h *StatusHandler) Register(router fiber.Router) {
	router.Get("/status", h.status)
}

func (h *StatusHandler) status(c *fiber.Ctx) error {
	status := h.service.Status(requestContext(c))
	if status.Status != service.ModelReady {
		requestLogger(h.logger, c).Debug().Str("detail", status.Detail).Msg("model not ready")
	}
	return utils.SendSuccess(c, "model status", status)
}
