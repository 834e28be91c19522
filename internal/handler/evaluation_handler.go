package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/service"
	"github.com/ligth279/xilov5-overhual/internal/utils"
)

// EvaluationHandler serves answer evaluation, hints and in-lesson doubts.
type EvaluationHandler struct {
	evaluations service.EvaluationService
	chat        service.ChatService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewEvaluationHandler builds an evaluation handler.
func NewEvaluationHandler(evaluations service.EvaluationService, chat service.ChatService, validator *validator.Validate, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		evaluations: evaluations,
		chat:        chat,
		validator:   validator,
		logger:      logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register binds the evaluation routes under the lessons group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/evaluate-answer", h.evaluate)
	router.Post("/get-hint", h.hint)
	router.Post("/reset-attempts", h.resetAttempts)
	router.Post("/doubt-chat", h.doubtChat)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluateAnswerRequest
	if err := bindJSON(c, h.validator, &payload); err != nil {
		return handleError(c, h.logger, err)
	}
	if payload.UserID == "" {
		payload.UserID = middleware.UserID(c)
	}
	if !middleware.CanActFor(c, payload.UserID) {
		return utils.SendError(c, fiber.StatusForbidden, "cannot answer for another student")
	}

	result, err := h.evaluations.Evaluate(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "answer evaluated", result)
}

func (h *EvaluationHandler) hint(c *fiber.Ctx) error {
	var payload dto.HintRequest
	if err := bindJSON(c, h.validator, &payload); err != nil {
		return handleError(c, h.logger, err)
	}

	hint, err := h.evaluations.Hint(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "hint retrieved", hint)
}

func (h *EvaluationHandler) resetAttempts(c *fiber.Ctx) error {
	var payload dto.ResetAttemptsRequest
	if err := bindJSON(c, h.validator, &payload); err != nil {
		return handleError(c, h.logger, err)
	}
	if payload.UserID == "" {
		payload.UserID = middleware.UserID(c)
	}
	if !middleware.CanActFor(c, payload.UserID) {
		return utils.SendError(c, fiber.StatusForbidden, "cannot reset another student's attempts")
	}

	result, err := h.evaluations.ResetAttempts(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "attempts reset", result)
}

func (h *EvaluationHandler) doubtChat(c *fiber.Ctx) error {
	var payload dto.DoubtChatRequest
	if err := bindJSON(c, h.validator, &payload); err != nil {
		return handleError(c, h.logger, err)
	}

	reply, err := h.chat.AskDoubt(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "doubt answered", reply)
}
