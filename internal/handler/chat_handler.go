package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/service"
	"github.com/ligth279/xilov5-overhual/internal/utils"
)

// ChatHandler wires the doubt chat endpoints including SSE and the websocket upgrade.
type ChatHandler struct {
	service   service.ChatService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.ChatService, validator *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the api group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Use("/chat/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", requestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/chat/ws", websocket.New(h.handleConnection))
	router.Get("/chat/languages", h.languages)
	router.Post("/chat/stream", h.stream)
	router.Post("/chat", h.chat)
	router.Post("/clear-memory", h.clearMemory)
}

func (h *ChatHandler) chat(c *fiber.Ctx) error {
	var payload dto.ChatRequest
	if err := bindJSON(c, h.validator, &payload); err != nil {
		return handleError(c, h.logger, err)
	}

	reply, err := h.service.Ask(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat reply", reply)
}

func (h *ChatHandler) clearMemory(c *fiber.Ctx) error {
	var payload dto.ClearMemoryRequest
	if err := bindJSON(c, h.validator, &payload); err != nil {
		return handleError(c, h.logger, err)
	}

	if err := h.service.Clear(requestContext(c), payload.SessionID); err != nil {
		return handleError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "memory cleared", fiber.Map{"session_id": payload.SessionID})
}

func (h *ChatHandler) languages(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "supported languages", h.service.Languages())
}

func (h *ChatHandler) stream(c *fiber.Ctx) error {
	var payload dto.ChatRequest
	if err := bindJSON(c, h.validator, &payload); err != nil {
		return handleError(c, h.logger, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := requestContext(c)
	logger := requestLogger(h.logger, c)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		err := h.service.Stream(ctx, payload, func(event dto.ChatStreamEvent) error {
			return writeChatEvent(w, event)
		})
		if err != nil {
			logger.Debug().Err(err).Msg("chat stream ended early")
			_ = writeChatEvent(w, dto.ChatStreamEvent{Status: service.StreamError, Message: publicChatError(err)})
		}
	})

	return nil
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	logger := middleware.LoggerWithCorrelation(ctx, h.logger)
	logger.Debug().Msg("chat websocket connected")
	defer logger.Debug().Msg("chat websocket disconnected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var payload dto.ChatRequest
		if err := json.Unmarshal(raw, &payload); err != nil {
			if writeErr := conn.WriteJSON(dto.ChatStreamEvent{Status: service.StreamError, Message: "invalid message"}); writeErr != nil {
				return
			}
			continue
		}
		if err := h.validator.Struct(payload); err != nil {
			if writeErr := conn.WriteJSON(dto.ChatStreamEvent{Status: service.StreamError, Message: err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		err = h.service.Stream(ctx, payload, func(event dto.ChatStreamEvent) error {
			return conn.WriteJSON(event)
		})
		if err != nil {
			if writeErr := conn.WriteJSON(dto.ChatStreamEvent{Status: service.StreamError, Message: publicChatError(err)}); writeErr != nil {
				return
			}
		}
	}
}

func writeChatEvent(w *bufio.Writer, event dto.ChatStreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event.Status); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func publicChatError(err error) string {
	if errors.Is(err, service.ErrChatUnavailable) {
		return service.ErrChatUnavailable.Error()
	}
	return err.Error()
}
