// Package httpapi exposes the control-plane endpoint for pushing a message
// into a conversation from outside the trigger pipeline.
package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/builders-garden/squabble-agent-xmtp/transport"
)

type Config struct {
	AgentSecret string
	Logger      *slog.Logger
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

func New(t transport.Transport, cfg Config) *fiber.App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Post("/api/send-message", func(c *fiber.Ctx) error {
		secret := c.Get("x-agent-secret")
		if cfg.AgentSecret == "" ||
			subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.AgentSecret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		var req sendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		req.ConversationID = strings.TrimSpace(req.ConversationID)
		req.Message = strings.TrimSpace(req.Message)
		if req.ConversationID == "" || req.Message == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "conversationId and message are required",
			})
		}

		conv, err := t.GetConversation(c.Context(), req.ConversationID)
		if err != nil {
			logger.Warn("api_conversation_not_found",
				"conversation_id", req.ConversationID,
				"error", err.Error(),
			)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "conversation not found",
			})
		}

		messageID, err := conv.Send(c.Context(), req.Message)
		if err != nil {
			logger.Warn("api_send_error",
				"conversation_id", req.ConversationID,
				"error", err.Error(),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "send failed",
			})
		}

		logger.Info("api_message_sent",
			"conversation_id", req.ConversationID,
			"message_id", messageID,
		)
		return c.JSON(fiber.Map{
			"conversationId": req.ConversationID,
			"message":        req.Message,
			"messageId":      messageID,
		})
	})

	return app
}
