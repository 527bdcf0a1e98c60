package api

import (
	"database/sql"
	"errors"

	"finrag/app/agent"
	"finrag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ChatHandler struct {
	agent *agent.Agent
}

func NewChatHandler(a *agent.Agent) *ChatHandler {
	return &ChatHandler{
		agent: a,
	}
}

// HandleChat answers one chat turn against a single ingested document.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	docID, err := uuid.Parse(params.DocumentID)
	if err != nil {
		return ErrInvalidID()
	}

	resp, err := h.agent.Answer(c.Context(), docID, params.Role, params.Messages)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrNotFound(params.DocumentID, "document")
		case errors.Is(err, agent.ErrNotReady):
			return NewError(fiber.StatusNotFound, "document is not available for chat")
		case errors.Is(err, agent.ErrLastNotUser):
			return NewError(fiber.StatusBadRequest, "chat history must end with a user message")
		case errors.Is(err, agent.ErrGeneration):
			return ErrGenerationFailed()
		default:
			return err
		}
	}

	return c.JSON(resp)
}
