package api

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, ErrBadRequest().Code)
	assert.Equal(t, fiber.StatusBadRequest, ErrInvalidID().Code)
	assert.Equal(t, fiber.StatusNotFound, ErrNotFound("abc", "document").Code)
	assert.Equal(t, fiber.StatusUnprocessableEntity, ErrRejected("not a financial report").Code)
	assert.Equal(t, fiber.StatusConflict, ErrDuplicate().Code)
	assert.Equal(t, fiber.StatusBadGateway, ErrGenerationFailed().Code)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "document with abc not found", ErrNotFound("abc", "document").Error())
	assert.Equal(t, "not a financial report", ErrRejected("not a financial report").Error())
	assert.Contains(t, ErrGenerationFailed().Error(), "try again")
}

func TestValidationError(t *testing.T) {
	verr := NewValidationError(map[string]string{"Role": "failed on 'required' tag"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, verr.Status)
	assert.Equal(t, "validation failed", verr.Error())
}
