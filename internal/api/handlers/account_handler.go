package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/postdeck/postdeck/internal/repository"
)

type AccountHandler struct {
	cr repository.ConnectionRepository
}

func NewAccountHandler(cr repository.ConnectionRepository) *AccountHandler {
	return &AccountHandler{cr: cr}
}

// ListAccounts returns the client's connected platform accounts, optionally
// filtered to active ones. Credential fields never serialize; the models
// hide them from JSON.
func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	clientID := GetClientID(c)

	list := h.cr.ListByClientID
	if c.QueryBool("active") {
		list = h.cr.ListActive
	}

	connections, err := list(c.Context(), clientID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(connections)
}
