package handlers

import (
	"github.com/ft-lockup/backend/internal/http/dto"
	"github.com/ft-lockup/backend/internal/middleware"
	"github.com/ft-lockup/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type WhitelistHandler struct {
	whitelistService *services.WhitelistService
	log              *zap.Logger
}

func NewWhitelistHandler(whitelistService *services.WhitelistService, log *zap.Logger) *WhitelistHandler {
	return &WhitelistHandler{whitelistService: whitelistService, log: log}
}

// GET /whitelist
func (h *WhitelistHandler) List(c *fiber.Ctx) error {
	accounts, err := h.whitelistService.List(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: accounts})
}

// POST /whitelist
func (h *WhitelistHandler) Add(c *fiber.Ctx) error {
	var req dto.WhitelistRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.whitelistService.Add(c.Context(), middleware.GetAccountID(c), req.AccountID); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// DELETE /whitelist/:account
func (h *WhitelistHandler) Remove(c *fiber.Ctx) error {
	if err := h.whitelistService.Remove(c.Context(), middleware.GetAccountID(c), c.Params("account")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
