package handlers

import (
	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct {
	cfg *config.Config
}

func NewMetaHandler(cfg *config.Config) *MetaHandler {
	return &MetaHandler{cfg: cfg}
}

// GetToken tells clients which token the ledger pays out and where to deposit.
// GET /token
func (h *MetaHandler) GetToken(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.MetaResponse{
		TokenAccountID: h.cfg.TokenAccountID,
		DepositAddress: h.cfg.TONHotWalletAddress,
		Network:        h.cfg.TONNetwork,
	}})
}
