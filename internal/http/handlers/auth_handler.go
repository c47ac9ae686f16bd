package handlers

import (
	"github.com/ft-lockup/backend/internal/http/dto"
	"github.com/ft-lockup/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *services.AuthService
	log         *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// GeneratePayload создаёт nonce для TON Proof.
// POST /auth/proof-payload
func (h *AuthHandler) GeneratePayload(c *fiber.Ctx) error {
	payload, err := h.authService.GeneratePayload(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"payload": payload})
}

// TonProof логинит кошелёк по TON Proof и выдаёт JWT.
// POST /auth/ton-proof
func (h *AuthHandler) TonProof(c *fiber.Ctx) error {
	var req services.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Address == "" || req.PublicKey == "" || req.Proof.Signature == "" {
		return badRequest(c, "address, public_key, and proof.signature are required")
	}

	session, err := h.authService.Login(c.Context(), req)
	if err != nil {
		h.log.Debug("ton proof login failed", zap.Error(err))
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.AuthResponse{
		Token:     session.Token,
		AccountID: session.AccountID,
		ExpiresAt: session.ExpiresAt,
	})
}
