package handlers

import (
	"strconv"
	"strings"

	"github.com/ft-lockup/backend/internal/http/dto"
	"github.com/ft-lockup/backend/internal/middleware"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return fiber.StatusNotFound
	case models.KindUnauthorized:
		return fiber.StatusForbidden
	case models.KindState:
		return fiber.StatusConflict
	case models.KindValidation:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err with a status derived from its kind. Internal
// errors are logged and their text is not exposed.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	kind := models.KindOf(err)
	status := statusFor(kind)
	resp := dto.ErrorResponse{
		Error:     err.Error(),
		Kind:      kind.String(),
		RequestID: middleware.GetRequestID(c),
	}
	if status == fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		resp.Error = "internal server error"
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:     msg,
		Kind:      models.KindValidation.String(),
		RequestID: middleware.GetRequestID(c),
	})
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// parseIndexList parses "1,2,3".
func parseIndexList(s string) ([]uint32, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint32, 0, len(parts))
	for _, p := range parts {
		v, err := parseUint32(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// pageParams reads ?from=&to=. to defaults to from+limit.
func pageParams(c *fiber.Ctx, limit uint32) (uint32, uint32, error) {
	from, err := parseUint32(c.Query("from", "0"))
	if err != nil {
		return 0, 0, err
	}
	to := from + limit
	if v := c.Query("to"); v != "" {
		if to, err = parseUint32(v); err != nil {
			return 0, 0, err
		}
	}
	return from, to, nil
}
