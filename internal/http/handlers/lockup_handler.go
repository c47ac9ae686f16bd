package handlers

import (
	"github.com/ft-lockup/backend/internal/http/dto"
	"github.com/ft-lockup/backend/internal/middleware"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxPage = 100

type LockupHandler struct {
	lockupService *services.LockupService
	resolve       services.AccountResolver
	log           *zap.Logger
}

func NewLockupHandler(lockupService *services.LockupService, resolve services.AccountResolver, log *zap.Logger) *LockupHandler {
	return &LockupHandler{lockupService: lockupService, resolve: resolve, log: log}
}

// Claim выплачивает всё разблокированное по всем lockup вызывающего.
// POST /claim
func (h *LockupHandler) Claim(c *fiber.Ctx) error {
	amount, err := h.lockupService.Claim(c.Context(), middleware.GetAccountID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.AmountResponse{Amount: amount}})
}

// ClaimLockups выплачивает указанные суммы из указанных lockup.
// POST /claim/lockups
func (h *LockupHandler) ClaimLockups(c *fiber.Ctx) error {
	var req dto.ClaimLockupsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	reqs := make([]services.ClaimRequest, 0, len(req.Lockups))
	for _, l := range req.Lockups {
		reqs = append(reqs, services.ClaimRequest{Index: l.Index, Amount: l.Amount})
	}
	amount, err := h.lockupService.ClaimLockups(c.Context(), middleware.GetAccountID(c), reqs)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.AmountResponse{Amount: amount}})
}

// Terminate прекращает vesting lockup и возвращает невестированный остаток плательщику.
// POST /lockups/:index/terminate
func (h *LockupHandler) Terminate(c *fiber.Ctx) error {
	idx, err := parseUint32(c.Params("index"))
	if err != nil {
		return badRequest(c, "invalid lockup index")
	}
	var req dto.TerminateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	unvested, err := h.lockupService.Terminate(c.Context(), middleware.GetAccountID(c), idx, req.HashedSchedule, req.TerminationTimestamp)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.AmountResponse{Amount: unvested}})
}

// GET /lockups/count
func (h *LockupHandler) GetNumLockups(c *fiber.Ctx) error {
	n, err := h.lockupService.GetNumLockups(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.CountResponse{Count: n}})
}

// GET /lockups/:index
func (h *LockupHandler) GetLockup(c *fiber.Ctx) error {
	idx, err := parseUint32(c.Params("index"))
	if err != nil {
		return badRequest(c, "invalid lockup index")
	}
	view, err := h.lockupService.GetLockup(c.Context(), idx)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: view})
}

// GET /lockups?from=&to=
func (h *LockupHandler) GetLockups(c *fiber.Ctx) error {
	from, to, err := pageParams(c, maxPage)
	if err != nil {
		return badRequest(c, "invalid from/to")
	}
	views, err := h.lockupService.GetLockups(c.Context(), from, to)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: views})
}

// GET /lockups/batch?indices=1,2,3
func (h *LockupHandler) GetLockupsByIndex(c *fiber.Ctx) error {
	indices, err := parseIndexList(c.Query("indices"))
	if err != nil || len(indices) > maxPage {
		return badRequest(c, "invalid indices")
	}
	views, err := h.lockupService.GetLockupsByIndex(c.Context(), indices)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: views})
}

// GET /accounts/:account/lockups
func (h *LockupHandler) GetAccountLockups(c *fiber.Ctx) error {
	account := c.Params("account")
	if h.resolve != nil {
		var err error
		if account, err = h.resolve(account); err != nil {
			return respondError(c, h.log, err)
		}
	}
	views, err := h.lockupService.GetAccountLockups(c.Context(), account)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: views})
}

// POST /schedules/hash
func (h *LockupHandler) HashSchedule(c *fiber.Ctx) error {
	var req dto.HashScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ScheduleHashResponse{
		Hash: h.lockupService.HashSchedule(req.Schedule),
	}})
}

// POST /schedules/validate
func (h *LockupHandler) ValidateSchedule(c *fiber.Ctx) error {
	var req dto.ValidateScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	total, err := models.ParseBalance(req.TotalBalance)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.lockupService.ValidateSchedule(req.Schedule, total, req.TerminationSchedule); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
