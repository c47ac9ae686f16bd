package handlers

import (
	"github.com/ft-lockup/backend/internal/http/dto"
	"github.com/ft-lockup/backend/internal/middleware"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DraftHandler struct {
	draftService *services.DraftService
	log          *zap.Logger
}

func NewDraftHandler(draftService *services.DraftService, log *zap.Logger) *DraftHandler {
	return &DraftHandler{draftService: draftService, log: log}
}

// POST /draft-groups
func (h *DraftHandler) CreateDraftGroup(c *fiber.Ctx) error {
	id, err := h.draftService.CreateDraftGroup(c.Context(), middleware.GetAccountID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"id": id}})
}

// POST /drafts
func (h *DraftHandler) CreateDraft(c *fiber.Ctx) error {
	var req models.Draft
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	id, err := h.draftService.CreateDraft(c.Context(), middleware.GetAccountID(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"id": id}})
}

// POST /drafts/batch
func (h *DraftHandler) CreateDrafts(c *fiber.Ctx) error {
	var req dto.CreateDraftsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Drafts) == 0 {
		return badRequest(c, "drafts are required")
	}
	ids, err := h.draftService.CreateDrafts(c.Context(), middleware.GetAccountID(c), req.Drafts)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"ids": ids}})
}

// POST /drafts/:id/convert
func (h *DraftHandler) ConvertDraft(c *fiber.Ctx) error {
	id, err := parseUint32(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid draft id")
	}
	idx, err := h.draftService.ConvertDraft(c.Context(), middleware.GetAccountID(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"index": idx}})
}

// POST /drafts/convert
func (h *DraftHandler) ConvertDrafts(c *fiber.Ctx) error {
	var req dto.ConvertDraftsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.DraftIDs) == 0 {
		return badRequest(c, "draft_ids are required")
	}
	indices, err := h.draftService.ConvertDrafts(c.Context(), middleware.GetAccountID(c), req.DraftIDs)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"indices": indices}})
}

// GET /draft-groups/count
func (h *DraftHandler) GetNumDraftGroups(c *fiber.Ctx) error {
	n, err := h.draftService.GetNumDraftGroups(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.CountResponse{Count: n}})
}

// GET /draft-groups?from=&to=
func (h *DraftHandler) GetDraftGroups(c *fiber.Ctx) error {
	from, to, err := pageParams(c, maxPage)
	if err != nil {
		return badRequest(c, "invalid from/to")
	}
	views, err := h.draftService.GetDraftGroups(c.Context(), from, to)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: views})
}

// GET /draft-groups/:id
func (h *DraftHandler) GetDraftGroup(c *fiber.Ctx) error {
	id, err := parseUint32(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid draft group id")
	}
	view, err := h.draftService.GetDraftGroup(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: view})
}

// GET /drafts/:id
func (h *DraftHandler) GetDraft(c *fiber.Ctx) error {
	id, err := parseUint32(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid draft id")
	}
	view, err := h.draftService.GetDraft(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: view})
}

// GET /drafts?indices=1,2,3
func (h *DraftHandler) GetDrafts(c *fiber.Ctx) error {
	ids, err := parseIndexList(c.Query("indices"))
	if err != nil || len(ids) > maxPage {
		return badRequest(c, "invalid indices")
	}
	views, err := h.draftService.GetDrafts(c.Context(), ids)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: views})
}
