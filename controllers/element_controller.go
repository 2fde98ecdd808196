package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/segbon/segbon/services"
	"github.com/segbon/segbon/utils"
)

// ElementController serves the reporter's publications and the public element page.
type ElementController struct {
	elements *services.ElementService
}

func NewElementController(elements *services.ElementService) *ElementController {
	return &ElementController{elements: elements}
}

type elementRequest struct {
	Title        string `form:"title" json:"title" binding:"required,max=255"`
	Link         string `form:"link" json:"link" binding:"required,https_url,max=1024"`
	Description  string `form:"description" json:"description"`
	CategoryID   uint   `form:"category_id" json:"category_id" binding:"required"`
	ElementypeID uint   `form:"elementype_id" json:"elementype_id" binding:"required"`
}

func (r elementRequest) input() services.ElementInput {
	return services.ElementInput{
		Title:        r.Title,
		Link:         r.Link,
		Description:  r.Description,
		CategoryID:   r.CategoryID,
		ElementypeID: r.ElementypeID,
	}
}

// optionalFile returns the uploaded file or nil when the field is absent.
func optionalFile(ctx *gin.Context, field string) (*multipart.FileHeader, error) {
	fh, err := ctx.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	return fh, err
}

// List handles GET /elements.
func (e *ElementController) List(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	page, err := e.elements.ListMine(ctx.Request.Context(), userID, pageFromQuery(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, page)
}

// Create handles POST /elements (multipart with optional "cover").
func (e *ElementController) Create(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req elementRequest
	if err := ctx.ShouldBind(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	cover, err := optionalFile(ctx, "cover")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid cover upload")
		return
	}
	view, err := e.elements.Create(ctx.Request.Context(), userID, req.input(), cover)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, view)
}

// Show handles GET /elements/:id.
func (e *ElementController) Show(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	view, err := e.elements.Get(ctx.Request.Context(), userID, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, view)
}

// Update handles PUT /elements/:id (multipart with optional "cover").
func (e *ElementController) Update(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req elementRequest
	if err := ctx.ShouldBind(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	cover, err := optionalFile(ctx, "cover")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid cover upload")
		return
	}
	view, err := e.elements.Update(ctx.Request.Context(), userID, id, req.input(), cover)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, view)
}

// Endisable handles PATCH /elements/:id/endisable. The toggle succeeds even when
// notifying subscribers fails; the outcome is reported under "notification".
func (e *ElementController) Endisable(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	res, err := e.elements.Endisable(ctx.Request.Context(), userID, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	msg := "publication disabled"
	if res.Enabled {
		msg = "publication enabled"
	}
	utils.SuccessMessage(ctx, msg, res)
}

// Public handles GET /segbopub/:title where title is the encrypted element id.
func (e *ElementController) Public(ctx *gin.Context) {
	view, err := e.elements.GetPublic(ctx.Request.Context(), ctx.Param("title"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, view)
}
