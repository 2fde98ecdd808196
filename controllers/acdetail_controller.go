package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/segbon/segbon/services"
	"github.com/segbon/segbon/utils"
)

// AcdetailController lets reporters edit their public profile.
type AcdetailController struct {
	profiles *services.ProfileService
}

func NewAcdetailController(profiles *services.ProfileService) *AcdetailController {
	return &AcdetailController{profiles: profiles}
}

type acdetailRequest struct {
	Name      string `form:"name" json:"name" binding:"required,max=128"`
	Email     string `form:"email" json:"email" binding:"required,email,max=255"`
	Bio       string `form:"bio" json:"bio"`
	Website   string `form:"website" json:"website" binding:"web_url"`
	Facebook  string `form:"facebook" json:"facebook" binding:"web_url"`
	Twitter   string `form:"twitter" json:"twitter" binding:"web_url"`
	Linkedin  string `form:"linkedin" json:"linkedin" binding:"web_url"`
	Instagram string `form:"instagram" json:"instagram" binding:"web_url"`
	Youtube   string `form:"youtube" json:"youtube" binding:"web_url"`
}

// Show handles GET /acdetail.
func (a *AcdetailController) Show(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	view, err := a.profiles.GetProfile(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, view)
}

// Update handles PUT /acdetail (multipart with optional "photo").
func (a *AcdetailController) Update(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req acdetailRequest
	if err := ctx.ShouldBind(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	photo, err := optionalFile(ctx, "photo")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid photo upload")
		return
	}
	view, err := a.profiles.UpdateProfile(ctx.Request.Context(), userID, services.ProfileInput{
		Name:      req.Name,
		Email:     req.Email,
		Bio:       req.Bio,
		Website:   req.Website,
		Facebook:  req.Facebook,
		Twitter:   req.Twitter,
		Linkedin:  req.Linkedin,
		Instagram: req.Instagram,
		Youtube:   req.Youtube,
	}, photo)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, view)
}
