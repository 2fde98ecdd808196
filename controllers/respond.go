package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/segbon/segbon/middleware"
	"github.com/segbon/segbon/services"
	"github.com/segbon/segbon/utils"
)

// respondError maps service errors onto the response envelope. Anything unexpected is
// logged with the request path and answered with a generic 500.
func respondError(ctx *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.ValidationFailed(ctx, 42201, ve.Fields)
	case errors.Is(err, services.ErrInvalidToken):
		utils.Error(ctx, http.StatusNotFound, 40402, "publication not found")
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40301, "you do not own this resource")
	case errors.Is(err, services.ErrAccountDisabled):
		utils.Error(ctx, http.StatusForbidden, 40302, "account disabled")
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40901, "resource already exists or changed concurrently")
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
	default:
		utils.Sugar.Errorw("request failed",
			"method", ctx.Request.Method,
			"path", ctx.FullPath(),
			"err", err,
		)
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}

// respondBindError answers 422 for validation failures and 400 for malformed bodies.
func respondBindError(ctx *gin.Context, err error) {
	if fields, ok := utils.BindingErrors(err); ok {
		utils.ValidationFailed(ctx, 42201, fields)
		return
	}
	utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
}

func recaptchaField(ctx *gin.Context, err error) {
	utils.ValidationFailed(ctx, 42202, map[string]string{"recaptcha_token": err.Error()})
}

func currentUserID(ctx *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
	}
	return id, ok
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func pageFromQuery(ctx *gin.Context) services.Page {
	page, _ := strconv.Atoi(ctx.Query("page"))
	perPage, _ := strconv.Atoi(ctx.Query("per_page"))
	return services.NewPage(page, perPage)
}
