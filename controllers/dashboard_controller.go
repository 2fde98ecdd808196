package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/segbon/segbon/services"
	"github.com/segbon/segbon/utils"
)

type DashboardController struct {
	dashboard *services.DashboardService
	now       func() time.Time
}

func NewDashboardController(dashboard *services.DashboardService) *DashboardController {
	return &DashboardController{dashboard: dashboard, now: time.Now}
}

// Stats handles GET /dashboard?range=30d|90d|6m|1y|all.
func (d *DashboardController) Stats(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	r, err := services.ParseRange(ctx.Query("range"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	stats, err := d.dashboard.Stats(ctx.Request.Context(), userID, r, d.now())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, stats)
}
