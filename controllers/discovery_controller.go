package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/segbon/segbon/services"
	"github.com/segbon/segbon/utils"
)

// DiscoveryController serves the public pages.
type DiscoveryController struct {
	discovery *services.DiscoveryService
	catalog   *services.CatalogService
}

func NewDiscoveryController(discovery *services.DiscoveryService, catalog *services.CatalogService) *DiscoveryController {
	return &DiscoveryController{discovery: discovery, catalog: catalog}
}

// Home handles GET / with the top reporters.
func (d *DiscoveryController) Home(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	cards, err := d.discovery.TopReporters(ctx.Request.Context(), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"reporters": cards})
}

// FindReporter handles GET /find/reporter?q=.
func (d *DiscoveryController) FindReporter(ctx *gin.Context) {
	page, err := d.discovery.FindReporters(ctx.Request.Context(), ctx.Query("q"), pageFromQuery(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, page)
}

// Profile handles GET /segbo/:username. The subscriber cookie only pre-fills the state;
// the database decides whether the email is subscribed.
func (d *DiscoveryController) Profile(ctx *gin.Context) {
	username := ctx.Param("username")
	email, _ := ctx.Cookie(SubscriberCookieName(username))
	profile, err := d.discovery.Profile(ctx.Request.Context(), username, email, pageFromQuery(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	data := gin.H{"profile": profile}
	if profile.Subscribed {
		data["subscriber_email"] = email
	}
	utils.Success(ctx, data)
}

// FindArticle handles GET /find/article?q=&category=&type=.
func (d *DiscoveryController) FindArticle(ctx *gin.Context) {
	page, err := d.discovery.FindArticles(ctx.Request.Context(), services.ArticleQuery{
		Q:        ctx.Query("q"),
		Category: ctx.Query("category"),
		Type:     ctx.Query("type"),
	}, pageFromQuery(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, page)
}

// Categories handles GET /categories.
func (d *DiscoveryController) Categories(ctx *gin.Context) {
	out, err := d.catalog.Categories(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, out)
}

// Elementypes handles GET /elementypes.
func (d *DiscoveryController) Elementypes(ctx *gin.Context) {
	out, err := d.catalog.Elementypes(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, out)
}
