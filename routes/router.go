package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/segbon/segbon/config"
	"github.com/segbon/segbon/controllers"
	"github.com/segbon/segbon/middleware"
	"github.com/segbon/segbon/notify"
	"github.com/segbon/segbon/services"
	"github.com/segbon/segbon/utils"
)

const rankingCacheTTL = 5 * time.Minute

// Deps carries the infrastructure built in main.
type Deps struct {
	Disk       *utils.Disk
	Cipher     *utils.IDCipher
	Dispatcher *notify.Dispatcher
	// CacheTTL overrides the ranking and catalog cache lifetime; negative disables caching.
	CacheTTL time.Duration
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, deps Deps) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	utils.RegisterValidators()

	r := gin.New()
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		utils.Sugar.Warnw("gin logger unavailable, using default recovery", "err", err)
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// browsers reject credentials with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")
	if deps.Disk != nil && strings.HasPrefix(deps.Disk.PublicPrefix, "/") {
		r.Static(deps.Disk.PublicPrefix, deps.Disk.Root)
	}

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	cacheTTL := rankingCacheTTL
	if deps.CacheTTL != 0 {
		cacheTTL = deps.CacheTTL
	}
	if cacheTTL < 0 {
		cacheTTL = 0
	}

	assets := services.Assets{Disk: deps.Disk, DefaultCover: cfg.DefaultCover, DefaultPhoto: cfg.DefaultPhoto}
	views := services.NewViewService(db)
	subs := services.NewSubscriptionService(db, func(uint) { services.InvalidateRankings() })
	elements := services.NewElementService(db, services.ElementDeps{
		Disk:       deps.Disk,
		Cipher:     deps.Cipher,
		Assets:     assets,
		Views:      views,
		Subs:       subs,
		Dispatcher: deps.Dispatcher,
		BaseURL:    cfg.BaseURL,
		OnChange:   services.InvalidateRankings,
	})
	discovery := services.NewDiscoveryService(db, deps.Cipher, assets, views, subs, cacheTTL)
	catalog := services.NewCatalogService(db, cacheTTL)
	profiles := services.NewProfileService(db, deps.Disk, assets, services.InvalidateRankings)
	accounts := services.NewAccountService(db)
	dashboard := services.NewDashboardService(db)

	recaptcha := utils.NewRecaptcha(cfg.RecaptchaSecret, cfg.RecaptchaMinScore, cfg.RecaptchaVerifyURL)
	secureCookies := strings.HasPrefix(cfg.BaseURL, "https://")

	authController := controllers.NewAuthController(accounts, recaptcha)
	subscriptionController := controllers.NewSubscriptionController(subs, recaptcha, secureCookies)
	elementController := controllers.NewElementController(elements)
	discoveryController := controllers.NewDiscoveryController(discovery, catalog)
	dashboardController := controllers.NewDashboardController(dashboard)
	acdetailController := controllers.NewAcdetailController(profiles)

	api := r.Group("/api/v1")

	api.GET("/", discoveryController.Home)
	api.GET("/find/reporter", discoveryController.FindReporter)
	api.GET("/find/article", discoveryController.FindArticle)
	api.GET("/segbo/:username", discoveryController.Profile)
	api.GET("/segbopub/:title", elementController.Public)
	api.GET("/categories", discoveryController.Categories)
	api.GET("/elementypes", discoveryController.Elementypes)

	reporters := api.Group("/reporters/:username")
	reporters.Use(middleware.RateLimitMiddleware())
	reporters.POST("/subscribe", subscriptionController.Subscribe)
	reporters.POST("/unsubscribe", subscriptionController.Unsubscribe)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/google/login", authController.GoogleLogin)
	authGroup.GET("/oauth/google/callback", authController.GoogleCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())
	protected.GET("/elements", elementController.List)
	protected.POST("/elements", elementController.Create)
	protected.GET("/elements/:id", elementController.Show)
	protected.PUT("/elements/:id", elementController.Update)
	protected.PATCH("/elements/:id/endisable", elementController.Endisable)
	protected.GET("/acdetail", acdetailController.Show)
	protected.PUT("/acdetail", acdetailController.Update)
	protected.GET("/dashboard", dashboardController.Stats)
	protected.GET("/subscribers", subscriptionController.List)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		if strings.HasPrefix(path, "/static/") || strings.HasPrefix(path, cfg.StoragePublicPrefix+"/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "asset not found")
			return
		}
		// everything else is a client side route of the SPA
		ctx.Status(http.StatusOK)
		ctx.File("./static/index.html")
	})

	return r
}
