package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/segbon/segbon/config"
	"github.com/segbon/segbon/middleware"
	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/services"
	"github.com/segbon/segbon/utils"
)

const (
	googleUserinfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	recaptchaRegister  = "register"
	registerCooldown   = 10 * time.Second
	oauthStateLifetime = 10 * time.Minute
)

// AuthController handles reporter accounts.
type AuthController struct {
	accounts  *services.AccountService
	recaptcha *utils.Recaptcha
}

func NewAuthController(accounts *services.AccountService, recaptcha *utils.Recaptcha) *AuthController {
	return &AuthController{accounts: accounts, recaptcha: recaptcha}
}

type registerRequest struct {
	Name           string `json:"name" binding:"required,max=128"`
	Username       string `json:"username" binding:"required,min=3,max=32"`
	Email          string `json:"email" binding:"required,email,max=255"`
	Password       string `json:"password" binding:"required,min=8,max=72"`
	RecaptchaToken string `json:"recaptcha_token"`
}

// Register creates a local account and returns a token.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	if err := a.recaptcha.Verify(ctx.Request.Context(), req.RecaptchaToken, recaptchaRegister, ctx.ClientIP()); err != nil {
		recaptchaField(ctx, err)
		return
	}
	if !utils.CooldownTry(registerCooldown, "register", ctx.ClientIP()) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many attempts, please wait a moment")
		return
	}

	user, err := a.accounts.Register(ctx.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	a.issueToken(ctx, user)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login accepts a username or an email address.
func (a *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	user, err := a.accounts.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}
	a.issueToken(ctx, user)
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	expiresAt := time.Now().Add(utils.TokenTTL)
	if v, ok := ctx.Get(middleware.ContextClaimsKey); ok {
		if claims, ok := v.(*utils.Claims); ok && claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	}
	utils.BlacklistToken(token, expiresAt)
	utils.SuccessMessage(ctx, "logged out", nil)
}

// Me returns the signed-in reporter.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	user, err := a.accounts.Me(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

// GoogleLogin returns the Google authorization URL with a fresh state.
func (a *AuthController) GoogleLogin(ctx *gin.Context) {
	cfg, err := googleOAuthConfig()
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50301, err.Error())
		return
	}
	state := utils.IssueState(oauthStateLifetime)
	utils.Success(ctx, gin.H{"authorization_url": cfg.AuthCodeURL(state), "state": state})
}

// GoogleCallback exchanges the code and signs the reporter in.
func (a *AuthController) GoogleCallback(ctx *gin.Context) {
	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}
	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}
	cfg, err := googleOAuthConfig()
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50301, err.Error())
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
	defer cancel()
	token, err := cfg.Exchange(reqCtx, code)
	if err != nil {
		utils.Sugar.Warnw("google code exchange failed", "err", err)
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}
	profile, err := fetchGoogleProfile(reqCtx, cfg.Client(reqCtx, token))
	if err != nil {
		utils.Sugar.Warnw("google userinfo failed", "err", err)
		utils.Error(ctx, http.StatusBadGateway, 50201, "failed to load Google profile")
		return
	}
	user, err := a.accounts.LoginWithGoogle(ctx.Request.Context(), *profile)
	if err != nil {
		respondError(ctx, err)
		return
	}
	a.issueToken(ctx, user)
}

func (a *AuthController) issueToken(ctx *gin.Context, user *models.User) {
	token, expiresAt, err := utils.GenerateToken(user.ID, user.Username, utils.TokenTTL)
	if err != nil {
		respondError(ctx, fmt.Errorf("generate token: %w", err))
		return
	}
	utils.Success(ctx, gin.H{"token": token, "expires_at": expiresAt, "user": user})
}

func googleOAuthConfig() (*oauth2.Config, error) {
	cfg := config.Get()
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, fmt.Errorf("google sign-in is not configured")
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectBase + "/api/v1/auth/oauth/google/callback",
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}, nil
}

func fetchGoogleProfile(ctx context.Context, client *http.Client) (*services.GoogleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserinfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo: %s", resp.Status)
	}
	var payload struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if !payload.VerifiedEmail {
		payload.Email = ""
	}
	return &services.GoogleProfile{ID: payload.ID, Email: payload.Email, Name: payload.Name}, nil
}
