package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/segbon/segbon/services"
	"github.com/segbon/segbon/utils"
)

const (
	subscriberCookiePrefix = "subscriber_"
	subscriberCookieMaxAge = 365 * 24 * 60 * 60
	recaptchaSubscribe     = "subscribe"
)

// SubscriberCookieName is the cookie remembering which email follows username.
func SubscriberCookieName(username string) string {
	return subscriberCookiePrefix + username
}

// SubscriptionController exposes subscribe and unsubscribe.
type SubscriptionController struct {
	subs          *services.SubscriptionService
	recaptcha     *utils.Recaptcha
	secureCookies bool
}

func NewSubscriptionController(subs *services.SubscriptionService, recaptcha *utils.Recaptcha, secureCookies bool) *SubscriptionController {
	return &SubscriptionController{subs: subs, recaptcha: recaptcha, secureCookies: secureCookies}
}

type subscribeRequest struct {
	Email          string `json:"email" form:"email" binding:"required,max=255"`
	RecaptchaToken string `json:"recaptcha_token" form:"recaptcha_token"`
	PlayerID       string `json:"player_id" form:"player_id" binding:"max=128"`
}

// Subscribe handles POST /reporters/:username/subscribe.
func (s *SubscriptionController) Subscribe(ctx *gin.Context) {
	var req subscribeRequest
	if err := ctx.ShouldBind(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	if err := s.recaptcha.Verify(ctx.Request.Context(), req.RecaptchaToken, recaptchaSubscribe, ctx.ClientIP()); err != nil {
		recaptchaField(ctx, err)
		return
	}

	res, err := s.subs.Subscribe(ctx.Request.Context(), ctx.Param("username"), req.Email, req.PlayerID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	s.setCookie(ctx, res.Author.Username, res.Subscriber.Email, subscriberCookieMaxAge)
	data := gin.H{
		"subscribed":         true,
		"already_subscribed": res.AlreadySubscribed,
		"email":              res.Subscriber.Email,
		"reporter":           res.Author.Username,
	}
	if res.AlreadySubscribed {
		utils.SuccessMessage(ctx, "You are already subscribed to "+res.Author.Name+".", data)
		return
	}
	utils.SuccessMessage(ctx, "You are now subscribed to "+res.Author.Name+".", data)
}

type unsubscribeRequest struct {
	Email string `json:"email" form:"email" binding:"max=255"`
}

// Unsubscribe handles POST /reporters/:username/unsubscribe. Without an email in the
// body the remembered cookie value is used.
func (s *SubscriptionController) Unsubscribe(ctx *gin.Context) {
	var req unsubscribeRequest
	if hasFormBody(ctx) {
		// an empty JSON body means "use the cookie"
		if err := ctx.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
			respondBindError(ctx, err)
			return
		}
	}
	username := ctx.Param("username")
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email, _ = ctx.Cookie(SubscriberCookieName(username))
	}

	author, err := s.subs.Unsubscribe(ctx.Request.Context(), username, email)
	if err != nil {
		respondError(ctx, err)
		return
	}
	s.setCookie(ctx, author.Username, "", -1)
	utils.SuccessMessage(ctx, "You have been unsubscribed from "+author.Name+".", gin.H{
		"subscribed": false,
		"reporter":   author.Username,
	})
}

// List handles GET /subscribers for the signed-in reporter.
func (s *SubscriptionController) List(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	activeOnly := ctx.DefaultQuery("active", "1") != "0"
	page, err := s.subs.ListForAuthor(ctx.Request.Context(), userID, activeOnly, pageFromQuery(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, page)
}

// hasFormBody reports whether the request declares a JSON or form payload. Chunked
// bodies have an unknown length and are bound too.
func hasFormBody(ctx *gin.Context) bool {
	if ctx.Request.Body == nil || ctx.Request.Body == http.NoBody || ctx.Request.ContentLength == 0 {
		return false
	}
	switch ctx.ContentType() {
	case binding.MIMEJSON, binding.MIMEPOSTForm, binding.MIMEMultipartPOSTForm:
		return true
	}
	return false
}

func (s *SubscriptionController) setCookie(ctx *gin.Context, username, email string, maxAge int) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(SubscriberCookieName(username), email, maxAge, "/", "", s.secureCookies, true)
}
