package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"supervisor-console/config"
	"supervisor-console/internal/mw"
)

const journalCacheTTL = 2 * time.Second

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	journalCache := mw.ResponseCache(cache.New(journalCacheTTL, 5*journalCacheTTL), journalCacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/session", h.GetSession)
		api.POST("/session/login", h.Login)
		api.POST("/session/otp", h.VerifyOTP)
		api.POST("/session/otp/resend", h.ResendOTP)
		api.POST("/session/back", h.Back)
		api.POST("/session/refresh", h.Refresh)
		api.POST("/session/logout", h.Logout)

		api.GET("/notices", h.GetNotices)
		api.DELETE("/notices/:id", h.DismissNotice)

		api.GET("/journal", journalCache, h.GetJournal)
	}

	return r
}
