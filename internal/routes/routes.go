package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentorhub/backend/internal/handlers"
	"github.com/mentorhub/backend/internal/middleware"
)

// RegisterRoutes wires all gamification routes onto the router
func RegisterRoutes(router *gin.Engine, creditHandler *handlers.CreditHandler, badgeHandler *handlers.BadgeHandler, leaderboardHandler *handlers.LeaderboardHandler, referralHandler *handlers.ReferralHandler, rateLimiter *middleware.RateLimiter) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public routes: badge catalog, rankings, level table and referral
	// code validation are readable before login.
	public := router.Group("/api")
	public.Use(rateLimiter.Middleware())
	{
		public.GET("/badges", badgeHandler.ListBadges)
		public.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
		public.GET("/credits/levels", creditHandler.GetLevels)
		public.GET("/referrals/validate/:code", referralHandler.ValidateCode)
	}

	// Authenticated routes
	auth := router.Group("/api")
	auth.Use(rateLimiter.Middleware(), middleware.AuthMiddleware())
	{
		auth.GET("/credits/summary", creditHandler.GetMySummary)
		auth.GET("/credits/history", creditHandler.GetMyHistory)

		auth.GET("/badges/me", badgeHandler.GetMyBadges)
		auth.GET("/badges/:id/progress", badgeHandler.GetBadgeProgress)
		auth.POST("/badges/:id/share", badgeHandler.ShareBadge)

		auth.POST("/referrals", referralHandler.GenerateCode)
		auth.GET("/referrals/me", referralHandler.GetMyReferrals)
		auth.POST("/referrals/process", referralHandler.ProcessReferral)
		auth.DELETE("/referrals/:id", referralHandler.CancelReferral)
	}

	// Admin routes
	admin := router.Group("/api")
	admin.Use(rateLimiter.Middleware(), middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("/credits/award", creditHandler.AwardPoints)
		admin.POST("/credits/events", creditHandler.RecordEvent)
		admin.POST("/badges/:id/award", badgeHandler.AwardBadge)
		admin.POST("/leaderboard/recompute", leaderboardHandler.Recompute)
	}
}
