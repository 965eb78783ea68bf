package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/services/badges"
)

// BadgeHandler handles badge catalog and award requests
type BadgeHandler struct {
	badges *badges.BadgeService
}

// NewBadgeHandler creates a new badge handler
func NewBadgeHandler(badgeSvc *badges.BadgeService) *BadgeHandler {
	return &BadgeHandler{badges: badgeSvc}
}

// ListBadges lists the active badge catalog
func (h *BadgeHandler) ListBadges(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true" && c.GetBool("is_admin")

	catalog, err := h.badges.ListBadges(c.Request.Context(), includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"badges": catalog})
}

// GetMyBadges lists the authenticated user's badges
func (h *BadgeHandler) GetMyBadges(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	userBadges, err := h.badges.GetUserBadges(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"badges": userBadges})
}

// GetBadgeProgress evaluates the authenticated user's progress on a badge
func (h *BadgeHandler) GetBadgeProgress(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	badgeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid badge ID"})
		return
	}

	progress, err := h.badges.EvaluateProgress(c.Request.Context(), userID, badgeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

type awardBadgeRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Reason string    `json:"reason"`
}

// AwardBadge awards a badge to a user. Admin only.
func (h *BadgeHandler) AwardBadge(c *gin.Context) {
	adminID, ok := authedUserID(c)
	if !ok {
		return
	}

	badgeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid badge ID"})
		return
	}

	var req awardBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userBadge, err := h.badges.Award(c.Request.Context(), req.UserID, badgeID, adminID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userBadge)
}

type shareBadgeRequest struct {
	Platforms []string `json:"platforms" binding:"required"`
}

// ShareBadge records a social share of an earned badge
func (h *BadgeHandler) ShareBadge(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	badgeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid badge ID"})
		return
	}

	var req shareBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.badges.Share(c.Request.Context(), userID, badgeID, req.Platforms)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
