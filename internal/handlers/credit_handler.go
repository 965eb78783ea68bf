package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/apperrors"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/services/credits"
)

// CreditHandler handles point ledger and summary requests
type CreditHandler struct {
	credits *credits.CreditService
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(creditSvc *credits.CreditService) *CreditHandler {
	return &CreditHandler{credits: creditSvc}
}

// respondError maps a service error onto an HTTP response. Internal
// causes are logged, never returned to callers.
func respondError(c *gin.Context, err error) {
	if apperrors.KindOf(err) == apperrors.KindInternal {
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
}

// authedUserID pulls the authenticated user's ID off the context
func authedUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr := c.GetString("user_id")
	if userIDStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return uuid.Nil, false
	}
	return userID, true
}

// GetMySummary gets the authenticated user's account summary
func (h *CreditHandler) GetMySummary(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	summary, err := h.credits.GetSummary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetMyHistory gets a page of the authenticated user's ledger
func (h *CreditHandler) GetMyHistory(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, total, err := h.credits.GetHistory(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": entries,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

type awardRequest struct {
	UserID         uuid.UUID              `json:"user_id" binding:"required"`
	ActivityType   string                 `json:"activity_type" binding:"required"`
	Points         int                    `json:"points"`
	Description    string                 `json:"description" binding:"required"`
	ProjectID      *uuid.UUID             `json:"project_id"`
	RelatedUserID  *uuid.UUID             `json:"related_user_id"`
	OpportunityID  *uuid.UUID             `json:"opportunity_id"`
	Metadata       map[string]interface{} `json:"metadata"`
	Source         string                 `json:"source"`
	IdempotencyKey string                 `json:"idempotency_key"`
}

// AwardPoints awards points to a user. Admin only.
func (h *CreditHandler) AwardPoints(c *gin.Context) {
	var req awardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.credits.AwardPoints(c.Request.Context(), credits.AwardInput{
		UserID:         req.UserID,
		ActivityType:   req.ActivityType,
		Points:         req.Points,
		Description:    req.Description,
		ProjectID:      req.ProjectID,
		RelatedUserID:  req.RelatedUserID,
		OpportunityID:  req.OpportunityID,
		Metadata:       models.JSON(req.Metadata),
		Source:         req.Source,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// RecordEvent ingests a point-affecting event from an internal service.
// Deliveries retried with the same idempotency key return the original
// entry with 200 instead of 201.
func (h *CreditHandler) RecordEvent(c *gin.Context) {
	var req awardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idempotency_key is required"})
		return
	}

	result, err := h.credits.AwardPoints(c.Request.Context(), credits.AwardInput{
		UserID:         req.UserID,
		ActivityType:   req.ActivityType,
		Points:         req.Points,
		Description:    req.Description,
		ProjectID:      req.ProjectID,
		RelatedUserID:  req.RelatedUserID,
		OpportunityID:  req.OpportunityID,
		Metadata:       models.JSON(req.Metadata),
		Source:         req.Source,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// GetLevels returns the level threshold table
func (h *CreditHandler) GetLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": h.credits.Config().Levels})
}
