package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/services/referrals"
)

// ReferralHandler handles referral lifecycle requests
type ReferralHandler struct {
	referrals *referrals.ReferralService
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(svc *referrals.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: svc}
}

type generateCodeRequest struct {
	Source   string `json:"source"`
	Campaign string `json:"campaign"`
}

// GenerateCode creates a referral code for the authenticated user
func (h *ReferralHandler) GenerateCode(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	var req generateCodeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	referral, err := h.referrals.GenerateCode(c.Request.Context(), userID, req.Source, req.Campaign)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, referral)
}

// ValidateCode checks whether a referral code can still be redeemed.
// Public so signup pages can validate before account creation.
func (h *ReferralHandler) ValidateCode(c *gin.Context) {
	validation, err := h.referrals.Validate(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, validation)
}

type processReferralRequest struct {
	Code string `json:"code" binding:"required"`
}

// ProcessReferral completes a referral for the newly signed-up caller
func (h *ReferralHandler) ProcessReferral(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	var req processReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.referrals.Process(c.Request.Context(), req.Code, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CancelReferral voids one of the caller's pending referrals
func (h *ReferralHandler) CancelReferral(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	referralID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referral ID"})
		return
	}

	if err := h.referrals.Cancel(c.Request.Context(), referralID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// GetMyReferrals lists the caller's referrals
func (h *ReferralHandler) GetMyReferrals(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}

	list, err := h.referrals.GetMyReferrals(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"referrals": list})
}
