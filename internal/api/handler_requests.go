package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benty101/Meddycare-sub000/internal/model"
	"github.com/benty101/Meddycare-sub000/internal/store"
)

type createCareRequestBody struct {
	RecipientID   string    `json:"recipientId" binding:"required"`
	CareType      string    `json:"careType" binding:"required"`
	ScheduleType  string    `json:"scheduleType"`
	BudgetMin     float64   `json:"budgetMin"`
	BudgetMax     float64   `json:"budgetMax"`
	StartDate     time.Time `json:"startDate"`
	Needs         []string  `json:"needs"`
	MobilityLevel string    `json:"mobilityLevel"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	RadiusKm      float64   `json:"radiusKm"`
}

// CreateCareRequest handles POST /api/care-requests.
func (h *Handler) CreateCareRequest(c *gin.Context) {
	familyID, ok := h.familyID(c)
	if !ok {
		return
	}

	var body createCareRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_failed"})
		return
	}

	req := &model.CareRequest{
		FamilyID:      familyID,
		RecipientID:   body.RecipientID,
		CareType:      model.CareType(body.CareType),
		ScheduleType:  body.ScheduleType,
		BudgetMin:     body.BudgetMin,
		BudgetMax:     body.BudgetMax,
		StartDate:     body.StartDate,
		Needs:         body.Needs,
		MobilityLevel: body.MobilityLevel,
		Lat:           body.Lat,
		Lng:           body.Lng,
		RadiusKm:      body.RadiusKm,
	}

	if err := h.store.CreateCareRequest(c.Request.Context(), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// GenerateMatches handles POST /api/care-requests/:id/generate-matches.
func (h *Handler) GenerateMatches(c *gin.Context) {
	familyID, ok := h.familyID(c)
	if !ok {
		return
	}
	requestID := c.Param("id")

	req, err := h.store.GetCareRequest(c.Request.Context(), requestID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if req.FamilyID != familyID {
		h.respondError(c, store.ErrForbidden)
		return
	}

	matches, err := h.generator.GenerateMatches(c.Request.Context(), requestID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"careRequestId": requestID, "matches": matches})
}

// ListMatches handles GET /api/care-requests/:id/matches.
func (h *Handler) ListMatches(c *gin.Context) {
	familyID, ok := h.familyID(c)
	if !ok {
		return
	}
	requestID := c.Param("id")

	req, err := h.store.GetCareRequest(c.Request.Context(), requestID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if req.FamilyID != familyID {
		h.respondError(c, store.ErrForbidden)
		return
	}

	matches, err := h.store.ListMatches(c.Request.Context(), requestID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"careRequestId": requestID,
		"status":        req.Status,
		"matches":       matches,
	})
}

// CancelCareRequest handles POST /api/care-requests/:id/cancel.
func (h *Handler) CancelCareRequest(c *gin.Context) {
	familyID, ok := h.familyID(c)
	if !ok {
		return
	}
	requestID := c.Param("id")

	if err := h.store.CancelCareRequest(c.Request.Context(), requestID, familyID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"careRequestId": requestID, "status": model.RequestStatusCancelled})
}
