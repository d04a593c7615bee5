package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Hire handles POST /api/matches/:id/hire. A fresh hire returns 201; a
// retried hire for the already-winning match returns 200 with the same
// placement, so clients can safely retry on timeout.
func (h *Handler) Hire(c *gin.Context) {
	familyID, ok := h.familyID(c)
	if !ok {
		return
	}
	matchID := c.Param("id")

	placement, created, err := h.store.Hire(c.Request.Context(), matchID, familyID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, placement)
}

// GetActivePlacement handles GET /api/families/:id/active-placement using
// the placement table's family index directly.
func (h *Handler) GetActivePlacement(c *gin.Context) {
	familyID, ok := h.familyID(c)
	if !ok {
		return
	}
	if c.Param("id") != familyID {
		c.JSON(http.StatusForbidden, gin.H{"error": "you can only view your own placements", "code": "forbidden"})
		return
	}

	placement, err := h.store.FindActivePlacementByFamilyID(c.Request.Context(), familyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, placement)
}
