package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/benty101/Meddycare-sub000/internal/matching"
	"github.com/benty101/Meddycare-sub000/internal/mw"
	"github.com/benty101/Meddycare-sub000/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	generator *matching.Generator
	webpush   *webpush.Options
	log       *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, generator *matching.Generator, webpushOptions *webpush.Options, log *zap.Logger) *Handler {
	return &Handler{
		store:     s,
		generator: generator,
		webpush:   webpushOptions,
		log:       log,
	}
}

// familyID extracts the authenticated family identity. The auth layer in
// front of this service sets the header; an empty value means the request
// never passed through it.
func (h *Handler) familyID(c *gin.Context) (string, bool) {
	id := c.GetHeader(mw.FamilyIDHeader)
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing family identity"})
		return "", false
	}
	return id, true
}

// respondError maps the typed error taxonomy onto HTTP responses. Expected
// races get a refresh hint instead of a generic failure; authorization
// failures are logged for audit.
func (h *Handler) respondError(c *gin.Context, err error) {
	var validationErr *store.ValidationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Error(),
			"code":  "validation_failed",
		})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "code": "not_found"})
	case errors.Is(err, store.ErrForbidden):
		h.log.Warn("forbidden access attempt",
			zap.String("path", c.FullPath()),
			zap.String("family_id", c.GetHeader(mw.FamilyIDHeader)))
		c.JSON(http.StatusForbidden, gin.H{"error": "you do not own this care request", "code": "forbidden"})
	case errors.Is(err, store.ErrAlreadyHired):
		c.JSON(http.StatusConflict, gin.H{
			"error": "this carer is no longer available for the request; refresh to see the current state",
			"code":  "already_hired",
		})
	case errors.Is(err, store.ErrConcurrentGeneration):
		c.JSON(http.StatusConflict, gin.H{
			"error": "match generation is already in progress for this request",
			"code":  "generation_in_progress",
		})
	case errors.Is(err, store.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "invalid_transition"})
	case errors.Is(err, matching.ErrNoCandidates):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "no eligible carers were found; widen the search or try again later",
			"code":  "no_candidates",
		})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
	}
}
