package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chromance-server/internal/middleware"
	"chromance-server/internal/models"
	"chromance-server/internal/service"
)

// NarrativeHandler exposes the narrative engine over HTTP.
type NarrativeHandler struct {
	orchestrator *service.NarrativeOrchestrator
	logger       *zap.Logger
}

// NewNarrativeHandler creates a new handler.
func NewNarrativeHandler(orchestrator *service.NarrativeOrchestrator, logger *zap.Logger) *NarrativeHandler {
	return &NarrativeHandler{
		orchestrator: orchestrator,
		logger:       logger.Named("NarrativeHandler"),
	}
}

// RegisterRoutes attaches the API routes to the router group.
func (h *NarrativeHandler) RegisterRoutes(api *gin.RouterGroup) {
	campaigns := api.Group("/campaigns")
	{
		campaigns.GET("", h.listCampaigns)
		campaigns.POST("/:id/start", h.startCampaign)
		campaigns.POST("/:id/actions", h.submitAction)
		campaigns.POST("/:id/reset", h.resetProgression)
		campaigns.POST("/:id/cancel", h.cancelCampaign)
		campaigns.GET("/:id/narrative", h.getFullContext)
		campaigns.GET("/:id/narrative/search", h.searchNarratives)
		campaigns.DELETE("/:id/narrative", h.purgeNarratives)
	}
	api.GET("/narrative/stats", h.storeStats)
}

type startCampaignRequest struct {
	CharacterID uuid.UUID `json:"character_id" binding:"required"`
}

func (h *NarrativeHandler) startCampaign(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, models.ErrTokenInvalid)
		return
	}

	var req startCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrInvalidInput)
		return
	}

	rec, err := h.orchestrator.StartCampaign(c.Request.Context(), userID, c.Param("id"), req.CharacterID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type submitActionRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *NarrativeHandler) submitAction(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, models.ErrTokenInvalid)
		return
	}

	var req submitActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrInvalidInput)
		return
	}

	result, err := h.orchestrator.SubmitAction(c.Request.Context(), userID, c.Param("id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *NarrativeHandler) resetProgression(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, models.ErrTokenInvalid)
		return
	}

	rec, err := h.orchestrator.ResetProgression(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *NarrativeHandler) cancelCampaign(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, models.ErrTokenInvalid)
		return
	}

	if err := h.orchestrator.CancelCampaign(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NarrativeHandler) listCampaigns(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, models.ErrTokenInvalid)
		return
	}

	items, err := h.orchestrator.ListCampaigns(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": items})
}

func (h *NarrativeHandler) getFullContext(c *gin.Context) {
	turns, err := h.orchestrator.GetFullContext(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"turns": turns})
}

func (h *NarrativeHandler) searchNarratives(c *gin.Context) {
	query := c.Query("q")
	topK, err := strconv.Atoi(c.DefaultQuery("top_k", "5"))
	if err != nil || topK <= 0 || topK > 50 {
		respondError(c, models.ErrInvalidInput)
		return
	}

	hits, err := h.orchestrator.SearchNarratives(c.Request.Context(), c.Param("id"), query, topK)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": hits})
}

func (h *NarrativeHandler) purgeNarratives(c *gin.Context) {
	if err := h.orchestrator.PurgeNarratives(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NarrativeHandler) storeStats(c *gin.Context) {
	stats, err := h.orchestrator.StoreStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// respondError maps service errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrTokenInvalid), errors.Is(err, models.ErrTokenExpired), errors.Is(err, models.ErrTokenMalformed):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrCampaignNotFound),
		errors.Is(err, models.ErrCharacterNotFound),
		errors.Is(err, models.ErrNoActiveCampaign):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyActive), errors.Is(err, models.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, models.ErrTurnInProgress):
		status = http.StatusTooManyRequests
	case errors.Is(err, models.ErrOracleUnavailable),
		errors.Is(err, models.ErrStoreUnavailable),
		errors.Is(err, models.ErrRetrievalUnavailable):
		status = http.StatusServiceUnavailable
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
