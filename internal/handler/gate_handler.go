package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/SergeiKhy/linkgate/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GateHandler публичная часть воронки
type GateHandler struct {
	gate   service.GateService
	ads    service.AdService
	logger *zap.Logger
}

func NewGateHandler(gate service.GateService, ads service.AdService, logger *zap.Logger) *GateHandler {
	return &GateHandler{
		gate:   gate,
		ads:    ads,
		logger: logger,
	}
}

type InitSessionResponse struct {
	SessionID string    `json:"sessionId"`
	Step      int       `json:"step"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifyStepRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Step      *int   `json:"step" binding:"required,min=1,max=1000"`
}

type VerifyStepResponse struct {
	Success  bool   `json:"success"`
	NextStep int    `json:"nextStep"`
	Message  string `json:"message"`
}

type FinalURLResponse struct {
	URL string `json:"url"`
}

func visitorFrom(c *gin.Context) models.Visitor {
	return models.Visitor{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// InitSession godoc
// @Summary Start a verification session
// @Tags gate
// @Produce json
// @Param id path string true "Link ID"
// @Success 200 {object} InitSessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/links/{id}/init [post]
func (h *GateHandler) InitSession(c *gin.Context) {
	linkID := c.Param("id")

	session, err := h.gate.InitSession(c.Request.Context(), linkID, visitorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, InitSessionResponse{
		SessionID: session.ID,
		Step:      session.Step,
		ExpiresAt: session.ExpiresAt,
	})
}

// VerifyStep godoc
// @Summary Mark a verification step as completed
// @Tags gate
// @Accept json
// @Produce json
// @Param request body VerifyStepRequest true "Session and step"
// @Success 200 {object} VerifyStepResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /api/session/verify [post]
func (h *GateHandler) VerifyStep(c *gin.Context) {
	var req VerifyStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, err)
		return
	}

	next, err := h.gate.VerifyStep(c.Request.Context(), req.SessionID, *req.Step, visitorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, VerifyStepResponse{
		Success:  true,
		NextStep: next,
		Message:  fmt.Sprintf("Step %d verified", *req.Step),
	})
}

// FinalURL godoc
// @Summary Disclose the destination URL
// @Tags gate
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} FinalURLResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /api/session/{sessionId}/final [get]
func (h *GateHandler) FinalURL(c *gin.Context) {
	url, err := h.gate.FinalURL(c.Request.Context(), c.Param("sessionId"), visitorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, FinalURLResponse{URL: url})
}

// PublicAds godoc
// @Summary List active ads
// @Tags gate
// @Produce json
// @Success 200 {array} models.Ad
// @Router /api/ads/public [get]
func (h *GateHandler) PublicAds(c *gin.Context) {
	ads, err := h.ads.ListActiveAds(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ads)
}
