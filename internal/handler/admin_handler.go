package handler

import (
	"net/http"
	"strconv"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/SergeiKhy/linkgate/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler управление ссылками и рекламой
type AdminHandler struct {
	links  service.LinkService
	ads    service.AdService
	events service.EventProcessor
	auth   service.AuthService
	logger *zap.Logger
}

func NewAdminHandler(
	links service.LinkService,
	ads service.AdService,
	events service.EventProcessor,
	auth service.AuthService,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		links:  links,
		ads:    ads,
		events: events,
		auth:   auth,
		logger: logger,
	}
}

type LoginRequest struct {
	Password string `json:"password"`
}

type CreateLinkRequest struct {
	ID          *string `json:"id,omitempty"`
	OriginalURL string  `json:"originalUrl" binding:"required"`
	Title       string  `json:"title" binding:"required"`
	Active      *bool   `json:"active,omitempty"`
}

type CreateAdRequest struct {
	Placement string `json:"placement" binding:"required"`
	Code      string `json:"code" binding:"required"`
	Active    *bool  `json:"active,omitempty"`
}

// Login godoc
// @Summary Exchange the admin password for a token
// @Tags admin
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Admin password"
// @Success 200 {object} models.AdminToken
// @Failure 401 {object} ErrorResponse
// @Router /api/admin/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, err)
		return
	}

	token, err := h.auth.Login(req.Password)
	if err != nil {
		h.logger.Warn("Admin login failed", zap.String("ip", c.ClientIP()))
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("Admin logged in", zap.String("ip", c.ClientIP()))
	c.JSON(http.StatusOK, token)
}

// ListLinks godoc
// @Summary List all links
// @Tags admin
// @Produce json
// @Success 200 {array} models.Link
// @Failure 401 {object} ErrorResponse
// @Router /api/admin/links [get]
func (h *AdminHandler) ListLinks(c *gin.Context) {
	links, err := h.links.ListLinks(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// CreateLink godoc
// @Summary Create a secure link
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link fields"
// @Success 201 {object} models.Link
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/admin/links [post]
func (h *AdminHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, err)
		return
	}

	link, err := h.links.CreateLink(c.Request.Context(), &models.CreateLinkInput{
		ID:          req.ID,
		OriginalURL: req.OriginalURL,
		Title:       req.Title,
		Active:      req.Active,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("Link created", zap.String("id", link.ID))
	c.JSON(http.StatusCreated, link)
}

// DeleteLink godoc
// @Summary Delete a link
// @Tags admin
// @Param id path string true "Link ID"
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Router /api/admin/links/{id} [delete]
func (h *AdminHandler) DeleteLink(c *gin.Context) {
	id := c.Param("id")
	if err := h.links.DeleteLink(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("Link deleted", zap.String("id", id))
	c.Status(http.StatusNoContent)
}

// LinkStats godoc
// @Summary Funnel statistics for a link
// @Tags admin
// @Produce json
// @Param id path string true "Link ID"
// @Success 200 {object} models.LinkStats
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/admin/links/{id}/stats [get]
func (h *AdminHandler) LinkStats(c *gin.Context) {
	stats, err := h.events.GetStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListAds godoc
// @Summary List all ads
// @Tags admin
// @Produce json
// @Success 200 {array} models.Ad
// @Failure 401 {object} ErrorResponse
// @Router /api/admin/ads [get]
func (h *AdminHandler) ListAds(c *gin.Context) {
	ads, err := h.ads.ListAds(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ads)
}

// CreateAd godoc
// @Summary Create an ad
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateAdRequest true "Ad fields"
// @Success 201 {object} models.Ad
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/admin/ads [post]
func (h *AdminHandler) CreateAd(c *gin.Context) {
	var req CreateAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, err)
		return
	}

	ad, err := h.ads.CreateAd(c.Request.Context(), &models.CreateAdInput{
		Placement: req.Placement,
		Code:      req.Code,
		Active:    req.Active,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, ad)
}

// DeleteAd godoc
// @Summary Delete an ad
// @Tags admin
// @Param id path int true "Ad ID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/admin/ads/{id} [delete]
func (h *AdminHandler) DeleteAd(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   kindValidation,
			Message: "ad id must be a positive integer",
		})
		return
	}

	if err := h.ads.DeleteAd(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
