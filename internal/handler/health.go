package handler

import (
	"net/http"

	"github.com/SergeiKhy/linkgate/internal/service"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	events service.EventProcessor
}

func NewHealthHandler(events service.EventProcessor) *HealthHandler {
	return &HealthHandler{events: events}
}

// HealthCheck godoc
// @Summary Liveness probe и состояние очереди событий
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"service":    "linkgate",
		"eventQueue": h.events.GetChannelStats(),
	})
}
