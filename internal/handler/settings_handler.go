package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"secondbrain/internal/service/settings"
)

type SettingsHandler struct {
	settings *settings.Service
	logger   *zap.Logger
}

func NewSettingsHandler(s *settings.Service, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settings: s, logger: logger}
}

// List GET /settings
func (h *SettingsHandler) List(c *gin.Context) {
	owner, ok := requireOwner(c, h.logger)
	if !ok {
		return
	}
	all, err := h.settings.All(c.Request.Context(), owner)
	if err != nil {
		fail(c, h.logger, "Settings lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": all})
}

// Update PUT /settings/:key {"value": "..."}
func (h *SettingsHandler) Update(c *gin.Context) {
	owner, ok := requireOwner(c, h.logger)
	if !ok {
		return
	}
	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	key := c.Param("key")
	err := h.settings.Set(c.Request.Context(), owner, key, req.Value)
	if errors.Is(err, settings.ErrInvalidSetting) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		fail(c, h.logger, "Settings update failed", err)
		return
	}
	h.logger.Info("Setting updated", zap.Int64("owner", owner), zap.String("key", key))
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}
