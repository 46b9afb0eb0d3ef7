package rule

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oswaldlabs/streamlog/pkg/errors"
)

// Handler handles HTTP requests for exclusion rule inspection
type Handler struct {
	service Service
}

// NewHandler creates a new rule handler
func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// ListRules returns the effective rule set for a scope
func (h *Handler) ListRules(c *gin.Context) {
	siteID, err := strconv.ParseInt(c.DefaultQuery("site_id", "1"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.BadRequest("invalid site_id"))
		return
	}

	tenantID, err := strconv.ParseInt(c.DefaultQuery("tenant_id", "1"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.BadRequest("invalid tenant_id"))
		return
	}

	rules, err := h.service.Rules(c.Request.Context(), siteID, tenantID)
	if err != nil {
		if err == ErrInvalidScope {
			c.JSON(http.StatusBadRequest, errors.BadRequest("invalid rule scope"))
			return
		}
		c.JSON(http.StatusInternalServerError, errors.Internal("Failed to list rules", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}
