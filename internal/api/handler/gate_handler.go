package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDecision handles GET /api/v1/gate/decision?host=
// Reports whether an outbound call to host would be allowed
func (h *GateHandler) GetDecision(c *gin.Context) {
	host := c.Query("host")
	if host == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "host is required",
		})
		return
	}

	d := h.gate.Decide(host)

	c.JSON(http.StatusOK, gin.H{
		"hostname": d.Hostname,
		"allowed":  d.Allowed,
		"reason":   d.Reason,
		"mode":     h.gate.Mode(),
	})
}
