package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness plus database reachability.
type HealthHandler struct {
	// Optional.
	Ping func(ctx context.Context) error
	// Optional; reports buffered telemetry.
	Pending func() int
}

func (h *HealthHandler) Health(c *gin.Context) {
	res := gin.H{"status": "ok"}
	if h.Pending != nil {
		res["pending"] = h.Pending()
	}

	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.Ping(ctx); err != nil {
			res["status"] = "degraded"
			res["error"] = "database unreachable"
			c.JSON(http.StatusServiceUnavailable, res)
			return
		}
	}

	c.JSON(http.StatusOK, res)
}
