package handlers

import (
	"fmt"
	"net/http"
	"route-validation-service/internal/api/dto"
	"route-validation-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBatchSize = 1000

type TelemetrySubmitter interface {
	Submit(r domain.PositionReport) (dropped bool)
}

// TelemetryHandler accepts position reports and queues them for the
// real-time monitor.
type TelemetryHandler struct {
	Monitor TelemetrySubmitter
	Log     zerolog.Logger
}

// Ingest validates the whole batch before queueing any of it.
func (h *TelemetryHandler) Ingest(c *gin.Context) {
	var req dto.TelemetryRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := req.Messages()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(msgs) > maxBatchSize {
		writeError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d reports per request", maxBatchSize))
		return
	}

	reports := make([]domain.PositionReport, 0, len(msgs))
	for i, m := range msgs {
		r, err := m.ToReport()
		if err != nil {
			writeError(c, http.StatusBadRequest, fmt.Sprintf("report %d: %v", i, err))
			return
		}
		reports = append(reports, r)
	}

	var res dto.TelemetryResponse
	for _, r := range reports {
		if h.Monitor.Submit(r) {
			res.Dropped++
		}
		res.Queued++
	}

	if res.Dropped > 0 {
		h.Log.Warn().Int("dropped", res.Dropped).Msg("telemetry backpressure")
	}
	c.JSON(http.StatusAccepted, res)
}
