package handlers

import (
	"context"
	"net/http"
	"route-validation-service/internal/api/dto"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/ports"
	"route-validation-service/internal/services"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type RouteValidator interface {
	ValidateAndPublish(ctx context.Context, req services.ValidationRequest) (*domain.ValidationResult, error)
}

type RunFinalizer interface {
	Finalize(ctx context.Context, runID string) (*domain.ValidationResult, error)
}

type ValidationHandler struct {
	Validator RouteValidator
	Finalizer RunFinalizer
	Traces    ports.TraceStore
	Log       zerolog.Logger
}

func (h *ValidationHandler) Validate(c *gin.Context) {
	var req dto.ValidationRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	runID := strings.TrimSpace(req.DeliveryRunID)
	if runID == "" {
		writeError(c, http.StatusBadRequest, "deliveryRunId is required")
		return
	}
	if req.PlannedRoute != nil && len(req.PlannedRoute.Waypoints) == 0 {
		writeError(c, http.StatusBadRequest, "plannedRoute needs at least one waypoint")
		return
	}

	res, err := h.Validator.ValidateAndPublish(c.Request.Context(), services.ValidationRequest{
		DeliveryRunID: runID,
		PlannedRoute:  req.PlannedRoute,
	})
	if err != nil {
		h.fail(c, "validate route", runID, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ValidationHandler) GetTrace(c *gin.Context) {
	runID := c.Param("runID")

	tr, err := h.Traces.FindTrace(c.Request.Context(), runID)
	if err != nil {
		h.fail(c, "find trace", runID, err)
		return
	}

	c.JSON(http.StatusOK, dto.TraceResponse{Trace: *tr, ReportCount: len(tr.Reports)})
}

// CloseTrace closes the trace of a run that has left IN_TRANSIT and returns
// its final verdict.
func (h *ValidationHandler) CloseTrace(c *gin.Context) {
	runID := c.Param("runID")

	res, err := h.Finalizer.Finalize(c.Request.Context(), runID)
	if err != nil {
		h.fail(c, "close trace", runID, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ValidationHandler) fail(c *gin.Context, op, runID string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error().Err(err).Str("run_id", runID).Msg(op + " failed")
	}
	writeError(c, status, msg)
}
