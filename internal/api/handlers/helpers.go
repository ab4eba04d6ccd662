package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"route-validation-service/internal/api/dto"
	"route-validation-service/internal/domain"

	"github.com/gin-gonic/gin"
)

// Request bodies larger than this are rejected.
const maxBodyBytes = 4 << 20

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, dto.ErrorResponse{Error: msg})
}

// decodeJSON reads exactly one JSON object from the request body and
// rejects unknown fields.
func decodeJSON(c *gin.Context, dst any) error {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON object")
	}
	return nil
}

// statusFor maps service errors to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrTraceNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrMissingReferenceData):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrTraceClosed),
		errors.Is(err, domain.ErrRunNotInTransit),
		errors.Is(err, domain.ErrRunStillInTransit):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrRegistryUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "upstream registry unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
