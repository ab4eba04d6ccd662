package dto

import "route-validation-service/internal/domain"

type ValidationRequest struct {
	DeliveryRunID string `json:"deliveryRunId"`
	// Resolved from the route-planning registry when omitted.
	PlannedRoute *domain.PlannedRoute `json:"plannedRoute,omitempty"`
}

type TraceResponse struct {
	domain.Trace
	ReportCount int `json:"reportCount"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
