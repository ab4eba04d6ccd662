package domain

import "errors"

var (
	ErrRunNotFound               = errors.New("delivery run not found")
	ErrRouteNotFound             = errors.New("planned route not found")
	ErrEqualisationPointNotFound = errors.New("equalisation point not found")
	ErrTraceNotFound             = errors.New("trace not found")
	ErrTraceClosed               = errors.New("trace is closed")
	ErrRunNotInTransit           = errors.New("delivery run is not in transit")
	ErrRunStillInTransit         = errors.New("delivery run is still in transit")
	ErrRegistryUnavailable       = errors.New("registry unavailable")
	ErrTraceStore                = errors.New("trace store failure")

	// Wraps lookups without which no verdict can be computed.
	ErrMissingReferenceData = errors.New("missing reference data")
)
