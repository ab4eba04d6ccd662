package ports

import (
	"context"
	"route-validation-service/internal/domain"
)

// Port: the append-only record of position reports per delivery run.
//
// Implementations must serialize appends to the same run and must reject
// appends to a closed trace with domain.ErrTraceClosed.
type TraceStore interface {
	// Return the trace for a run, or domain.ErrTraceNotFound.
	FindTrace(ctx context.Context, runID string) (*domain.Trace, error)
	// Append one report, creating the trace on first use. Returns the updated trace.
	AppendReport(ctx context.Context, runID string, report domain.PositionReport) (*domain.Trace, error)
	// Mark the trace read-only.
	CloseTrace(ctx context.Context, runID string) error
	// Run IDs of every trace that is still open.
	ListOpenTraces(ctx context.Context) ([]string, error)
}
