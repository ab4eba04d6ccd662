package services

import (
	"context"
	"errors"
	"fmt"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/platform/obs"
	"route-validation-service/internal/ports"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type ValidationRequest struct {
	DeliveryRunID string
	// Optional; resolved from the route-planning registry when nil.
	PlannedRoute *domain.PlannedRoute
}

// Validator produces the authoritative verdict for a delivery run.
//
// It reads an immutable snapshot of the trace, so validations of different
// runs are independent and may execute in parallel. The validator is safe
// for concurrent use.
type Validator struct {
	store     ports.TraceStore
	ref       ports.ReferenceDataProvider
	publisher ports.ResultPublisher
	th        Thresholds
	timeout   time.Duration
	log       zerolog.Logger
}

func NewValidator(
	store ports.TraceStore,
	ref ports.ReferenceDataProvider,
	publisher ports.ResultPublisher,
	th Thresholds,
	registryTimeout time.Duration,
	log zerolog.Logger,
) *Validator {
	return &Validator{
		store:     store,
		ref:       ref,
		publisher: publisher,
		th:        th,
		timeout:   registryTimeout,
		log:       log.With().Str("component", "validator").Logger(),
	}
}

// ValidateRoute runs the full pipeline for one delivery run:
// quality gate, metrics, then the deviation, anomaly and geofence detectors
// concurrently, and finally the assembler.
//
// Unknown runs and missing equalisation points abort with an error wrapping
// domain.ErrMissingReferenceData. Registry outages in the detectors degrade
// the verdict instead. Cancelling ctx discards partial results.
func (v *Validator) ValidateRoute(ctx context.Context, req ValidationRequest) (_ *domain.ValidationResult, err error) {
	defer obs.Time(ctx, v.log, "validator.ValidateRoute")(&err)

	if req.DeliveryRunID == "" {
		return nil, errors.New("validate route: delivery run id must not be empty")
	}

	run, err := v.getRun(ctx, req.DeliveryRunID)
	if err != nil {
		return nil, err
	}

	// Resolved once; later registry changes do not affect this call.
	eq, err := v.getEqualisationPoint(ctx, run.RouteID)
	if err != nil {
		return nil, err
	}

	trace, err := v.snapshot(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	reports := trace.Reports

	gate := CheckQuality(reports, v.th)
	if !gate.Passed {
		v.log.Info().
			Str("run_id", run.ID).
			Strs("reasons", gate.Reasons).
			Msg("trace rejected by quality gate")
		return Rejected(run.ID, reports, gate, trace.Closed), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics := CalculateMetrics(reports, v.th)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	route := req.PlannedRoute
	if route == nil {
		route = v.resolveRoute(ctx, run.RouteID)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	deviations := &DeviationDetector{Ref: v.ref, Th: v.th, Timeout: v.timeout, Log: v.log}
	geofence := &GeofenceChecker{Ref: v.ref, Timeout: v.timeout, Log: v.log}

	// Fixed slots keep the merge order stable regardless of completion order.
	var outcomes [3]detectorOutcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o, err := deviations.Detect(gctx, reports, route, run.RouteID)
		outcomes[0] = o
		return err
	})
	g.Go(func() error {
		outcomes[1] = detectorOutcome{Anomalies: DetectAnomalies(reports, metrics, v.th)}
		return gctx.Err()
	})
	g.Go(func() error {
		o, err := geofence.Check(gctx, reports)
		outcomes[2] = o
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validate route %s: %w", run.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := Assemble(Assembly{
		RunID:        run.ID,
		Reports:      reports,
		Metrics:      metrics,
		Equalisation: eq,
		Outcomes:     outcomes[:],
		Th:           v.th,
		Final:        trace.Closed,
	})

	v.log.Info().
		Str("run_id", run.ID).
		Bool("valid", res.IsValid).
		Float64("confidence", res.Confidence).
		Float64("total_km", res.TotalDistanceKm).
		Float64("km_beyond_equalisation", res.KmBeyondEqualisation).
		Int("deviations", len(res.Deviations)).
		Int("anomalies", len(res.Anomalies)).
		Msg("route validated")

	return res, nil
}

// ValidateAndPublish validates and, when the trace is closed, hands the
// verdict to the claims subsystem. Publishing is best effort.
func (v *Validator) ValidateAndPublish(ctx context.Context, req ValidationRequest) (*domain.ValidationResult, error) {
	res, err := v.ValidateRoute(ctx, req)
	if err != nil {
		return nil, err
	}

	if res.Final && v.publisher != nil {
		if err := v.publisher.PublishResult(ctx, res); err != nil {
			v.log.Error().Err(err).Str("run_id", res.DeliveryRunID).Msg("publish validation result failed")
		}
	}
	return res, nil
}

func (v *Validator) getRun(ctx context.Context, runID string) (domain.DeliveryRun, error) {
	callCtx, cancel := withRegistryTimeout(ctx, v.timeout)
	defer cancel()

	run, err := v.ref.GetRun(callCtx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return domain.DeliveryRun{}, fmt.Errorf("validate route: run %q: %w: %w", runID, domain.ErrMissingReferenceData, err)
		}
		return domain.DeliveryRun{}, fmt.Errorf("validate route: get run %q: %w", runID, err)
	}
	return run, nil
}

func (v *Validator) getEqualisationPoint(ctx context.Context, routeID string) (domain.EqualisationPoint, error) {
	callCtx, cancel := withRegistryTimeout(ctx, v.timeout)
	defer cancel()

	eq, err := v.ref.GetEqualisationPoint(callCtx, routeID)
	if err != nil {
		if errors.Is(err, domain.ErrEqualisationPointNotFound) {
			return domain.EqualisationPoint{}, fmt.Errorf("validate route: route %q: %w: %w", routeID, domain.ErrMissingReferenceData, err)
		}
		return domain.EqualisationPoint{}, fmt.Errorf("validate route: get equalisation point for %q: %w", routeID, err)
	}
	return eq, nil
}

// snapshot returns a private copy of the trace. A run without a trace yet
// yields an empty snapshot, which the quality gate then rejects.
func (v *Validator) snapshot(ctx context.Context, runID string) (*domain.Trace, error) {
	trace, err := v.store.FindTrace(ctx, runID)
	if errors.Is(err, domain.ErrTraceNotFound) {
		return &domain.Trace{DeliveryRunID: runID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("validate route: find trace %q: %w", runID, err)
	}
	return trace.Snapshot(), nil
}

// resolveRoute returns nil when the planned route cannot be loaded; the
// corridor check is then skipped rather than failing the validation.
func (v *Validator) resolveRoute(ctx context.Context, routeID string) *domain.PlannedRoute {
	callCtx, cancel := withRegistryTimeout(ctx, v.timeout)
	defer cancel()

	route, err := v.ref.GetPlannedRoute(callCtx, routeID)
	if err != nil {
		v.log.Warn().Err(err).Str("route_id", routeID).Msg("planned route unavailable; corridor check will be skipped")
		return nil
	}
	return &route
}
