package services

import (
	"context"
	"errors"
	"fmt"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/ports"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RevalidationScheduler periodically walks the open traces. Runs that
// dispatch has moved out of IN_TRANSIT are closed and given their final,
// published validation; runs still in transit get a provisional one.
type RevalidationScheduler struct {
	Store     ports.TraceStore
	Ref       ports.ReferenceDataProvider
	Validator *Validator
	Interval  time.Duration
	Timeout   time.Duration
	Log       zerolog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

type RevalidationSummary struct {
	Finalized   int
	Provisional int
	Failed      int
}

func NewRevalidationScheduler(
	store ports.TraceStore,
	ref ports.ReferenceDataProvider,
	validator *Validator,
	interval time.Duration,
	registryTimeout time.Duration,
	log zerolog.Logger,
) *RevalidationScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &RevalidationScheduler{
		Store:     store,
		Ref:       ref,
		Validator: validator,
		Interval:  interval,
		Timeout:   registryTimeout,
		Log:       log.With().Str("component", "scheduler").Logger(),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the periodic loop in a goroutine.
func (s *RevalidationScheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.Log.Error().Err(err).Msg("revalidation pass failed")
				}
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop requests the loop to exit and waits for the current pass to finish.
// Stop must only be called after Start.
func (s *RevalidationScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

// RunOnce performs a single pass over every open trace. Failures of
// individual runs are logged and counted; only a failure to list the
// traces is returned.
func (s *RevalidationScheduler) RunOnce(ctx context.Context) (RevalidationSummary, error) {
	var sum RevalidationSummary

	runIDs, err := s.Store.ListOpenTraces(ctx)
	if err != nil {
		return sum, fmt.Errorf("revalidation: list open traces: %w", err)
	}

	for _, runID := range runIDs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		finalized, err := s.revalidate(ctx, runID)
		switch {
		case err != nil:
			sum.Failed++
			s.Log.Warn().Err(err).Str("run_id", runID).Msg("revalidation failed")
		case finalized:
			sum.Finalized++
		default:
			sum.Provisional++
		}
	}

	s.Log.Info().
		Int("open", len(runIDs)).
		Int("finalized", sum.Finalized).
		Int("provisional", sum.Provisional).
		Int("failed", sum.Failed).
		Msg("revalidation pass complete")
	return sum, nil
}

// Finalize closes the trace of a run that has left IN_TRANSIT and publishes
// its validation. It fails with domain.ErrRunStillInTransit otherwise.
func (s *RevalidationScheduler) Finalize(ctx context.Context, runID string) (*domain.ValidationResult, error) {
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status == domain.RunInTransit {
		return nil, fmt.Errorf("finalize %q: %w", runID, domain.ErrRunStillInTransit)
	}
	return s.finalize(ctx, run)
}

func (s *RevalidationScheduler) revalidate(ctx context.Context, runID string) (bool, error) {
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return false, err
	}

	if run.Status != domain.RunInTransit {
		_, err := s.finalize(ctx, run)
		return err == nil, err
	}

	res, err := s.Validator.ValidateRoute(ctx, ValidationRequest{DeliveryRunID: run.ID})
	if err != nil {
		return false, err
	}

	ev := s.Log.Info()
	if res.HasHighSeverityDeviation() {
		ev = s.Log.Warn()
	}
	ev.Str("run_id", run.ID).
		Bool("valid", res.IsValid).
		Float64("confidence", res.Confidence).
		Float64("total_km", res.TotalDistanceKm).
		Msg("provisional validation")
	return false, nil
}

func (s *RevalidationScheduler) finalize(ctx context.Context, run domain.DeliveryRun) (*domain.ValidationResult, error) {
	err := s.Store.CloseTrace(ctx, run.ID)
	if err != nil && !errors.Is(err, domain.ErrTraceNotFound) {
		return nil, fmt.Errorf("finalize %q: close trace: %w", run.ID, err)
	}

	s.Log.Info().Str("run_id", run.ID).Str("status", string(run.Status)).Msg("trace closed")
	return s.Validator.ValidateAndPublish(ctx, ValidationRequest{DeliveryRunID: run.ID})
}

func (s *RevalidationScheduler) getRun(ctx context.Context, runID string) (domain.DeliveryRun, error) {
	callCtx, cancel := withRegistryTimeout(ctx, s.Timeout)
	defer cancel()

	run, err := s.Ref.GetRun(callCtx, runID)
	if err != nil {
		return domain.DeliveryRun{}, fmt.Errorf("get run %q: %w", runID, err)
	}
	return run, nil
}
